package main

import "github.com/mvanek/faceattend/cmd"

func main() {
	cmd.Execute()
}
