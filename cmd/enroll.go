package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> [image...]",
	Short: "Enroll a person from one or more face photos",
	Long: `Enroll a person by extracting face embeddings from the given images.

Each image is checked with the quality gate first; blurry, dark, small or
heavily rotated faces are skipped. The best face per image is stored.

Examples:
  # Enroll from individual photos
  faceattend enroll "Jane Novak" photo1.jpg photo2.jpg

  # Enroll from every image in a directory
  faceattend enroll "Jane Novak" --dir ./photos/jane`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("dir", "", "Enroll from every image in this directory")
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := args[0]
	paths := args[1:]

	dir, _ := cmd.Flags().GetString("dir")
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("reading directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() && isImageFile(e.Name()) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images given; pass image paths or --dir")
	}

	sys, err := buildSystem()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	ctx := context.Background()
	enrolled := 0
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading image %s: %w", p, err)
		}
		ok, err := sys.Enroll(ctx, name, data)
		if err != nil {
			return fmt.Errorf("enrolling from %s: %w", p, err)
		}
		if ok {
			enrolled++
		}
		_ = bar.Add(1)
	}
	fmt.Println()

	if enrolled == 0 {
		return fmt.Errorf("no usable face found in %d image(s)", len(paths))
	}

	fmt.Printf("Enrolled %s\n", name)
	fmt.Printf("  Images used:    %d of %d\n", enrolled, len(paths))
	if stats, ok := sys.PersonStats(name); ok {
		fmt.Printf("  Stored samples: %d\n", stats.SampleCount)
		fmt.Printf("  Avg quality:    %.3f\n", stats.AvgQuality)
	}
	return nil
}
