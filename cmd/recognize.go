package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize enrolled people in an image",
	Long: `Recognize every face in an image against the enrolled people.

Faces failing the quality gate are listed as unmatched without being
compared. With --log-attendance each recognized person gets an attendance
record for today, at most one per day.

Examples:
  faceattend recognize classroom.jpg
  faceattend recognize classroom.jpg --log-attendance
  faceattend recognize classroom.jpg --threshold 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().Float64("threshold", 0, "Override the match threshold (0 = use configured value)")
	recognizeCmd.Flags().Bool("log-attendance", false, "Record attendance for recognized people")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	if threshold, _ := cmd.Flags().GetFloat64("threshold"); threshold > 0 {
		cfg.Recognition.MatchThreshold = threshold
	}
	logAttendance, _ := cmd.Flags().GetBool("log-attendance")

	sys, err := buildSystem()
	if err != nil {
		return err
	}

	results, err := sys.Recognize(context.Background(), data, logAttendance)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No faces detected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tNAME\tCONFIDENCE\tQUALITY\tDETECTION")
	for _, r := range results {
		name := r.Name
		if !r.Matched {
			name = "(unknown)"
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\t%.3f\n", r.FaceIndex, name, r.Confidence, r.Quality, r.DetScore)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}

	if logAttendance {
		names, err := sys.Ledger().Today()
		if err != nil {
			return err
		}
		fmt.Printf("\nAttendance logged today: %d\n", len(names))
	}
	return nil
}
