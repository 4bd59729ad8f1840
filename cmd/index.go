package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvanek/faceattend/internal/detector"
	"github.com/mvanek/faceattend/internal/match"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the accelerated search index",
	Long: `The index holds one representative embedding per person in an HNSW
graph for fast nearest-neighbor search. It is built from the enrolled
samples and persisted next to the embedding store.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the index from the enrolled people",
	RunE:  runIndexBuild,
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index size and configuration",
	RunE:  runIndexStats,
}

var indexSearchCmd = &cobra.Command{
	Use:   "search <image>",
	Short: "Search the index with the faces in an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexSearch,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatsCmd)
	indexCmd.AddCommand(indexSearchCmd)

	indexSearchCmd.Flags().Int("limit", 3, "Number of neighbors per face")
}

func openIndex() *match.Index {
	return match.NewIndex(
		match.IndexConfig{
			Threshold: cfg.Recognition.IndexThreshold,
			Dim:       cfg.Recognition.EmbeddingDim,
			Kind:      match.IndexKindHNSW,
		},
		cfg.Storage.IndexFile,
		cfg.Storage.IndexSnapshot,
	)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	idx := openIndex()
	added := 0
	for _, p := range st.People() {
		if len(p.Samples) == 0 {
			continue
		}
		// Samples are ranked best first; index the top one per person.
		if idx.Add(p.Name, p.Samples[0].Embedding, nil) {
			added++
		}
	}

	if err := idx.Save(); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}
	fmt.Printf("Indexed %d people\n", added)
	return nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	idx := openIndex()
	if err := idx.Load(); err != nil {
		return err
	}

	c := idx.Config()
	fmt.Printf("People:    %d\n", idx.Count())
	fmt.Printf("Type:      %s\n", c.Kind)
	fmt.Printf("Dimension: %d\n", c.Dim)
	fmt.Printf("Threshold: %.2f\n", c.Threshold)
	return nil
}

func runIndexSearch(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	limit, _ := cmd.Flags().GetInt("limit")

	idx := openIndex()
	if err := idx.Load(); err != nil {
		return err
	}
	if idx.Count() == 0 {
		return fmt.Errorf("index is empty; run 'faceattend index build' first")
	}

	det := detector.NewClient(cfg.Detector.URL)
	faces, err := det.DetectAndExtract(context.Background(), data)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(faces) == 0 {
		fmt.Println("No faces detected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPERSON\tSIMILARITY\tMATCH")
	for i, face := range faces {
		for _, m := range idx.Search(face.Embedding, limit) {
			name := m.StudentID
			if name == "" {
				name = "(none)"
			}
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%t\n", i, name, m.Confidence, m.IsMatch)
		}
	}
	return w.Flush()
}
