package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mvanek/faceattend/internal/detector"
	"github.com/mvanek/faceattend/internal/store/postgres"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Work with the optional PostgreSQL backend",
	Long: `The PostgreSQL backend mirrors the enrolled samples into a pgvector
table for server-side similarity search and for sharing the enrollment
between machines. Set DATABASE_URL to enable it.`,
}

var dbPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the local embedding store to PostgreSQL",
	RunE:  runDBPush,
}

var dbPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace the local embedding store with the PostgreSQL contents",
	RunE:  runDBPull,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what is stored in PostgreSQL",
	RunE:  runDBStats,
}

var dbSimilarCmd = &cobra.Command{
	Use:   "similar <image>",
	Short: "Find the closest stored samples for the faces in an image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDBSimilar,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbPushCmd)
	dbCmd.AddCommand(dbPullCmd)
	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbSimilarCmd)

	dbSimilarCmd.Flags().Int("limit", 5, "Number of samples to return")
}

func openRepository(ctx context.Context) (*postgres.SampleRepository, *postgres.Pool, error) {
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return postgres.NewSampleRepository(pool), pool, nil
}

func runDBPush(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore()
	if err != nil {
		return err
	}
	people := st.People()
	if len(people) == 0 {
		return fmt.Errorf("no people enrolled")
	}

	repo, pool, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	bar := progressbar.NewOptions(len(people),
		progressbar.OptionSetDescription("Pushing samples"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	total := 0
	for _, p := range people {
		if err := repo.SaveSamples(ctx, p.Name, p.Samples); err != nil {
			return err
		}
		total += len(p.Samples)
		_ = bar.Add(1)
	}
	fmt.Printf("\nPushed %d samples for %d people\n", total, len(people))
	return nil
}

func runDBPull(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	repo, pool, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	people, err := repo.People(ctx)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		return fmt.Errorf("database holds no samples")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	st.Clear()

	total := 0
	for _, name := range people {
		samples, err := repo.GetSamples(ctx, name)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if err := st.Add(name, s); err != nil {
				return fmt.Errorf("storing samples for %s: %w", name, err)
			}
		}
		total += len(samples)
	}
	fmt.Printf("Pulled %d samples for %d people\n", total, len(people))
	return nil
}

func runDBStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	repo, pool, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	people, err := repo.People(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("People:  %d\n", len(people))
	fmt.Printf("Samples: %d\n", count)
	return nil
}

func runDBSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	limit, _ := cmd.Flags().GetInt("limit")

	repo, pool, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	det := detector.NewClient(cfg.Detector.URL)
	faces, err := det.DetectAndExtract(ctx, data)
	if err != nil {
		return fmt.Errorf("detecting faces: %w", err)
	}
	if len(faces) == 0 {
		fmt.Println("No faces detected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tPERSON\tSIMILARITY\tQUALITY")
	for i, face := range faces {
		matches, err := repo.FindSimilar(ctx, face.Embedding, limit)
		if err != nil {
			return err
		}
		for _, m := range matches {
			fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\n", i, m.Person, m.Similarity, m.Quality)
		}
	}
	return w.Flush()
}
