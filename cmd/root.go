package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mvanek/faceattend/internal/attendance"
	"github.com/mvanek/faceattend/internal/config"
	"github.com/mvanek/faceattend/internal/detector"
	"github.com/mvanek/faceattend/internal/logger"
	"github.com/mvanek/faceattend/internal/match"
	"github.com/mvanek/faceattend/internal/quality"
	"github.com/mvanek/faceattend/internal/store"
	"github.com/mvanek/faceattend/internal/system"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "faceattend",
	Short: "Face recognition attendance from the command line",
	Long: `Faceattend enrolls people from face photos and recognizes them in new
images, keeping a daily attendance log. Detection and embedding extraction
run in an external service; everything else (quality gating, matching,
storage, attendance) is local.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
	cfg = config.Load()
	logger.Init(cfg.Log)
}

func newFilter() *quality.Filter {
	return &quality.Filter{
		MinFaceSize:   cfg.Quality.MinFaceSize,
		BlurThreshold: cfg.Quality.BlurThreshold,
		MaxYaw:        cfg.Quality.MaxYaw,
		MaxPitch:      cfg.Quality.MaxPitch,
		MinBrightness: cfg.Quality.MinBrightness,
		MaxBrightness: cfg.Quality.MaxBrightness,
	}
}

func openStore() (*store.Store, error) {
	st := store.New(cfg.Storage.EmbeddingsFile, cfg.Recognition.MaxEmbeddingsPerPerson)
	if err := st.Load(); err != nil {
		return nil, fmt.Errorf("loading embedding store: %w", err)
	}
	return st, nil
}

func openLedger() (*attendance.Ledger, error) {
	return attendance.New(cfg.Storage.AttendanceFile)
}

// buildSystem assembles the full pipeline with the linear matcher.
func buildSystem() (*system.FaceSystem, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	ledger, err := openLedger()
	if err != nil {
		return nil, err
	}
	det := detector.NewClient(cfg.Detector.URL)
	return system.New(cfg, det, newFilter(), st, match.NewLinear(st), ledger), nil
}
