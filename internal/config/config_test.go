package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Detector.URL != "http://localhost:8000" {
		t.Errorf("Detector.URL = %q, want the local default", cfg.Detector.URL)
	}
	if cfg.Recognition.MatchThreshold != 0.4 {
		t.Errorf("MatchThreshold = %f, want 0.4", cfg.Recognition.MatchThreshold)
	}
	if cfg.Recognition.IndexThreshold != 0.65 {
		t.Errorf("IndexThreshold = %f, want 0.65", cfg.Recognition.IndexThreshold)
	}
	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %d, want 512", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Recognition.MaxEmbeddingsPerPerson != 20 {
		t.Errorf("MaxEmbeddingsPerPerson = %d, want 20", cfg.Recognition.MaxEmbeddingsPerPerson)
	}
	if cfg.Quality.MinFaceSize != 60 {
		t.Errorf("MinFaceSize = %d, want 60", cfg.Quality.MinFaceSize)
	}
	if cfg.Quality.BlurThreshold != 100 {
		t.Errorf("BlurThreshold = %f, want 100", cfg.Quality.BlurThreshold)
	}
	if cfg.Storage.EmbeddingsFile != filepath.Join("data", "processed", "face_embeddings.json") {
		t.Errorf("EmbeddingsFile = %q", cfg.Storage.EmbeddingsFile)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACEATTEND_DETECTOR_URL", "http://faces:9000")
	t.Setenv("FACEATTEND_MATCH_THRESHOLD", "0.55")
	t.Setenv("FACEATTEND_MIN_FACE_SIZE", "80")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/faceattend")

	cfg := Load()

	if cfg.Detector.URL != "http://faces:9000" {
		t.Errorf("Detector.URL = %q, want override", cfg.Detector.URL)
	}
	if cfg.Recognition.MatchThreshold != 0.55 {
		t.Errorf("MatchThreshold = %f, want 0.55", cfg.Recognition.MatchThreshold)
	}
	if cfg.Quality.MinFaceSize != 80 {
		t.Errorf("MinFaceSize = %d, want 80", cfg.Quality.MinFaceSize)
	}
	if cfg.Database.URL != "postgres://u:p@db/faceattend" {
		t.Errorf("Database.URL = %q, want override", cfg.Database.URL)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("FACEATTEND_MIN_FACE_SIZE", "not-a-number")
	t.Setenv("FACEATTEND_MAX_EMBEDDINGS_PER_PERSON", "-3")

	cfg := Load()

	if cfg.Quality.MinFaceSize != 60 {
		t.Errorf("MinFaceSize = %d, want default 60 for invalid input", cfg.Quality.MinFaceSize)
	}
	if cfg.Recognition.MaxEmbeddingsPerPerson != 20 {
		t.Errorf("MaxEmbeddingsPerPerson = %d, want default 20 for negative input", cfg.Recognition.MaxEmbeddingsPerPerson)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceattend.yml")
	content := `
detector:
  url: http://yaml-host:8000
recognition:
  match_threshold: 0.5
quality:
  min_face_size: 72
`
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACEATTEND_CONFIG", path)

	cfg := Load()

	if cfg.Detector.URL != "http://yaml-host:8000" {
		t.Errorf("Detector.URL = %q, want YAML override", cfg.Detector.URL)
	}
	if cfg.Recognition.MatchThreshold != 0.5 {
		t.Errorf("MatchThreshold = %f, want 0.5", cfg.Recognition.MatchThreshold)
	}
	if cfg.Quality.MinFaceSize != 72 {
		t.Errorf("MinFaceSize = %d, want 72", cfg.Quality.MinFaceSize)
	}
	// Settings absent from the file keep their defaults.
	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %d, want 512", cfg.Recognition.EmbeddingDim)
	}
}

func TestLoadBrokenYAMLPanics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("detector: ["), 0640); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FACEATTEND_CONFIG", path)

	defer func() {
		if recover() == nil {
			t.Error("Load() did not panic on a broken config file")
		}
	}()
	Load()
}
