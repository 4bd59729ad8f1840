package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Detector    DetectorConfig    `yaml:"detector"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Quality     QualityConfig     `yaml:"quality"`
	Storage     StorageConfig     `yaml:"storage"`
	Database    DatabaseConfig    `yaml:"database"`
	Log         LogConfig         `yaml:"log"`
}

// DetectorConfig points at the external face detection + embedding service.
type DetectorConfig struct {
	URL string `yaml:"url"` // defaults to http://localhost:8000
}

// RecognitionConfig holds matching and enrollment parameters.
type RecognitionConfig struct {
	MatchThreshold         float64 `yaml:"match_threshold"`           // linear matcher base threshold
	IndexThreshold         float64 `yaml:"index_threshold"`           // indexed matcher threshold (no quality adjustment)
	MinEmbeddingQuality    float64 `yaml:"min_embedding_quality"`     // minimum quality to enroll a face
	MaxEmbeddingsPerPerson int     `yaml:"max_embeddings_per_person"` // enrollment cap per person
	EmbeddingDim           int     `yaml:"embedding_dim"`             // ArcFace produces 512-dim vectors
}

// QualityConfig holds thresholds for the face quality gate.
type QualityConfig struct {
	MinFaceSize   int     `yaml:"min_face_size"`  // minimum face width/height in pixels
	BlurThreshold float64 `yaml:"blur_threshold"` // minimum Laplacian variance (higher = sharper)
	MaxYaw        float64 `yaml:"max_yaw"`        // maximum head rotation left/right (degrees)
	MaxPitch      float64 `yaml:"max_pitch"`      // maximum head rotation up/down (degrees)
	MinBrightness float64 `yaml:"min_brightness"`
	MaxBrightness float64 `yaml:"max_brightness"`
}

// StorageConfig holds paths for persisted state.
type StorageConfig struct {
	DataDir        string `yaml:"data_dir"`
	EmbeddingsFile string `yaml:"embeddings_file"`
	AttendanceFile string `yaml:"attendance_file"`
	IndexFile      string `yaml:"index_file"`
	IndexSnapshot  string `yaml:"index_snapshot"`
}

// DatabaseConfig holds the optional PostgreSQL backend settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"` // PostgreSQL connection URL, empty disables the backend
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // optional log file in addition to stdout
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envStr reads an environment variable with a fallback default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from environment variables, then applies
// overrides from an optional YAML file (FACEATTEND_CONFIG, or faceattend.yml
// in the working directory if present).
func Load() *Config {
	dataDir := envStr("FACEATTEND_DATA_DIR", filepath.Join("data", "processed"))

	cfg := &Config{
		Detector: DetectorConfig{
			URL: envStr("FACEATTEND_DETECTOR_URL", "http://localhost:8000"),
		},
		Recognition: RecognitionConfig{
			MatchThreshold:         envFloat("FACEATTEND_MATCH_THRESHOLD", 0.4),
			IndexThreshold:         envFloat("FACEATTEND_INDEX_THRESHOLD", 0.65),
			MinEmbeddingQuality:    envFloat("FACEATTEND_MIN_EMBEDDING_QUALITY", 0.2),
			MaxEmbeddingsPerPerson: envInt("FACEATTEND_MAX_EMBEDDINGS_PER_PERSON", 20),
			EmbeddingDim:           envInt("FACEATTEND_EMBEDDING_DIM", 512),
		},
		Quality: QualityConfig{
			MinFaceSize:   envInt("FACEATTEND_MIN_FACE_SIZE", 60),
			BlurThreshold: envFloat("FACEATTEND_BLUR_THRESHOLD", 100.0),
			MaxYaw:        envFloat("FACEATTEND_MAX_YAW", 45.0),
			MaxPitch:      envFloat("FACEATTEND_MAX_PITCH", 30.0),
			MinBrightness: envFloat("FACEATTEND_MIN_BRIGHTNESS", 40),
			MaxBrightness: envFloat("FACEATTEND_MAX_BRIGHTNESS", 220),
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			EmbeddingsFile: envStr("FACEATTEND_EMBEDDINGS_FILE", filepath.Join(dataDir, "face_embeddings.json")),
			AttendanceFile: envStr("FACEATTEND_ATTENDANCE_FILE", filepath.Join(dataDir, "attendance.csv")),
			IndexFile:      envStr("FACEATTEND_INDEX_FILE", filepath.Join(dataDir, "face_index.bin")),
			IndexSnapshot:  envStr("FACEATTEND_INDEX_SNAPSHOT", filepath.Join(dataDir, "face_index.json")),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("FACEATTEND_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("FACEATTEND_DB_MAX_IDLE_CONNS", 5),
		},
		Log: LogConfig{
			Level: envStr("FACEATTEND_LOG_LEVEL", "info"),
			File:  os.Getenv("FACEATTEND_LOG_FILE"),
		},
	}

	path := os.Getenv("FACEATTEND_CONFIG")
	if path == "" {
		if _, err := os.Stat("faceattend.yml"); err == nil {
			path = "faceattend.yml"
		}
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			// A broken config file should be visible, not silently ignored.
			panic(fmt.Sprintf("failed to load config file %s: %v", path, err))
		}
	}

	return cfg
}

// applyFile overlays YAML settings from the given path onto the config.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}
