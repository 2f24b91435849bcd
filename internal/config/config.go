package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

type Config struct {
	FaceService FaceServiceConfig
	Storage     StorageConfig
	Gallery     GalleryConfig
	Camera      CameraConfig
	Database    DatabaseConfig
	Rules       RulesConfig
}

type FaceServiceConfig struct {
	URL string // face detection/embedding service, defaults to http://localhost:8000
	Dim int    // embedding dimension, defaults to 512
}

type StorageConfig struct {
	AttendanceDir string // per-day CSV ledgers, defaults to "attendance"
	KnownFacesDir string // one image per identity, filename stem = label
	EmployeeFile  string // emp_id -> attributes JSON, defaults to "employees.json"
}

type GalleryConfig struct {
	HNSW bool // use the HNSW index instead of the linear scan
}

type CameraConfig struct {
	URL string // MJPEG stream URL for the watch command
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL for the embedding cache (optional)
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// RulesConfig carries the business thresholds. Defaults ship as an embedded
// rules.yaml; individual values can be overridden via environment variables.
type RulesConfig struct {
	Match struct {
		Tolerance float64 `yaml:"tolerance"`
		Downscale float64 `yaml:"downscale"`
	} `yaml:"match"`
	Liveness struct {
		EARThreshold       float64 `yaml:"ear_threshold"`
		EARConsecFrames    int     `yaml:"ear_consecutive_frames"`
		BlinkWindowSeconds int     `yaml:"blink_window_seconds"`
	} `yaml:"liveness"`
	Attendance struct {
		CooldownSeconds    int `yaml:"cooldown_seconds"`
		MinCheckoutMinutes int `yaml:"min_checkout_minutes"`
	} `yaml:"attendance"`
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

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var rules RulesConfig
	if err := yaml.Unmarshal(rulesYAML, &rules); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded rules.yaml: " + err.Error())
	}

	rules.Match.Tolerance = envFloat("MATCH_TOLERANCE", rules.Match.Tolerance)
	rules.Match.Downscale = envFloat("FRAME_DOWNSCALE", rules.Match.Downscale)
	rules.Liveness.EARThreshold = envFloat("EAR_THRESHOLD", rules.Liveness.EARThreshold)
	rules.Liveness.EARConsecFrames = envInt("EAR_CONSECUTIVE_FRAMES", rules.Liveness.EARConsecFrames)
	rules.Liveness.BlinkWindowSeconds = envInt("BLINK_WINDOW_SECONDS", rules.Liveness.BlinkWindowSeconds)
	rules.Attendance.CooldownSeconds = envInt("COOLDOWN_SECONDS", rules.Attendance.CooldownSeconds)
	rules.Attendance.MinCheckoutMinutes = envInt("MIN_CHECKOUT_MINUTES", rules.Attendance.MinCheckoutMinutes)

	return &Config{
		FaceService: FaceServiceConfig{
			URL: envString("FACE_SERVICE_URL", "http://localhost:8000"),
			Dim: envInt("FACE_EMBEDDING_DIM", 512),
		},
		Storage: StorageConfig{
			AttendanceDir: envString("ATTENDANCE_DIR", "attendance"),
			KnownFacesDir: envString("KNOWN_FACES_DIR", "known_faces"),
			EmployeeFile:  envString("EMPLOYEE_FILE", "employees.json"),
		},
		Gallery: GalleryConfig{
			HNSW: os.Getenv("GALLERY_HNSW") == "1",
		},
		Camera: CameraConfig{
			URL: os.Getenv("CAMERA_URL"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Rules: rules,
	}
}
