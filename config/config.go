package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-derived setting the station reads at
// startup. Fields map directly onto spec.md §6's environment variables, plus
// the optional control-surface settings this port adds.
type Config struct {
	// DatabaseURL is the schedule-store connection string. For the
	// embedded SQLite backend this is a filesystem path.
	DatabaseURL string

	// Target selects the sink configuration. "icecast" wires the two
	// streaming pipelines (320k live, 128k low); anything else selects a
	// single local-file sink.
	Target string

	// CatalogDir is the directory recording filenames are resolved
	// relative to.
	CatalogDir string

	// LocalStreamFile is the local-file sink path used when Target is not
	// "icecast".
	LocalStreamFile string

	// IcecastAddr is the "host:port" the network sink dials.
	IcecastAddr string

	// IcecastUser and IcecastPassword form the SOURCE handshake's Basic
	// auth credential.
	IcecastUser     string
	IcecastPassword string

	// ControlAddr is the bind address for the optional control surface.
	// An empty string disables it.
	ControlAddr string

	ControlUsername string
	ControlPassword string
	JWTSecret       string
}

// Load reads configuration from the environment, first attempting to load a
// ".env" file in the working directory via godotenv (a missing file is not
// an error — this mirrors how most twelve-factor Go services treat env
// loading as an optional convenience, not a requirement).
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		Target:          getEnv("EDIFM_TARGET", "file"),
		CatalogDir:      getEnv("EDIFM_CATALOG_DIR", "./catalog"),
		LocalStreamFile: getEnv("EDIFM_STREAM_FILE", "./stream.mp3"),
		IcecastAddr:     getEnv("EDIFM_ICECAST_ADDR", "127.0.0.1:8000"),
		IcecastUser:     getEnv("EDIFM_ICECAST_USER", "source"),
		IcecastPassword: getEnv("EDIFM_ICECAST_PASSWORD", "hackme"),
		ControlAddr:     getEnv("EDIFM_CONTROL_ADDR", ":8091"),
		ControlUsername: getEnv("EDIFM_CONTROL_USERNAME", "control"),
		ControlPassword: getEnv("EDIFM_CONTROL_PASSWORD", "edifm"),
		JWTSecret:       getEnv("EDIFM_JWT_SECRET", "change-me-in-production-please"),
	}

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL must be set")
		os.Exit(1)
	}

	return cfg
}

// ParseResumeEnv parses the EDIFM_RESUME environment variable, formatted
// "<recording_id>:<file_pos>". A missing or malformed value is reported via
// ok=false rather than an error — spec.md §6 requires malformed values to be
// logged and ignored, not treated as fatal.
func ParseResumeEnv() (recordingID int64, filePos uint64, ok bool) {
	raw, present := os.LookupEnv("EDIFM_RESUME")
	if !present || raw == "" {
		return 0, 0, false
	}

	idx := indexByte(raw, ':')
	if idx < 0 {
		slog.Warn("Malformed EDIFM_RESUME, ignoring", "value", raw)
		return 0, 0, false
	}

	id, err1 := strconv.ParseInt(raw[:idx], 10, 64)
	pos, err2 := strconv.ParseUint(raw[idx+1:], 10, 64)
	if err1 != nil || err2 != nil {
		slog.Warn("Malformed EDIFM_RESUME, ignoring", "value", raw)
		return 0, 0, false
	}

	return id, pos, true
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
