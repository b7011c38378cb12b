package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port         int
	DBPath       string
	UploadDir    string
	MaxUploadMB  int
	DefaultBPM   float64
	FFmpegPath   string
	FadeDuration time.Duration // rehearsal fade in/out

	// Logging
	LogLevel  string
	LogFormat string // text or json

	// Suggestions (optional local LLM)
	OllamaURL   string
	OllamaModel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:         envInt("COUNTSHEET_PORT", 8080),
		DBPath:       envStr("COUNTSHEET_DB_PATH", "countsheet.db"),
		UploadDir:    envStr("COUNTSHEET_UPLOAD_DIR", "uploads"),
		MaxUploadMB:  envInt("COUNTSHEET_MAX_UPLOAD_MB", 100),
		DefaultBPM:   envFloat("COUNTSHEET_DEFAULT_BPM", 120),
		FFmpegPath:   envStr("COUNTSHEET_FFMPEG_PATH", "ffmpeg"),
		FadeDuration: time.Duration(envFloat("COUNTSHEET_FADE_DURATION", 1) * float64(time.Second)),

		LogLevel:  envStr("COUNTSHEET_LOG_LEVEL", "info"),
		LogFormat: envStr("COUNTSHEET_LOG_FORMAT", "text"),

		OllamaURL:   envStr("OLLAMA_URL", ""),
		OllamaModel: envStr("OLLAMA_MODEL", "qwen3:8b"),
	}
}

// MaxUploadBytes is the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// SetupLogging applies the configured level and format to the standard logger.
// An unknown level leaves info in place.
func (c Config) SetupLogging() {
	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
