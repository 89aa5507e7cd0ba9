// Package config loads lemon's runtime configuration from environment
// variables.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/kebaren/lemon/internal/applog"
	"github.com/kebaren/lemon/internal/piecetree"
)

const envPrefix = "LEMON_"

// Config holds the small set of knobs lemon's engine and CLI expose.
type Config struct {
	// DefaultEOL is used when a document has no line terminators to
	// infer an EOL style from.
	DefaultEOL piecetree.DefaultEOL
	// NormalizeEOL rewrites every chunk to a single EOL style when a
	// document is built.
	NormalizeEOL bool
	// AverageBufferSize overrides the engine's change-buffer/original-
	// buffer split threshold. 0 means use piecetree.AverageBufferSize.
	AverageBufferSize int
	// CacheCapacity overrides the engine's search cache capacity. 0
	// means use piecetree.DefaultCacheCapacity.
	CacheCapacity int
	// LogLevel is the minimum applog.Level that gets written out.
	LogLevel applog.Level
}

// Default returns lemon's built-in configuration.
func Default() Config {
	return Config{
		DefaultEOL:        piecetree.DefaultEOLLF,
		NormalizeEOL:      false,
		AverageBufferSize: piecetree.AverageBufferSize,
		CacheCapacity:     piecetree.DefaultCacheCapacity,
		LogLevel:          applog.LevelInfo,
	}
}

// Load starts from Default and overlays any LEMON_* environment
// variables that are set.
func Load() Config {
	cfg := Default()

	if v, ok := lookupEnv("DEFAULT_EOL"); ok {
		switch strings.ToLower(v) {
		case "crlf", "\\r\\n":
			cfg.DefaultEOL = piecetree.DefaultEOLCRLF
		case "lf", "\\n":
			cfg.DefaultEOL = piecetree.DefaultEOLLF
		}
	}

	if v, ok := lookupEnv("NORMALIZE_EOL"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NormalizeEOL = b
		}
	}

	if v, ok := lookupEnv("AVERAGE_BUFFER_SIZE"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AverageBufferSize = n
		}
	}

	if v, ok := lookupEnv("CACHE_CAPACITY"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheCapacity = n
		}
	}

	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = applog.ParseLevel(v)
	}

	return cfg
}

func lookupEnv(name string) (string, bool) {
	return os.LookupEnv(envPrefix + name)
}
