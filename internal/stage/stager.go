// Package stage persists incoming batch scripts to a staging area the
// execution engine can read.
package stage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gridbatch/internal/apperrors"
	"gridbatch/internal/config"
)

// Location identifies one staged script.
type Location struct {
	Path string
}

// Stager writes script payloads to uniquely named files in the staging
// directory. Staged files are not removed after submission; cleanup is a
// manual operation.
type Stager struct {
	dir    string
	prefix string
	suffix string
}

// Config holds stager configuration.
type Config struct {
	Dir    string // staging directory (default: os.TempDir())
	Prefix string // file name prefix (default: "job-script-")
	Suffix string // file name suffix identifying the script type (default: ".pig")
}

// LoadConfigFromEnv loads stager configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		Dir:    config.GetEnv("STAGING_DIR", os.TempDir()),
		Prefix: config.GetEnv("STAGING_PREFIX", "job-script-"),
		Suffix: config.GetEnv("STAGING_SUFFIX", ".pig"),
	}
}

// New creates a stager. Zero config fields use defaults.
func New(cfg Config) *Stager {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "job-script-"
	}
	if cfg.Suffix == "" {
		cfg.Suffix = ".pig"
	}
	return &Stager{dir: cfg.Dir, prefix: cfg.Prefix, suffix: cfg.Suffix}
}

// Stage writes content to a uniquely named file and returns its location.
// The name is derived from the submission time at millisecond resolution.
// The file is synced and closed before returning, so any subsequent reader
// sees the full content. A write failure is fatal to the submission and is
// surfaced to the caller; there is no retry.
func (s *Stager) Stage(content string) (Location, error) {
	name := fmt.Sprintf("%s%d%s", s.prefix, time.Now().UnixMilli(), s.suffix)
	path := filepath.Join(s.dir, name)

	logger := slog.With("path", path)
	logger.Info("Staging script")

	file, err := os.Create(path)
	if err != nil {
		return Location{}, apperrors.Staging("stage.create", err)
	}

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return Location{}, apperrors.Staging("stage.write", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return Location{}, apperrors.Staging("stage.sync", err)
	}
	if err := file.Close(); err != nil {
		return Location{}, apperrors.Staging("stage.close", err)
	}

	logger.Info("Script staged", "bytes", len(content))
	return Location{Path: path}, nil
}
