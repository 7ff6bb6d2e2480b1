package docker

import (
	"time"

	"gridbatch/internal/config"
)

// Config holds configuration for the Docker engine.
type Config struct {
	RunnerImage         string        // image stage commands run in
	StagingDir          string        // host staging dir mounted read-only into stage containers
	Retention           time.Duration // how long to keep exited stage containers
	MaintenanceInterval time.Duration // how often to run cleanup
	ConnectAttempts     int           // daemon ping attempts at startup
}

// LoadConfigFromEnv loads engine configuration from environment variables.
func LoadConfigFromEnv() Config {
	return Config{
		RunnerImage:         config.GetEnv("RUNNER_IMAGE", "gridbatch-runner:latest"),
		StagingDir:          config.GetEnv("STAGING_DIR", "/tmp"),
		Retention:           config.GetDurationEnv("STAGE_RETENTION", 15*time.Minute),
		MaintenanceInterval: config.GetDurationEnv("MAINTENANCE_INTERVAL", time.Minute),
		ConnectAttempts:     config.GetIntEnv("ENGINE_CONNECT_ATTEMPTS", 5),
	}
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.RunnerImage == "" {
		c.RunnerImage = "gridbatch-runner:latest"
	}
	if c.Retention <= 0 {
		c.Retention = 15 * time.Minute
	}
	if c.MaintenanceInterval <= 0 {
		c.MaintenanceInterval = time.Minute
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}
	return c
}
