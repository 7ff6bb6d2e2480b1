package submission

import (
	"time"

	"gridbatch/internal/config"
)

// Config holds configuration for the submission coordinator.
type Config struct {
	Workers       int           // background workers; bounds in-flight submissions (default: 3)
	QueueSize     int           // pending submissions buffer; submissions past Workers queue here (default: 256)
	PollInterval  time.Duration // pause between completion sweeps (default: 1s)
	MaxPollWait   time.Duration // polling budget per batch, 0 = unlimited (default: 0)
	NotifyTimeout time.Duration // per-callback timeout (default: 10s)
}

// LoadConfigFromEnv loads coordinator configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Workers:       config.GetIntEnv("SUBMISSION_WORKERS", 3),
		QueueSize:     config.GetIntEnv("SUBMISSION_QUEUE_SIZE", 256),
		PollInterval:  config.GetDurationEnv("POLL_INTERVAL", time.Second),
		MaxPollWait:   config.GetDurationEnv("POLL_MAX_WAIT", 0),
		NotifyTimeout: config.GetDurationEnv("NOTIFY_TIMEOUT", 10*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults. MaxPollWait stays zero
// unless set: polling is unbounded by default.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = 10 * time.Second
	}
	return c
}
