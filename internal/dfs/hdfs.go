package dfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"strings"

	"github.com/colinmarc/hdfs/v2"

	"gridbatch/internal/config"
	"gridbatch/pkg/backoff"
)

// HDFSConfig holds connection settings for the HDFS namenode.
type HDFSConfig struct {
	Addresses    []string // namenode addresses, host:port
	User         string   // HDFS user (default: current OS user)
	DialAttempts int      // startup connection attempts (default: 5)
}

// LoadHDFSConfigFromEnv loads HDFS configuration from environment variables.
func LoadHDFSConfigFromEnv() HDFSConfig {
	return HDFSConfig{
		Addresses:    strings.Split(config.GetEnv("HDFS_NAMENODES", "localhost:8020"), ","),
		User:         config.GetEnv("HDFS_USER", ""),
		DialAttempts: config.GetIntEnv("HDFS_DIAL_ATTEMPTS", 5),
	}
}

// HDFS is a FileSystem backed by a shared HDFS client.
type HDFS struct {
	client *hdfs.Client
}

// DialHDFS connects to the namenode, retrying with exponential backoff so a
// service restart does not race the cluster coming up.
func DialHDFS(cfg HDFSConfig) (*HDFS, error) {
	username := cfg.User
	if username == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hdfs user: %w", err)
		}
		username = u.Username
	}

	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 5
	}

	var client *hdfs.Client
	err := backoff.Retry(attempts, nil, func() error {
		var dialErr error
		client, dialErr = hdfs.NewClient(hdfs.ClientOptions{
			Addresses: cfg.Addresses,
			User:      username,
		})
		if dialErr != nil {
			slog.Warn("HDFS connection failed, retrying", "addresses", cfg.Addresses, "error", dialErr)
		}
		return dialErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hdfs: %w", err)
	}

	return &HDFS{client: client}, nil
}

// Stat returns metadata for the object or directory at path.
func (h *HDFS) Stat(path string) (os.FileInfo, error) {
	return h.client.Stat(path)
}

// ReadDir lists the immediate children of a directory.
func (h *HDFS) ReadDir(path string) ([]os.FileInfo, error) {
	return h.client.ReadDir(path)
}

// Open opens the object at path for reading.
func (h *HDFS) Open(path string) (io.ReadCloser, error) {
	return h.client.Open(path)
}

// Ready checks that the namenode is reachable.
func (h *HDFS) Ready(ctx context.Context) error {
	_, err := h.client.StatFs()
	return err
}

// Close tears down the namenode connection.
func (h *HDFS) Close() error {
	return h.client.Close()
}

var _ FileSystem = (*HDFS)(nil)
