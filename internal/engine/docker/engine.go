// Package docker implements the engine.Engine interface on the Docker API.
// Each logical stage of a staged script runs as one labeled container of a
// configured runner image; a handle wraps the container ID.
package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"gridbatch/internal/engine"
	"gridbatch/pkg/backoff"
)

const managedByLabel = "gridbatch-service"

// Engine implements engine.Engine using Docker.
type Engine struct {
	client *client.Client
	cfg    Config

	cancelMaintenance context.CancelFunc
}

// New creates a Docker engine and verifies the daemon is reachable,
// retrying with exponential backoff so a service restart does not race the
// daemon coming up.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	err = backoff.Retry(cfg.ConnectAttempts, nil, func() error {
		_, pingErr := dockerClient.Ping(ctx)
		if pingErr != nil {
			slog.Warn("Docker daemon unreachable, retrying", "error", pingErr)
		}
		return pingErr
	})
	if err != nil {
		dockerClient.Close()
		return nil, fmt.Errorf("failed to reach docker daemon: %w", err)
	}

	e := &Engine{client: dockerClient, cfg: cfg}

	maintenanceCtx, cancel := context.WithCancel(context.Background())
	e.cancelMaintenance = cancel
	go e.runMaintenance(maintenanceCtx, cfg.MaintenanceInterval)

	return e, nil
}

// SubmitBatch reads the staged script, expands it into stage containers and
// starts them all. The returned handles preserve stage order. On any
// mid-batch failure the containers created so far are removed and the
// error is returned; nothing keeps running.
func (e *Engine) SubmitBatch(ctx context.Context, scriptPath string) ([]engine.Handle, error) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read staged script: %w", err)
	}

	stages := parseStages(string(script))
	batchName := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	logger := slog.With("batch", batchName)

	if len(stages) == 0 {
		logger.Warn("Staged script contains no stages")
		return nil, nil
	}

	if err := e.pullImageIfNeeded(context.WithoutCancel(ctx), e.cfg.RunnerImage); err != nil {
		return nil, fmt.Errorf("failed to pull runner image: %w", err)
	}

	handles := make([]engine.Handle, 0, len(stages))
	for i, cmd := range stages {
		containerID, err := e.startStageContainer(ctx, batchName, i, cmd)
		if err != nil {
			for _, h := range handles {
				e.removeContainer(ctx, h.(*handle).containerID)
			}
			return nil, fmt.Errorf("failed to start stage %d: %w", i, err)
		}
		handles = append(handles, &handle{
			client:      e.client,
			containerID: containerID,
			id:          fmt.Sprintf("%s-stage-%d", batchName, i),
		})
	}

	logger.Info("Batch submitted", "stages", len(handles))
	return handles, nil
}

func (e *Engine) startStageContainer(ctx context.Context, batchName string, stage int, cmd string) (string, error) {
	containerConfig := &container.Config{
		Image: e.cfg.RunnerImage,
		Cmd:   []string{"/bin/sh", "-c", cmd},
		Labels: map[string]string{
			"batch.name":  batchName,
			"batch.stage": fmt.Sprintf("%d", stage),
			"managed-by":  managedByLabel,
		},
	}

	hostConfig := &container.HostConfig{
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   e.cfg.StagingDir,
				Target:   "/staging",
				ReadOnly: true,
			},
		},
	}

	containerName := fmt.Sprintf("%s-stage-%d", batchName, stage)
	resp, err := e.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, containerName)
	if err != nil {
		return "", err
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		e.removeContainer(ctx, resp.ID)
		return "", err
	}

	return resp.ID, nil
}

func (e *Engine) pullImageIfNeeded(ctx context.Context, imageName string) error {
	_, err := e.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}

	reader, err := e.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (e *Engine) removeContainer(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	stopTimeout := 10
	_ = e.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &stopTimeout})
	_ = e.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

// Ready checks if the Docker daemon is reachable and responsive.
func (e *Engine) Ready(ctx context.Context) error {
	_, err := e.client.Ping(ctx)
	return err
}

// Close stops maintenance and releases the daemon connection. Running
// stage containers are not stopped.
func (e *Engine) Close() error {
	if e.cancelMaintenance != nil {
		e.cancelMaintenance()
	}
	return e.client.Close()
}

// runMaintenance periodically removes expired exited stage containers.
func (e *Engine) runMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.cleanupExpiredStages(ctx)
		}
	}
}

// cleanupExpiredStages removes stage containers that exited more than the
// retention period ago.
func (e *Engine) cleanupExpiredStages(ctx context.Context) {
	logger := slog.With("component", "maintenance")

	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "managed-by="+managedByLabel),
			filters.Arg("status", "exited"),
		),
	})
	if err != nil {
		logger.Warn("Failed to list stage containers", "error", err)
		return
	}

	now := time.Now()
	var cleaned int
	for i := range containers {
		inspect, err := e.client.ContainerInspect(ctx, containers[i].ID)
		if err != nil {
			continue
		}
		finishedAt, err := time.Parse(time.RFC3339Nano, inspect.State.FinishedAt)
		if err != nil {
			continue
		}
		if now.Sub(finishedAt) > e.cfg.Retention {
			e.removeContainer(ctx, containers[i].ID)
			cleaned++
		}
	}

	if cleaned > 0 {
		logger.Info("Maintenance complete", "cleaned", cleaned)
	}
}

// handle wraps one stage container.
type handle struct {
	client      *client.Client
	containerID string
	id          string
}

func (h *handle) ID() string {
	return h.id
}

// Completed reports whether the stage container has finished. A container
// that was created but never started is not complete; an exited container
// is complete regardless of exit code.
func (h *handle) Completed(ctx context.Context) (bool, error) {
	inspect, err := h.client.ContainerInspect(ctx, h.containerID)
	if err != nil {
		return false, err
	}

	switch {
	case inspect.State.Running:
		return false, nil
	case inspect.State.Status == "created":
		return false, nil
	default:
		return true, nil
	}
}

// Verify Engine implements engine.Engine
var _ engine.Engine = (*Engine)(nil)
