// Package submission orchestrates the asynchronous pipeline for one batch
// script: stage, submit to the engine, poll to completion, notify.
package submission

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"gridbatch/internal/apperrors"
	"gridbatch/internal/engine"
	"gridbatch/internal/observability"
	"gridbatch/internal/stage"
)

// maxScriptSize bounds the accepted script payload (1 MB).
const maxScriptSize = 1 << 20

// Notifier performs the best-effort completion callback.
type Notifier interface {
	// Notify performs one outbound call to target. Failures are logged
	// and swallowed by the implementation; there is no retry.
	Notify(ctx context.Context, target, submissionID string)
}

// task is one submission queued for background processing.
type task struct {
	id          string
	location    stage.Location
	callbackURL string
	accepted    time.Time
}

// Coordinator runs submissions on a fixed-size worker pool. Staging happens
// synchronously on the caller; everything after returns to the caller
// immediately and proceeds in the background, decoupling request latency
// from total job runtime.
//
// Pool size bounds the number of submissions concurrently undergoing
// polling, not request concurrency: a long poll occupies its worker for
// the full duration of job execution. Submissions beyond pool capacity
// queue; none are rejected or dropped.
type Coordinator struct {
	stager   *stage.Stager
	engine   engine.Engine
	notifier Notifier
	metrics  *observability.Metrics
	cfg      Config
	state    *stateRepo
	poller   *poller

	queue chan *task
	wg    sync.WaitGroup

	shutdown      chan struct{}
	cancelWorkers context.CancelFunc
	workerCtx     context.Context
	closed        atomic.Bool
}

// New creates a coordinator and starts its worker pool.
func New(stager *stage.Stager, eng engine.Engine, notifier Notifier, metrics *observability.Metrics, cfg Config) *Coordinator {
	cfg = cfg.withDefaults()

	workerCtx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		stager:        stager,
		engine:        eng,
		notifier:      notifier,
		metrics:       metrics,
		cfg:           cfg,
		state:         newStateRepo(),
		poller:        &poller{interval: cfg.PollInterval, maxWait: cfg.MaxPollWait},
		queue:         make(chan *task, cfg.QueueSize),
		shutdown:      make(chan struct{}),
		cancelWorkers: cancel,
		workerCtx:     workerCtx,
	}

	c.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go c.worker()
	}

	slog.Info("Submission coordinator started", "workers", cfg.Workers, "pollInterval", cfg.PollInterval)
	return c
}

// Submit validates and stages a script, queues the background pipeline and
// returns. Only staging failures surface synchronously; no error from the
// background task ever reaches the caller.
func (c *Coordinator) Submit(ctx context.Context, req *Request) (*Response, error) {
	if c.closed.Load() {
		return nil, apperrors.Internal("submission.submit", fmt.Errorf("coordinator is closed"))
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	logger := slog.With("submissionId", id)

	c.state.create(id)

	location, err := c.stager.Stage(req.Script)
	if err != nil {
		c.state.setState(id, StateAborted)
		logger.Error("Unable to write submitted script to staging area", "error", err)
		return nil, err
	}

	// Blocking send: a submission beyond worker capacity queues here
	// rather than being rejected.
	c.queue <- &task{
		id:          id,
		location:    location,
		callbackURL: req.CallbackURL,
		accepted:    time.Now(),
	}

	if c.metrics != nil {
		c.metrics.RecordSubmissionAccepted(ctx)
	}
	logger.Info("Submission accepted")

	return &Response{ID: id, Status: "accepted"}, nil
}

// Status returns the state of a submission.
func (c *Coordinator) Status(id string) (*Status, error) {
	status, ok := c.state.get(id)
	if !ok {
		return nil, apperrors.NotFound("submission", id)
	}
	return &status, nil
}

// Close stops the pool. The context deadline bounds the drain phase: tasks
// still polling past the deadline are cancelled and abandoned without
// cleanup.
func (c *Coordinator) Close(ctx context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}

	slog.Info("Submission coordinator shutting down", "queued", len(c.queue))
	close(c.shutdown)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Submission coordinator shutdown complete")
		return nil
	case <-ctx.Done():
		slog.Warn("Drain timeout reached, abandoning in-flight submissions")
		c.cancelWorkers()
		<-done
		return ctx.Err()
	}
}

// worker processes queued submissions one at a time, start to finish.
// On shutdown it first drains submissions already queued: those were
// answered with an acceptance and must still reach a terminal state.
func (c *Coordinator) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.shutdown:
			for {
				select {
				case t := <-c.queue:
					c.run(c.workerCtx, t)
				default:
					return
				}
			}
		case t := <-c.queue:
			c.run(c.workerCtx, t)
		}
	}
}

// run drives one submission through submitting → polling → notifying.
// Every error on this path is terminal to logging only; the HTTP response
// was already returned when staging succeeded.
func (c *Coordinator) run(ctx context.Context, t *task) {
	logger := slog.With("submissionId", t.id)

	if ctx.Err() != nil {
		// Abandoned during drain before the pipeline started.
		c.state.setState(t.id, StateAborted)
		return
	}

	if c.metrics != nil {
		c.metrics.RecordSubmissionStarted(ctx)
		defer c.metrics.RecordSubmissionStopped(ctx)
	}

	c.state.setState(t.id, StateSubmitting)
	logger.Info("Submitting script to execution engine", "script", t.location.Path)

	handles, err := c.engine.SubmitBatch(ctx, t.location.Path)
	if err != nil && ctx.Err() != nil {
		c.state.setState(t.id, StateAborted)
		return
	}
	submissionFailed := err != nil
	if submissionFailed {
		// Degrade to an empty batch: nothing to wait for. The terminal
		// state below surfaces the failure instead of conflating it
		// with success.
		logger.Error("Error connecting to engine and submitting batch", "error", err)
		handles = nil
	}

	c.state.setBatch(t.id, len(handles))
	c.state.setState(t.id, StatePolling)
	logger.Info("Submitted batch, waiting for completion", "jobs", len(handles))

	completion, ok := c.poller.await(ctx, logger, handles)
	if !ok {
		// Interrupted while waiting: exit silently without notifying.
		c.state.setState(t.id, StateAborted)
		return
	}
	c.state.setCompletion(t.id, completion)

	c.state.setState(t.id, StateNotifying)
	logger.Info("All jobs complete", "completion", completion)

	if t.callbackURL != "" {
		notifyCtx, cancel := context.WithTimeout(ctx, c.cfg.NotifyTimeout)
		c.notifier.Notify(notifyCtx, t.callbackURL, t.id)
		cancel()
	}

	terminal := StateDone
	if submissionFailed {
		terminal = StateSubmissionFailed
	}
	c.state.setState(t.id, terminal)

	if c.metrics != nil {
		c.metrics.RecordSubmissionFinished(ctx, terminal, len(handles), time.Since(t.accepted).Seconds())
	}
	logger.Info("Submission finished", "state", terminal)
}

// validate validates a submission request.
func validate(req *Request) error {
	if req.Script == "" {
		return apperrors.Validation("script", "script is required")
	}
	if len(req.Script) > maxScriptSize {
		return apperrors.Validation("script", fmt.Sprintf("script exceeds maximum size of %d bytes", maxScriptSize))
	}
	if req.CallbackURL != "" {
		if err := validateURL(req.CallbackURL); err != nil {
			return apperrors.Validation("callbackUrl", fmt.Sprintf("invalid callback URL: %v", err))
		}
	}
	return nil
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
