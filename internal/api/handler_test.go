package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"strconv"
	"strings"
	"testing"
	"time"

	"gridbatch/internal/engine"
	"gridbatch/internal/health"
	"gridbatch/internal/results"
	"gridbatch/internal/stage"
	"gridbatch/internal/submission"
	"gridbatch/internal/testutil"
)

type fakeEngine struct{}

func (e *fakeEngine) SubmitBatch(ctx context.Context, scriptPath string) ([]engine.Handle, error) {
	return nil, nil
}
func (e *fakeEngine) Ready(ctx context.Context) error { return nil }
func (e *fakeEngine) Close() error                    { return nil }

type fakeNotifier struct{}

func (n *fakeNotifier) Notify(ctx context.Context, target, submissionID string) {}

// fakeFS is an in-memory dfs.FileSystem.
type fakeFS struct {
	files   map[string][]byte
	dirs    map[string][]string // ordered child names
	openErr map[string]error
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) Mode() os.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

func (f *fakeFS) Stat(p string) (os.FileInfo, error) {
	if content, ok := f.files[p]; ok {
		return fakeInfo{name: path.Base(p), size: int64(len(content))}, nil
	}
	if _, ok := f.dirs[p]; ok {
		return fakeInfo{name: path.Base(p), dir: true}, nil
	}
	return nil, os.ErrNotExist
}

func (f *fakeFS) ReadDir(p string) ([]os.FileInfo, error) {
	names, ok := f.dirs[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	var infos []os.FileInfo
	for _, name := range names {
		child := path.Join(p, name)
		if _, ok := f.dirs[child]; ok {
			infos = append(infos, fakeInfo{name: name, dir: true})
			continue
		}
		infos = append(infos, fakeInfo{name: name, size: int64(len(f.files[child]))})
	}
	return infos, nil
}

func (f *fakeFS) Open(p string) (io.ReadCloser, error) {
	if err, ok := f.openErr[p]; ok {
		return nil, err
	}
	content, ok := f.files[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func newTestRouter(t *testing.T, fs *fakeFS) (http.Handler, *submission.Coordinator) {
	t.Helper()
	if fs == nil {
		fs = &fakeFS{}
	}
	stager := stage.New(stage.Config{Dir: t.TempDir()})
	coordinator := submission.New(stager, &fakeEngine{}, &fakeNotifier{}, nil, submission.Config{
		PollInterval: 5 * time.Millisecond,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		coordinator.Close(ctx)
	})

	router := NewRouter(RouterConfig{
		Coordinator:   coordinator,
		Streamer:      results.NewStreamer(fs),
		HealthChecker: health.NewChecker(&fakeEngine{}, nil),
	})
	return router, coordinator
}

func submitBody(t *testing.T, script string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(submission.Request{Script: script})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	return bytes.NewReader(body)
}

func TestSubmitJob_Accepted(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", submitBody(t, "a = LOAD 'in';"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp submission.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.ID == "" {
		t.Error("Expected a submission ID")
	}
	if resp.Status != "accepted" {
		t.Errorf("Expected accepted status, got %s", resp.Status)
	}
}

func TestSubmitJob_InvalidJSON(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSubmitJob_MissingScript(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSubmitJob_WrongContentType(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", strings.NewReader("a = LOAD 'in';"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected 415, got %d", w.Code)
	}
}

func TestGetSubmission_TracksLifecycle(t *testing.T) {
	t.Parallel()
	router, coordinator := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/v1/jobs", submitBody(t, "a = LOAD 'in';"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp submission.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	testutil.MustWaitFor(t, func() bool {
		status, err := coordinator.Status(resp.ID)
		return err == nil && status.State == submission.StateDone
	}, testutil.WithTimeout(5*time.Second))

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/submissions/"+resp.ID, nil)
	statusW := httptest.NewRecorder()
	router.ServeHTTP(statusW, statusReq)

	if statusW.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", statusW.Code)
	}
	var status submission.Status
	if err := json.Unmarshal(statusW.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status.State != submission.StateDone {
		t.Errorf("Expected done state, got %s", status.State)
	}
}

func TestGetSubmission_NotFound(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/submissions/01K0000000000000000000DEAD", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetResults_MissingPathParam(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/results", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestGetResults_AbsentPathReturns404WithoutBody(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, &fakeFS{})

	req := httptest.NewRequest(http.MethodGet, "/v1/results?path=/out/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %d bytes", w.Body.Len())
	}
}

func TestGetResults_SingleFile(t *testing.T) {
	t.Parallel()
	content := "alpha\nbravo\ncharlie\n"
	fs := &fakeFS{files: map[string][]byte{"/out/part-r-00000": []byte(content)}}
	router, _ := newTestRouter(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/v1/results?path=/out/part-r-00000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "text/plain; charset=utf-8" {
		t.Errorf("Expected text/plain content type, got %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != strconv.Itoa(len(content)) {
		t.Errorf("Expected Content-Length %d, got %q", len(content), got)
	}
	if w.Body.String() != content {
		t.Errorf("Body mismatch: got %q", w.Body.String())
	}
}

func TestGetResults_DirectoryConcatenatesChildren(t *testing.T) {
	t.Parallel()
	fs := &fakeFS{
		files: map[string][]byte{
			"/out/part-r-00000": []byte("first\n"),
			"/out/part-r-00001": []byte("second\n"),
		},
		dirs: map[string][]string{
			"/out":            {"_temporary", "part-r-00000", "part-r-00001"},
			"/out/_temporary": nil,
		},
	}
	router, _ := newTestRouter(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/v1/results?path=/out", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	want := "first\nsecond\n"
	if got := w.Header().Get("Content-Length"); got != strconv.Itoa(len(want)) {
		t.Errorf("Expected Content-Length %d, got %q", len(want), got)
	}
	if w.Body.String() != want {
		t.Errorf("Body mismatch: got %q, want %q", w.Body.String(), want)
	}
}

func TestGetResults_OpenFailureReturns500(t *testing.T) {
	t.Parallel()
	fs := &fakeFS{
		files:   map[string][]byte{"/out/part-r-00000": []byte("data")},
		openErr: map[string]error{"/out/part-r-00000": errors.New("datanode unavailable")},
	}
	router, _ := newTestRouter(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/v1/results?path=/out/part-r-00000", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// No byte reached the wire, so the failure must map to a server error
	// rather than an empty success with a declared length.
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected empty body, got %d bytes", w.Body.Len())
	}
	if got := w.Header().Get("Content-Length"); got != "" {
		t.Errorf("Expected no declared length, got %q", got)
	}
}

func TestGetResults_MidStreamFailureKeepsCommittedStatus(t *testing.T) {
	t.Parallel()
	fs := &fakeFS{
		files: map[string][]byte{
			"/out/part-r-00000": []byte("first\n"),
			"/out/part-r-00001": []byte("second\n"),
		},
		dirs: map[string][]string{
			"/out": {"part-r-00000", "part-r-00001"},
		},
		openErr: map[string]error{"/out/part-r-00001": errors.New("block read failed")},
	}
	router, _ := newTestRouter(t, fs)

	req := httptest.NewRequest(http.MethodGet, "/v1/results?path=/out", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected committed 200, got %d", w.Code)
	}
	if w.Body.String() != "first\n" {
		t.Errorf("Expected the bytes streamed before the failure, got %q", w.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	liveReq := httptest.NewRequest(http.MethodGet, "/livez", nil)
	liveW := httptest.NewRecorder()
	router.ServeHTTP(liveW, liveReq)
	if liveW.Code != http.StatusOK {
		t.Errorf("Expected 200 from livez, got %d", liveW.Code)
	}

	// The filesystem dependency is absent, so readiness must fail.
	readyReq := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	readyW := httptest.NewRecorder()
	router.ServeHTTP(readyW, readyReq)
	if readyW.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from readyz, got %d", readyW.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/v1/jobs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected wildcard origin, got %q", got)
	}
}
