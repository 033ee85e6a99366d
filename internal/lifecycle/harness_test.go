package lifecycle

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"mailcheck/internal/backend"
	"mailcheck/internal/model"
)

type statusReply struct {
	resp backend.StatusResponse
	err  error
}

// fakeBackend serves canned upload and status replies. The last status
// reply repeats once the list is exhausted.
type fakeBackend struct {
	mu          sync.Mutex
	taskID      string
	uploadErr   error
	uploadGate  chan struct{}
	statusGate  chan struct{}
	replies     []statusReply
	uploads     []model.UploadRequest
	statusCalls []string
}

func (b *fakeBackend) Upload(ctx context.Context, req model.UploadRequest) (string, error) {
	b.mu.Lock()
	b.uploads = append(b.uploads, req)
	gate := b.uploadGate
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	return b.taskID, nil
}

func (b *fakeBackend) Status(ctx context.Context, taskID string) (backend.StatusResponse, error) {
	b.mu.Lock()
	n := len(b.statusCalls)
	b.statusCalls = append(b.statusCalls, taskID)
	gate := b.statusGate
	var reply statusReply
	if len(b.replies) > 0 {
		if n >= len(b.replies) {
			n = len(b.replies) - 1
		}
		reply = b.replies[n]
	}
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return reply.resp, reply.err
}

func (b *fakeBackend) uploadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func (b *fakeBackend) statusCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.statusCalls)
}

type fakeRecorder struct {
	mu        sync.Mutex
	submitted []model.Task
	columns   []model.ColumnMapping
	outcomes  []model.Task
}

func (r *fakeRecorder) RecordSubmitted(task model.Task, fileName string, column model.ColumnMapping, hasHeaders bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, task)
	r.columns = append(r.columns, column)
	return nil
}

func (r *fakeRecorder) RecordOutcome(task model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, task)
	return nil
}

func (r *fakeRecorder) outcomeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

func testConfig() Config {
	return Config{
		PollInterval: 2 * time.Millisecond,
		DotInterval:  time.Millisecond,
		ErrorDisplay: time.Hour,
	}
}

// harness runs commands on goroutines and feeds their messages back into
// the controller from the test goroutine, like the bubbletea loop does.
type harness struct {
	t    *testing.T
	c    *Controller
	msgs chan tea.Msg

	pollResults []float64
	staleCount  int
}

func newHarness(t *testing.T, b Backend, cfg Config, opts ...Option) *harness {
	return &harness{t: t, c: NewController(b, cfg, opts...), msgs: make(chan tea.Msg, 1024)}
}

func (h *harness) send(msg tea.Msg) {
	h.exec(h.c.Update(msg))
}

func (h *harness) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		h.msgs <- cmd()
	}()
}

func (h *harness) dispatch(msg tea.Msg) {
	switch msg := msg.(type) {
	case nil:
		return
	case tea.BatchMsg:
		for _, cmd := range msg {
			h.exec(cmd)
		}
		return
	case pollResultMsg:
		live := h.c.poller.live(msg.session, msg.taskID)
		h.exec(h.c.Update(msg))
		if live {
			h.pollResults = append(h.pollResults, h.c.Screen().Progress)
		} else {
			h.staleCount++
		}
		return
	}
	h.exec(h.c.Update(msg))
}

func (h *harness) runUntil(cond func() bool) {
	h.t.Helper()
	deadline := time.After(5 * time.Second)
	recheck := time.NewTicker(time.Millisecond)
	defer recheck.Stop()
	for !cond() {
		select {
		case msg := <-h.msgs:
			h.dispatch(msg)
		case <-recheck.C:
		case <-deadline:
			h.t.Fatalf("timed out waiting; state=%s screen=%+v", h.c.State(), h.c.Screen())
		}
	}
}

func (h *harness) chooseFile(path string) {
	h.t.Helper()
	h.send(FileChosenMsg{Path: path})
	h.runUntil(func() bool { return h.c.sampleKnown || h.c.Screen().ErrorVisible })
}

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func running(progress float64) statusReply {
	return statusReply{resp: backend.StatusResponse{Status: "running", Progress: progress}}
}

func completed() statusReply {
	return statusReply{resp: backend.StatusResponse{Status: "completed", Progress: 100}}
}

func backendStatus(status string, progress float64, errMsg string) backend.StatusResponse {
	return backend.StatusResponse{Status: status, Progress: progress, Error: errMsg}
}
