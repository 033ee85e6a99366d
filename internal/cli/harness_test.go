package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// fakeServer mimics the validation backend: every upload becomes task t1,
// which reports running for runningPolls queries and then completes.
type fakeServer struct {
	mu           sync.Mutex
	runningPolls int
	polls        int
	uploadStatus int
	uploadError  string
	failWith     string

	gotColumn  string
	gotHeaders string
	gotAuth    string
	gotFile    string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "mailcheck backend")
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.mu.Lock()
		f.gotColumn = r.FormValue("email_column")
		f.gotHeaders = r.FormValue("has_headers")
		f.gotAuth = r.Header.Get("Authorization")
		if file, _, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(file)
			f.gotFile = string(data)
			_ = file.Close()
		}
		status, msg := f.uploadStatus, f.uploadError
		f.mu.Unlock()
		if status != 0 {
			writeTestJSON(w, status, map[string]string{"error": msg})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]string{"task_id": "t1"})
	})
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/t1" {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "Task not found"})
			return
		}
		f.mu.Lock()
		f.polls++
		polls, running, failWith := f.polls, f.runningPolls, f.failWith
		f.mu.Unlock()
		switch {
		case polls <= running:
			writeTestJSON(w, http.StatusOK, map[string]any{"status": "running", "progress": 50})
		case failWith != "":
			writeTestJSON(w, http.StatusOK, map[string]any{"status": "failed", "progress": 50, "error": failWith})
		default:
			writeTestJSON(w, http.StatusOK, map[string]any{"status": "completed", "progress": 100})
		}
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/t1" {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "email,is_valid\nann@x.io,true\n")
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type testEnv struct {
	dir    string
	config string
	dbURL  string
	server *httptest.Server
	fake   *fakeServer
}

// newTestEnv isolates settings, history and keychain from the real user
// environment and starts a fake backend.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		config: filepath.Join(dir, "config", "settings.json"),
		dbURL:  "sqlite://" + filepath.Join(dir, "history.db"),
		fake:   &fakeServer{},
	}
	t.Setenv("DATABASE_URL", env.dbURL)
	t.Setenv("MAILCHECK_POLL_INTERVAL", "5ms")
	t.Setenv("MAILCHECK_SERVER", "")
	t.Setenv("MAILCHECK_TIMEOUT", "")
	t.Setenv("MAILCHECK_DEBUG", "")
	env.server = httptest.NewServer(env.fake.handler())
	t.Cleanup(env.server.Close)
	return env
}

// args appends the flags that point a command at the test environment.
func (e *testEnv) args(cmd ...string) []string {
	return append(cmd, "--config", e.config, "--server", e.server.URL)
}

func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
