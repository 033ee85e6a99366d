package cli

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"mailcheck/internal/backend"
	"mailcheck/internal/credentials"
	"mailcheck/internal/history"
	"mailcheck/internal/settings"
)

const envDebugLog = "MAILCHECK_DEBUG"

// commonFlags are shared by every command that talks to the backend.
type commonFlags struct {
	config *string
	server *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", "", "settings file path (default: user config dir)"),
		server: fs.String("server", "", "backend base URL (overrides settings and "+settings.EnvServer+")"),
	}
}

func (f commonFlags) runtime() (settings.Runtime, error) {
	path, err := settings.ResolvePath(*f.config)
	if err != nil {
		return settings.Runtime{}, err
	}
	s, err := settings.Read(path)
	if err != nil {
		return settings.Runtime{}, err
	}
	rt, err := settings.Resolve(s, os.Getenv)
	if err != nil {
		return settings.Runtime{}, err
	}
	if srv := strings.TrimSpace(*f.server); srv != "" {
		if err := settings.ValidateServerURL(srv); err != nil {
			return settings.Runtime{}, err
		}
		rt.ServerURL = strings.TrimRight(srv, "/")
	}
	return rt, nil
}

// newClient builds the backend client. A keychain that cannot be read only
// disables the bearer token.
func newClient(rt settings.Runtime) *backend.Client {
	token, err := credentials.Token(rt.ServerURL)
	if err != nil {
		log.Printf("auth: %v (continuing without token)", err)
	}
	return backend.NewClient(rt.ServerURL,
		backend.WithTimeout(rt.Timeout),
		backend.WithAuthToken(token),
	)
}

func openHistory(rt settings.Runtime) (*history.Store, error) {
	return history.Open(rt.DatabaseURL, rt.Debug)
}

// setupLogging points the std logger somewhere that cannot corrupt the
// screen: a debug file for the TUI, stderr otherwise.
func setupLogging(tui bool) (func(), error) {
	if !tui {
		log.SetOutput(os.Stderr)
		return func() {}, nil
	}
	path := strings.TrimSpace(os.Getenv(envDebugLog))
	if path == "" {
		log.SetOutput(io.Discard)
		return func() { log.SetOutput(os.Stderr) }, nil
	}
	f, err := tea.LogToFile(path, "mailcheck")
	if err != nil {
		return nil, fmt.Errorf("open debug log %s: %w", path, err)
	}
	return func() {
		_ = f.Close()
		log.SetOutput(os.Stderr)
	}, nil
}

// resultPath picks where a downloaded result goes: the explicit output, or
// the backend's file name inside the configured download dir.
func resultPath(output, downloadDir string) string {
	if p := strings.TrimSpace(output); p != "" {
		return p
	}
	dir := strings.TrimSpace(downloadDir)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, backend.ResultFileName)
}
