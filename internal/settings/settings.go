package settings

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mailcheck/internal/fsio"
)

const (
	DefaultServerURL      = "http://localhost:5000"
	DefaultPollIntervalMS = 2000
	DefaultTimeoutSeconds = 60

	FileName = "settings.json"
	AppDir   = "mailcheck"
)

// Environment overrides, applied on top of the settings file.
const (
	EnvServer       = "MAILCHECK_SERVER"
	EnvPollInterval = "MAILCHECK_POLL_INTERVAL"
	EnvTimeout      = "MAILCHECK_TIMEOUT"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvLogLevel     = "LOG_LEVEL"
)

type Settings struct {
	ServerURL      string `json:"server_url,omitempty"`
	PollIntervalMS int    `json:"poll_interval_ms,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	DatabaseURL    string `json:"database_url,omitempty"`
	DownloadDir    string `json:"download_dir,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// Runtime is the effective configuration after env overrides.
type Runtime struct {
	ServerURL    string        `json:"server_url"`
	PollInterval time.Duration `json:"poll_interval"`
	Timeout      time.Duration `json:"timeout"`
	DatabaseURL  string        `json:"database_url,omitempty"`
	DownloadDir  string        `json:"download_dir,omitempty"`
	Debug        bool          `json:"debug"`
}

func Defaults() Settings {
	return Settings{
		ServerURL:      DefaultServerURL,
		PollIntervalMS: DefaultPollIntervalMS,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

func Normalize(raw Settings) Settings {
	norm := raw
	norm.ServerURL = strings.TrimRight(strings.TrimSpace(norm.ServerURL), "/")
	if norm.ServerURL == "" {
		norm.ServerURL = DefaultServerURL
	}
	if norm.PollIntervalMS <= 0 {
		norm.PollIntervalMS = DefaultPollIntervalMS
	}
	if norm.TimeoutSeconds <= 0 {
		norm.TimeoutSeconds = DefaultTimeoutSeconds
	}
	norm.DatabaseURL = strings.TrimSpace(norm.DatabaseURL)
	norm.DownloadDir = strings.TrimSpace(norm.DownloadDir)
	return norm
}

func ValidateServerURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("server URL %q has no host", raw)
	}
	return nil
}

// DefaultPath is settings.json under the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return filepath.Join(dir, AppDir, FileName), nil
}

// ResolvePath returns path, or DefaultPath when path is blank.
func ResolvePath(path string) (string, error) {
	if p := strings.TrimSpace(path); p != "" {
		return p, nil
	}
	return DefaultPath()
}

// Read loads settings from path. A missing file yields the defaults.
func Read(path string) (Settings, error) {
	var s Settings
	if err := fsio.ReadJSON(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Settings{}, err
	}
	return Normalize(s), nil
}

func Write(path string, s Settings) (Settings, error) {
	norm := Normalize(s)
	if err := ValidateServerURL(norm.ServerURL); err != nil {
		return Settings{}, err
	}
	norm.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := fsio.WriteJSON(path, norm); err != nil {
		return Settings{}, err
	}
	return norm, nil
}

// Resolve applies environment overrides to s. Malformed override values are
// reported rather than ignored.
func Resolve(s Settings, getenv func(string) string) (Runtime, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	norm := Normalize(s)
	rt := Runtime{
		ServerURL:    norm.ServerURL,
		PollInterval: time.Duration(norm.PollIntervalMS) * time.Millisecond,
		Timeout:      time.Duration(norm.TimeoutSeconds) * time.Second,
		DatabaseURL:  norm.DatabaseURL,
		DownloadDir:  norm.DownloadDir,
	}

	if v := strings.TrimSpace(getenv(EnvServer)); v != "" {
		rt.ServerURL = strings.TrimRight(v, "/")
	}
	if err := ValidateServerURL(rt.ServerURL); err != nil {
		return Runtime{}, err
	}
	if v := strings.TrimSpace(getenv(EnvPollInterval)); v != "" {
		d, err := parsePositiveDuration(EnvPollInterval, v)
		if err != nil {
			return Runtime{}, err
		}
		rt.PollInterval = d
	}
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := parsePositiveDuration(EnvTimeout, v)
		if err != nil {
			return Runtime{}, err
		}
		rt.Timeout = d
	}
	if v := strings.TrimSpace(getenv(EnvDatabaseURL)); v != "" {
		rt.DatabaseURL = v
	}
	rt.Debug = strings.EqualFold(strings.TrimSpace(getenv(EnvLogLevel)), "debug")
	return rt, nil
}

func parsePositiveDuration(name, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0, got %s", name, raw)
	}
	return d, nil
}
