package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"mailcheck/internal/settings"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	config := fs.String("config", "", "settings file path (default: user config dir)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := settings.ResolvePath(*config)
	if err != nil {
		return err
	}
	s, err := settings.Read(path)
	if err != nil {
		return err
	}
	rt, err := settings.Resolve(s, os.Getenv)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    s,
			"effective":   rt,
		})
	}

	fmt.Printf("config: %s\n", path)
	fmt.Printf("server_url: %s\n", rt.ServerURL)
	fmt.Printf("poll_interval: %s\n", rt.PollInterval)
	fmt.Printf("timeout: %s\n", rt.Timeout)
	fmt.Printf("database_url: %s\n", defaultIfEmpty(rt.DatabaseURL, "(default sqlite)"))
	fmt.Printf("download_dir: %s\n", defaultIfEmpty(rt.DownloadDir, "(current directory)"))
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	config := fs.String("config", "", "settings file path (default: user config dir)")
	server := fs.String("server", "", "backend base URL (empty keeps current)")
	pollInterval := fs.Duration("poll-interval", 0, "status poll interval, e.g. 2s (0 keeps current)")
	timeout := fs.Duration("timeout", 0, "per-request timeout, e.g. 60s (0 keeps current)")
	databaseURL := fs.String("database-url", "", "history database: sqlite://path or postgres://... (empty keeps current)")
	downloadDir := fs.String("download-dir", "", "default directory for result files (empty keeps current)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path, err := settings.ResolvePath(*config)
	if err != nil {
		return err
	}
	s, err := settings.Read(path)
	if err != nil {
		return err
	}

	if v := strings.TrimSpace(*server); v != "" {
		if err := settings.ValidateServerURL(v); err != nil {
			return err
		}
		s.ServerURL = v
	}
	if *pollInterval != 0 {
		if *pollInterval < 100*time.Millisecond {
			return errors.New("--poll-interval must be >= 100ms")
		}
		s.PollIntervalMS = int(pollInterval.Milliseconds())
	}
	if *timeout != 0 {
		if *timeout < time.Second {
			return errors.New("--timeout must be >= 1s")
		}
		s.TimeoutSeconds = int(timeout.Seconds())
	}
	if v := strings.TrimSpace(*databaseURL); v != "" {
		s.DatabaseURL = v
	}
	if v := strings.TrimSpace(*downloadDir); v != "" {
		s.DownloadDir = v
	}

	saved, err := settings.Write(path, s)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    saved,
		})
	}

	fmt.Printf("updated settings in %s\n", path)
	fmt.Printf("server_url: %s\n", saved.ServerURL)
	fmt.Printf("poll_interval_ms: %d\n", saved.PollIntervalMS)
	fmt.Printf("timeout_seconds: %d\n", saved.TimeoutSeconds)
	fmt.Printf("database_url: %s\n", defaultIfEmpty(saved.DatabaseURL, "(default sqlite)"))
	fmt.Printf("download_dir: %s\n", defaultIfEmpty(saved.DownloadDir, "(current directory)"))
	return nil
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show [--json]")
	fmt.Println("  settings set [--server URL] [--poll-interval 2s] [--timeout 60s]")
	fmt.Println("               [--database-url sqlite://path|postgres://...] [--download-dir DIR]")
	fmt.Println()
	fmt.Println("environment overrides:")
	fmt.Printf("  %s, %s, %s, %s, %s\n",
		settings.EnvServer, settings.EnvPollInterval, settings.EnvTimeout, settings.EnvDatabaseURL, settings.EnvLogLevel)
}
