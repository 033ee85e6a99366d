package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"mailcheck/internal/backend"
	"mailcheck/internal/columns"
	"mailcheck/internal/fsio"
	"mailcheck/internal/history"
	"mailcheck/internal/lifecycle"
	"mailcheck/internal/model"
	"mailcheck/internal/settings"
)

type validateOptions struct {
	File      string
	Column    string
	Index     int
	NoHeaders bool
	Output    string
	JSON      bool
	Runtime   settings.Runtime
	NoHistory bool
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	common := addCommonFlags(fs)
	file := fs.String("file", "", "CSV file to validate")
	column := fs.String("column", "", "header name of the email column")
	index := fs.Int("index", -1, "zero-based index of the email column (with --no-headers)")
	noHeaders := fs.Bool("no-headers", false, "the file has no header row")
	headless := fs.Bool("headless", false, "run without the terminal UI (requires --file)")
	output := fs.String("output", "", "where to save the result CSV (headless: download when set)")
	noHistory := fs.Bool("no-history", false, "do not record the task in local history")
	jsonOut := fs.Bool("json", false, "print JSON output (headless only)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := common.runtime()
	if err != nil {
		return err
	}
	opts := validateOptions{
		File:      strings.TrimSpace(*file),
		Column:    strings.TrimSpace(*column),
		Index:     *index,
		NoHeaders: *noHeaders,
		Output:    strings.TrimSpace(*output),
		JSON:      *jsonOut,
		Runtime:   rt,
		NoHistory: *noHistory,
	}
	if opts.File != "" && !columns.IsCSVPath(opts.File) {
		return fmt.Errorf("%s: %w", opts.File, columns.ErrNotCSV)
	}

	if *headless || !stdinIsTTY() {
		if opts.File == "" {
			return errors.New("--file is required in headless mode")
		}
		if err := checkColumnFlags(opts); err != nil {
			return err
		}
		return runValidateHeadless(opts)
	}
	if opts.JSON {
		return errors.New("--json requires --headless")
	}
	return runValidateTUI(opts)
}

func checkColumnFlags(opts validateOptions) error {
	if opts.NoHeaders {
		if opts.Column != "" {
			return errors.New("--column needs a header row; use --index with --no-headers")
		}
		if opts.Index < 0 {
			return errors.New("--index is required with --no-headers")
		}
		return nil
	}
	if opts.Index >= 0 {
		return errors.New("--index is only valid with --no-headers; use --column")
	}
	return nil
}

// newController wires the lifecycle controller to the backend and, unless
// disabled, opens the history store. rec is nil when history is off. With
// attach the controller records tasks itself; otherwise the caller does.
func newController(opts validateOptions, client *backend.Client, attach bool) (ctrl *lifecycle.Controller, rec *history.Recorder, closer func()) {
	cfg := lifecycle.DefaultConfig()
	cfg.PollInterval = opts.Runtime.PollInterval

	closer = func() {}
	var ctrlOpts []lifecycle.Option
	if !opts.NoHistory {
		store, err := openHistory(opts.Runtime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: task history disabled: %v\n", err)
		} else {
			rec = store.Recorder(client.BaseURL())
			log.Printf("history: session %s", rec.SessionID())
			if attach {
				ctrlOpts = append(ctrlOpts, lifecycle.WithRecorder(rec))
			}
			closer = func() { _ = store.Close() }
		}
	}
	return lifecycle.NewController(client, cfg, ctrlOpts...), rec, closer
}

// matchColumn finds the option the user asked for on the command line.
// With no explicit choice the first option wins.
func matchColumn(options []model.ColumnOption, name string, index int) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("no selectable columns")
	}
	if name == "" && index < 0 {
		return 0, nil
	}
	for i, opt := range options {
		if name != "" && !opt.Value.ByIndex && opt.Value.Name == name {
			return i, nil
		}
		if index >= 0 && opt.Value.ByIndex && opt.Value.Index == index {
			return i, nil
		}
	}
	if name != "" {
		labels := make([]string, 0, len(options))
		for _, opt := range options {
			labels = append(labels, opt.Label)
		}
		return 0, fmt.Errorf("column %q not found (available: %s)", name, strings.Join(labels, ", "))
	}
	return 0, fmt.Errorf("column index %d out of range (file has %d columns)", index, len(options))
}

func saveResult(ctx context.Context, client *backend.Client, taskID, path string) (int, error) {
	data, err := client.Download(ctx, taskID)
	if err != nil {
		return 0, err
	}
	if err := fsio.WriteBytes(path, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func recordStatus(rt settings.Runtime, task model.Task) {
	store, err := openHistory(rt)
	if err != nil {
		return
	}
	defer store.Close()
	if err := store.UpdateStatus(task); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}
