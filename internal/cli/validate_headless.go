package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"mailcheck/internal/lifecycle"
	"mailcheck/internal/model"
)

type headlessResult struct {
	TaskID      string  `json:"task_id,omitempty"`
	File        string  `json:"file"`
	HasHeaders  bool    `json:"has_headers"`
	State       string  `json:"state"`
	Status      string  `json:"status,omitempty"`
	Progress    float64 `json:"progress"`
	DownloadURL string  `json:"download_url,omitempty"`
	Output      string  `json:"output,omitempty"`
	Bytes       int     `json:"bytes,omitempty"`
	Error       string  `json:"error,omitempty"`
	ErrorKind   string  `json:"error_kind,omitempty"`
}

// headlessModel drives the controller without a screen: it picks the
// requested column once the preview is in, starts the task and quits on
// the first terminal state.
type headlessModel struct {
	ctrl    *lifecycle.Controller
	opts    validateOptions
	started bool
	err     error

	lastStatus   model.TaskStatus
	lastProgress float64
}

func (m *headlessModel) Init() tea.Cmd {
	m.ctrl.Update(lifecycle.HeadersChangedMsg{HasHeaders: !m.opts.NoHeaders})
	return m.ctrl.Update(lifecycle.FileChosenMsg{Path: m.opts.File})
}

func (m *headlessModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.ctrl.Update(msg)
	return m, tea.Batch(cmd, m.advance())
}

func (m *headlessModel) View() string {
	return ""
}

func (m *headlessModel) advance() tea.Cmd {
	screen := m.ctrl.Screen()
	var startCmd tea.Cmd
	if !m.started {
		if screen.ErrorVisible && !screen.MappingVisible {
			m.err = errors.New(screen.ErrorText)
			return tea.Quit
		}
		if !screen.MappingVisible {
			return nil
		}
		idx, err := matchColumn(screen.Options, m.opts.Column, m.opts.Index)
		if err != nil {
			m.err = err
			return tea.Quit
		}
		m.ctrl.Update(lifecycle.ColumnSelectedMsg{Index: idx})
		m.started = true
		startCmd = m.ctrl.Update(lifecycle.StartMsg{})
	}

	m.report()
	if m.ctrl.State().IsTerminal() {
		return tea.Batch(startCmd, tea.Quit)
	}
	return startCmd
}

func (m *headlessModel) report() {
	task, ok := m.ctrl.Task()
	if !ok || m.opts.JSON {
		return
	}
	if task.Status == m.lastStatus && task.Progress == m.lastProgress {
		return
	}
	m.lastStatus, m.lastProgress = task.Status, task.Progress
	fmt.Printf("[%s] %s %s\n", task.ID, task.Status, formatPercent(task.Progress))
}

func runValidateHeadless(opts validateOptions) error {
	restore, err := setupLogging(false)
	if err != nil {
		return err
	}
	defer restore()

	client := newClient(opts.Runtime)
	ctrl, rec, closeHistory := newController(opts, client, false)
	defer closeHistory()

	m := &headlessModel{ctrl: ctrl, opts: opts, lastProgress: -1}
	p := tea.NewProgram(m, tea.WithInput(nil), tea.WithoutRenderer())
	if _, err := p.Run(); err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}

	res := headlessResult{
		File:       opts.File,
		HasHeaders: !opts.NoHeaders,
		State:      string(ctrl.State()),
	}
	task, hasTask := ctrl.Task()
	if hasTask {
		res.TaskID = task.ID
		res.Status = string(task.Status)
		res.Progress = task.Progress
		if rec != nil {
			screen := ctrl.Screen()
			column := screen.Options[screen.Selected].Value
			if err := rec.RecordSubmitted(task, screen.FileName, column, !opts.NoHeaders); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}
	}

	var runErr error
	switch ctrl.State() {
	case model.StateCompleted:
		res.DownloadURL = client.DownloadURL(task.ID)
		if opts.Output != "" {
			n, err := saveResult(context.Background(), client, task.ID, opts.Output)
			if err != nil {
				runErr = fmt.Errorf("download result: %w", err)
				res.Error = model.UserMessage(err)
			} else {
				res.Output = opts.Output
				res.Bytes = n
			}
		}
	case model.StateFailed:
		runErr = ctrl.Err()
		res.Error = model.UserMessage(runErr)
		res.ErrorKind = string(model.KindOf(runErr))
	}

	if opts.JSON {
		if err := printJSON(res); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	fmt.Printf("task %s completed\n", res.TaskID)
	fmt.Printf("download: %s\n", res.DownloadURL)
	if res.Output != "" {
		fmt.Printf("saved %s to %s\n", formatBytesIEC(int64(res.Bytes)), res.Output)
	}
	return nil
}
