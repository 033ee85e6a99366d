package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcheck/internal/backend"
	"mailcheck/internal/lifecycle"
	"mailcheck/internal/model"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loadedTUIModel(t *testing.T, env *testEnv, content string) validateModel {
	t.Helper()
	path := env.writeFile(t, "people.csv", content)
	client := backend.NewClient(env.server.URL)
	ctrl := lifecycle.NewController(client, lifecycle.DefaultConfig())
	m := newValidateModel(ctrl, client, validateOptions{File: path})

	// run the preview read the way the program would
	cmd := ctrl.Update(lifecycle.FileChosenMsg{Path: path})
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(validateModel)
}

func TestValidateTUIColumnNavigation(t *testing.T) {
	env := newTestEnv(t)
	m := loadedTUIModel(t, env, "name,email,phone\nAnn,ann@x.io,1\n")

	screen := m.ctrl.Screen()
	require.True(t, screen.MappingVisible)
	assert.Equal(t, 0, screen.Selected)

	next, _ := m.Update(key("down"))
	next, _ = next.Update(key("j"))
	next, _ = next.Update(key("down")) // already at the end
	m = next.(validateModel)
	assert.Equal(t, 2, m.ctrl.Screen().Selected)

	next, _ = m.Update(key("k"))
	m = next.(validateModel)
	assert.Equal(t, 1, m.ctrl.Screen().Selected)

	view := m.View()
	assert.Contains(t, view, "people.csv")
	assert.Contains(t, view, "email")
	assert.Contains(t, view, "Start Validation")
	assert.Contains(t, view, "Select the column containing email addresses")
}

func TestValidateTUIHeaderToggle(t *testing.T) {
	env := newTestEnv(t)
	m := loadedTUIModel(t, env, "name,email\nAnn,ann@x.io\n")

	next, _ := m.Update(key("h"))
	m = next.(validateModel)
	screen := m.ctrl.Screen()
	assert.False(t, screen.HasHeaders)
	require.Len(t, screen.Options, 2)
	assert.Equal(t, model.IndexColumn(0), screen.Options[0].Value)
	assert.Contains(t, m.View(), "Column 2")
}

func TestValidateTUIPickerMode(t *testing.T) {
	env := newTestEnv(t)
	client := backend.NewClient(env.server.URL)
	ctrl := lifecycle.NewController(client, lifecycle.DefaultConfig())
	m := newValidateModel(ctrl, client, validateOptions{})
	assert.Equal(t, validateModePicker, m.mode)
	assert.Contains(t, m.View(), "choose a CSV file")

	next, _ := m.Update(key("esc"))
	m = next.(validateModel)
	assert.Equal(t, validateModeForm, m.mode)
	assert.Contains(t, m.View(), "no file selected")

	next, _ = m.Update(key("o"))
	assert.Equal(t, validateModePicker, next.(validateModel).mode)
}

func TestValidateTUIStartWithoutFileShowsError(t *testing.T) {
	env := newTestEnv(t)
	client := backend.NewClient(env.server.URL)
	ctrl := lifecycle.NewController(client, lifecycle.DefaultConfig())
	m := newValidateModel(ctrl, client, validateOptions{})
	m.mode = validateModeForm

	next, _ := m.Update(key("s"))
	m = next.(validateModel)
	assert.Equal(t, model.StateFailed, m.ctrl.State())
	assert.Contains(t, m.View(), model.MessageNoFileSelected)
}

func TestValidateTUIDownloadDone(t *testing.T) {
	env := newTestEnv(t)
	m := loadedTUIModel(t, env, "email\na@x.io\n")

	next, _ := m.Update(downloadDoneMsg{taskID: "t1", path: "/tmp/r.csv", bytes: 2048})
	assert.Contains(t, next.View(), "saved 2.0 KiB to /tmp/r.csv")

	next, _ = next.Update(downloadDoneMsg{taskID: "t1", err: model.NewError(model.ErrTransportFailure, "connection refused", nil)})
	assert.Contains(t, next.View(), "download failed: connection refused")

	// d does nothing before completion
	_, cmd := next.Update(key("d"))
	assert.Nil(t, cmd)
}

// tuiDriver plays the bubbletea runtime for a validateModel: commands run on
// goroutines and their messages are fed back through Update in order.
type tuiDriver struct {
	t    *testing.T
	m    validateModel
	msgs chan tea.Msg
	done chan struct{}
}

func newTUIDriver(t *testing.T, m validateModel) *tuiDriver {
	d := &tuiDriver{t: t, m: m, msgs: make(chan tea.Msg, 64), done: make(chan struct{})}
	t.Cleanup(func() { close(d.done) })
	return d
}

func (d *tuiDriver) send(msg tea.Msg) {
	next, cmd := d.m.Update(msg)
	d.m = next.(validateModel)
	d.exec(cmd)
}

func (d *tuiDriver) exec(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		select {
		case d.msgs <- msg:
		case <-d.done:
		}
	}()
}

func (d *tuiDriver) runUntil(cond func(validateModel) bool) {
	d.t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond(d.m) {
		select {
		case msg := <-d.msgs:
			switch msg := msg.(type) {
			case nil:
			case tea.BatchMsg:
				for _, cmd := range msg {
					d.exec(cmd)
				}
			default:
				d.send(msg)
			}
		case <-deadline:
			d.t.Fatalf("condition not reached; state=%s", d.m.ctrl.State())
		}
	}
}

func TestValidateTUIChooseFileWhilePolling(t *testing.T) {
	env := newTestEnv(t)
	env.fake.runningPolls = 1 << 20
	first := env.writeFile(t, "people.csv", "email\nann@x.io\n")
	nextDir := filepath.Join(env.dir, "next")
	require.NoError(t, os.MkdirAll(nextDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nextDir, "second.csv"), []byte("name,email\nBob,bob@x.io\n"), 0o644))

	client := backend.NewClient(env.server.URL)
	ctrl := lifecycle.NewController(client, lifecycle.Config{
		PollInterval: 5 * time.Millisecond,
		DotInterval:  time.Hour,
		ErrorDisplay: time.Hour,
	})
	d := newTUIDriver(t, newValidateModel(ctrl, client, validateOptions{File: first}))

	d.send(lifecycle.FileChosenMsg{Path: first})
	d.runUntil(func(m validateModel) bool { return m.ctrl.Screen().MappingVisible })
	d.send(key("s"))
	d.runUntil(func(m validateModel) bool {
		return m.ctrl.State() == model.StatePolling && m.ctrl.Screen().Progress == 50
	})

	d.send(key("o"))
	require.Equal(t, validateModePicker, d.m.mode)

	d.m.picker.CurrentDirectory = nextDir
	d.send(d.m.picker.Init()())
	d.send(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, validateModeForm, d.m.mode)

	d.runUntil(func(m validateModel) bool { return m.ctrl.Screen().MappingVisible })
	screen := d.m.ctrl.Screen()
	assert.Equal(t, model.StateFileSelected, screen.State)
	assert.Equal(t, "second.csv", screen.FileName)
	assert.False(t, screen.ProgressVisible)
	assert.False(t, screen.Busy)
	_, hasTask := d.m.ctrl.Task()
	assert.False(t, hasTask)
	assert.NotContains(t, d.m.View(), "Processing t1")
}
