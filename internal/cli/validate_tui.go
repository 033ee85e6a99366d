package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"mailcheck/internal/backend"
	"mailcheck/internal/lifecycle"
	"mailcheck/internal/model"
)

type validateMode int

const (
	validateModeForm validateMode = iota
	validateModePicker
)

type validateModel struct {
	ctrl   *lifecycle.Controller
	client *backend.Client
	picker filepicker.Model
	bar    progress.Model
	mode   validateMode

	initialFile string
	downloadDir string
	output      string

	statusMessage string
	downloading   bool
	width         int
	height        int
}

type downloadDoneMsg struct {
	taskID string
	path   string
	bytes  int
	err    error
}

var (
	validateTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	validateMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	validateErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	validateOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	validatePanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	validateSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
	validateButtonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("57")).Padding(0, 2)
	validateBusyStyle   = validateButtonStyle.Background(lipgloss.Color("240"))
)

func runValidateTUI(opts validateOptions) error {
	restore, err := setupLogging(true)
	if err != nil {
		return err
	}
	defer restore()

	client := newClient(opts.Runtime)
	ctrl, _, closeHistory := newController(opts, client, true)
	defer closeHistory()

	m := newValidateModel(ctrl, client, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("validate requires an interactive terminal (TTY); use --headless")
		}
		return err
	}
	return nil
}

func newValidateModel(ctrl *lifecycle.Controller, client *backend.Client, opts validateOptions) validateModel {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv"}
	if wd, err := os.Getwd(); err == nil {
		fp.CurrentDirectory = wd
	}

	if opts.NoHeaders {
		ctrl.Update(lifecycle.HeadersChangedMsg{HasHeaders: false})
	}
	mode := validateModePicker
	if opts.File != "" {
		mode = validateModeForm
	}
	return validateModel{
		ctrl:        ctrl,
		client:      client,
		picker:      fp,
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		mode:        mode,
		initialFile: opts.File,
		downloadDir: opts.Runtime.DownloadDir,
		output:      opts.Output,
	}
}

func (m validateModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.picker.Init()}
	if m.initialFile != "" {
		path := m.initialFile
		cmds = append(cmds, func() tea.Msg { return lifecycle.FileChosenMsg{Path: path} })
	}
	return tea.Batch(cmds...)
}

func (m validateModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = clampInt(msg.Width-12, 20, 60)
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.mode == validateModePicker {
			return m.updatePicker(msg)
		}
		return m.updateForm(msg)
	case downloadDoneMsg:
		m.downloading = false
		if msg.err != nil {
			m.statusMessage = "download failed: " + model.UserMessage(msg.err)
			return m, nil
		}
		m.statusMessage = fmt.Sprintf("saved %s to %s", formatBytesIEC(int64(msg.bytes)), msg.path)
		return m, nil
	}

	cmd := m.ctrl.Update(msg)
	var pickerCmd tea.Cmd
	m.picker, pickerCmd = m.picker.Update(msg)
	return m, tea.Batch(cmd, pickerCmd)
}

func (m validateModel) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = validateModeForm
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	if ok, path := m.picker.DidSelectFile(msg); ok {
		m.mode = validateModeForm
		m.statusMessage = ""
		return m, tea.Batch(cmd, m.ctrl.Update(lifecycle.FileChosenMsg{Path: path}))
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.statusMessage = path + ": only .csv files can be validated"
	}
	return m, cmd
}

func (m validateModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	screen := m.ctrl.Screen()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "o", "f":
		// A new file may be chosen mid-task; the controller drops the old one.
		m.mode = validateModePicker
		return m, nil
	case "h", " ", "space":
		return m, m.ctrl.Update(lifecycle.HeadersChangedMsg{HasHeaders: !screen.HasHeaders})
	case "up", "k":
		if screen.Selected > 0 {
			return m, m.ctrl.Update(lifecycle.ColumnSelectedMsg{Index: screen.Selected - 1})
		}
		return m, nil
	case "down", "j":
		if screen.Selected < len(screen.Options)-1 {
			return m, m.ctrl.Update(lifecycle.ColumnSelectedMsg{Index: screen.Selected + 1})
		}
		return m, nil
	case "enter", "s":
		if screen.Busy {
			return m, nil
		}
		m.statusMessage = ""
		return m, m.ctrl.Update(lifecycle.StartMsg{})
	case "d":
		task, ok := m.ctrl.Task()
		if !screen.DownloadVisible || !ok || m.downloading {
			return m, nil
		}
		m.downloading = true
		path := resultPath(m.output, m.downloadDir)
		m.statusMessage = "downloading to " + path + "..."
		return m, downloadCmd(m.client, task.ID, path)
	}
	return m, nil
}

func downloadCmd(client *backend.Client, taskID, path string) tea.Cmd {
	return func() tea.Msg {
		n, err := saveResult(context.Background(), client, taskID, path)
		return downloadDoneMsg{taskID: taskID, path: path, bytes: n, err: err}
	}
}

func (m validateModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	panelW := clampInt(width-2, 40, 100)

	if m.mode == validateModePicker {
		header := validateTitleStyle.Render("mailcheck: choose a CSV file") + "\n" +
			validateMutedStyle.Render("up/down: move | enter: open/select | esc: back | ctrl+c: quit")
		body := validatePanelStyle.Width(panelW).Render(m.picker.View())
		return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine())
	}

	screen := m.ctrl.Screen()
	header := validateTitleStyle.Render("mailcheck: email validation") + "\n" +
		validateMutedStyle.Render("o: open file | h: toggle headers | up/down: column | enter: start | d: download | q: quit")

	sections := []string{header, m.renderFilePanel(screen, panelW)}
	if screen.MappingVisible {
		sections = append(sections, m.renderMappingPanel(screen, panelW))
	}
	sections = append(sections, m.renderButton(screen))
	if screen.ProgressVisible {
		sections = append(sections, m.renderProgressPanel(screen, panelW))
	}
	if screen.DownloadVisible {
		sections = append(sections, m.renderDownloadPanel(screen, panelW))
	}
	if screen.ErrorVisible {
		sections = append(sections, validateErrorStyle.Render("error: "+screen.ErrorText))
	}
	sections = append(sections, m.renderStatusLine())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m validateModel) renderFilePanel(screen lifecycle.Screen, width int) string {
	name := screen.FileName
	if name == "" {
		name = validateMutedStyle.Render("(no file selected, press o)")
	}
	return validatePanelStyle.Width(width).Render(kv("file", name))
}

func (m validateModel) renderMappingPanel(screen lifecycle.Screen, width int) string {
	mark := " "
	if screen.HasHeaders {
		mark = "x"
	}
	lines := []string{
		fmt.Sprintf("[%s] first row contains headers", mark),
		validateMutedStyle.Render(screen.HelpText),
		"",
	}
	maxRows := clampInt(m.height-18, 4, 12)
	start, end := listWindow(len(screen.Options), screen.Selected, maxRows)
	if start > 0 {
		lines = append(lines, validateMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		line := truncateRunes(screen.Options[i].Label, max(width-6, 10))
		if i == screen.Selected {
			line = validateSelStyle.Width(max(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(screen.Options) {
		lines = append(lines, validateMutedStyle.Render("..."))
	}
	return validatePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m validateModel) renderButton(screen lifecycle.Screen) string {
	if screen.Busy {
		return validateBusyStyle.Render(screen.ButtonLabel)
	}
	return validateButtonStyle.Render(screen.ButtonLabel)
}

func (m validateModel) renderProgressPanel(screen lifecycle.Screen, width int) string {
	status := "Uploading"
	if task, ok := m.ctrl.Task(); ok {
		status = "Processing " + task.ID
	}
	lines := []string{
		m.bar.ViewAs(screen.Progress / 100),
		formatPercent(screen.Progress) + " " + status + screen.StatusDots,
	}
	return validatePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m validateModel) renderDownloadPanel(screen lifecycle.Screen, width int) string {
	task, _ := m.ctrl.Task()
	lines := []string{
		validateOKStyle.Render("Validation complete"),
		kv("task", defaultIfEmpty(task.ID, "-")),
		kv("result", m.client.BaseURL()+screen.DownloadPath),
		validateMutedStyle.Render("press d to save to " + resultPath(m.output, m.downloadDir)),
	}
	for i := range lines {
		lines[i] = fitLine(lines[i], max(width-6, 12))
	}
	return validatePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m validateModel) renderStatusLine() string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		return ""
	}
	if strings.Contains(msg, "failed") || strings.Contains(msg, "only .csv") {
		return validateErrorStyle.Render(msg)
	}
	return validateMutedStyle.Render(msg)
}
