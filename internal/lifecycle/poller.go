package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"mailcheck/internal/backend"
	"mailcheck/internal/model"
)

// StatusFetcher reads the state of one backend task.
type StatusFetcher interface {
	Status(ctx context.Context, taskID string) (backend.StatusResponse, error)
}

type PollerState int

const (
	PollerNotStarted PollerState = iota
	PollerActive
	PollerStopped
)

func (s PollerState) String() string {
	switch s {
	case PollerNotStarted:
		return "not_started"
	case PollerActive:
		return "active"
	case PollerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("poller_state(%d)", int(s))
	}
}

var ErrPollerActive = errors.New("poller already active")

var dotFrames = []string{"", ".", "..", "..."}

type PollEventKind int

const (
	PollProgress PollEventKind = iota
	PollCompleted
	PollFailed
)

// PollEvent is what a settled status query means for the task.
type PollEvent struct {
	Kind         PollEventKind
	TaskID       string
	Status       model.TaskStatus
	Progress     float64
	HasProgress  bool // false when the query itself failed
	DownloadPath string
	Err          error
}

type pollTickMsg struct {
	session int
	taskID  string
}

type pollResultMsg struct {
	session int
	taskID  string
	resp    backend.StatusResponse
	err     error
}

type dotTickMsg struct {
	session int
	tick    spinner.TickMsg
}

// Poller queries task status on a fixed period until the task finishes or
// Stop is called. The next query is only scheduled once the previous one
// settled, so at most one request per session is ever in flight.
type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	dotInterval time.Duration

	state   PollerState
	session int
	taskID  string
	dots    spinner.Model
}

func NewPoller(fetcher StatusFetcher, interval, dotInterval time.Duration) *Poller {
	return &Poller{
		fetcher:     fetcher,
		interval:    interval,
		dotInterval: dotInterval,
		state:       PollerNotStarted,
	}
}

func (p *Poller) State() PollerState { return p.state }

// Dots is the current frame of the waiting animation.
func (p *Poller) Dots() string {
	if p.state != PollerActive {
		return ""
	}
	return p.dots.View()
}

// Start begins a new poll session for taskID. It returns the commands that
// drive the first status query and the dot animation.
func (p *Poller) Start(taskID string) (tea.Cmd, error) {
	if p.state == PollerActive {
		return nil, fmt.Errorf("start %s: %w (task %s)", taskID, ErrPollerActive, p.taskID)
	}
	if strings.TrimSpace(taskID) == "" {
		return nil, errors.New("start: task id is required")
	}
	p.session++
	p.taskID = taskID
	p.state = PollerActive
	p.dots = spinner.New(spinner.WithSpinner(spinner.Spinner{Frames: dotFrames, FPS: p.dotInterval}))
	return tea.Batch(p.scheduleQuery(), p.scheduleDots(p.dots.Tick)), nil
}

// Stop ends the session. Calling it when not active does nothing.
func (p *Poller) Stop() {
	if p.state != PollerActive {
		return
	}
	p.state = PollerStopped
}

// Update consumes poller messages. handled is false for messages that are
// not the poller's. Messages from an earlier or stopped session are
// swallowed without an event.
func (p *Poller) Update(msg tea.Msg) (ev *PollEvent, cmd tea.Cmd, handled bool) {
	switch msg := msg.(type) {
	case pollTickMsg:
		if !p.live(msg.session, msg.taskID) {
			return nil, nil, true
		}
		return nil, p.queryCmd(msg.session, msg.taskID), true
	case pollResultMsg:
		if !p.live(msg.session, msg.taskID) {
			return nil, nil, true
		}
		ev, cmd := p.settle(msg)
		return ev, cmd, true
	case dotTickMsg:
		if !p.live(msg.session, p.taskID) {
			return nil, nil, true
		}
		var next tea.Cmd
		p.dots, next = p.dots.Update(msg.tick)
		return nil, p.wrapDots(msg.session, next), true
	}
	return nil, nil, false
}

func (p *Poller) live(session int, taskID string) bool {
	return p.state == PollerActive && session == p.session && taskID == p.taskID
}

func (p *Poller) settle(msg pollResultMsg) (*PollEvent, tea.Cmd) {
	if msg.err != nil {
		p.state = PollerStopped
		return &PollEvent{Kind: PollFailed, TaskID: msg.taskID, Status: model.StatusFailed, Err: msg.err}, nil
	}

	status := model.NormalizeTaskStatus(msg.resp.Status)
	ev := &PollEvent{TaskID: msg.taskID, Status: status, Progress: msg.resp.Progress, HasProgress: true}
	switch status {
	case model.StatusCompleted:
		p.state = PollerStopped
		ev.Kind = PollCompleted
		ev.DownloadPath = backend.DownloadPath(msg.taskID)
		return ev, nil
	case model.StatusFailed:
		p.state = PollerStopped
		ev.Kind = PollFailed
		detail := strings.TrimSpace(msg.resp.Error)
		text := detail
		if text == "" {
			text = model.MessageJobFailed
		}
		ev.Err = model.NewError(model.ErrJobFailed, text, nil)
		return ev, nil
	default:
		ev.Kind = PollProgress
		return ev, p.scheduleQuery()
	}
}

func (p *Poller) scheduleQuery() tea.Cmd {
	session, taskID := p.session, p.taskID
	return tea.Tick(p.interval, func(time.Time) tea.Msg {
		return pollTickMsg{session: session, taskID: taskID}
	})
}

func (p *Poller) queryCmd(session int, taskID string) tea.Cmd {
	fetcher := p.fetcher
	return func() tea.Msg {
		resp, err := fetcher.Status(context.Background(), taskID)
		return pollResultMsg{session: session, taskID: taskID, resp: resp, err: err}
	}
}

// The first frame is held for a full interval, like every later one.
func (p *Poller) scheduleDots(tick func() tea.Msg) tea.Cmd {
	session := p.session
	return tea.Tick(p.dotInterval, func(time.Time) tea.Msg {
		t, _ := tick().(spinner.TickMsg)
		return dotTickMsg{session: session, tick: t}
	})
}

func (p *Poller) wrapDots(session int, next tea.Cmd) tea.Cmd {
	if next == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := next().(spinner.TickMsg)
		if !ok {
			return nil
		}
		return dotTickMsg{session: session, tick: t}
	}
}
