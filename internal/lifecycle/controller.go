package lifecycle

import (
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"mailcheck/internal/columns"
	"mailcheck/internal/model"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultDotInterval  = 500 * time.Millisecond
	DefaultErrorDisplay = 5 * time.Second
)

const (
	buttonIdle = "Start Validation"
	buttonBusy = "Validating..."

	messageEmptyFile = "Selected file is empty"
)

type Config struct {
	PollInterval time.Duration
	DotInterval  time.Duration
	ErrorDisplay time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		DotInterval:  DefaultDotInterval,
		ErrorDisplay: DefaultErrorDisplay,
	}
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DotInterval <= 0 {
		c.DotInterval = DefaultDotInterval
	}
	if c.ErrorDisplay <= 0 {
		c.ErrorDisplay = DefaultErrorDisplay
	}
	return c
}

// Backend is everything the controller needs from the validation service.
type Backend interface {
	Uploader
	StatusFetcher
}

// Recorder keeps a history of submitted tasks. It is called from commands,
// never from Update; errors are logged and otherwise ignored.
type Recorder interface {
	RecordSubmitted(task model.Task, fileName string, column model.ColumnMapping, hasHeaders bool) error
	RecordOutcome(task model.Task) error
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Input messages.
type (
	FileChosenMsg     struct{ Path string }
	HeadersChangedMsg struct{ HasHeaders bool }
	ColumnSelectedMsg struct{ Index int }
	StartMsg          struct{}
)

type previewLoadedMsg struct {
	generation int
	sample     []string
	err        error
}

type errorExpiredMsg struct {
	seq int
}

// Screen is the view-state derived from the controller after each update.
type Screen struct {
	State    model.LifecycleState
	FileName string

	MappingVisible bool
	HasHeaders     bool
	Options        []model.ColumnOption
	Selected       int
	HelpText       string

	ProgressVisible bool
	Progress        float64
	StatusDots      string

	DownloadVisible bool
	DownloadPath    string

	ErrorVisible bool
	ErrorText    string

	Busy        bool
	ButtonLabel string
}

// Controller owns the lifecycle of one validation task at a time. All of
// its state is mutated from Update, which must be called from a single
// goroutine (the bubbletea event loop or a test driver).
type Controller struct {
	cfg       Config
	submitter *Submitter
	poller    *Poller
	recorder  Recorder

	state      model.LifecycleState
	generation int
	task       *model.Task
	lastErr    error

	// what the in-flight or active task was submitted with
	submittedColumn  model.ColumnMapping
	submittedHeaders bool

	file        *File
	hasHeaders  bool
	sample      []string
	sampleKnown bool
	options     []model.ColumnOption
	selected    int

	mappingVisible  bool
	progressVisible bool
	progress        float64
	downloadVisible bool
	downloadPath    string
	errorVisible    bool
	errorText       string
	errorSeq        int
}

func NewController(b Backend, cfg Config, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:        cfg,
		submitter:  NewSubmitter(b),
		poller:     NewPoller(b, cfg.PollInterval, cfg.DotInterval),
		state:      model.StateIdle,
		hasHeaders: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.options = columns.DeriveOptions(nil, c.hasHeaders)
	return c
}

func (c *Controller) State() model.LifecycleState { return c.state }

// Err is the error behind the current Failed state, if any.
func (c *Controller) Err() error { return c.lastErr }

// Task returns a copy of the active task.
func (c *Controller) Task() (model.Task, bool) {
	if c.task == nil {
		return model.Task{}, false
	}
	return *c.task, true
}

func (c *Controller) File() *File { return c.file }

func (c *Controller) PollerState() PollerState { return c.poller.State() }

func (c *Controller) Screen() Screen {
	s := Screen{
		State:           c.state,
		MappingVisible:  c.mappingVisible,
		HasHeaders:      c.hasHeaders,
		Options:         append([]model.ColumnOption(nil), c.options...),
		Selected:        c.selected,
		HelpText:        columns.HelpText(c.hasHeaders),
		ProgressVisible: c.progressVisible,
		Progress:        c.progress,
		StatusDots:      c.poller.Dots(),
		DownloadVisible: c.downloadVisible,
		DownloadPath:    c.downloadPath,
		ErrorVisible:    c.errorVisible,
		ErrorText:       c.errorText,
		Busy:            c.state.Busy(),
		ButtonLabel:     buttonIdle,
	}
	if c.file != nil {
		s.FileName = c.file.Name
	}
	if s.Busy {
		s.ButtonLabel = buttonBusy
	}
	return s
}

// Update applies one message and returns the follow-up work.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FileChosenMsg:
		return c.chooseFile(msg.Path)
	case previewLoadedMsg:
		return c.applyPreview(msg)
	case HeadersChangedMsg:
		c.hasHeaders = msg.HasHeaders
		c.deriveOptions()
		return nil
	case ColumnSelectedMsg:
		if msg.Index >= 0 && msg.Index < len(c.options) {
			c.selected = msg.Index
		}
		return nil
	case StartMsg:
		return c.start()
	case submitResultMsg:
		return c.settleSubmit(msg)
	case errorExpiredMsg:
		if msg.seq == c.errorSeq {
			c.errorVisible = false
		}
		return nil
	}

	ev, cmd, handled := c.poller.Update(msg)
	if !handled || ev == nil {
		return cmd
	}
	return tea.Batch(cmd, c.applyPollEvent(*ev))
}

// Reset drops the file, the task and every visible section, returning to
// Idle. The header flag is kept.
func (c *Controller) Reset() {
	c.clearDownstream()
	c.file = nil
	c.state = model.StateIdle
}

func (c *Controller) clearDownstream() {
	c.poller.Stop()
	c.generation++
	c.task = nil
	c.lastErr = nil
	c.sample = nil
	c.sampleKnown = false
	c.options = columns.DeriveOptions(nil, c.hasHeaders)
	c.selected = 0
	c.mappingVisible = false
	c.progressVisible = false
	c.progress = 0
	c.downloadVisible = false
	c.downloadPath = ""
	c.errorVisible = false
	c.errorText = ""
}

func (c *Controller) chooseFile(path string) tea.Cmd {
	if path == "" {
		c.Reset()
		return nil
	}
	c.clearDownstream()
	c.file = NewFile(path)
	c.moveTo(model.StateFileSelected)

	generation := c.generation
	return func() tea.Msg {
		sample, err := columns.ReadSampleRow(path)
		return previewLoadedMsg{generation: generation, sample: sample, err: err}
	}
}

func (c *Controller) applyPreview(msg previewLoadedMsg) tea.Cmd {
	if msg.generation != c.generation {
		return nil
	}
	if msg.err != nil {
		log.Printf("preview %s: %v", c.fileName(), msg.err)
		return c.showError("Error reading CSV: " + msg.err.Error())
	}
	c.sample = msg.sample
	c.sampleKnown = true
	c.deriveOptions()
	c.mappingVisible = true
	return nil
}

func (c *Controller) deriveOptions() {
	c.options = columns.DeriveOptions(c.sample, c.hasHeaders)
	c.selected = 0
}

func (c *Controller) start() tea.Cmd {
	if c.state.Busy() {
		return nil
	}

	file := c.file
	if !c.sampleKnown {
		// Preview failed or has not arrived: nothing submittable yet.
		file = nil
	}
	if file != nil && c.hasHeaders && len(c.sample) == 0 {
		return c.fail(model.NewError(model.ErrNoFileSelected, messageEmptyFile, nil))
	}
	var mapping model.ColumnMapping
	if len(c.options) > 0 {
		mapping = c.options[c.selected].Value
	}

	cmd, err := c.submitter.Submit(c.generation+1, file, mapping, c.hasHeaders)
	if err != nil {
		return c.fail(err)
	}
	if !c.moveTo(model.StateSubmitting) {
		return nil
	}
	c.generation++
	c.submittedColumn = mapping
	c.submittedHeaders = c.hasHeaders
	c.poller.Stop()
	c.task = nil
	c.lastErr = nil
	c.progressVisible = true
	c.progress = 0
	c.downloadVisible = false
	c.downloadPath = ""
	c.errorVisible = false
	return cmd
}

func (c *Controller) settleSubmit(msg submitResultMsg) tea.Cmd {
	if msg.generation != c.generation || c.state != model.StateSubmitting {
		if msg.taskID != "" {
			log.Printf("[%s] discarding superseded submission", msg.taskID)
		}
		return nil
	}
	if msg.err != nil {
		log.Printf("upload %s: %v", c.fileName(), msg.err)
		return c.fail(msg.err)
	}

	pollCmd, err := c.poller.Start(msg.taskID)
	if err != nil {
		log.Printf("[%s] %v", msg.taskID, err)
		return c.fail(err)
	}
	c.task = model.NewTask(msg.taskID)
	c.moveTo(model.StatePolling)
	log.Printf("[%s] submitted %s (column %s, headers=%t)", msg.taskID, c.fileName(), c.submittedColumn, c.submittedHeaders)
	return tea.Batch(pollCmd, c.recordSubmitted(*c.task))
}

func (c *Controller) applyPollEvent(ev PollEvent) tea.Cmd {
	if c.task == nil || c.task.ID != ev.TaskID {
		return nil
	}
	c.task.Status = ev.Status
	if ev.HasProgress {
		c.task.Progress = ev.Progress
		c.progress = ev.Progress
	}

	switch ev.Kind {
	case PollCompleted:
		c.moveTo(model.StateCompleted)
		c.downloadPath = ev.DownloadPath
		c.downloadVisible = true
		log.Printf("[%s] completed", ev.TaskID)
		return c.recordOutcome(*c.task)
	case PollFailed:
		c.task.Status = model.StatusFailed
		c.task.ErrorDetail = model.UserMessage(ev.Err)
		log.Printf("[%s] failed: %v", ev.TaskID, ev.Err)
		return tea.Batch(c.fail(ev.Err), c.recordOutcome(*c.task))
	default:
		c.moveTo(model.StatePolling)
		return nil
	}
}

func (c *Controller) fail(err error) tea.Cmd {
	c.lastErr = err
	c.moveTo(model.StateFailed)
	return c.showError(model.UserMessage(err))
}

func (c *Controller) showError(text string) tea.Cmd {
	c.errorSeq++
	c.errorText = text
	c.errorVisible = true
	seq := c.errorSeq
	return tea.Tick(c.cfg.ErrorDisplay, func(time.Time) tea.Msg {
		return errorExpiredMsg{seq: seq}
	})
}

func (c *Controller) moveTo(to model.LifecycleState) bool {
	next, err := model.Transition(c.state, to)
	if err != nil {
		log.Printf("lifecycle: %v", err)
		return false
	}
	c.state = next
	return true
}

func (c *Controller) fileName() string {
	if c.file == nil {
		return ""
	}
	return c.file.Name
}

func (c *Controller) recordSubmitted(task model.Task) tea.Cmd {
	if c.recorder == nil {
		return nil
	}
	r, name, column, headers := c.recorder, c.fileName(), c.submittedColumn, c.submittedHeaders
	return func() tea.Msg {
		if err := r.RecordSubmitted(task, name, column, headers); err != nil {
			log.Printf("[%s] history: %v", task.ID, err)
		}
		return nil
	}
}

func (c *Controller) recordOutcome(task model.Task) tea.Cmd {
	if c.recorder == nil {
		return nil
	}
	r := c.recorder
	return func() tea.Msg {
		if err := r.RecordOutcome(task); err != nil {
			log.Printf("[%s] history: %v", task.ID, err)
		}
		return nil
	}
}
