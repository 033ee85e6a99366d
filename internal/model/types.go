package model

import (
	"fmt"
	"strconv"
	"strings"
)

type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// NormalizeTaskStatus maps backend-reported values onto the four known
// statuses. Anything that is not terminal and not queued counts as running.
func NormalizeTaskStatus(raw string) TaskStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusQueued), "pending":
		return StatusQueued
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusFailed):
		return StatusFailed
	default:
		return StatusRunning
	}
}

func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the client's read-only view of one backend job.
type Task struct {
	ID          string     `json:"id"`
	Status      TaskStatus `json:"status"`
	Progress    float64    `json:"progress"`
	ErrorDetail string     `json:"error,omitempty"`
}

func NewTask(id string) *Task {
	return &Task{ID: id, Status: StatusQueued}
}

// ColumnMapping selects the email column either by header name or by
// zero-based position, never both.
type ColumnMapping struct {
	Name    string `json:"name,omitempty"`
	Index   int    `json:"index"`
	ByIndex bool   `json:"by_index"`
}

func HeaderColumn(name string) ColumnMapping {
	return ColumnMapping{Name: name}
}

func IndexColumn(index int) ColumnMapping {
	return ColumnMapping{Index: index, ByIndex: true}
}

// FormValue is the representation sent in the email_column field.
func (m ColumnMapping) FormValue() string {
	if m.ByIndex {
		return strconv.Itoa(m.Index)
	}
	return m.Name
}

func (m ColumnMapping) String() string {
	if m.ByIndex {
		return fmt.Sprintf("#%d", m.Index)
	}
	return strconv.Quote(m.Name)
}

type ColumnOption struct {
	Value ColumnMapping `json:"value"`
	Label string        `json:"label"`
}

// UploadRequest is built once per submission and never mutated afterwards.
type UploadRequest struct {
	fileName   string
	content    []byte
	column     ColumnMapping
	hasHeaders bool
}

func NewUploadRequest(fileName string, content []byte, column ColumnMapping, hasHeaders bool) (UploadRequest, error) {
	if strings.TrimSpace(fileName) == "" {
		return UploadRequest{}, fmt.Errorf("upload request requires a file name")
	}
	if column.ByIndex == hasHeaders {
		return UploadRequest{}, fmt.Errorf("column %s does not match has_headers=%t", column, hasHeaders)
	}
	if column.ByIndex && column.Index < 0 {
		return UploadRequest{}, fmt.Errorf("column index must be >= 0, got %d", column.Index)
	}
	buf := make([]byte, len(content))
	copy(buf, content)
	return UploadRequest{
		fileName:   fileName,
		content:    buf,
		column:     column,
		hasHeaders: hasHeaders,
	}, nil
}

func (r UploadRequest) FileName() string      { return r.fileName }
func (r UploadRequest) Column() ColumnMapping { return r.column }
func (r UploadRequest) HasHeaders() bool      { return r.hasHeaders }
func (r UploadRequest) Size() int             { return len(r.content) }

// Content returns a copy of the snapshotted file bytes.
func (r UploadRequest) Content() []byte {
	out := make([]byte, len(r.content))
	copy(out, r.content)
	return out
}

// HasHeadersValue is the has_headers form field ("true"/"false").
func (r UploadRequest) HasHeadersValue() string {
	return strconv.FormatBool(r.hasHeaders)
}
