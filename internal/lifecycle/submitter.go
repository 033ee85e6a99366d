package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"mailcheck/internal/model"
)

// Uploader sends one upload request to the backend.
type Uploader interface {
	Upload(ctx context.Context, req model.UploadRequest) (string, error)
}

// File is a user-chosen input file.
type File struct {
	Path string
	Name string
}

func NewFile(path string) *File {
	return &File{Path: path, Name: filepath.Base(path)}
}

type submitResultMsg struct {
	generation int
	taskID     string
	err        error
}

type Submitter struct {
	uploader Uploader
}

func NewSubmitter(uploader Uploader) *Submitter {
	return &Submitter{uploader: uploader}
}

// Submit returns the command that snapshots the file and uploads it. A nil
// file fails at once with ErrNoFileSelected and never reaches the network.
func (s *Submitter) Submit(generation int, file *File, mapping model.ColumnMapping, hasHeaders bool) (tea.Cmd, error) {
	if file == nil {
		return nil, model.NewError(model.ErrNoFileSelected, model.MessageNoFileSelected, nil)
	}
	if mapping.ByIndex == hasHeaders {
		return nil, fmt.Errorf("column %s does not match has_headers=%t", mapping, hasHeaders)
	}

	uploader := s.uploader
	f := *file
	return func() tea.Msg {
		taskID, err := upload(uploader, f, mapping, hasHeaders)
		return submitResultMsg{generation: generation, taskID: taskID, err: err}
	}, nil
}

func upload(uploader Uploader, file File, mapping model.ColumnMapping, hasHeaders bool) (string, error) {
	content, err := os.ReadFile(file.Path)
	if err != nil {
		return "", model.NewError(model.ErrNoFileSelected, "Cannot read selected file: "+file.Name, err)
	}
	req, err := model.NewUploadRequest(file.Name, content, mapping, hasHeaders)
	if err != nil {
		return "", err
	}
	return uploader.Upload(context.Background(), req)
}
