package lifecycle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcheck/internal/model"
)

func TestSubmitWithoutFileMakesNoCall(t *testing.T) {
	b := &fakeBackend{taskID: "t1"}
	cmd, err := NewSubmitter(b).Submit(1, nil, model.HeaderColumn("email"), true)

	assert.Nil(t, cmd)
	assert.Equal(t, model.ErrNoFileSelected, model.KindOf(err))
	assert.Equal(t, "Please select a CSV file first", model.UserMessage(err))
	assert.Equal(t, 0, b.uploadCount())
}

func TestSubmitRejectsMismatchedMapping(t *testing.T) {
	file := NewFile(writeCSV(t, "people.csv", "email\n"))
	_, err := NewSubmitter(&fakeBackend{}).Submit(1, file, model.IndexColumn(0), true)
	assert.Error(t, err)
}

func TestSubmitUploadsSnapshot(t *testing.T) {
	b := &fakeBackend{taskID: "t9"}
	file := NewFile(writeCSV(t, "people.csv", "email\nann@x.io\n"))

	cmd, err := NewSubmitter(b).Submit(4, file, model.HeaderColumn("email"), true)
	require.NoError(t, err)
	require.NotNil(t, cmd)

	msg, ok := cmd().(submitResultMsg)
	require.True(t, ok)
	assert.Equal(t, submitResultMsg{generation: 4, taskID: "t9"}, msg)
	require.Equal(t, 1, b.uploadCount())
	assert.Equal(t, "email\nann@x.io\n", string(b.uploads[0].Content()))
}

func TestSubmitUnreadableFile(t *testing.T) {
	b := &fakeBackend{taskID: "t9"}
	file := NewFile(filepath.Join(t.TempDir(), "gone.csv"))

	cmd, err := NewSubmitter(b).Submit(1, file, model.HeaderColumn("email"), true)
	require.NoError(t, err)

	msg := cmd().(submitResultMsg)
	assert.Equal(t, model.ErrNoFileSelected, model.KindOf(msg.err))
	assert.Equal(t, "Cannot read selected file: gone.csv", model.UserMessage(msg.err))
	assert.Equal(t, 0, b.uploadCount())
}
