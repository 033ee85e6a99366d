package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcheck/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite://"+filepath.Join(t.TempDir(), "db", "history.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open("mysql://root@localhost/db", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database URL")

	_, err = Open("sqlite://", false)
	assert.Error(t, err)
}

func TestRecorderWritesSubmissionAndOutcome(t *testing.T) {
	store := openTestStore(t)
	rec := store.Recorder("http://localhost:5000")
	assert.NotEmpty(t, rec.SessionID())

	task := model.NewTask("t1")
	require.NoError(t, rec.RecordSubmitted(*task, "people.csv", model.HeaderColumn("email"), true))

	got, err := store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "people.csv", got.FileName)
	assert.Equal(t, "email", got.EmailColumn)
	assert.True(t, got.HasHeaders)
	assert.Equal(t, "queued", got.Status)
	assert.Equal(t, rec.SessionID(), got.SessionID)
	assert.Equal(t, "http://localhost:5000", got.ServerURL)

	require.NoError(t, rec.RecordOutcome(model.Task{ID: "t1", Status: model.StatusFailed, Progress: 30, ErrorDetail: "bad row 12"}))
	got, err = store.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, float64(30), got.Progress)
	assert.Equal(t, "bad row 12", got.Error)
}

func TestUpdateStatusIgnoresUnknownTask(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.UpdateStatus(model.Task{ID: "nope", Status: model.StatusRunning}))

	_, err := store.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(TaskRecord{
			ID:        id,
			FileName:  id + ".csv",
			Status:    "completed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	require.NoError(t, store.Ping())
}

func TestSaveRequiresID(t *testing.T) {
	assert.Error(t, openTestStore(t).Save(TaskRecord{FileName: "x.csv"}))
}
