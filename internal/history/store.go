package history

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailcheck/internal/model"
)

const defaultDBFile = "history.db"

var ErrNotFound = errors.New("task not found in history")

type Store struct {
	db *gorm.DB
}

// DefaultURL points at a sqlite file next to the settings file.
func DefaultURL() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config directory: %w", err)
	}
	return "sqlite://" + filepath.Join(dir, "mailcheck", defaultDBFile), nil
}

// Open connects to databaseURL (sqlite://path or postgres://...) and
// migrates the schema. An empty URL uses DefaultURL.
func Open(databaseURL string, debug bool) (*Store, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		def, err := DefaultURL()
		if err != nil {
			return nil, err
		}
		databaseURL = def
	}

	var dialector gorm.Dialector
	isSQLite := false
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite database URL has no path: %s", databaseURL)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dialector = sqlite.Open(path)
		isSQLite = true
	case strings.HasPrefix(databaseURL, "postgresql://"), strings.HasPrefix(databaseURL, "postgres://"):
		dialector = postgres.Open(databaseURL)
	default:
		return nil, fmt.Errorf("unsupported database URL format: %s", databaseURL)
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	// Route through the std logger so the TUI's log redirection applies.
	gormLogger := logger.New(log.New(log.Writer(), "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if isSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(getEnvInt("DB_MAX_OPEN_CONNS", 5))
		sqlDB.SetMaxIdleConns(getEnvInt("DB_MAX_IDLE_CONNS", 2))
		sqlDB.SetConnMaxLifetime(getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute))
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := db.AutoMigrate(&TaskRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (s *Store) Save(rec TaskRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("history record requires a task id")
	}
	if err := s.db.Save(&rec).Error; err != nil {
		return fmt.Errorf("save task %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateStatus stores the latest known state of a task. Unknown ids are
// ignored so that one-shot status queries for foreign tasks still work.
func (s *Store) UpdateStatus(task model.Task) error {
	res := s.db.Model(&TaskRecord{}).Where("id = ?", task.ID).Updates(map[string]any{
		"status":   string(task.Status),
		"progress": task.Progress,
		"error":    task.ErrorDetail,
	})
	if res.Error != nil {
		return fmt.Errorf("update task %s: %w", task.ID, res.Error)
	}
	return nil
}

func (s *Store) Get(id string) (TaskRecord, error) {
	var rec TaskRecord
	err := s.db.Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TaskRecord{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return TaskRecord{}, fmt.Errorf("load task %s: %w", id, err)
	}
	return rec, nil
}

// List returns the newest records first. limit <= 0 means no limit.
func (s *Store) List(limit int) ([]TaskRecord, error) {
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []TaskRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return out, nil
}

// Recorder ties history writes to one client session against one server.
type Recorder struct {
	store     *Store
	sessionID string
	serverURL string
}

func (s *Store) Recorder(serverURL string) *Recorder {
	return &Recorder{store: s, sessionID: uuid.NewString(), serverURL: serverURL}
}

func (r *Recorder) SessionID() string { return r.sessionID }

func (r *Recorder) RecordSubmitted(task model.Task, fileName string, column model.ColumnMapping, hasHeaders bool) error {
	return r.store.Save(TaskRecord{
		ID:          task.ID,
		SessionID:   r.sessionID,
		ServerURL:   r.serverURL,
		FileName:    fileName,
		EmailColumn: column.FormValue(),
		HasHeaders:  hasHeaders,
		Status:      string(task.Status),
		Progress:    task.Progress,
		Error:       task.ErrorDetail,
	})
}

func (r *Recorder) RecordOutcome(task model.Task) error {
	return r.store.UpdateStatus(task)
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}
