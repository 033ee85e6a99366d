package history

import "time"

// TaskRecord is one submitted validation task as seen by this client.
type TaskRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"` // backend task id
	SessionID   string    `gorm:"index;column:session_id" json:"session_id"`
	ServerURL   string    `gorm:"column:server_url" json:"server_url"`
	FileName    string    `gorm:"not null;column:file_name" json:"file_name"`
	EmailColumn string    `gorm:"column:email_column" json:"email_column"`
	HasHeaders  bool      `gorm:"column:has_headers" json:"has_headers"`
	Status      string    `gorm:"not null;default:queued" json:"status"`
	Progress    float64   `gorm:"not null;default:0" json:"progress"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (TaskRecord) TableName() string {
	return "task_history"
}
