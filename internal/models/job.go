package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Job statuses.
const (
	JobStatusPending          = "Pending start"
	JobStatusRunning          = "Running"
	JobStatusFinished         = "Finished"
	JobStatusFinishedWarnings = "Finished with Warnings"
	JobStatusFinishedErrors   = "Finished with Errors"
	JobStatusFailed           = "Failed"
)

// Finding severity scale (ordinal).
const (
	SeverityNeutral  = 0
	SeverityNegative = 1
	SeverityCritical = 2
	SeverityPositive = 3
	SeverityNew      = 4
)

// Finding types.
const (
	FindingError      = "Error"
	FindingWarning    = "Warning"
	FindingInfo       = "Info"
	FindingLimitation = "Limitation"
)

// maxFindingText bounds the free-text column.
const maxFindingText = 4000

// MigrationJob is one execution attempt of a task. Jobs are never re-run; a
// new job is created for each attempt.
type MigrationJob struct {
	ID        string     `gorm:"primaryKey" json:"id"`
	TaskID    string     `gorm:"index;not null;column:task_id" json:"task_id"`
	Status    string     `gorm:"not null" json:"status"`
	Severity  int        `gorm:"default:0" json:"severity"`
	Log       string     `gorm:"type:text" json:"log"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (j *MigrationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	return nil
}

func (MigrationJob) TableName() string {
	return "migration_jobs"
}

// Finding is an append-only record attached to a tenant (sync-time) or a job
// (run-time). Sync findings for a category are cleared and regenerated each
// time that category is re-synced, scoped to the same key filter as the sync.
type Finding struct {
	ObjectID  uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID  string    `gorm:"index;column:tenant_id" json:"tenant_id"` // set for sync findings
	JobID     string    `gorm:"index;column:job_id" json:"job_id"`       // set for run-time findings
	Type      string    `gorm:"not null" json:"type"`                    // Error, Warning, Info, Limitation
	Component Component `gorm:"not null" json:"component"`
	ItemName  string    `gorm:"column:item_name" json:"item_name"`
	Text      string    `gorm:"type:text" json:"text"`
	DeepLink  string    `gorm:"column:deep_link" json:"deep_link,omitempty"`
	Severity  int       `gorm:"default:0" json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

func (f *Finding) BeforeCreate(tx *gorm.DB) error {
	if len(f.Text) > maxFindingText {
		f.Text = f.Text[:maxFindingText-3] + "..."
	}
	return nil
}

func (Finding) TableName() string {
	return "findings"
}

// AppendLog adds one timestamped, indent-leveled line to the job log.
func (j *MigrationJob) AppendLog(indent int, format string, args ...interface{}) {
	line := fmt.Sprintf("%s %s%s\n",
		time.Now().Format("15:04:05"),
		strings.Repeat("  ", indent),
		fmt.Sprintf(format, args...))
	j.Log += line
}
