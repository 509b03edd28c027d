package scheduler

import "time"

// Job types the scheduler can execute.
const (
	JobTypeSync      = "sync"
	JobTypeMigration = "migration"
)

// ScheduledJob is a cron-based recurring job.
type ScheduledJob struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"unique;not null"`
	JobType   string     `json:"job_type" gorm:"not null"` // "sync" or "migration"
	Cron      string     `json:"cron" gorm:"not null"`
	Timezone  string     `json:"timezone" gorm:"default:UTC"`
	Payload   string     `json:"payload" gorm:"type:text"` // JSON payload string
	Enabled   bool       `json:"enabled" gorm:"default:true"`
	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}

// JobListResponse represents a scheduled job in list responses.
type JobListResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	JobType   string  `json:"job_type"`
	Cron      string  `json:"cron"`
	Timezone  string  `json:"timezone"`
	Enabled   bool    `json:"enabled"`
	LastRunAt *string `json:"last_run_at"` // ISO 8601 format
	NextRun   *string `json:"next_run"`    // ISO 8601 format
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// UpsertJobRequest creates or updates a scheduled job.
type UpsertJobRequest struct {
	Name     string      `json:"name"`
	JobType  string      `json:"job_type"`
	Cron     string      `json:"cron"`
	Timezone string      `json:"timezone"`
	Enabled  bool        `json:"enabled"`
	Payload  interface{} `json:"payload"` // Can be map or string
}

// SyncJobPayload configures a recurring tenant sync. An empty Components list
// syncs every category.
type SyncJobPayload struct {
	TenantID   string   `json:"tenant_id"`
	Components []string `json:"components"`
}

// MigrationJobPayload configures a recurring migration run for one task.
type MigrationJobPayload struct {
	TaskID string `json:"task_id"`
}
