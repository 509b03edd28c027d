// Package scheduler runs recurring syncs and migration runs on cron
// schedules persisted in the database.
package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/services/sync"
)

// SyncRunner is the slice of the sync service the scheduler calls.
type SyncRunner interface {
	Run(syncID, tenantID string, filter sync.Filter) (int, error)
}

// MigrationRunner starts migration jobs for a task.
type MigrationRunner interface {
	Execute(jobID string) error
}

// Service manages scheduled jobs and their cron entries.
type Service struct {
	db        *gorm.DB
	cron      *cron.Cron
	jobs      map[string]cron.EntryID // job id -> cron entry id
	jobsMu    gosync.RWMutex
	syncs     SyncRunner
	migration MigrationRunner
}

// NewService creates a scheduler service.
func NewService(db *gorm.DB, syncs SyncRunner, migration MigrationRunner) *Service {
	return &Service{
		db:        db,
		cron:      cron.New(cron.WithSeconds()),
		jobs:      make(map[string]cron.EntryID),
		syncs:     syncs,
		migration: migration,
	}
}

// Start launches the cron runner and schedules all enabled jobs.
func (s *Service) Start() error {
	if err := s.db.AutoMigrate(&ScheduledJob{}); err != nil {
		return fmt.Errorf("failed to migrate scheduled_jobs table: %w", err)
	}

	s.cron.Start()

	var jobs []ScheduledJob
	if err := s.db.Where("enabled = ?", true).Find(&jobs).Error; err != nil {
		return fmt.Errorf("failed to load scheduled jobs: %w", err)
	}

	for i := range jobs {
		if err := s.scheduleJob(&jobs[i]); err != nil {
			log.Warn("failed to schedule job", "name", jobs[i].Name, "error", err)
		} else {
			log.Info("scheduled job", "name", jobs[i].Name, "cron", jobs[i].Cron)
		}
	}

	log.Info("scheduler started", "jobs", len(jobs))
	return nil
}

// Stop drains the cron runner.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		log.Info("scheduler stopped")
	}
}

// ListJobs retrieves all scheduled jobs.
func (s *Service) ListJobs() ([]JobListResponse, error) {
	var jobs []ScheduledJob
	if err := s.db.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	responses := make([]JobListResponse, len(jobs))
	for i := range jobs {
		responses[i] = toJobListResponse(&jobs[i])
	}
	return responses, nil
}

// UpsertJob creates or updates a scheduled job keyed by name.
func (s *Service) UpsertJob(req UpsertJobRequest) (string, error) {
	if req.Name == "" || req.JobType == "" || req.Cron == "" {
		return "", fmt.Errorf("name, job_type, and cron are required")
	}
	if req.JobType != JobTypeSync && req.JobType != JobTypeMigration {
		return "", fmt.Errorf("unknown job type %q", req.JobType)
	}

	normalizedCron, err := normalizeCron(req.Cron)
	if err != nil {
		return "", err
	}
	req.Cron = normalizedCron

	var job ScheduledJob
	result := s.db.Where("name = ?", req.Name).First(&job)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			return "", fmt.Errorf("failed to query job: %w", result.Error)
		}
		job = ScheduledJob{ID: uuid.New().String(), Name: req.Name}
	}

	job.JobType = req.JobType
	job.Cron = req.Cron
	job.Timezone = req.Timezone
	if job.Timezone == "" {
		job.Timezone = "UTC"
	}
	job.Enabled = req.Enabled

	payloadStr := ""
	if req.Payload != nil {
		if str, ok := req.Payload.(string); ok {
			payloadStr = str
		} else {
			data, err := json.Marshal(req.Payload)
			if err != nil {
				return "", fmt.Errorf("failed to marshal payload: %w", err)
			}
			payloadStr = string(data)
		}
	}
	job.Payload = payloadStr

	schedule, err := cronParser().Parse(job.Cron)
	if err != nil {
		return "", fmt.Errorf("failed to parse cron for next run: %w", err)
	}
	nextRun := schedule.Next(time.Now())
	job.NextRunAt = &nextRun

	if result.Error == gorm.ErrRecordNotFound {
		if err := s.db.Create(&job).Error; err != nil {
			return "", fmt.Errorf("failed to create job: %w", err)
		}
	} else {
		if err := s.db.Save(&job).Error; err != nil {
			return "", fmt.Errorf("failed to update job: %w", err)
		}
	}

	if err := s.rescheduleJob(job.ID); err != nil {
		return "", fmt.Errorf("failed to reschedule job: %w", err)
	}
	return job.ID, nil
}

// DeleteJob removes a scheduled job.
func (s *Service) DeleteJob(jobID string) error {
	s.jobsMu.Lock()
	if entryID, exists := s.jobs[jobID]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, jobID)
	}
	s.jobsMu.Unlock()

	if err := s.db.Delete(&ScheduledJob{}, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (s *Service) scheduleJob(job *ScheduledJob) error {
	if !job.Enabled {
		return nil
	}

	s.jobsMu.Lock()
	if entryID, exists := s.jobs[job.ID]; exists {
		s.cron.Remove(entryID)
	}
	s.jobsMu.Unlock()

	jobID := job.ID
	entryID, err := s.cron.AddFunc(job.Cron, func() {
		s.executeJob(jobID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = entryID
	s.jobsMu.Unlock()
	return nil
}

func (s *Service) rescheduleJob(jobID string) error {
	var job ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			s.jobsMu.Lock()
			if entryID, exists := s.jobs[jobID]; exists {
				s.cron.Remove(entryID)
				delete(s.jobs, jobID)
			}
			s.jobsMu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to load job: %w", err)
	}
	return s.scheduleJob(&job)
}

func (s *Service) executeJob(jobID string) {
	log.Info("executing scheduled job", "job", jobID)

	var job ScheduledJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		log.Error("failed to load scheduled job", "job", jobID, "error", err)
		return
	}

	now := time.Now()
	job.LastRunAt = &now
	if schedule, err := cronParser().Parse(job.Cron); err != nil {
		log.Warn("failed to parse cron for next run", "job", jobID, "error", err)
	} else {
		nextRun := schedule.Next(now)
		job.NextRunAt = &nextRun
	}
	if err := s.db.Save(&job).Error; err != nil {
		log.Warn("failed to update job run times", "job", jobID, "error", err)
	}

	switch job.JobType {
	case JobTypeSync:
		s.runSyncJob(job.Payload)
	case JobTypeMigration:
		s.runMigrationJob(job.Payload)
	default:
		log.Warn("unknown scheduled job type", "type", job.JobType)
	}

	log.Info("completed scheduled job", "job", jobID)
}

// runSyncJob refreshes a tenant's mirror. Scheduled syncs run without a
// progress record; nothing polls them.
func (s *Service) runSyncJob(payloadJSON string) {
	var payload SyncJobPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		log.Error("failed to parse sync job payload", "error", err)
		return
	}
	if payload.TenantID == "" {
		log.Error("sync job payload has no tenant_id")
		return
	}

	filter := sync.FullFilter()
	if len(payload.Components) > 0 {
		filter = make(sync.Filter, len(payload.Components))
		for _, c := range payload.Components {
			filter[models.Component(c)] = &sync.Selection{}
		}
	}

	if _, err := s.syncs.Run("", payload.TenantID, filter); err != nil {
		log.Error("scheduled sync failed", "tenant", payload.TenantID, "error", err)
	}
}

// runMigrationJob creates a fresh migration job for the task and executes it.
func (s *Service) runMigrationJob(payloadJSON string) {
	var payload MigrationJobPayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		log.Error("failed to parse migration job payload", "error", err)
		return
	}
	if payload.TaskID == "" {
		log.Error("migration job payload has no task_id")
		return
	}

	job := models.MigrationJob{TaskID: payload.TaskID}
	if err := s.db.Create(&job).Error; err != nil {
		log.Error("failed to create migration job", "task", payload.TaskID, "error", err)
		return
	}
	if err := s.migration.Execute(job.ID); err != nil {
		log.Error("scheduled migration failed", "task", payload.TaskID, "error", err)
	}
}

func toJobListResponse(job *ScheduledJob) JobListResponse {
	resp := JobListResponse{
		ID:        job.ID,
		Name:      job.Name,
		JobType:   job.JobType,
		Cron:      job.Cron,
		Timezone:  job.Timezone,
		Enabled:   job.Enabled,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.LastRunAt != nil {
		v := job.LastRunAt.Format(time.RFC3339)
		resp.LastRunAt = &v
	}
	if job.NextRunAt != nil {
		v := job.NextRunAt.Format(time.RFC3339)
		resp.NextRun = &v
	}
	return resp
}

func cronParser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// normalizeCron converts a 5-field cron expression to the 6-field format the
// runner uses by prepending a seconds field. 6-field input passes through.
func normalizeCron(cronExpr string) (string, error) {
	cronExpr = strings.TrimSpace(cronExpr)

	fields := strings.Fields(cronExpr)
	switch len(fields) {
	case 5:
		cronExpr = "0 " + cronExpr
	case 6:
	default:
		if !strings.HasPrefix(cronExpr, "@") {
			return "", fmt.Errorf("cron expression must have 5 or 6 fields, got %d", len(fields))
		}
	}

	if _, err := cronParser().Parse(cronExpr); err != nil {
		return "", fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return cronExpr, nil
}
