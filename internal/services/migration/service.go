// Package migration executes migration jobs: scoped transfers of content from
// a source tenant to a target tenant across all content categories. A job runs
// strictly sequentially, one category and one item at a time, because the
// remote side has ordering dependencies between writes.
package migration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/hooks"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// Connector is the remote surface the orchestrator needs from a tenant
// connection. *api.Connector implements it; tests substitute fakes.
type Connector interface {
	Get(path string) ([]byte, error)
	GetJSON(path string, out interface{}) error
	GetBinary(path string) ([]byte, error)
	Post(path string, payload interface{}) (*api.Response, error)
	Put(path string, payload interface{}) (*api.Response, error)
	Delete(path string) (*api.Response, error)
	PostCertificate(path string, pem []byte) (*api.Response, error)
	PostMultipart(path, boundary string, body []byte) (*api.Response, error)
	PlatformGet(path string) ([]byte, error)
	PlatformPost(path string, payload interface{}) (*api.Response, error)
	PlatformDelete(path string) (*api.Response, error)
}

// Service runs migration jobs.
type Service struct {
	db             *gorm.DB
	cfg            *config.Config
	customizations hooks.Set

	// newConnector is swappable for tests.
	newConnector func(tenant *models.Tenant) Connector
}

// NewService creates a migration service. A nil hook set installs no-ops.
func NewService(db *gorm.DB, cfg *config.Config, customizations hooks.Set) *Service {
	if customizations == nil {
		customizations = hooks.NoOp{}
	}
	return &Service{
		db:             db,
		cfg:            cfg,
		customizations: customizations,
		newConnector:   func(tenant *models.Tenant) Connector { return api.NewConnector(tenant) },
	}
}

// Start launches job execution in the background.
func (s *Service) Start(jobID string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("job execution panicked", "job", jobID, "panic", r)
			}
		}()
		if err := s.Execute(jobID); err != nil {
			log.Error("job execution failed", "job", jobID, "error", err)
		}
	}()
}

// run bundles the per-job state threaded through the category routines.
type run struct {
	s      *Service
	job    *models.MigrationJob
	task   *models.MigrationTask
	source Connector
	target Connector

	sourceTenant *models.Tenant
	targetTenant *models.Tenant

	nodes map[models.Component][]models.TaskNode
}

// Execute runs one job to completion. The final status is derived strictly
// from the findings recorded during the run, never from intermediate booleans.
func (s *Service) Execute(jobID string) error {
	var job models.MigrationJob
	if err := s.db.First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("job not found: %w", err)
	}
	if job.Status != models.JobStatusPending {
		return fmt.Errorf("job %s is %s, only pending jobs can be started", jobID, job.Status)
	}

	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	if err := s.db.Save(&job).Error; err != nil {
		return err
	}

	r, err := s.prepare(&job)
	if err != nil {
		// Scope resolution failures are fatal to the whole job.
		job.AppendLog(0, "CRITICAL: %v", err)
		s.finish(&job, models.JobStatusFailed, models.SeverityCritical)
		return err
	}

	r.log(0, "Migrating content from %s to %s", r.sourceTenant.Name, r.targetTenant.Name)

	runErr := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("unexpected failure during content migration: %v", p)
			}
		}()
		r.migrateContent()
		return nil
	}()

	if runErr != nil {
		r.log(0, "CRITICAL: %v", runErr)
		r.finding(models.FindingError, models.ComponentPackage, "", runErr.Error(), models.SeverityCritical)
		s.finish(&job, models.JobStatusFailed, models.SeverityCritical)
		return runErr
	}

	status, severity := s.deriveOutcome(job.ID)
	r.log(0, "Migration %s", status)
	s.finish(&job, status, severity)
	return nil
}

// prepare resolves the job's task, tenants and included nodes, and opens the
// two connectors. Any failure here is fatal.
func (s *Service) prepare(job *models.MigrationJob) (*run, error) {
	var task models.MigrationTask
	if err := s.db.First(&task, "id = ?", job.TaskID).Error; err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	if task.TargetTenantID == "" {
		return nil, fmt.Errorf("task %s has no target tenant", task.Name)
	}

	var source, target models.Tenant
	if err := s.db.First(&source, "id = ?", task.SourceTenantID).Error; err != nil {
		return nil, fmt.Errorf("source tenant not found: %w", err)
	}
	if err := s.db.First(&target, "id = ?", task.TargetTenantID).Error; err != nil {
		return nil, fmt.Errorf("target tenant not found: %w", err)
	}
	if err := source.RequiredFieldsPresent(); err != nil {
		return nil, fmt.Errorf("source tenant %s: %w", source.Name, err)
	}
	if err := target.RequiredFieldsPresent(); err != nil {
		return nil, fmt.Errorf("target tenant %s: %w", target.Name, err)
	}

	var included []models.TaskNode
	if err := s.db.Where("task_id = ? AND included = ?", task.ID, true).Find(&included).Error; err != nil {
		return nil, err
	}
	if len(included) == 0 {
		return nil, fmt.Errorf("task %s has no included items", task.Name)
	}

	nodes := make(map[models.Component][]models.TaskNode)
	for _, n := range included {
		nodes[n.Component] = append(nodes[n.Component], n)
	}

	return &run{
		s:            s,
		job:          job,
		task:         &task,
		source:       s.newConnector(&source),
		target:       s.newConnector(&target),
		sourceTenant: &source,
		targetTenant: &target,
		nodes:        nodes,
	}, nil
}

// migrateContent runs every category routine in the fixed order the remote
// side requires. Item failures are recorded as findings and never stop the
// remaining categories.
func (r *run) migrateContent() {
	r.migrateVariables()
	r.migrateDataStores()
	r.migratePackages()
	r.migrateValueMappings()
	r.migrateNumberRanges()
	r.migrateTagConfigurations()
	r.migrateCredentials()
	r.migrateKeystoreEntries()
	r.migrateOAuthCredentials()
	r.migrateCertUserMappings()
	r.migrateAccessPolicies()
	r.checkJMSCapacity()
}

// deriveOutcome maps recorded findings to a final job status.
func (s *Service) deriveOutcome(jobID string) (string, int) {
	var errorCount, warningCount int64
	s.db.Model(&models.Finding{}).Where("job_id = ? AND type = ?", jobID, models.FindingError).Count(&errorCount)
	s.db.Model(&models.Finding{}).Where("job_id = ? AND type = ?", jobID, models.FindingWarning).Count(&warningCount)

	switch {
	case errorCount > 0:
		return models.JobStatusFinishedErrors, models.SeverityCritical
	case warningCount > 0:
		return models.JobStatusFinishedWarnings, models.SeverityNegative
	default:
		return models.JobStatusFinished, models.SeverityPositive
	}
}

func (s *Service) finish(job *models.MigrationJob, status string, severity int) {
	now := time.Now()
	job.Status = status
	job.Severity = severity
	job.EndedAt = &now
	if err := s.db.Save(job).Error; err != nil {
		log.Error("failed to persist job completion", "job", job.ID, "error", err)
	}
}

// log appends one line to the job log and persists it, so forensic reads see
// progress while the job is still running.
func (r *run) log(indent int, format string, args ...interface{}) {
	r.job.AppendLog(indent, format, args...)
	if err := r.s.db.Model(&models.MigrationJob{}).Where("id = ?", r.job.ID).
		Update("log", r.job.Log).Error; err != nil {
		log.Error("failed to persist job log", "job", r.job.ID, "error", err)
	}
}

// finding records one run-time finding for this job.
func (r *run) finding(ftype string, component models.Component, item, text string, severity int) {
	f := models.Finding{
		JobID:     r.job.ID,
		Type:      ftype,
		Component: component,
		ItemName:  item,
		Text:      text,
		Severity:  severity,
	}
	if err := r.s.db.Create(&f).Error; err != nil {
		log.Error("failed to persist finding", "job", r.job.ID, "error", err)
	}
}

// missingContent records the distinct error class for items that are in scope
// but absent from the live source tenant at execution time.
func (r *run) missingContent(component models.Component, item string) {
	r.log(2, "ERROR: %s %s is in scope but no longer exists in the source tenant", component.DisplayName(), item)
	r.finding(models.FindingError, component, item,
		fmt.Sprintf("Missing content: %s %s was selected for migration but does not exist in the source tenant", component.DisplayName(), item),
		models.SeverityNegative)
}

// classify maps a write response through the per-call rules, recording
// findings for the non-success outcomes. It returns true when the item counts
// as migrated.
func (r *run) classify(resp *api.Response, rules api.Rules, component models.Component, item, action string) bool {
	switch rules.Classify(resp.StatusCode) {
	case api.OutcomeSuccess:
		return true
	case api.OutcomeIgnore:
		r.log(2, "%s %s: HTTP %d ignored during %s", component.DisplayName(), item, resp.StatusCode, action)
		return true
	case api.OutcomeWarning:
		r.log(2, "WARNING: %s %s: HTTP %d during %s", component.DisplayName(), item, resp.StatusCode, action)
		r.finding(models.FindingWarning, component, item,
			fmt.Sprintf("%s returned HTTP %d: %s", action, resp.StatusCode, truncate(string(resp.Body), 500)),
			models.SeverityNegative)
		return false
	default:
		r.log(2, "ERROR: %s %s: HTTP %d during %s", component.DisplayName(), item, resp.StatusCode, action)
		r.finding(models.FindingError, component, item,
			fmt.Sprintf("%s returned HTTP %d: %s", action, resp.StatusCode, truncate(string(resp.Body), 500)),
			models.SeverityNegative)
		return false
	}
}

// itemError records an item-level failure finding. The routine moves on to the
// next item.
func (r *run) itemError(component models.Component, item string, err error) {
	r.log(2, "ERROR: %s %s: %v", component.DisplayName(), item, err)
	r.finding(models.FindingError, component, item, err.Error(), models.SeverityNegative)
}

// tally writes the per-category success count to the job log.
func (r *run) tally(component models.Component, success, total int) {
	r.log(1, "%d/%d %ss migrated", success, total, component.DisplayName())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func unmarshal(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse remote response: %w", err)
	}
	return nil
}
