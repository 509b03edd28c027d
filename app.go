package main

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/crypto"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/database"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/hooks"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/services/migration"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/services/scheduler"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/services/scope"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/services/sync"
)

// App wires the services together and is the surface callers talk to.
type App struct {
	cfg *config.Config
	db  *gorm.DB

	syncService      *sync.Service
	scopeService     *scope.Service
	migrationService *migration.Service
	schedulerService *scheduler.Service
}

// NewApp creates the application shell. Services come up in startup.
func NewApp(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// startup initializes encryption, the database and all services.
func (a *App) startup() error {
	// Without encryption no tenant secrets can be stored, nothing else works.
	if err := crypto.InitEncryption(); err != nil {
		return fmt.Errorf("encryption initialization failed: %w", err)
	}

	db, err := database.Init(a.cfg)
	if err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	a.db = db

	a.syncService = sync.NewService(db, a.cfg, hooks.NoOp{})
	a.scopeService = scope.NewService(db)
	a.migrationService = migration.NewService(db, a.cfg, hooks.NoOp{})

	a.schedulerService = scheduler.NewService(db, a.syncService, a.migrationService)
	if err := a.schedulerService.Start(); err != nil {
		log.Warn("failed to start scheduler", "error", err)
	}

	log.Info("startup complete")
	return nil
}

// shutdown stops the scheduler and closes the database.
func (a *App) shutdown() {
	if a.schedulerService != nil {
		a.schedulerService.Stop()
	}
	if err := database.Close(); err != nil {
		log.Error("error closing database", "error", err)
	}
	log.Info("shutdown complete")
}

// ---- Tenants ----

// TenantRequest carries tenant fields with plaintext secrets. Secrets are
// encrypted before they touch the database and are never read back out.
type TenantRequest struct {
	Name     string `json:"name"`
	Platform string `json:"platform"`
	Host     string `json:"host"`

	NeoUsername string `json:"neo_username"`
	NeoPassword string `json:"neo_password"`

	OauthClientID        string `json:"oauth_client_id"`
	OauthSecret          string `json:"oauth_secret"`
	OauthTokenHost       string `json:"oauth_token_host"`
	PlatformHost         string `json:"platform_host"`
	PlatformClientID     string `json:"platform_client_id"`
	PlatformSecret       string `json:"platform_secret"`
	PlatformTokenHost    string `json:"platform_token_host"`
	PlatformSubaccountID string `json:"platform_subaccount_id"`

	ReadOnly bool `json:"read_only"`
}

func (a *App) ListTenants() ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := a.db.Order("name").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return tenants, nil
}

func (a *App) GetTenant(tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := a.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return nil, fmt.Errorf("tenant not found: %w", err)
	}
	return &tenant, nil
}

func (a *App) CreateTenant(req TenantRequest) (string, error) {
	tenant := models.Tenant{}
	if err := applyTenantRequest(&tenant, req); err != nil {
		return "", err
	}
	if err := a.db.Create(&tenant).Error; err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant.ID, nil
}

// UpdateTenant overwrites a tenant's fields. Empty secret fields keep the
// stored value, so callers don't have to re-enter secrets on every edit.
func (a *App) UpdateTenant(tenantID string, req TenantRequest) error {
	var tenant models.Tenant
	if err := a.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return fmt.Errorf("tenant not found: %w", err)
	}
	if err := applyTenantRequest(&tenant, req); err != nil {
		return err
	}
	if err := a.db.Save(&tenant).Error; err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

// DeleteTenant removes a tenant and its mirrored content. Deletion is blocked
// while a task uses the tenant as its source; tasks targeting it only lose
// the reference.
func (a *App) DeleteTenant(tenantID string) error {
	var sourceCount int64
	if err := a.db.Model(&models.MigrationTask{}).
		Where("source_tenant_id = ?", tenantID).Count(&sourceCount).Error; err != nil {
		return err
	}
	if sourceCount > 0 {
		return fmt.Errorf("tenant is the source of %d migration task(s), delete those first", sourceCount)
	}

	return a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MigrationTask{}).
			Where("target_tenant_id = ?", tenantID).
			Update("target_tenant_id", "").Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&models.ContentPackage{}, &models.ContentFlow{}, &models.ContentValueMapping{},
			&models.ContentKeystoreEntry{}, &models.ContentCredential{}, &models.ContentOAuthCredential{},
			&models.ContentNumberRange{}, &models.ContentAccessPolicy{}, &models.ContentCustomTag{},
			&models.ContentTagConfiguration{}, &models.ContentJMSBroker{}, &models.ContentVariable{},
			&models.ContentDataStore{}, &models.ContentCertUserMapping{}, &models.Finding{},
		} {
			if err := tx.Where("tenant_id = ?", tenantID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Tenant{}, "id = ?", tenantID).Error
	})
}

// TestTenantConnection verifies the tenant profile against the live platform.
// The read-only guard is bypassed because the test performs no writes.
func (a *App) TestTenantConnection(tenantID string) error {
	tenant, err := a.GetTenant(tenantID)
	if err != nil {
		return err
	}
	conn := api.NewConnector(tenant)
	conn.AllowReadOnlyWrites = true
	return conn.TestConnection()
}

func applyTenantRequest(tenant *models.Tenant, req TenantRequest) error {
	if req.Name == "" || req.Platform == "" || req.Host == "" {
		return fmt.Errorf("name, platform and host are required")
	}
	tenant.Name = req.Name
	tenant.Platform = req.Platform
	tenant.Host = req.Host
	tenant.NeoUsername = req.NeoUsername
	tenant.OauthClientID = req.OauthClientID
	tenant.OauthTokenHost = req.OauthTokenHost
	tenant.PlatformHost = req.PlatformHost
	tenant.PlatformClientID = req.PlatformClientID
	tenant.PlatformTokenHost = req.PlatformTokenHost
	tenant.PlatformSubaccountID = req.PlatformSubaccountID
	tenant.ReadOnly = req.ReadOnly

	for _, secret := range []struct {
		plain string
		dest  *string
	}{
		{req.NeoPassword, &tenant.NeoPasswordEnc},
		{req.OauthSecret, &tenant.OauthSecretEnc},
		{req.PlatformSecret, &tenant.PlatformSecretEnc},
	} {
		if secret.plain == "" {
			continue
		}
		enc, err := crypto.EncryptSecret(secret.plain)
		if err != nil {
			return fmt.Errorf("failed to encrypt secret: %w", err)
		}
		*secret.dest = enc
	}
	return nil
}

// ---- Sync ----

// StartSync launches a content sync for a tenant. A nil filter syncs every
// category. The returned id keys the progress registry.
func (a *App) StartSync(tenantID string, filter sync.Filter) (string, error) {
	if filter == nil {
		filter = sync.FullFilter()
	}
	return a.syncService.Start(tenantID, filter)
}

func (a *App) GetSyncStatus(syncID string) (*sync.Status, error) {
	status, ok := a.syncService.Status(syncID)
	if !ok {
		return nil, fmt.Errorf("unknown sync id %s", syncID)
	}
	return status, nil
}

// GetTenantFindings returns the sync findings recorded for a tenant.
func (a *App) GetTenantFindings(tenantID string) ([]models.Finding, error) {
	var findings []models.Finding
	if err := a.db.Where("tenant_id = ?", tenantID).
		Order("component, item_name").Find(&findings).Error; err != nil {
		return nil, err
	}
	return findings, nil
}

// ---- Tasks ----

// CreateTaskRequest names the tenant pair and optionally triggers node
// generation with a preset.
type CreateTaskRequest struct {
	Name           string        `json:"name"`
	SourceTenantID string        `json:"source_tenant_id"`
	TargetTenantID string        `json:"target_tenant_id"`
	CustomConfig   string        `json:"custom_config"`
	PopulateNodes  bool          `json:"populate_nodes"`
	Preset         models.Preset `json:"preset"`
}

func (a *App) CreateTask(req CreateTaskRequest) (string, error) {
	if req.Name == "" || req.SourceTenantID == "" {
		return "", fmt.Errorf("name and source_tenant_id are required")
	}
	if req.CustomConfig != "" && !json.Valid([]byte(req.CustomConfig)) {
		return "", fmt.Errorf("custom_config must be valid JSON")
	}

	task := models.MigrationTask{
		Name:           req.Name,
		SourceTenantID: req.SourceTenantID,
		TargetTenantID: req.TargetTenantID,
		CustomConfig:   req.CustomConfig,
	}
	if err := a.db.Create(&task).Error; err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	if req.PopulateNodes {
		if _, err := a.scopeService.BuildNodes(task.ID); err != nil {
			return task.ID, fmt.Errorf("task created but node generation failed: %w", err)
		}
		if req.Preset != "" {
			if err := a.scopeService.ApplyPreset(task.ID, req.Preset); err != nil {
				return task.ID, fmt.Errorf("task created but preset failed: %w", err)
			}
		}
	}
	return task.ID, nil
}

func (a *App) ListTasks() ([]models.MigrationTask, error) {
	var tasks []models.MigrationTask
	if err := a.db.Order("name").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (a *App) GetTask(taskID string) (*models.MigrationTask, error) {
	var task models.MigrationTask
	if err := a.db.Preload("Nodes").First(&task, "id = ?", taskID).Error; err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}
	return &task, nil
}

func (a *App) DeleteTask(taskID string) error {
	return a.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskNode{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.MigrationTask{}, "id = ?", taskID).Error
	})
}

// ResetTaskNodes regenerates the task's nodes from the mirror and applies a
// preset. Previous inclusion choices are discarded.
func (a *App) ResetTaskNodes(taskID string, preset models.Preset) ([]models.TaskNode, error) {
	nodes, err := a.scopeService.BuildNodes(taskID)
	if err != nil {
		return nil, err
	}
	if preset != "" {
		if err := a.scopeService.ApplyPreset(taskID, preset); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

// UpdateExistInTenantFlags refreshes presence flags and returns the included
// nodes that vanished from the source, so the operator can deselect them.
func (a *App) UpdateExistInTenantFlags(taskID string) ([]models.TaskNode, error) {
	return a.scopeService.RefreshExistenceFlags(taskID)
}

// SetNodeSelection updates one node's inclusion and configure-only flags.
func (a *App) SetNodeSelection(nodeID uint, included, configureOnly bool) error {
	return a.db.Model(&models.TaskNode{}).Where("object_id = ?", nodeID).
		Updates(map[string]interface{}{
			"included":       included,
			"configure_only": configureOnly,
		}).Error
}

// ---- Jobs ----

// StartJob creates a job for the task and executes it in the background.
func (a *App) StartJob(taskID string) (string, error) {
	var task models.MigrationTask
	if err := a.db.First(&task, "id = ?", taskID).Error; err != nil {
		return "", fmt.Errorf("task not found: %w", err)
	}

	job := models.MigrationJob{TaskID: taskID}
	if err := a.db.Create(&job).Error; err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	a.migrationService.Start(job.ID)
	return job.ID, nil
}

// JobResponse is one job with its run-time findings.
type JobResponse struct {
	models.MigrationJob
	Findings []models.Finding `json:"findings"`
}

func (a *App) GetJob(jobID string) (*JobResponse, error) {
	var job models.MigrationJob
	if err := a.db.First(&job, "id = ?", jobID).Error; err != nil {
		return nil, fmt.Errorf("job not found: %w", err)
	}
	var findings []models.Finding
	if err := a.db.Where("job_id = ?", jobID).Order("object_id").Find(&findings).Error; err != nil {
		return nil, err
	}
	return &JobResponse{MigrationJob: job, Findings: findings}, nil
}

func (a *App) ListJobs(taskID string) ([]models.MigrationJob, error) {
	var jobs []models.MigrationJob
	query := a.db.Order("created_at DESC")
	if taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ---- Scheduled jobs ----

func (a *App) ListScheduledJobs() ([]scheduler.JobListResponse, error) {
	return a.schedulerService.ListJobs()
}

func (a *App) UpsertScheduledJob(req scheduler.UpsertJobRequest) (string, error) {
	return a.schedulerService.UpsertJob(req)
}

func (a *App) DeleteScheduledJob(jobID string) error {
	return a.schedulerService.DeleteJob(jobID)
}
