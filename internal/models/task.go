package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MigrationTask names a source and target tenant and owns the set of task
// nodes that scope a migration. Deleting the source tenant is blocked while a
// task references it; deleting the target only clears the reference.
type MigrationTask struct {
	ID             string `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"unique;not null" json:"name"`
	SourceTenantID string `gorm:"index;not null;column:source_tenant_id" json:"source_tenant_id"`
	TargetTenantID string `gorm:"index;column:target_tenant_id" json:"target_tenant_id"`
	// CustomConfig is user-authored JSON consumed by customization hooks and
	// orchestrator policies (e.g. delete-target-before-overwrite).
	CustomConfig string `gorm:"type:text;column:custom_config" json:"custom_config"`

	Nodes []TaskNode `gorm:"foreignKey:TaskID" json:"nodes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *MigrationTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (MigrationTask) TableName() string {
	return "migration_tasks"
}

// TaskNode is one migratable unit within a task's scope.
type TaskNode struct {
	ObjectID      uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TaskID        string    `gorm:"index;not null;column:task_id" json:"task_id"`
	ItemID        string    `gorm:"not null;column:item_id" json:"item_id"` // natural key of the item
	Name          string    `json:"name"`
	Component     Component `gorm:"not null" json:"component"`
	PackageID     string    `gorm:"column:package_id" json:"package_id"` // parent package for child items
	Included      bool      `gorm:"default:false" json:"included"`
	ConfigureOnly bool      `gorm:"default:false;column:configure_only" json:"configure_only"` // packages only
	ExistInSource bool      `gorm:"column:exist_in_source" json:"exist_in_source"`
	ExistInTarget bool      `gorm:"column:exist_in_target" json:"exist_in_target"`
}

func (TaskNode) TableName() string {
	return "task_nodes"
}

// Inclusion presets applied after node generation.
type Preset string

const (
	PresetSkipAll    Preset = "SkipAll"
	PresetIncludeAll Preset = "IncludeAll"
	// PresetOptimal includes a node iff it exists in the source and is absent
	// from the target.
	PresetOptimal Preset = "Optimal"
)
