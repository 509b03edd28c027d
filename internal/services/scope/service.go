// Package scope computes the set of migratable items for a task from the
// mirrored content of its source and target tenants. It never talks to the
// live tenants; sync must have populated the mirror first.
package scope

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// Service builds and refreshes task nodes.
type Service struct {
	db *gorm.DB
}

// NewService creates a scope service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// node is one candidate item enumerated from the source mirror.
type node struct {
	itemID    string
	name      string
	component models.Component
	packageID string
}

// BuildNodes wipes and regenerates the task's nodes from the source tenant's
// mirror, flagging presence in source and target. Inclusion flags start false;
// callers apply a preset afterwards.
func (s *Service) BuildNodes(taskID string) ([]models.TaskNode, error) {
	var task models.MigrationTask
	if err := s.db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	sourceItems, err := s.enumerate(task.SourceTenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate source content: %w", err)
	}

	targetKeys := make(map[models.Component]map[string]bool)
	if task.TargetTenantID != "" {
		targetItems, err := s.enumerate(task.TargetTenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate target content: %w", err)
		}
		for _, item := range targetItems {
			if targetKeys[item.component] == nil {
				targetKeys[item.component] = make(map[string]bool)
			}
			targetKeys[item.component][item.itemID] = true
		}
	}

	nodes := make([]models.TaskNode, 0, len(sourceItems))
	for _, item := range sourceItems {
		nodes = append(nodes, models.TaskNode{
			TaskID:        taskID,
			ItemID:        item.itemID,
			Name:          item.name,
			Component:     item.component,
			PackageID:     item.packageID,
			ExistInSource: true,
			ExistInTarget: targetKeys[item.component][item.itemID],
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.TaskNode{}).Error; err != nil {
			return err
		}
		if len(nodes) == 0 {
			return nil
		}
		return tx.Create(&nodes).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store task nodes: %w", err)
	}
	return nodes, nil
}

// ApplyPreset sets inclusion flags across all of a task's nodes.
func (s *Service) ApplyPreset(taskID string, preset models.Preset) error {
	switch preset {
	case models.PresetSkipAll:
		return s.db.Model(&models.TaskNode{}).Where("task_id = ?", taskID).
			Update("included", false).Error
	case models.PresetIncludeAll:
		return s.db.Model(&models.TaskNode{}).Where("task_id = ?", taskID).
			Update("included", true).Error
	case models.PresetOptimal:
		// Include what the source has and the target lacks.
		if err := s.db.Model(&models.TaskNode{}).Where("task_id = ?", taskID).
			Update("included", false).Error; err != nil {
			return err
		}
		return s.db.Model(&models.TaskNode{}).
			Where("task_id = ? AND exist_in_source = ? AND exist_in_target = ?", taskID, true, false).
			Update("included", true).Error
	}
	return fmt.Errorf("unknown preset %q", preset)
}

// RefreshExistenceFlags recomputes presence flags in place, preserving
// inclusion choices. It returns the nodes that are still included but no
// longer exist in the source, so callers can warn the operator; nodes are
// never auto-deselected.
func (s *Service) RefreshExistenceFlags(taskID string) ([]models.TaskNode, error) {
	var task models.MigrationTask
	if err := s.db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, fmt.Errorf("task not found: %w", err)
	}

	var nodes []models.TaskNode
	if err := s.db.Where("task_id = ?", taskID).Find(&nodes).Error; err != nil {
		return nil, err
	}

	sourceKeys, err := s.keySet(task.SourceTenantID)
	if err != nil {
		return nil, err
	}
	var targetKeys map[models.Component]map[string]bool
	if task.TargetTenantID != "" {
		targetKeys, err = s.keySet(task.TargetTenantID)
		if err != nil {
			return nil, err
		}
	}

	var missingButIncluded []models.TaskNode
	for i := range nodes {
		inSource := sourceKeys[nodes[i].Component][nodes[i].ItemID]
		inTarget := targetKeys != nil && targetKeys[nodes[i].Component][nodes[i].ItemID]

		if nodes[i].ExistInSource != inSource || nodes[i].ExistInTarget != inTarget {
			nodes[i].ExistInSource = inSource
			nodes[i].ExistInTarget = inTarget
			if err := s.db.Model(&models.TaskNode{}).Where("object_id = ?", nodes[i].ObjectID).
				Updates(map[string]interface{}{
					"exist_in_source": inSource,
					"exist_in_target": inTarget,
				}).Error; err != nil {
				return nil, err
			}
		}
		if nodes[i].Included && !inSource {
			missingButIncluded = append(missingButIncluded, nodes[i])
		}
	}
	return missingButIncluded, nil
}

// keySet builds the component → natural-key presence map for one tenant.
func (s *Service) keySet(tenantID string) (map[models.Component]map[string]bool, error) {
	items, err := s.enumerate(tenantID)
	if err != nil {
		return nil, err
	}
	keys := make(map[models.Component]map[string]bool)
	for _, item := range items {
		if keys[item.component] == nil {
			keys[item.component] = make(map[string]bool)
		}
		keys[item.component][item.itemID] = true
	}
	return keys, nil
}

// enumerate lists every mirrored item of a tenant as a candidate node.
func (s *Service) enumerate(tenantID string) ([]node, error) {
	var out []node

	var packages []models.ContentPackage
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&packages).Error; err != nil {
		return nil, err
	}
	for _, p := range packages {
		out = append(out, node{p.PackageID, p.Name, models.ComponentPackage, ""})
	}

	var flows []models.ContentFlow
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&flows).Error; err != nil {
		return nil, err
	}
	for _, f := range flows {
		out = append(out, node{f.FlowID, f.Name, models.ComponentFlow, f.PackageID})
	}

	var valmaps []models.ContentValueMapping
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&valmaps).Error; err != nil {
		return nil, err
	}
	for _, vm := range valmaps {
		out = append(out, node{vm.MappingID, vm.Name, models.ComponentValueMapping, vm.PackageID})
	}

	var keystoreEntries []models.ContentKeystoreEntry
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&keystoreEntries).Error; err != nil {
		return nil, err
	}
	for _, e := range keystoreEntries {
		out = append(out, node{e.Hexalias, e.Alias, models.ComponentKeystoreEntry, ""})
	}

	var credentials []models.ContentCredential
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&credentials).Error; err != nil {
		return nil, err
	}
	for _, c := range credentials {
		out = append(out, node{c.Name, c.Name, models.ComponentCredential, ""})
	}

	var oauthCreds []models.ContentOAuthCredential
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&oauthCreds).Error; err != nil {
		return nil, err
	}
	for _, c := range oauthCreds {
		out = append(out, node{c.Name, c.Name, models.ComponentOAuthCredential, ""})
	}

	var numberRanges []models.ContentNumberRange
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&numberRanges).Error; err != nil {
		return nil, err
	}
	for _, n := range numberRanges {
		out = append(out, node{n.Name, n.Name, models.ComponentNumberRange, ""})
	}

	var policies []models.ContentAccessPolicy
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&policies).Error; err != nil {
		return nil, err
	}
	for _, p := range policies {
		out = append(out, node{p.RoleName, p.RoleName, models.ComponentAccessPolicy, ""})
	}

	var tagConfigs []models.ContentTagConfiguration
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&tagConfigs).Error; err != nil {
		return nil, err
	}
	for _, t := range tagConfigs {
		out = append(out, node{t.Name, t.Name, models.ComponentTagConfiguration, ""})
	}

	var brokers []models.ContentJMSBroker
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&brokers).Error; err != nil {
		return nil, err
	}
	for _, b := range brokers {
		out = append(out, node{b.Key, b.Key, models.ComponentJMSBroker, ""})
	}

	var variables []models.ContentVariable
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&variables).Error; err != nil {
		return nil, err
	}
	for _, v := range variables {
		out = append(out, node{v.VariableName, v.VariableName, models.ComponentVariable, v.FlowID})
	}

	var stores []models.ContentDataStore
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&stores).Error; err != nil {
		return nil, err
	}
	for _, d := range stores {
		out = append(out, node{d.DataStoreName, d.DataStoreName, models.ComponentDataStore, d.FlowID})
	}

	var certMappings []models.ContentCertUserMapping
	if err := s.db.Where("tenant_id = ?", tenantID).Find(&certMappings).Error; err != nil {
		return nil, err
	}
	for _, m := range certMappings {
		out = append(out, node{m.MappingID, m.User, models.ComponentCertUserMapping, ""})
	}

	return out, nil
}
