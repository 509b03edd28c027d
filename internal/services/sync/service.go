package sync

import (
	"errors"
	"fmt"
	"strings"
	gosync "sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/hooks"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// Connector is the slice of the remote connector the sync engine needs.
type Connector interface {
	GetJSON(path string, out interface{}) error
	GetBinary(path string) ([]byte, error)
}

// Service pulls a tenant's content into the local mirror and generates sync
// findings. Progress records live in a registry keyed by sync run id, so
// concurrent syncs against different tenants report independently.
type Service struct {
	db  *gorm.DB
	cfg *config.Config

	customizations hooks.Set

	registry   map[string]*Status
	registryMu gosync.RWMutex

	// newConnector is swappable in tests.
	newConnector func(*models.Tenant) Connector
}

// NewService creates a sync service. A nil hook set installs no-ops.
func NewService(db *gorm.DB, cfg *config.Config, customizations hooks.Set) *Service {
	if customizations == nil {
		customizations = hooks.NoOp{}
	}
	return &Service{
		db:             db,
		cfg:            cfg,
		customizations: customizations,
		registry:       make(map[string]*Status),
		newConnector: func(t *models.Tenant) Connector {
			return api.NewConnector(t)
		},
	}
}

// Start launches a sync in the background and returns its run id.
func (s *Service) Start(tenantID string, filter Filter) (string, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		return "", fmt.Errorf("tenant not found: %w", err)
	}
	if err := tenant.RequiredFieldsPresent(); err != nil {
		return "", err
	}

	syncID := uuid.New().String()
	s.registryMu.Lock()
	s.registry[syncID] = &Status{Running: true, Tenant: tenant.Name}
	s.registryMu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic during sync", "sync_id", syncID, "panic", r)
				s.finish(syncID, true)
			}
		}()
		if _, err := s.Run(syncID, tenantID, filter); err != nil {
			log.Error("sync failed", "sync_id", syncID, "tenant", tenant.Name, "error", err)
		}
	}()

	return syncID, nil
}

// Status returns the progress snapshot for a sync run.
func (s *Service) Status(syncID string) (*Status, bool) {
	s.registryMu.RLock()
	defer s.registryMu.RUnlock()
	status, ok := s.registry[syncID]
	if !ok {
		return nil, false
	}
	copied := *status
	return &copied, true
}

// Run executes a sync synchronously and returns the mirrored item count.
// syncID may be empty when no progress reporting is wanted (scheduled runs).
func (s *Service) Run(syncID, tenantID string, filter Filter) (int, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, "id = ?", tenantID).Error; err != nil {
		s.finish(syncID, true)
		return 0, fmt.Errorf("tenant not found: %w", err)
	}
	if err := tenant.RequiredFieldsPresent(); err != nil {
		s.finish(syncID, true)
		return 0, err
	}

	s.ensureStatus(syncID, tenant.Name)
	conn := s.newConnector(&tenant)

	// Ordered list of enabled categories; 99% of progress is apportioned
	// across them, the last 1% belongs to the limitation pass.
	var enabled []models.Component
	for _, c := range models.AllComponents {
		if _, ok := filter[c]; ok {
			enabled = append(enabled, c)
		}
	}
	if len(enabled) == 0 {
		s.finish(syncID, false)
		return 0, nil
	}

	total := 0
	for i, component := range enabled {
		base := 99 * i / len(enabled)
		s.setProgress(syncID, base, component.DisplayName(), "")

		count, err := s.syncCategory(conn, &tenant, component, filter[component], syncID)
		if err != nil {
			s.finish(syncID, true)
			return total, fmt.Errorf("sync of %s failed: %w", component.DisplayName(), err)
		}
		total += count
	}

	s.setProgress(syncID, 99, "Limitation notices", "")
	if err := s.generateLimitations(&tenant, filter); err != nil {
		s.finish(syncID, true)
		return total, err
	}

	s.setProgress(syncID, 100, "", "")
	s.finish(syncID, false)
	log.Info("sync complete", "tenant", tenant.Name, "items", total)
	return total, nil
}

func (s *Service) syncCategory(conn Connector, tenant *models.Tenant, component models.Component, sel *Selection, syncID string) (int, error) {
	switch component {
	case models.ComponentPackage:
		return s.syncPackages(conn, tenant, sel, syncID)
	case models.ComponentFlow, models.ComponentValueMapping, models.ComponentCustomTag:
		// Children of packages, synced during the package pass.
		return 0, nil
	case models.ComponentKeystoreEntry:
		return s.syncKeystore(conn, tenant, sel)
	case models.ComponentCredential:
		return s.syncCredentials(conn, tenant, sel)
	case models.ComponentOAuthCredential:
		return s.syncOAuthCredentials(conn, tenant, sel)
	case models.ComponentNumberRange:
		return s.syncNumberRanges(conn, tenant, sel)
	case models.ComponentAccessPolicy:
		return s.syncAccessPolicies(conn, tenant, sel)
	case models.ComponentTagConfiguration:
		return s.syncTagConfigurations(conn, tenant, sel)
	case models.ComponentJMSBroker:
		return s.syncJMSBroker(conn, tenant)
	case models.ComponentVariable:
		return s.syncVariables(conn, tenant, sel)
	case models.ComponentDataStore:
		return s.syncDataStores(conn, tenant, sel)
	case models.ComponentCertUserMapping:
		return s.syncCertUserMappings(conn, tenant, sel)
	}
	return 0, fmt.Errorf("unknown component %q", component)
}

// scopeDelete narrows a clear query to the selection's keys, honoring the
// exclude polarity. The scope depends only on the selection, never on what the
// remote returned, so a key that vanished remotely still gets cleared.
func scopeDelete(q *gorm.DB, column string, sel *Selection) *gorm.DB {
	if sel == nil || len(sel.Keys) == 0 {
		return q
	}
	if sel.Exclude {
		return q.Where(column+" NOT IN ?", sel.Keys)
	}
	return q.Where(column+" IN ?", sel.Keys)
}

// replaceMirror deletes stale mirror rows and findings inside the selection,
// then inserts the fresh rows. Rows and findings outside the selection are
// left untouched (partial syncs must not eat unrelated state).
func (s *Service) replaceMirror(tenant *models.Tenant, component models.Component, sel *Selection, keyColumn string, insert func(tx *gorm.DB) error, model interface{}) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		mirror := scopeDelete(tx.Where("tenant_id = ?", tenant.ID), keyColumn, sel)
		findings := scopeDelete(tx.Where("tenant_id = ? AND component = ? AND type <> ?",
			tenant.ID, component, models.FindingLimitation), "item_name", sel)
		if err := mirror.Delete(model).Error; err != nil {
			return fmt.Errorf("failed to clear mirror rows: %w", err)
		}
		if err := findings.Delete(&models.Finding{}).Error; err != nil {
			return fmt.Errorf("failed to clear sync findings: %w", err)
		}
		return insert(tx)
	})
}

func (s *Service) addFinding(tenant *models.Tenant, findingType string, component models.Component, itemName, text string, severity int) {
	f := models.Finding{
		TenantID:  tenant.ID,
		Type:      findingType,
		Component: component,
		ItemName:  itemName,
		Text:      text,
		Severity:  severity,
	}
	if err := s.db.Create(&f).Error; err != nil {
		log.Error("failed to record finding", "tenant", tenant.Name, "error", err)
	}
}

func (s *Service) syncPackages(conn Connector, tenant *models.Tenant, sel *Selection, syncID string) (int, error) {
	var list odataList[apiPackage]
	if err := conn.GetJSON("/api/v1/IntegrationPackages", &list); err != nil {
		return 0, err
	}

	var packages []models.ContentPackage
	var selected []apiPackage
	for _, p := range list.D.Results {
		if !sel.Matches(p.ID) {
			continue
		}
		selected = append(selected, p)
		packages = append(packages, models.ContentPackage{
			TenantID:       tenant.ID,
			PackageID:      p.ID,
			Name:           p.Name,
			Version:        p.Version,
			Vendor:         p.Vendor,
			PartnerContent: p.PartnerContent,
			Mode:           p.Mode,
			ModifiedBy:     p.ModifiedBy,
			ModifiedAt:     p.ModifiedDate,
		})
	}

	// Child categories are scoped to the same package keys. Findings are
	// collected first and inserted after the scoped clear, so regeneration
	// can't delete what this pass just produced.
	var flows []models.ContentFlow
	var mappings []models.ContentValueMapping
	var tags []models.ContentCustomTag
	var pending []models.Finding
	var flowKeys []string

	for _, p := range selected {
		s.setProgress(syncID, -1, models.ComponentPackage.DisplayName(), p.Name)

		var artifacts odataList[apiArtifact]
		if err := conn.GetJSON(fmt.Sprintf("/api/v1/IntegrationPackages('%s')/IntegrationDesigntimeArtifacts", api.EscapeKey(p.ID)), &artifacts); err != nil {
			return 0, fmt.Errorf("failed to list artifacts of package %s: %w", p.ID, err)
		}
		for _, a := range artifacts.D.Results {
			flowKeys = append(flowKeys, a.ID)
			draft := a.Version == "Active"
			if draft {
				pending = append(pending, models.Finding{
					TenantID:  tenant.ID,
					Type:      models.FindingWarning,
					Component: models.ComponentFlow,
					ItemName:  a.ID,
					Text:      fmt.Sprintf("Artifact %s in package %s is still in Draft state and cannot be copied", a.Name, p.Name),
					Severity:  models.SeverityNegative,
				})
			}
			flows = append(flows, models.ContentFlow{
				TenantID:     tenant.ID,
				PackageID:    p.ID,
				FlowID:       a.ID,
				Name:         a.Name,
				Version:      a.Version,
				ArtifactType: a.Type,
				Draft:        draft,
			})

			var artifactTags odataList[apiCustomTag]
			if err := conn.GetJSON(fmt.Sprintf("/api/v1/IntegrationDesigntimeArtifacts(Id='%s',Version='%s')/CustomTags", api.EscapeKey(a.ID), api.EscapeKey(a.Version)), &artifactTags); err == nil {
				for _, t := range artifactTags.D.Results {
					if t.Value == "" {
						continue
					}
					tags = append(tags, models.ContentCustomTag{
						TenantID:   tenant.ID,
						PackageID:  p.ID,
						ArtifactID: a.ID,
						Name:       t.Name,
						Value:      t.Value,
					})
				}
			}
		}

		var valmaps odataList[apiValueMapping]
		if err := conn.GetJSON(fmt.Sprintf("/api/v1/IntegrationPackages('%s')/ValueMappingDesigntimeArtifacts", api.EscapeKey(p.ID)), &valmaps); err != nil {
			return 0, fmt.Errorf("failed to list value mappings of package %s: %w", p.ID, err)
		}
		for _, vm := range valmaps.D.Results {
			mapping := models.ContentValueMapping{
				TenantID:  tenant.ID,
				PackageID: p.ID,
				MappingID: vm.ID,
				Name:      vm.Name,
				Version:   vm.Version,
			}
			var schemas odataList[apiValMapSchema]
			if err := conn.GetJSON(fmt.Sprintf("/api/v1/ValueMappingDesigntimeArtifacts(Id='%s',Version='%s')/ValMapSchema", api.EscapeKey(vm.ID), api.EscapeKey(vm.Version)), &schemas); err == nil {
				for _, schema := range schemas.D.Results {
					mapping.Schemas = append(mapping.Schemas, models.ContentValMapSchema{
						SrcAgency: schema.SrcAgency,
						SrcID:     schema.SrcID,
						TgtAgency: schema.TgtAgency,
						TgtID:     schema.TgtID,
						State:     schema.State,
					})
				}
			}
			mappings = append(mappings, mapping)
		}

		if p.UpdateAvailable && (p.Vendor == "SAP" || p.PartnerContent) {
			pending = append(pending, models.Finding{
				TenantID:  tenant.ID,
				Type:      models.FindingInfo,
				Component: models.ComponentPackage,
				ItemName:  p.ID,
				Text:      fmt.Sprintf("Package %s is outdated vendor content, a newer version is available", p.Name),
				Severity:  models.SeverityNeutral,
			})
		}
	}

	insert := func(tx *gorm.DB) error {
		if len(packages) > 0 {
			if err := tx.Create(&packages).Error; err != nil {
				return err
			}
		}
		if len(flows) > 0 {
			if err := tx.Create(&flows).Error; err != nil {
				return err
			}
		}
		if len(mappings) > 0 {
			if err := tx.Create(&mappings).Error; err != nil {
				return err
			}
		}
		if len(tags) > 0 {
			if err := tx.Create(&tags).Error; err != nil {
				return err
			}
		}
		if len(pending) > 0 {
			if err := tx.Create(&pending).Error; err != nil {
				return err
			}
		}
		return nil
	}

	// Clear child rows and child findings with the same package scoping.
	err := s.db.Transaction(func(tx *gorm.DB) error {
		fq := tx.Where("tenant_id = ? AND component = ? AND type <> ?", tenant.ID, models.ComponentFlow, models.FindingLimitation)
		if sel != nil && len(sel.Keys) > 0 {
			// Flows of packages that vanished remotely are not in flowKeys, so
			// collect the mirrored flow ids of every in-scope package before
			// the rows are cleared.
			var stale []string
			if err := scopeDelete(tx.Model(&models.ContentFlow{}).Where("tenant_id = ?", tenant.ID), "package_id", sel).
				Pluck("flow_id", &stale).Error; err != nil {
				return err
			}
			fq = fq.Where("item_name IN ?", append(stale, flowKeys...))
		}
		for _, model := range []interface{}{
			&models.ContentFlow{}, &models.ContentValueMapping{}, &models.ContentCustomTag{},
		} {
			if err := scopeDelete(tx.Where("tenant_id = ?", tenant.ID), "package_id", sel).Delete(model).Error; err != nil {
				return err
			}
		}
		return fq.Delete(&models.Finding{}).Error
	})
	if err != nil {
		return 0, err
	}

	if err := s.replaceMirror(tenant, models.ComponentPackage, sel, "package_id", insert, &models.ContentPackage{}); err != nil {
		return 0, err
	}

	// Deep inspection runs after the mirror is written so analysis failures
	// never cost the mirrored rows.
	if s.cfg.DeepPackageAnalysis {
		for i := range packages {
			if packages[i].IsSAP() {
				continue
			}
			s.setProgress(syncID, -1, "Package analysis", packages[i].Name)
			s.inspectPackage(conn, tenant, &packages[i])
		}
	}

	return len(packages) + len(flows) + len(mappings) + len(tags), nil
}

func (s *Service) syncKeystore(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiKeystoreEntry]
	if err := conn.GetJSON("/api/v1/KeystoreEntries", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentKeystoreEntry
	for _, e := range list.D.Results {
		if !sel.Matches(e.Hexalias) {
			continue
		}
		rows = append(rows, models.ContentKeystoreEntry{
			TenantID:      tenant.ID,
			Hexalias:      e.Hexalias,
			Alias:         e.Alias,
			Type:          e.Type,
			Owner:         e.Owner,
			ValidNotAfter: e.ValidNotAfter,
		})
	}

	if err := s.replaceMirror(tenant, models.ComponentKeystoreEntry, sel, "hexalias", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentKeystoreEntry{}); err != nil {
		return 0, err
	}

	for _, r := range rows {
		if r.Type != "Certificate" {
			s.addFinding(tenant, models.FindingWarning, models.ComponentKeystoreEntry, r.Hexalias,
				fmt.Sprintf("Keystore entry %s has type %s which cannot be exported, migrate it manually", r.Alias, r.Type),
				models.SeverityNegative)
		}
	}
	return len(rows), nil
}

func (s *Service) syncCredentials(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiCredential]
	if err := conn.GetJSON("/api/v1/UserCredentials", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentCredential
	for _, c := range list.D.Results {
		if !sel.Matches(c.Name) {
			continue
		}
		rows = append(rows, models.ContentCredential{
			TenantID:   tenant.ID,
			Name:       c.Name,
			Kind:       c.Kind,
			User:       c.User,
			DeployedBy: c.SecurityArtifactDescriptor.DeployedBy,
		})
	}

	if err := s.replaceMirror(tenant, models.ComponentCredential, sel, "name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentCredential{}); err != nil {
		return 0, err
	}

	for _, r := range rows {
		if s.cfg.OwnOAuthClientID != "" && r.DeployedBy == s.cfg.OwnOAuthClientID {
			s.addFinding(tenant, models.FindingWarning, models.ComponentCredential, r.Name,
				fmt.Sprintf("Credential %s was deployed by this migration tool, its secret is a placeholder and must be set manually", r.Name),
				models.SeverityNegative)
		}
	}
	return len(rows), nil
}

func (s *Service) syncOAuthCredentials(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiOAuthCredential]
	if err := conn.GetJSON("/api/v1/OAuth2ClientCredentials", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentOAuthCredential
	for _, c := range list.D.Results {
		if !sel.Matches(c.Name) {
			continue
		}
		rows = append(rows, models.ContentOAuthCredential{
			TenantID: tenant.ID,
			Name:     c.Name,
			TokenURL: c.TokenURL,
			ClientID: c.ClientID,
			Scope:    c.Scope,
		})
	}

	return len(rows), s.replaceMirror(tenant, models.ComponentOAuthCredential, sel, "name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentOAuthCredential{})
}

func (s *Service) syncNumberRanges(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiNumberRange]
	if err := conn.GetJSON("/api/v1/NumberRanges", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentNumberRange
	for _, n := range list.D.Results {
		if !sel.Matches(n.Name) {
			continue
		}
		rows = append(rows, models.ContentNumberRange{
			TenantID:     tenant.ID,
			Name:         n.Name,
			Description:  n.Description,
			MinValue:     n.MinValue,
			MaxValue:     n.MaxValue,
			CurrentValue: n.CurrentValue,
			Rotate:       n.Rotate,
		})
	}

	return len(rows), s.replaceMirror(tenant, models.ComponentNumberRange, sel, "name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentNumberRange{})
}

func (s *Service) syncAccessPolicies(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiAccessPolicy]
	if err := conn.GetJSON("/api/v1/AccessPolicies?$expand=ArtifactReferences", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentAccessPolicy
	count := 0
	for _, p := range list.D.Results {
		if !sel.Matches(p.RoleName) {
			continue
		}
		policy := models.ContentAccessPolicy{
			TenantID:    tenant.ID,
			RoleName:    p.RoleName,
			Description: p.Description,
		}
		for _, ref := range p.ArtifactReferences.Results {
			policy.References = append(policy.References, models.ContentPolicyReference{
				Name:               ref.Name,
				Description:        ref.Description,
				Type:               ref.Type,
				ConditionAttribute: ref.ConditionAttribute,
				ConditionValue:     ref.ConditionValue,
				ConditionType:      ref.ConditionType,
			})
		}
		count += 1 + len(policy.References)
		rows = append(rows, policy)
	}

	return count, s.replaceMirror(tenant, models.ComponentAccessPolicy, sel, "role_name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentAccessPolicy{})
}

func (s *Service) syncTagConfigurations(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var cfgBody struct {
		CustomTagsConfiguration []apiTagConfiguration `json:"customTagsConfiguration"`
	}
	if err := conn.GetJSON("/api/v1/CustomTagConfigurations('CustomTags')/$value", &cfgBody); err != nil {
		// A tenant that never configured tags returns 404 here.
		var remoteErr *api.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.StatusCode == 404 {
			return 0, nil
		}
		return 0, err
	}

	var rows []models.ContentTagConfiguration
	for _, t := range cfgBody.CustomTagsConfiguration {
		if !sel.Matches(t.Name) {
			continue
		}
		rows = append(rows, models.ContentTagConfiguration{
			TenantID:        tenant.ID,
			Name:            t.Name,
			PermittedValues: strings.Join(t.PermittedValues, ","),
			IsMandatory:     t.IsMandatory,
		})
	}

	return len(rows), s.replaceMirror(tenant, models.ComponentTagConfiguration, sel, "name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentTagConfiguration{})
}

func (s *Service) syncJMSBroker(conn Connector, tenant *models.Tenant) (int, error) {
	var broker odataSingle[apiJMSBroker]
	if err := conn.GetJSON("/api/v1/JmsBrokers('Broker1')", &broker); err != nil {
		// Tenants without JMS provisioning have no broker. Expected, not an error.
		var remoteErr *api.RemoteError
		if errors.As(err, &remoteErr) && (remoteErr.StatusCode == 404 || remoteErr.StatusCode == 403) {
			return 0, nil
		}
		return 0, err
	}

	row := models.ContentJMSBroker{
		TenantID:    tenant.ID,
		Key:         broker.D.Key,
		Capacity:    broker.D.Capacity,
		MaxCapacity: broker.D.MaxCapacity,
		QueueCount:  broker.D.QueueCount,
	}
	return 1, s.replaceMirror(tenant, models.ComponentJMSBroker, nil, "key", func(tx *gorm.DB) error {
		return tx.Create(&row).Error
	}, &models.ContentJMSBroker{})
}

func (s *Service) syncVariables(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiVariable]
	if err := conn.GetJSON("/api/v1/Variables", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentVariable
	for _, v := range list.D.Results {
		if !sel.Matches(v.VariableName) {
			continue
		}
		visibility := v.Visibility
		if visibility == "" {
			if v.IntegrationFlow == "" {
				visibility = models.VisibilityGlobal
			} else {
				visibility = models.VisibilityLocal
			}
		}
		rows = append(rows, models.ContentVariable{
			TenantID:        tenant.ID,
			VariableName:    v.VariableName,
			Visibility:      visibility,
			FlowID:          v.IntegrationFlow,
			UpdatedAtRemote: v.UpdatedAt,
			RetainUntil:     v.RetainUntil,
		})
	}

	return len(rows), s.replaceMirror(tenant, models.ComponentVariable, sel, "variable_name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentVariable{})
}

func (s *Service) syncDataStores(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	var list odataList[apiDataStore]
	if err := conn.GetJSON("/api/v1/DataStores", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentDataStore
	count := 0
	for _, d := range list.D.Results {
		if !sel.Matches(d.DataStoreName) {
			continue
		}
		store := models.ContentDataStore{
			TenantID:         tenant.ID,
			DataStoreName:    d.DataStoreName,
			Visibility:       d.Visibility,
			FlowID:           d.IntegrationFlow,
			NumberOfMessages: d.NumberOfMessages,
		}

		var entries odataList[apiDataStoreEntry]
		path := fmt.Sprintf("/api/v1/DataStores(DataStoreName='%s',IntegrationFlow='%s',Type='')/Entries",
			api.EscapeKey(d.DataStoreName), api.EscapeKey(d.IntegrationFlow))
		if err := conn.GetJSON(path, &entries); err == nil {
			for _, e := range entries.D.Results {
				store.Entries = append(store.Entries, models.ContentDataStoreEntry{
					EntryID:   e.ID,
					Status:    e.Status,
					MessageID: e.MessageID,
					DueAt:     e.DueAt,
					ExpiresAt: e.ExpiresAt,
				})
			}
		}
		count += 1 + len(store.Entries)
		rows = append(rows, store)
	}

	return count, s.replaceMirror(tenant, models.ComponentDataStore, sel, "data_store_name", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentDataStore{})
}

func (s *Service) syncCertUserMappings(conn Connector, tenant *models.Tenant, sel *Selection) (int, error) {
	// Certificate-to-user mappings only exist on the Neo stack; Cloud Foundry
	// replaces them with platform service bindings.
	if tenant.IsCloudFoundry() {
		return 0, nil
	}

	var list odataList[apiCertUserMapping]
	if err := conn.GetJSON("/api/v1/CertificateUserMappings", &list); err != nil {
		return 0, err
	}

	var rows []models.ContentCertUserMapping
	count := 0
	for _, m := range list.D.Results {
		if !sel.Matches(m.ID) {
			continue
		}
		mapping := models.ContentCertUserMapping{
			TenantID:       tenant.ID,
			MappingID:      m.ID,
			User:           m.User,
			Certificate:    m.Certificate,
			LastModifiedBy: m.LastModifiedBy,
		}
		var roles odataList[apiCertMappingRole]
		if err := conn.GetJSON(fmt.Sprintf("/api/v1/CertificateUserMappings('%s')/Roles", api.EscapeKey(m.ID)), &roles); err == nil {
			for _, r := range roles.D.Results {
				mapping.Roles = append(mapping.Roles, models.ContentCertMappingRole{
					Name:            r.Name,
					ApplicationName: r.ApplicationName,
					ProviderAccount: r.ProviderAccount,
				})
			}
		}
		count += 1 + len(mapping.Roles)
		rows = append(rows, mapping)
	}

	return count, s.replaceMirror(tenant, models.ComponentCertUserMapping, sel, "mapping_id", func(tx *gorm.DB) error {
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}, &models.ContentCertUserMapping{})
}

// generateLimitations regenerates Limitation findings for the synced
// categories. They describe content the remote API cannot move losslessly.
func (s *Service) generateLimitations(tenant *models.Tenant, filter Filter) error {
	for component := range filter {
		if err := s.db.Where("tenant_id = ? AND component = ? AND type = ?",
			tenant.ID, component, models.FindingLimitation).Delete(&models.Finding{}).Error; err != nil {
			return err
		}
	}

	if _, ok := filter[models.ComponentCredential]; ok {
		var n int64
		s.db.Model(&models.ContentCredential{}).Where("tenant_id = ?", tenant.ID).Count(&n)
		if n > 0 {
			s.addFinding(tenant, models.FindingLimitation, models.ComponentCredential, "",
				"Credential secrets cannot be read via the API, migrated credentials are created with a placeholder password",
				models.SeverityNeutral)
		}
	}
	if _, ok := filter[models.ComponentVariable]; ok {
		var n int64
		s.db.Model(&models.ContentVariable{}).Where("tenant_id = ?", tenant.ID).Count(&n)
		if n > 0 {
			s.addFinding(tenant, models.FindingLimitation, models.ComponentVariable, "",
				"Variable values have no write API, migration deploys a temporary integration flow per batch",
				models.SeverityNeutral)
		}
	}
	if _, ok := filter[models.ComponentKeystoreEntry]; ok {
		var n int64
		s.db.Model(&models.ContentKeystoreEntry{}).Where("tenant_id = ? AND type <> ?", tenant.ID, "Certificate").Count(&n)
		if n > 0 {
			s.addFinding(tenant, models.FindingLimitation, models.ComponentKeystoreEntry, "",
				"Key pairs are not exportable from the keystore and must be recreated on the target",
				models.SeverityNeutral)
		}
	}
	return nil
}

func (s *Service) ensureStatus(syncID, tenantName string) {
	if syncID == "" {
		return
	}
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	if _, ok := s.registry[syncID]; !ok {
		s.registry[syncID] = &Status{Running: true, Tenant: tenantName}
	}
}

// setProgress updates the registry record. A negative pct keeps the current
// percentage and only refreshes topic/item labels.
func (s *Service) setProgress(syncID string, pct int, topic, item string) {
	if syncID == "" {
		return
	}
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	if status, ok := s.registry[syncID]; ok {
		if pct >= 0 {
			status.Progress = pct
		}
		status.Topic = topic
		status.Item = item
	}
}

func (s *Service) finish(syncID string, errored bool) {
	if syncID == "" {
		return
	}
	s.registryMu.Lock()
	defer s.registryMu.Unlock()
	if status, ok := s.registry[syncID]; ok {
		status.Running = false
		status.ErrorState = errored
		status.Item = ""
		status.Topic = ""
	}
}
