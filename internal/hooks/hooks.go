// Package hooks defines the customization surface invoked by the migration
// orchestrator before each remote write. Customers implement Set to rewrite
// items in flight; NoOp is the default when no customization is registered.
//
// A hook error aborts only the item being migrated; the orchestrator records
// it as a finding and continues with the next item.
package hooks

import "github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"

// PackageArtifact is a custom package binary about to be uploaded.
type PackageArtifact struct {
	PackageID string
	Name      string
	// Archive is the zip content downloaded from the source tenant. Hooks may
	// replace it wholesale.
	Archive []byte
}

// Set receives every item right before its remote write. Implementations
// mutate the pointed-to item (or return an error to abort just that item).
type Set interface {
	OnMigratePackage(pkg *PackageArtifact) error
	OnMigrateCredential(cred *models.ContentCredential) error
	OnMigrateOAuthCredential(cred *models.ContentOAuthCredential) error
	OnMigrateNumberRange(nr *models.ContentNumberRange) error
	OnMigrateAccessPolicy(policy *models.ContentAccessPolicy) error
	OnMigrateTagConfiguration(tag *models.ContentTagConfiguration) error
	OnMigrateVariable(v *models.ContentVariable, value *string) error
	OnMigrateDataStoreEntry(entry *models.ContentDataStoreEntry, payload *[]byte) error
	OnMigrateValueMapping(vm *models.ContentValueMapping) error
	OnMigrateKeystoreEntry(entry *models.ContentKeystoreEntry, pem *[]byte) error
	OnMigrateCertUserMapping(m *models.ContentCertUserMapping) error
	// OnMigrateScript is read-only inspection of script files found inside
	// package archives during deep analysis.
	OnMigrateScript(file, artifactName, scriptText string) error
}

// NoOp implements Set with no behavior. Embed it to override single methods.
type NoOp struct{}

func (NoOp) OnMigratePackage(*PackageArtifact) error                              { return nil }
func (NoOp) OnMigrateCredential(*models.ContentCredential) error                  { return nil }
func (NoOp) OnMigrateOAuthCredential(*models.ContentOAuthCredential) error        { return nil }
func (NoOp) OnMigrateNumberRange(*models.ContentNumberRange) error                { return nil }
func (NoOp) OnMigrateAccessPolicy(*models.ContentAccessPolicy) error              { return nil }
func (NoOp) OnMigrateTagConfiguration(*models.ContentTagConfiguration) error      { return nil }
func (NoOp) OnMigrateVariable(*models.ContentVariable, *string) error             { return nil }
func (NoOp) OnMigrateDataStoreEntry(*models.ContentDataStoreEntry, *[]byte) error { return nil }
func (NoOp) OnMigrateValueMapping(*models.ContentValueMapping) error              { return nil }
func (NoOp) OnMigrateKeystoreEntry(*models.ContentKeystoreEntry, *[]byte) error   { return nil }
func (NoOp) OnMigrateCertUserMapping(*models.ContentCertUserMapping) error        { return nil }
func (NoOp) OnMigrateScript(string, string, string) error                         { return nil }
