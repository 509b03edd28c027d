package sync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/config"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/database"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// fakeConnector serves canned OData responses. Paths without a response
// return 404 the way the live API does.
type fakeConnector struct {
	responses map[string]string
}

func (f *fakeConnector) GetJSON(path string, out interface{}) error {
	body, ok := f.responses[path]
	if !ok {
		return &api.RemoteError{StatusCode: 404, Path: path}
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeConnector) GetBinary(path string) ([]byte, error) {
	body, ok := f.responses[path]
	if !ok {
		return nil, &api.RemoteError{StatusCode: 404, Path: path}
	}
	return []byte(body), nil
}

func newTestService(t *testing.T, responses map[string]string) (*Service, *models.Tenant) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	tenant := models.Tenant{
		Name:           "dev",
		Platform:       models.PlatformNeo,
		Host:           "https://dev.example.com",
		NeoUsername:    "user",
		NeoPasswordEnc: "irrelevant",
	}
	require.NoError(t, db.Create(&tenant).Error)

	cfg := config.Default()
	cfg.OwnOAuthClientID = "sb-migration-tool"
	cfg.DeepPackageAnalysis = false

	svc := NewService(db, cfg, nil)
	svc.newConnector = func(*models.Tenant) Connector {
		return &fakeConnector{responses: responses}
	}
	return svc, &tenant
}

const credentialList = `{"d":{"results":[
	{"Name":"cred1","Kind":"default","User":"alice","SecurityArtifactDescriptor":{"DeployedBy":"alice"}},
	{"Name":"cred2","Kind":"default","User":"bob","SecurityArtifactDescriptor":{"DeployedBy":"sb-migration-tool"}}
]}}`

func TestSyncCredentials(t *testing.T) {
	responses := map[string]string{"/api/v1/UserCredentials": credentialList}

	t.Run("Should mirror credentials and flag tool-deployed ones", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		filter := Filter{models.ComponentCredential: &Selection{}}

		count, err := svc.Run("", tenant.ID, filter)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		var warnings []models.Finding
		require.NoError(t, svc.db.Where("tenant_id = ? AND type = ? AND component = ?",
			tenant.ID, models.FindingWarning, models.ComponentCredential).Find(&warnings).Error)
		require.Len(t, warnings, 1)
		assert.Equal(t, "cred2", warnings[0].ItemName)
	})

	t.Run("Should be idempotent across repeated runs", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		filter := Filter{models.ComponentCredential: &Selection{}}

		_, err := svc.Run("", tenant.ID, filter)
		require.NoError(t, err)
		_, err = svc.Run("", tenant.ID, filter)
		require.NoError(t, err)

		var rows int64
		svc.db.Model(&models.ContentCredential{}).Where("tenant_id = ?", tenant.ID).Count(&rows)
		assert.EqualValues(t, 2, rows)

		var findings int64
		svc.db.Model(&models.Finding{}).Where("tenant_id = ? AND type <> ?",
			tenant.ID, models.FindingLimitation).Count(&findings)
		assert.EqualValues(t, 1, findings)
	})

	t.Run("Should leave rows and findings outside the key filter untouched", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		full := Filter{models.ComponentCredential: &Selection{}}
		_, err := svc.Run("", tenant.ID, full)
		require.NoError(t, err)

		// Re-sync only cred1: cred2's row and its warning must survive.
		scoped := Filter{models.ComponentCredential: &Selection{Keys: []string{"cred1"}}}
		_, err = svc.Run("", tenant.ID, scoped)
		require.NoError(t, err)

		var cred2 models.ContentCredential
		require.NoError(t, svc.db.Where("tenant_id = ? AND name = ?", tenant.ID, "cred2").First(&cred2).Error)

		var warnings int64
		svc.db.Model(&models.Finding{}).Where("tenant_id = ? AND item_name = ? AND type = ?",
			tenant.ID, "cred2", models.FindingWarning).Count(&warnings)
		assert.EqualValues(t, 1, warnings)
	})

	t.Run("Should clear in-scope rows that vanished remotely", func(t *testing.T) {
		live := map[string]string{"/api/v1/UserCredentials": credentialList}
		svc, tenant := newTestService(t, live)
		full := Filter{models.ComponentCredential: &Selection{}}
		_, err := svc.Run("", tenant.ID, full)
		require.NoError(t, err)

		// cred2 is deleted on the remote. A re-sync that names it must drop
		// the stale mirror row and its warning even though the fetch no
		// longer returns the key.
		live["/api/v1/UserCredentials"] = `{"d":{"results":[
			{"Name":"cred1","Kind":"default","User":"alice","SecurityArtifactDescriptor":{"DeployedBy":"alice"}}
		]}}`
		scoped := Filter{models.ComponentCredential: &Selection{Keys: []string{"cred1", "cred2"}}}
		_, err = svc.Run("", tenant.ID, scoped)
		require.NoError(t, err)

		var rows int64
		svc.db.Model(&models.ContentCredential{}).Where("tenant_id = ? AND name = ?", tenant.ID, "cred2").Count(&rows)
		assert.Zero(t, rows)

		var warnings int64
		svc.db.Model(&models.Finding{}).Where("tenant_id = ? AND item_name = ? AND type = ?",
			tenant.ID, "cred2", models.FindingWarning).Count(&warnings)
		assert.Zero(t, warnings)

		var cred1 models.ContentCredential
		require.NoError(t, svc.db.Where("tenant_id = ? AND name = ?", tenant.ID, "cred1").First(&cred1).Error)
	})

	t.Run("Should exclude keys with inverted polarity", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		filter := Filter{models.ComponentCredential: &Selection{Keys: []string{"cred2"}, Exclude: true}}

		count, err := svc.Run("", tenant.ID, filter)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		var names []string
		svc.db.Model(&models.ContentCredential{}).Where("tenant_id = ?", tenant.ID).Pluck("name", &names)
		assert.Equal(t, []string{"cred1"}, names)
	})
}

func TestSyncKeystore(t *testing.T) {
	responses := map[string]string{
		"/api/v1/KeystoreEntries": `{"d":{"results":[
			{"Hexalias":"6162","Alias":"ab","Type":"Certificate","Owner":"CN=ab"},
			{"Hexalias":"6364","Alias":"cd","Type":"KeyPair","Owner":"CN=cd"}
		]}}`,
	}

	t.Run("Should warn on non-exportable entry types", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		filter := Filter{models.ComponentKeystoreEntry: &Selection{}}

		count, err := svc.Run("", tenant.ID, filter)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		var warnings []models.Finding
		require.NoError(t, svc.db.Where("tenant_id = ? AND type = ?", tenant.ID, models.FindingWarning).
			Find(&warnings).Error)
		require.Len(t, warnings, 1)
		assert.Equal(t, "6364", warnings[0].ItemName)

		// The key pair limitation notice is regenerated as well.
		var limitations int64
		svc.db.Model(&models.Finding{}).Where("tenant_id = ? AND type = ?",
			tenant.ID, models.FindingLimitation).Count(&limitations)
		assert.EqualValues(t, 1, limitations)
	})
}

func TestSyncFailureSemantics(t *testing.T) {
	t.Run("Should abort the whole sync when a category fetch fails", func(t *testing.T) {
		// Credentials endpoint missing entirely: not an allow-listed absence.
		svc, tenant := newTestService(t, map[string]string{})
		filter := Filter{models.ComponentCredential: &Selection{}}

		_, err := svc.Run("sync-1", tenant.ID, filter)
		require.Error(t, err)

		status, ok := svc.Status("sync-1")
		require.True(t, ok)
		assert.False(t, status.Running)
		assert.True(t, status.ErrorState)
	})

	t.Run("Should tolerate missing JMS broker provisioning", func(t *testing.T) {
		svc, tenant := newTestService(t, map[string]string{})
		filter := Filter{models.ComponentJMSBroker: &Selection{}}

		count, err := svc.Run("", tenant.ID, filter)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Should fail before any network call on incomplete tenants", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		broken := models.Tenant{Name: "broken", Platform: models.PlatformNeo, Host: "https://x.example.com"}
		require.NoError(t, svc.db.Create(&broken).Error)

		_, err := svc.Run("", broken.ID, FullFilter())
		assert.ErrorContains(t, err, "not configured")
	})
}

func TestStatusRegistry(t *testing.T) {
	t.Run("Should track progress per sync id", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		svc.ensureStatus("a", "dev")
		svc.ensureStatus("b", "prod")

		svc.setProgress("a", 40, "Credentials", "cred1")
		svc.setProgress("b", 80, "Packages", "PkgA")

		statusA, ok := svc.Status("a")
		require.True(t, ok)
		statusB, ok := svc.Status("b")
		require.True(t, ok)

		assert.Equal(t, 40, statusA.Progress)
		assert.Equal(t, "dev", statusA.Tenant)
		assert.Equal(t, 80, statusB.Progress)
		assert.Equal(t, "prod", statusB.Tenant)
	})

	t.Run("Should keep the percentage on label-only updates", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		svc.ensureStatus("a", "dev")
		svc.setProgress("a", 40, "Packages", "PkgA")
		svc.setProgress("a", -1, "Package analysis", "PkgB")

		status, ok := svc.Status("a")
		require.True(t, ok)
		assert.Equal(t, 40, status.Progress)
		assert.Equal(t, "PkgB", status.Item)
	})

	t.Run("Should report unknown ids", func(t *testing.T) {
		svc, _ := newTestService(t, nil)
		_, ok := svc.Status("nope")
		assert.False(t, ok)
	})
}

func TestSelection(t *testing.T) {
	t.Run("Should match everything when empty", func(t *testing.T) {
		assert.True(t, (&Selection{}).Matches("anything"))
		var nilSel *Selection
		assert.True(t, nilSel.Matches("anything"))
	})

	t.Run("Should include listed keys", func(t *testing.T) {
		sel := &Selection{Keys: []string{"a", "b"}}
		assert.True(t, sel.Matches("a"))
		assert.False(t, sel.Matches("c"))
	})

	t.Run("Should invert with exclude polarity", func(t *testing.T) {
		sel := &Selection{Keys: []string{"a"}, Exclude: true}
		assert.False(t, sel.Matches("a"))
		assert.True(t, sel.Matches("b"))
	})
}
