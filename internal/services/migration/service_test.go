package migration

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

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

// fakeRemote implements Connector against canned responses and records every
// write call for assertions. GET paths without a canned body return 404, write
// calls default to 201 unless postFunc overrides them.
type fakeRemote struct {
	json     map[string]string
	binary   map[string][]byte
	postFunc func(path string, payload interface{}) *api.Response

	calls []string
}

func (f *fakeRemote) record(method, path string) {
	f.calls = append(f.calls, method+" "+path)
}

func (f *fakeRemote) called(method, path string) bool {
	for _, c := range f.calls {
		if c == method+" "+path {
			return true
		}
	}
	return false
}

func (f *fakeRemote) Get(path string) ([]byte, error) {
	return f.GetBinary(path)
}

func (f *fakeRemote) GetJSON(path string, out interface{}) error {
	f.record("GET", path)
	body, ok := f.json[path]
	if !ok {
		return &api.RemoteError{StatusCode: 404, Path: path}
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeRemote) GetBinary(path string) ([]byte, error) {
	f.record("GET", path)
	body, ok := f.binary[path]
	if !ok {
		return nil, &api.RemoteError{StatusCode: 404, Path: path}
	}
	return body, nil
}

func (f *fakeRemote) Post(path string, payload interface{}) (*api.Response, error) {
	f.record("POST", path)
	if f.postFunc != nil {
		if resp := f.postFunc(path, payload); resp != nil {
			return resp, nil
		}
	}
	return &api.Response{StatusCode: 201}, nil
}

func (f *fakeRemote) Put(path string, payload interface{}) (*api.Response, error) {
	f.record("PUT", path)
	return &api.Response{StatusCode: 200}, nil
}

func (f *fakeRemote) Delete(path string) (*api.Response, error) {
	f.record("DELETE", path)
	return &api.Response{StatusCode: 200}, nil
}

func (f *fakeRemote) PostCertificate(path string, pem []byte) (*api.Response, error) {
	f.record("POST", path)
	return &api.Response{StatusCode: 201}, nil
}

func (f *fakeRemote) PostMultipart(path, boundary string, body []byte) (*api.Response, error) {
	f.record("POST", path)
	return &api.Response{StatusCode: 202}, nil
}

func (f *fakeRemote) PlatformGet(path string) ([]byte, error) {
	f.record("GET", path)
	body, ok := f.binary[path]
	if !ok {
		return nil, &api.RemoteError{StatusCode: 404, Path: path}
	}
	return body, nil
}

func (f *fakeRemote) PlatformPost(path string, payload interface{}) (*api.Response, error) {
	f.record("POST", path)
	return &api.Response{StatusCode: 201}, nil
}

func (f *fakeRemote) PlatformDelete(path string) (*api.Response, error) {
	f.record("DELETE", path)
	return &api.Response{StatusCode: 200}, nil
}

// jobEnv is a migration service wired to two fake tenant remotes.
type jobEnv struct {
	db     *gorm.DB
	svc    *Service
	task   *models.MigrationTask
	source *fakeRemote
	target *fakeRemote

	sourceTenantID string
	targetTenantID string
}

func newJobEnv(t *testing.T) *jobEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	source := models.Tenant{
		Name: "dev", Platform: models.PlatformNeo,
		Host: "https://dev.example.com", NeoUsername: "user", NeoPasswordEnc: "x",
	}
	target := models.Tenant{
		Name: "prod", Platform: models.PlatformNeo,
		Host: "https://prod.example.com", NeoUsername: "user", NeoPasswordEnc: "x",
	}
	require.NoError(t, db.Create(&source).Error)
	require.NoError(t, db.Create(&target).Error)

	task := models.MigrationTask{Name: "dev-to-prod", SourceTenantID: source.ID, TargetTenantID: target.ID}
	require.NoError(t, db.Create(&task).Error)

	cfg := config.Default()
	cfg.PollInterval = time.Millisecond
	cfg.FlowDeployMaxWait = 10 * time.Millisecond
	cfg.DataStoreMaxWait = 10 * time.Millisecond

	env := &jobEnv{
		db:             db,
		task:           &task,
		source:         &fakeRemote{json: map[string]string{}, binary: map[string][]byte{}},
		target:         &fakeRemote{json: map[string]string{}, binary: map[string][]byte{}},
		sourceTenantID: source.ID,
		targetTenantID: target.ID,
	}

	env.svc = NewService(db, cfg, nil)
	env.svc.newConnector = func(tenant *models.Tenant) Connector {
		if tenant.ID == env.sourceTenantID {
			return env.source
		}
		return env.target
	}
	return env
}

func (e *jobEnv) addNode(t *testing.T, component models.Component, itemID string) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.TaskNode{
		TaskID: e.task.ID, Component: component, ItemID: itemID, Name: itemID,
		Included: true, ExistInSource: true,
	}).Error)
}

func (e *jobEnv) newJob(t *testing.T) *models.MigrationJob {
	t.Helper()
	job := models.MigrationJob{TaskID: e.task.ID}
	require.NoError(t, e.db.Create(&job).Error)
	return &job
}

func (e *jobEnv) reload(t *testing.T, jobID string) *models.MigrationJob {
	t.Helper()
	var job models.MigrationJob
	require.NoError(t, e.db.First(&job, "id = ?", jobID).Error)
	return &job
}

func (e *jobEnv) findings(t *testing.T, jobID, ftype string) []models.Finding {
	t.Helper()
	var out []models.Finding
	require.NoError(t, e.db.Where("job_id = ? AND type = ?", jobID, ftype).Find(&out).Error)
	return out
}

func TestExecuteGuards(t *testing.T) {
	t.Run("Should refuse jobs that are not pending", func(t *testing.T) {
		env := newJobEnv(t)
		job := env.newJob(t)
		require.NoError(t, env.db.Model(job).Update("status", models.JobStatusRunning).Error)

		err := env.svc.Execute(job.ID)
		assert.ErrorContains(t, err, "only pending jobs")
	})

	t.Run("Should fail jobs whose task has no included items", func(t *testing.T) {
		env := newJobEnv(t)
		job := env.newJob(t)

		err := env.svc.Execute(job.ID)
		require.Error(t, err)

		reloaded := env.reload(t, job.ID)
		assert.Equal(t, models.JobStatusFailed, reloaded.Status)
		assert.Equal(t, models.SeverityCritical, reloaded.Severity)
		assert.NotNil(t, reloaded.EndedAt)
		assert.Contains(t, reloaded.Log, "CRITICAL")
	})

	t.Run("Should fail jobs pointing at a vanished task", func(t *testing.T) {
		env := newJobEnv(t)
		job := env.newJob(t)
		require.NoError(t, env.db.Delete(&models.MigrationTask{}, "id = ?", env.task.ID).Error)

		err := env.svc.Execute(job.ID)
		require.Error(t, err)
		assert.Equal(t, models.JobStatusFailed, env.reload(t, job.ID).Status)
	})
}

func TestExecuteNumberRanges(t *testing.T) {
	t.Run("Should isolate item failures and keep migrating", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentNumberRange, "RangeA")
		env.addNode(t, models.ComponentNumberRange, "RangeB")
		env.addNode(t, models.ComponentNumberRange, "RangeGone")

		env.source.json["/api/v1/NumberRanges"] = `{"d":{"results":[
			{"Name":"RangeA","MinValue":"1","MaxValue":"100","CurrentValue":"5","FieldLength":"10","Rotate":"false"},
			{"Name":"RangeB","MinValue":"1","MaxValue":"100","CurrentValue":"7","FieldLength":"10","Rotate":"true"}
		]}}`
		env.target.postFunc = func(path string, payload interface{}) *api.Response {
			if m, ok := payload.(map[string]string); ok && m["Name"] == "RangeB" {
				return &api.Response{StatusCode: 500, Body: []byte("internal error")}
			}
			return nil
		}

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		reloaded := env.reload(t, job.ID)
		assert.Equal(t, models.JobStatusFinishedErrors, reloaded.Status)
		assert.Equal(t, models.SeverityCritical, reloaded.Severity)
		assert.Contains(t, reloaded.Log, "1/3 Number Ranges migrated")

		errs := env.findings(t, job.ID, models.FindingError)
		require.Len(t, errs, 2)
		byItem := make(map[string]models.Finding)
		for _, f := range errs {
			byItem[f.ItemName] = f
		}
		assert.Contains(t, byItem["RangeB"].Text, "HTTP 500")
		assert.Contains(t, byItem["RangeGone"].Text, "Missing content")
	})

	t.Run("Should treat duplicate ranges as warnings", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentNumberRange, "RangeA")
		env.source.json["/api/v1/NumberRanges"] = `{"d":{"results":[
			{"Name":"RangeA","MinValue":"1","MaxValue":"100","CurrentValue":"5","FieldLength":"10","Rotate":"false"}
		]}}`
		env.target.postFunc = func(path string, payload interface{}) *api.Response {
			return &api.Response{StatusCode: 409, Body: []byte("exists")}
		}

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		assert.Equal(t, models.JobStatusFinishedWarnings, env.reload(t, job.ID).Status)
		assert.Len(t, env.findings(t, job.ID, models.FindingWarning), 1)
	})
}

func TestExecuteVariables(t *testing.T) {
	t.Run("Should finish clean when the synthetic flow starts", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentVariable, "apiKey")

		env.source.json["/api/v1/Variables"] = `{"d":{"results":[
			{"VariableName":"apiKey","IntegrationFlow":"","Visibility":"Global"}
		]}}`
		env.source.binary["/api/v1/Variables(VariableName='apiKey',IntegrationFlow='')/$value"] = []byte("secret")
		env.target.json["/api/v1/IntegrationRuntimeArtifacts('TransitVariable_apiKey')"] = `{"d":{"Status":"STARTED"}}`

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		reloaded := env.reload(t, job.ID)
		assert.Equal(t, models.JobStatusFinished, reloaded.Status)
		assert.Equal(t, models.SeverityPositive, reloaded.Severity)
		assert.Contains(t, reloaded.Log, "1/1 Variables migrated")

		// Upload, deploy and full teardown all hit the target.
		assert.True(t, env.target.called("POST", "/api/v1/IntegrationDesigntimeArtifacts"))
		assert.True(t, env.target.called("POST", "/api/v1/DeployIntegrationDesigntimeArtifact?Id='TransitVariable_apiKey'&Version='active'"))
		assert.True(t, env.target.called("DELETE", "/api/v1/IntegrationRuntimeArtifacts('TransitVariable_apiKey')"))
		assert.True(t, env.target.called("DELETE", "/api/v1/IntegrationDesigntimeArtifacts(Id='TransitVariable_apiKey',Version='active')"))
		assert.True(t, env.target.called("DELETE", fmt.Sprintf("/api/v1/IntegrationPackages('%s')", transientPackageID)))
	})

	t.Run("Should record missing variables as errors", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentVariable, "ghost")
		env.source.json["/api/v1/Variables"] = `{"d":{"results":[]}}`

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		assert.Equal(t, models.JobStatusFinishedErrors, env.reload(t, job.ID).Status)
		errs := env.findings(t, job.ID, models.FindingError)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Text, "Missing content")
	})
}

func TestExecuteDataStores(t *testing.T) {
	t.Run("Should tear down the synthetic flow after a processing timeout", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentDataStore, "Orders")

		env.source.json["/api/v1/DataStores"] = `{"d":{"results":[
			{"DataStoreName":"Orders","IntegrationFlow":"","Visibility":"Global"}
		]}}`
		env.source.json["/api/v1/DataStoreEntries?$filter=DataStoreName eq 'Orders' and IntegrationFlow eq ''"] = `{"d":{"results":[
			{"Id":"e1","Status":"WAITING","MessageId":"m1"}
		]}}`
		env.source.binary["/api/v1/DataStoreEntries(Id='e1',DataStoreName='Orders',IntegrationFlow='')/$value"] = []byte("entry-body")

		// Deployment starts, but no message processing log ever shows up.
		env.target.json["/api/v1/IntegrationRuntimeArtifacts('TransitDataStore_Orders')"] = `{"d":{"Status":"STARTED"}}`
		env.target.json["/api/v1/MessageProcessingLogs?$filter=IntegrationFlowName eq 'TransitDataStore_Orders'&$orderby=LogEnd desc&$top=1"] = `{"d":{"results":[]}}`

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		reloaded := env.reload(t, job.ID)
		assert.Equal(t, models.JobStatusFinishedErrors, reloaded.Status)
		assert.Contains(t, reloaded.Log, "Data store Orders: 0 entries migrated")
		assert.Contains(t, reloaded.Log, "timed out")

		// Teardown must run even though the flow never completed its work.
		assert.True(t, env.target.called("DELETE", "/api/v1/IntegrationRuntimeArtifacts('TransitDataStore_Orders')"))
		assert.True(t, env.target.called("DELETE", "/api/v1/IntegrationDesigntimeArtifacts(Id='TransitDataStore_Orders',Version='active')"))
		assert.True(t, env.target.called("DELETE", fmt.Sprintf("/api/v1/IntegrationPackages('%s')", transientPackageID)))
	})

	t.Run("Should count fully replayed entries", func(t *testing.T) {
		env := newJobEnv(t)
		env.addNode(t, models.ComponentDataStore, "Orders")

		env.source.json["/api/v1/DataStores"] = `{"d":{"results":[
			{"DataStoreName":"Orders","IntegrationFlow":"","Visibility":"Global"}
		]}}`
		env.source.json["/api/v1/DataStoreEntries?$filter=DataStoreName eq 'Orders' and IntegrationFlow eq ''"] = `{"d":{"results":[
			{"Id":"e1","Status":"WAITING","MessageId":"m1"},
			{"Id":"e2","Status":"WAITING","MessageId":"m2"}
		]}}`
		env.source.binary["/api/v1/DataStoreEntries(Id='e1',DataStoreName='Orders',IntegrationFlow='')/$value"] = []byte("one")
		env.source.binary["/api/v1/DataStoreEntries(Id='e2',DataStoreName='Orders',IntegrationFlow='')/$value"] = []byte("two")

		env.target.json["/api/v1/IntegrationRuntimeArtifacts('TransitDataStore_Orders')"] = `{"d":{"Status":"STARTED"}}`
		env.target.json["/api/v1/MessageProcessingLogs?$filter=IntegrationFlowName eq 'TransitDataStore_Orders'&$orderby=LogEnd desc&$top=1"] = `{"d":{"results":[{"MessageGuid":"g1","Status":"COMPLETED"}]}}`

		job := env.newJob(t)
		require.NoError(t, env.svc.Execute(job.ID))

		reloaded := env.reload(t, job.ID)
		assert.Equal(t, models.JobStatusFinished, reloaded.Status)
		assert.Contains(t, reloaded.Log, "Data store Orders: 2 entries migrated")
	})
}

func TestDeriveOutcome(t *testing.T) {
	env := newJobEnv(t)
	seed := func(t *testing.T, types ...string) string {
		t.Helper()
		job := env.newJob(t)
		for _, ftype := range types {
			require.NoError(t, env.db.Create(&models.Finding{
				JobID: job.ID, Type: ftype, Component: models.ComponentPackage, Text: ftype,
			}).Error)
		}
		return job.ID
	}

	t.Run("Should finish clean without findings", func(t *testing.T) {
		status, severity := env.svc.deriveOutcome(seed(t))
		assert.Equal(t, models.JobStatusFinished, status)
		assert.Equal(t, models.SeverityPositive, severity)
	})

	t.Run("Should finish with warnings on warning findings", func(t *testing.T) {
		status, severity := env.svc.deriveOutcome(seed(t, models.FindingWarning, models.FindingInfo))
		assert.Equal(t, models.JobStatusFinishedWarnings, status)
		assert.Equal(t, models.SeverityNegative, severity)
	})

	t.Run("Should let errors dominate warnings", func(t *testing.T) {
		status, severity := env.svc.deriveOutcome(seed(t, models.FindingWarning, models.FindingError))
		assert.Equal(t, models.JobStatusFinishedErrors, status)
		assert.Equal(t, models.SeverityCritical, severity)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	long := strings.Repeat("x", 600)
	assert.Equal(t, 503, len(truncate(long, 500)))
	assert.True(t, strings.HasSuffix(truncate(long, 500), "..."))
}
