package sync

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/archive"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/hooks"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// scriptRecorder captures every script handed to the customization surface
// during deep analysis and can reject one by path.
type scriptRecorder struct {
	hooks.NoOp
	files     []string
	artifacts []string
	scripts   []string
	reject    string
}

func (r *scriptRecorder) OnMigrateScript(file, artifactName, scriptText string) error {
	r.files = append(r.files, file)
	r.artifacts = append(r.artifacts, artifactName)
	r.scripts = append(r.scripts, scriptText)
	if r.reject != "" && file == r.reject {
		return errors.New("script uses a forbidden API")
	}
	return nil
}

func TestInspectScriptHook(t *testing.T) {
	nested, err := archive.Write(map[string][]byte{
		"META-INF/MANIFEST.MF":                    []byte("Manifest-Version: 1.0\r\nBundle-Name: Order Processing\r\n"),
		"src/main/resources/script/helper.groovy": []byte(`def host = System.getenv("HOST")`),
	})
	require.NoError(t, err)
	outer, err := archive.Write(map[string][]byte{"IFlow_Orders.zip": nested})
	require.NoError(t, err)

	responses := map[string]string{
		"/api/v1/IntegrationPackages('PkgX')/$value": string(outer),
	}

	t.Run("Should pass every matched script to the customization hook", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		rec := &scriptRecorder{}
		svc.customizations = rec

		pkg := &models.ContentPackage{PackageID: "PkgX"}
		svc.inspectPackage(&fakeConnector{responses: responses}, tenant, pkg)

		require.Len(t, rec.files, 1)
		assert.Equal(t, "src/main/resources/script/helper.groovy", rec.files[0])
		assert.Equal(t, "Order Processing", rec.artifacts[0])
		assert.Contains(t, rec.scripts[0], "System.getenv")
	})

	t.Run("Should record a warning when the hook rejects a script", func(t *testing.T) {
		svc, tenant := newTestService(t, responses)
		svc.customizations = &scriptRecorder{reject: "src/main/resources/script/helper.groovy"}

		pkg := &models.ContentPackage{PackageID: "PkgX"}
		svc.inspectPackage(&fakeConnector{responses: responses}, tenant, pkg)

		var warnings []models.Finding
		require.NoError(t, svc.db.Where("tenant_id = ? AND type = ? AND item_name = ?",
			tenant.ID, models.FindingWarning, "PkgX").Find(&warnings).Error)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0].Text, "forbidden API")
	})
}

func TestCountEnvAccess(t *testing.T) {
	t.Run("Should count environment accesses", func(t *testing.T) {
		script := []byte(`def a = System.getenv("HOST")
def b = System.env.PORT
def c = System.getenv("USER")`)
		assert.Equal(t, 3, countEnvAccess(script))
	})

	t.Run("Should report zero for clean scripts", func(t *testing.T) {
		assert.Zero(t, countEnvAccess([]byte("def msg = message.getBody(String)")))
	})

	t.Run("Should not match identifiers that merely contain env", func(t *testing.T) {
		assert.Zero(t, countEnvAccess([]byte("def environment = 'prod'")))
	})
}

func TestHasClientCertSender(t *testing.T) {
	t.Run("Should detect client certificate sender channels", func(t *testing.T) {
		flow := []byte(`<definitions>
  <messageFlow>
    <extensionElements>
      <property><key>direction</key><value>Sender</value></property>
      <property><key>senderAuthType</key><value>ClientCertificate</value></property>
    </extensionElements>
  </messageFlow>
</definitions>`)
		assert.True(t, hasClientCertSender(flow))
	})

	t.Run("Should ignore other authentication types", func(t *testing.T) {
		flow := []byte(`<definitions>
  <property><key>senderAuthType</key><value>RoleBased</value></property>
</definitions>`)
		assert.False(t, hasClientCertSender(flow))
	})

	t.Run("Should not match the value under a different key", func(t *testing.T) {
		flow := []byte(`<definitions>
  <property><key>credentialName</key><value>ClientCertificate</value></property>
</definitions>`)
		assert.False(t, hasClientCertSender(flow))
	})

	t.Run("Should handle truncated XML without error", func(t *testing.T) {
		assert.False(t, hasClientCertSender([]byte("<definitions><property><key>sender")))
	})
}

func TestParseManifest(t *testing.T) {
	t.Run("Should parse headers", func(t *testing.T) {
		manifest := []byte("Manifest-Version: 1.0\r\nBundle-Name: Order Processing\r\nBundle-Version: 1.0.3\r\n")
		headers := parseManifest(manifest)
		assert.Equal(t, "Order Processing", headers["Bundle-Name"])
		assert.Equal(t, "1.0.3", headers["Bundle-Version"])
	})

	t.Run("Should fold continuation lines", func(t *testing.T) {
		manifest := []byte("Import-Package: com.sap.gateway.ip.core.customdev.util,com.sap.it.api.ms\n g.service\n")
		headers := parseManifest(manifest)
		assert.Equal(t, "com.sap.gateway.ip.core.customdev.util,com.sap.it.api.msg.service", headers["Import-Package"])
	})

	t.Run("Should tolerate a missing manifest", func(t *testing.T) {
		assert.Empty(t, parseManifest(nil))
	})
}

func TestArtifactNameFromPath(t *testing.T) {
	assert.Equal(t, "OrderFlow", artifactNameFromPath("IntegrationFlow/OrderFlow.zip"))
	assert.Equal(t, "plain", artifactNameFromPath("plain"))
}
