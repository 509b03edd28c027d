package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/archive"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

func TestVariableFlowArchive(t *testing.T) {
	t.Run("Should substitute the variable into the process XML", func(t *testing.T) {
		v := models.ContentVariable{VariableName: "apiKey", Visibility: models.VisibilityGlobal}
		data, err := variableFlowArchive("TransitVariable_apiKey", v, "secret<value>")
		require.NoError(t, err)

		entries, err := archive.ReadAll(data)
		require.NoError(t, err)

		flow := string(entries[flowEntryPrefix+"TransitVariable_apiKey.iflw"])
		assert.Contains(t, flow, "<value>apiKey</value>")
		assert.Contains(t, flow, "secret&lt;value&gt;")
		assert.Contains(t, flow, "<value>true</value>")
		assert.NotContains(t, flow, "__VARIABLE_NAME__")
		assert.NotContains(t, flow, "__VARIABLE_VALUE__")
	})

	t.Run("Should mark local variables as non-global", func(t *testing.T) {
		v := models.ContentVariable{VariableName: "counter", Visibility: models.VisibilityLocal, FlowID: "OrderFlow"}
		data, err := variableFlowArchive("TransitVariable_counter", v, "5")
		require.NoError(t, err)

		entries, err := archive.ReadAll(data)
		require.NoError(t, err)
		flow := string(entries[flowEntryPrefix+"TransitVariable_counter.iflw"])
		assert.Contains(t, flow, "<key>globalScope</key><value>false</value>")
	})

	t.Run("Should carry the manifest bundle name", func(t *testing.T) {
		v := models.ContentVariable{VariableName: "x", Visibility: models.VisibilityGlobal}
		data, err := variableFlowArchive("TransitVariable_x", v, "1")
		require.NoError(t, err)

		entries, err := archive.ReadAll(data)
		require.NoError(t, err)
		assert.Contains(t, string(entries["META-INF/MANIFEST.MF"]), "Bundle-SymbolicName: TransitVariable_x")
	})
}

func TestDataStoreFlowArchive(t *testing.T) {
	t.Run("Should inject the entry manifest into the script", func(t *testing.T) {
		store := models.ContentDataStore{DataStoreName: "Orders", Visibility: models.VisibilityGlobal}
		entries := []dataStoreEntryPayload{
			{ID: "e1", Payload: []byte("payload-one")},
			{ID: "e2", Payload: []byte("payload-two")},
		}

		data, err := dataStoreFlowArchive("TransitDataStore_Orders", store, entries)
		require.NoError(t, err)

		files, err := archive.ReadAll(data)
		require.NoError(t, err)

		script := string(files[scriptEntry])
		assert.Contains(t, script, `<entries store="Orders">`)
		assert.Contains(t, script, `<entry id="e1"`)
		assert.Contains(t, script, `<entry id="e2"`)
		assert.NotContains(t, script, "//__DATASTORE_ENTRIES__")
		// Payloads travel base64 encoded.
		assert.Contains(t, script, "cGF5bG9hZC1vbmU=")
	})
}

func TestSyntheticFlowID(t *testing.T) {
	t.Run("Should sanitize natural keys", func(t *testing.T) {
		assert.Equal(t, "TransitVariable_my_var_1", syntheticFlowID("TransitVariable", "my var/1"))
	})

	t.Run("Should bound the id length", func(t *testing.T) {
		long := make([]byte, 200)
		for i := range long {
			long[i] = 'a'
		}
		id := syntheticFlowID("TransitDataStore", string(long))
		assert.Len(t, id, 80)
	})
}
