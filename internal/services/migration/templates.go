package migration

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/archive"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// Flow templates for synthetic deployments. The remote platform has no write
// API for variables or data-store entries, so the orchestrator deploys a
// short-lived flow that performs the write from inside the runtime. Templates
// are assembled as archives and then patched entry-by-entry with the item
// values.

const manifestTemplate = `Manifest-Version: 1.0
Bundle-SymbolicName: __FLOW_ID__; singleton:=true
Bundle-ManifestVersion: 2
Bundle-Name: __FLOW_NAME__
Bundle-Version: 1.0.0
SAP-BundleType: IntegrationFlow
SAP-NodeType: IFLMAP
SAP-RuntimeProfile: iflmap
Import-Package: com.sap.gateway.ip.core.customdev.util
`

// variableFlowXML is a timer-started flow with one write-variables step. The
// variable name, value and scope live in extension-element properties and are
// substituted before upload.
const variableFlowXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn2:definitions xmlns:bpmn2="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:ifl="http:///com.sap.ifl.model/Ifl.xsd" id="Definitions_1">
  <bpmn2:process id="Process_1" name="__FLOW_NAME__">
    <bpmn2:extensionElements>
      <ifl:property><key>transactionTimeout</key><value>30</value></ifl:property>
    </bpmn2:extensionElements>
    <bpmn2:startEvent id="StartEvent_1" name="Start Timer">
      <bpmn2:extensionElements>
        <ifl:property><key>activationType</key><value>Automatic</value></ifl:property>
        <ifl:property><key>scheduleKey</key><value>runOnce</value></ifl:property>
      </bpmn2:extensionElements>
    </bpmn2:startEvent>
    <bpmn2:callActivity id="CallActivity_1" name="Write Variable">
      <bpmn2:extensionElements>
        <ifl:property><key>activityType</key><value>WriteVariables</value></ifl:property>
        <ifl:property><key>variableName</key><value>__VARIABLE_NAME__</value></ifl:property>
        <ifl:property><key>variableValue</key><value>__VARIABLE_VALUE__</value></ifl:property>
        <ifl:property><key>globalScope</key><value>__GLOBAL_SCOPE__</value></ifl:property>
      </bpmn2:extensionElements>
    </bpmn2:callActivity>
    <bpmn2:endEvent id="EndEvent_1" name="End"/>
    <bpmn2:sequenceFlow id="SequenceFlow_1" sourceRef="StartEvent_1" targetRef="CallActivity_1"/>
    <bpmn2:sequenceFlow id="SequenceFlow_2" sourceRef="CallActivity_1" targetRef="EndEvent_1"/>
  </bpmn2:process>
</bpmn2:definitions>
`

// dataStoreFlowXML runs one script step that replays data-store entries.
const dataStoreFlowXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn2:definitions xmlns:bpmn2="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:ifl="http:///com.sap.ifl.model/Ifl.xsd" id="Definitions_1">
  <bpmn2:process id="Process_1" name="__FLOW_NAME__">
    <bpmn2:startEvent id="StartEvent_1" name="Start Timer">
      <bpmn2:extensionElements>
        <ifl:property><key>activationType</key><value>Automatic</value></ifl:property>
        <ifl:property><key>scheduleKey</key><value>runOnce</value></ifl:property>
      </bpmn2:extensionElements>
    </bpmn2:startEvent>
    <bpmn2:callActivity id="CallActivity_1" name="Restore Entries">
      <bpmn2:extensionElements>
        <ifl:property><key>activityType</key><value>Script</value></ifl:property>
        <ifl:property><key>script</key><value>restoreEntries.groovy</value></ifl:property>
        <ifl:property><key>scriptFunction</key><value>processData</value></ifl:property>
      </bpmn2:extensionElements>
    </bpmn2:callActivity>
    <bpmn2:endEvent id="EndEvent_1" name="End"/>
    <bpmn2:sequenceFlow id="SequenceFlow_1" sourceRef="StartEvent_1" targetRef="CallActivity_1"/>
    <bpmn2:sequenceFlow id="SequenceFlow_2" sourceRef="CallActivity_1" targetRef="EndEvent_1"/>
  </bpmn2:process>
</bpmn2:definitions>
`

// dataStoreScript decodes the injected entry manifest and writes each entry
// into the named data store via the runtime service. The entries placeholder
// is replaced with a generated XML fragment before upload.
const dataStoreScript = `import com.sap.gateway.ip.core.customdev.util.Message
import com.sap.it.api.asdk.datastore.*
import com.sap.it.api.ITApiFactory

def Message processData(Message message) {
    def manifest = new XmlSlurper().parseText('''
//__DATASTORE_ENTRIES__
''')
    def service = ITApiFactory.getApi(DataStoreService.class, null)
    manifest.entry.each { e ->
        def bean = new DataBean()
        bean.setDataAsArray(e.@payload.toString().decodeBase64())
        def cfg = new DataConfig()
        cfg.setStoreName(manifest.@store.toString())
        cfg.setId(e.@id.toString())
        cfg.setOverwrite(true)
        service.put(bean, cfg)
    }
    return message
}
`

const (
	flowEntryPrefix = "src/main/resources/scenarioflows/integrationflow/"
	scriptEntry     = "src/main/resources/script/restoreEntries.groovy"
)

func renderManifest(flowID, name string) []byte {
	m := strings.ReplaceAll(manifestTemplate, "__FLOW_ID__", flowID)
	return []byte(strings.ReplaceAll(m, "__FLOW_NAME__", name))
}

// variableFlowArchive builds the deployable archive that writes one variable.
func variableFlowArchive(flowID string, v models.ContentVariable, value string) ([]byte, error) {
	entryPath := flowEntryPrefix + flowID + ".iflw"
	template, err := archive.Write(map[string][]byte{
		"META-INF/MANIFEST.MF": renderManifest(flowID, flowID),
		entryPath:              []byte(strings.ReplaceAll(variableFlowXML, "__FLOW_NAME__", flowID)),
	})
	if err != nil {
		return nil, err
	}

	globalScope := "false"
	if v.Visibility == models.VisibilityGlobal {
		globalScope = "true"
	}

	return archive.PatchOne(template, entryPath, func(content []byte) ([]byte, error) {
		xmlText := string(content)
		xmlText = strings.ReplaceAll(xmlText, "__VARIABLE_NAME__", escapeXML(v.VariableName))
		xmlText = strings.ReplaceAll(xmlText, "__VARIABLE_VALUE__", escapeXML(value))
		xmlText = strings.ReplaceAll(xmlText, "__GLOBAL_SCOPE__", globalScope)
		return []byte(xmlText), nil
	})
}

// dataStoreEntryPayload pairs one entry's metadata with its downloaded body.
type dataStoreEntryPayload struct {
	ID      string
	Payload []byte
}

// dataStoreFlowArchive builds the deployable archive that replays a data
// store's entries on the target runtime.
func dataStoreFlowArchive(flowID string, store models.ContentDataStore, entries []dataStoreEntryPayload) ([]byte, error) {
	entryPath := flowEntryPrefix + flowID + ".iflw"
	template, err := archive.Write(map[string][]byte{
		"META-INF/MANIFEST.MF": renderManifest(flowID, flowID),
		entryPath:              []byte(strings.ReplaceAll(dataStoreFlowXML, "__FLOW_NAME__", flowID)),
		scriptEntry:            []byte(dataStoreScript),
	})
	if err != nil {
		return nil, err
	}

	return archive.PatchOne(template, scriptEntry, func(content []byte) ([]byte, error) {
		fragment := entriesFragment(store, entries)
		return bytes.Replace(content, []byte("//__DATASTORE_ENTRIES__"), fragment, 1), nil
	})
}

// entriesFragment renders the XML manifest the restore script consumes.
func entriesFragment(store models.ContentDataStore, entries []dataStoreEntryPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "<entries store=%q>\n", escapeXML(store.DataStoreName))
	for _, e := range entries {
		fmt.Fprintf(&b, "  <entry id=%q payload=%q/>\n",
			escapeXML(e.ID), base64.StdEncoding.EncodeToString(e.Payload))
	}
	b.WriteString("</entries>")
	return []byte(b.String())
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
