package migration

import (
	"fmt"
	"sort"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// migrateVariables replays variables on the target via synthetic flows, global
// variables first, then flow-local ones grouped per owning flow.
func (r *run) migrateVariables() {
	nodes := r.nodes[models.ComponentVariable]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating variables (%d in scope)", len(nodes))

	var list odataList[liveVariable]
	if err := r.source.GetJSON("/api/v1/Variables", &list); err != nil {
		r.itemError(models.ComponentVariable, "", fmt.Errorf("failed to list source variables: %w", err))
		return
	}
	live := make(map[string]liveVariable, len(list.D.Results))
	for _, v := range list.D.Results {
		live[v.VariableName] = v
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		// Global variables (no owning flow) go first.
		if (nodes[i].PackageID == "") != (nodes[j].PackageID == "") {
			return nodes[i].PackageID == ""
		}
		return nodes[i].PackageID < nodes[j].PackageID
	})

	success := 0
	for _, node := range nodes {
		v, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentVariable, node.ItemID)
			continue
		}
		if r.migrateVariable(v) {
			success++
		}
	}
	r.tally(models.ComponentVariable, success, len(nodes))
}

func (r *run) migrateVariable(v liveVariable) bool {
	r.log(2, "Variable %s", v.VariableName)

	path := fmt.Sprintf("/api/v1/Variables(VariableName='%s',IntegrationFlow='%s')/$value",
		api.EscapeKey(v.VariableName), api.EscapeKey(v.IntegrationFlow))
	raw, err := r.source.GetBinary(path)
	if err != nil {
		r.itemError(models.ComponentVariable, v.VariableName, fmt.Errorf("failed to read value: %w", err))
		return false
	}

	item := models.ContentVariable{
		VariableName: v.VariableName,
		Visibility:   v.Visibility,
		FlowID:       v.IntegrationFlow,
	}
	value := string(raw)
	if err := r.s.customizations.OnMigrateVariable(&item, &value); err != nil {
		r.itemError(models.ComponentVariable, v.VariableName, fmt.Errorf("customization hook: %w", err))
		return false
	}

	content, err := variableFlowArchive(syntheticFlowID("TransitVariable", item.VariableName), item, value)
	if err != nil {
		r.itemError(models.ComponentVariable, v.VariableName, err)
		return false
	}
	return r.runSyntheticFlow(models.ComponentVariable, item.VariableName,
		syntheticFlowID("TransitVariable", item.VariableName), content, false)
}

// migrateDataStores replays data-store entries on the target via synthetic
// flows, global stores first.
func (r *run) migrateDataStores() {
	nodes := r.nodes[models.ComponentDataStore]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating data stores (%d in scope)", len(nodes))

	var list odataList[liveDataStore]
	if err := r.source.GetJSON("/api/v1/DataStores", &list); err != nil {
		r.itemError(models.ComponentDataStore, "", fmt.Errorf("failed to list source data stores: %w", err))
		return
	}
	live := make(map[string]liveDataStore, len(list.D.Results))
	for _, d := range list.D.Results {
		live[d.DataStoreName] = d
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if (nodes[i].PackageID == "") != (nodes[j].PackageID == "") {
			return nodes[i].PackageID == ""
		}
		return nodes[i].PackageID < nodes[j].PackageID
	})

	success := 0
	for _, node := range nodes {
		d, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentDataStore, node.ItemID)
			continue
		}
		if migrated := r.migrateDataStore(d); migrated > 0 {
			success++
			r.log(2, "Data store %s: %d entries migrated", d.DataStoreName, migrated)
		} else {
			r.log(2, "Data store %s: 0 entries migrated", d.DataStoreName)
		}
	}
	r.tally(models.ComponentDataStore, success, len(nodes))
}

// migrateDataStore returns the number of entries that made it to the target.
func (r *run) migrateDataStore(d liveDataStore) int {
	r.log(2, "Data store %s", d.DataStoreName)

	var entryList odataList[liveDataStoreEntry]
	listPath := fmt.Sprintf("/api/v1/DataStoreEntries?$filter=DataStoreName eq '%s' and IntegrationFlow eq '%s'",
		api.EscapeKey(d.DataStoreName), api.EscapeKey(d.IntegrationFlow))
	if err := r.source.GetJSON(listPath, &entryList); err != nil {
		r.itemError(models.ComponentDataStore, d.DataStoreName, fmt.Errorf("failed to list entries: %w", err))
		return 0
	}
	if len(entryList.D.Results) == 0 {
		r.log(2, "Data store %s has no entries, nothing to do", d.DataStoreName)
		return 0
	}

	store := models.ContentDataStore{
		DataStoreName: d.DataStoreName,
		Visibility:    d.Visibility,
		FlowID:        d.IntegrationFlow,
	}

	var entries []dataStoreEntryPayload
	for _, e := range entryList.D.Results {
		payloadPath := fmt.Sprintf("/api/v1/DataStoreEntries(Id='%s',DataStoreName='%s',IntegrationFlow='%s')/$value",
			api.EscapeKey(e.ID), api.EscapeKey(d.DataStoreName), api.EscapeKey(d.IntegrationFlow))
		payload, err := r.source.GetBinary(payloadPath)
		if err != nil {
			r.itemError(models.ComponentDataStore, d.DataStoreName,
				fmt.Errorf("failed to read entry %s: %w", e.ID, err))
			continue
		}
		entry := models.ContentDataStoreEntry{EntryID: e.ID, Status: e.Status, MessageID: e.MessageID}
		if err := r.s.customizations.OnMigrateDataStoreEntry(&entry, &payload); err != nil {
			r.itemError(models.ComponentDataStore, d.DataStoreName,
				fmt.Errorf("customization hook on entry %s: %w", e.ID, err))
			continue
		}
		entries = append(entries, dataStoreEntryPayload{ID: entry.EntryID, Payload: payload})
	}
	if len(entries) == 0 {
		return 0
	}

	flowID := syntheticFlowID("TransitDataStore", d.DataStoreName)
	content, err := dataStoreFlowArchive(flowID, store, entries)
	if err != nil {
		r.itemError(models.ComponentDataStore, d.DataStoreName, err)
		return 0
	}
	if !r.runSyntheticFlow(models.ComponentDataStore, d.DataStoreName, flowID, content, true) {
		return 0
	}
	return len(entries)
}

// runSyntheticFlow drives the create-deploy-poll-teardown state machine for
// one synthetic flow. Teardown always runs once deployment was attempted,
// even on failure or timeout.
func (r *run) runSyntheticFlow(component models.Component, item, flowID string, content []byte, awaitProcessing bool) bool {
	if err := r.ensureTransientPackage(); err != nil {
		r.itemError(component, item, err)
		return false
	}
	defer r.removeTransientPackage()

	if err := r.uploadSyntheticFlow(flowID, content); err != nil {
		r.itemError(component, item, err)
		return false
	}
	defer r.teardownSyntheticFlow(flowID)

	result, err := r.deployAndAwait(flowID)
	if result == PollTimedOut {
		r.log(2, "deployment of %s timed out", flowID)
	}
	if err != nil {
		r.itemError(component, item, err)
		return false
	}

	if awaitProcessing {
		result, err = r.awaitProcessing(flowID)
		if result == PollTimedOut {
			r.log(2, "processing on %s timed out", flowID)
		}
		if err != nil {
			r.itemError(component, item, err)
			return false
		}
	}
	return true
}
