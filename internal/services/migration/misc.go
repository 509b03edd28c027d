package migration

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

func (r *run) migrateNumberRanges() {
	nodes := r.nodes[models.ComponentNumberRange]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating number ranges (%d in scope)", len(nodes))

	var list odataList[liveNumberRange]
	if err := r.source.GetJSON("/api/v1/NumberRanges", &list); err != nil {
		r.itemError(models.ComponentNumberRange, "", fmt.Errorf("failed to list source number ranges: %w", err))
		return
	}
	live := make(map[string]liveNumberRange, len(list.D.Results))
	for _, nr := range list.D.Results {
		live[nr.Name] = nr
	}

	success := 0
	for _, node := range nodes {
		nr, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentNumberRange, node.ItemID)
			continue
		}

		item := models.ContentNumberRange{
			Name:         nr.Name,
			Description:  nr.Description,
			MinValue:     nr.MinValue,
			MaxValue:     nr.MaxValue,
			CurrentValue: nr.CurrentValue,
			Rotate:       nr.Rotate,
		}
		if err := r.s.customizations.OnMigrateNumberRange(&item); err != nil {
			r.itemError(models.ComponentNumberRange, nr.Name, fmt.Errorf("customization hook: %w", err))
			continue
		}

		resp, err := r.target.Post("/api/v1/NumberRanges", map[string]string{
			"Name":         item.Name,
			"Description":  item.Description,
			"MinValue":     item.MinValue,
			"MaxValue":     item.MaxValue,
			"CurrentValue": item.CurrentValue,
			"FieldLength":  nr.FieldLength,
			"Rotate":       fmt.Sprintf("%t", item.Rotate),
		})
		if err != nil {
			r.itemError(models.ComponentNumberRange, nr.Name, err)
			continue
		}
		if r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentNumberRange, nr.Name, "number range creation") {
			success++
		}
	}
	r.tally(models.ComponentNumberRange, success, len(nodes))
}

// migrateTagConfigurations merges the scoped source tag definitions into the
// target's existing configuration document. Target-only definitions survive;
// same-named definitions take the source's values.
func (r *run) migrateTagConfigurations() {
	nodes := r.nodes[models.ComponentTagConfiguration]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating custom tag configurations (%d in scope)", len(nodes))

	sourceTags, err := r.fetchTagConfiguration(r.source)
	if err != nil {
		r.itemError(models.ComponentTagConfiguration, "", fmt.Errorf("failed to read source tag configuration: %w", err))
		return
	}
	targetTags, err := r.fetchTagConfiguration(r.target)
	if err != nil {
		r.itemError(models.ComponentTagConfiguration, "", fmt.Errorf("failed to read target tag configuration: %w", err))
		return
	}

	bySource := make(map[string]tagDefinition, len(sourceTags))
	for _, t := range sourceTags {
		bySource[t.TagName] = t
	}

	merged := make([]tagDefinition, 0, len(targetTags)+len(nodes))
	inMerged := make(map[string]int)
	for _, t := range targetTags {
		inMerged[t.TagName] = len(merged)
		merged = append(merged, t)
	}

	success := 0
	for _, node := range nodes {
		def, ok := bySource[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentTagConfiguration, node.ItemID)
			continue
		}

		item := models.ContentTagConfiguration{
			Name:            def.TagName,
			PermittedValues: strings.Join(def.PermittedValues, ","),
			IsMandatory:     def.IsMandatory,
		}
		if err := r.s.customizations.OnMigrateTagConfiguration(&item); err != nil {
			r.itemError(models.ComponentTagConfiguration, def.TagName, fmt.Errorf("customization hook: %w", err))
			continue
		}
		def = tagDefinition{
			TagName:     item.Name,
			IsMandatory: item.IsMandatory,
		}
		if item.PermittedValues != "" {
			def.PermittedValues = strings.Split(item.PermittedValues, ",")
		}

		if idx, exists := inMerged[def.TagName]; exists {
			merged[idx] = def
		} else {
			inMerged[def.TagName] = len(merged)
			merged = append(merged, def)
		}
		success++
	}

	doc, err := json.Marshal(tagConfigurationDoc{CustomTagsConfiguration: merged})
	if err != nil {
		r.itemError(models.ComponentTagConfiguration, "", err)
		return
	}
	resp, err := r.target.Post("/api/v1/CustomTagConfigurations", map[string]string{
		"Name":                           "CustomTags",
		"CustomTagsConfigurationContent": base64.StdEncoding.EncodeToString(doc),
	})
	if err != nil {
		r.itemError(models.ComponentTagConfiguration, "", err)
		return
	}
	if !r.classify(resp, api.Rules{}, models.ComponentTagConfiguration, "CustomTags", "tag configuration update") {
		success = 0
	}
	r.tally(models.ComponentTagConfiguration, success, len(nodes))
}

func (r *run) fetchTagConfiguration(conn Connector) ([]tagDefinition, error) {
	body, err := conn.GetBinary("/api/v1/CustomTagConfigurations('CustomTags')/$value")
	if err != nil {
		// A tenant that never defined tags has no configuration document.
		var remote *api.RemoteError
		if errors.As(err, &remote) && remote.StatusCode == 404 {
			return nil, nil
		}
		return nil, err
	}
	var doc tagConfigurationDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tag configuration: %w", err)
	}
	return doc.CustomTagsConfiguration, nil
}

func (r *run) migrateAccessPolicies() {
	nodes := r.nodes[models.ComponentAccessPolicy]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating access policies (%d in scope)", len(nodes))

	var list odataList[liveAccessPolicy]
	if err := r.source.GetJSON("/api/v1/AccessPolicies?$expand=ArtifactReferences", &list); err != nil {
		r.itemError(models.ComponentAccessPolicy, "", fmt.Errorf("failed to list source access policies: %w", err))
		return
	}
	live := make(map[string]liveAccessPolicy, len(list.D.Results))
	for _, p := range list.D.Results {
		live[p.RoleName] = p
	}

	success := 0
	for _, node := range nodes {
		p, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentAccessPolicy, node.ItemID)
			continue
		}

		item := models.ContentAccessPolicy{RoleName: p.RoleName, Description: p.Description}
		for _, ref := range p.ArtifactReferences.Results {
			item.References = append(item.References, models.ContentPolicyReference{
				Name:               ref.Name,
				Description:        ref.Description,
				Type:               ref.Type,
				ConditionAttribute: ref.ConditionAttribute,
				ConditionValue:     ref.ConditionValue,
				ConditionType:      ref.ConditionType,
			})
		}
		if err := r.s.customizations.OnMigrateAccessPolicy(&item); err != nil {
			r.itemError(models.ComponentAccessPolicy, p.RoleName, fmt.Errorf("customization hook: %w", err))
			continue
		}

		refs := make([]map[string]string, 0, len(item.References))
		for _, ref := range item.References {
			refs = append(refs, map[string]string{
				"Name":               ref.Name,
				"Description":        ref.Description,
				"Type":               ref.Type,
				"ConditionAttribute": ref.ConditionAttribute,
				"ConditionValue":     ref.ConditionValue,
				"ConditionType":      ref.ConditionType,
			})
		}
		resp, err := r.target.Post("/api/v1/AccessPolicies", map[string]interface{}{
			"RoleName":           item.RoleName,
			"Description":        item.Description,
			"ArtifactReferences": refs,
		})
		if err != nil {
			r.itemError(models.ComponentAccessPolicy, p.RoleName, err)
			continue
		}
		if r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentAccessPolicy, p.RoleName, "access policy creation") {
			success++
		}
	}
	r.tally(models.ComponentAccessPolicy, success, len(nodes))
}

// checkJMSCapacity verifies the target broker can hold the source's queues.
// Nothing is migrated; queues materialize when flows using them deploy.
func (r *run) checkJMSCapacity() {
	if len(r.nodes[models.ComponentJMSBroker]) == 0 {
		return
	}
	r.log(1, "Checking JMS broker capacity")

	sourceBroker, err := r.fetchJMSBroker(r.source)
	if err != nil {
		r.itemError(models.ComponentJMSBroker, "Broker1", fmt.Errorf("failed to read source broker: %w", err))
		return
	}
	if sourceBroker == nil || sourceBroker.QueueCount == 0 {
		r.log(2, "Source tenant uses no JMS queues, nothing to check")
		return
	}

	targetBroker, err := r.fetchJMSBroker(r.target)
	if err != nil {
		r.itemError(models.ComponentJMSBroker, "Broker1", fmt.Errorf("failed to read target broker: %w", err))
		return
	}
	if targetBroker == nil {
		r.finding(models.FindingWarning, models.ComponentJMSBroker, "Broker1",
			fmt.Sprintf("Source tenant uses %d JMS queues but the target has no JMS broker provisioned", sourceBroker.QueueCount),
			models.SeverityNegative)
		return
	}

	free := targetBroker.MaxCapacity - targetBroker.QueueCount
	if free < sourceBroker.QueueCount {
		r.finding(models.FindingWarning, models.ComponentJMSBroker, targetBroker.Key,
			fmt.Sprintf("Target broker has %d free queue slots but the source uses %d queues, deployments will fail once the broker is full", free, sourceBroker.QueueCount),
			models.SeverityNegative)
		return
	}
	r.log(2, "Target broker has %d free queue slots for %d source queues", free, sourceBroker.QueueCount)
}

func (r *run) fetchJMSBroker(conn Connector) (*liveJMSBroker, error) {
	var broker odataSingle[liveJMSBroker]
	if err := conn.GetJSON("/api/v1/JmsBrokers('Broker1')", &broker); err != nil {
		// Tenants without JMS provisioning have no broker resource.
		var remote *api.RemoteError
		if errors.As(err, &remote) && (remote.StatusCode == 404 || remote.StatusCode == 403) {
			return nil, nil
		}
		return nil, err
	}
	return &broker.D, nil
}
