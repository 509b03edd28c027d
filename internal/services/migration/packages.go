package migration

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api/batch"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/hooks"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// splitPackageID classifies a package id. An id containing a dot is a named
// copy of the package before the last dot, with the remainder as the copy
// suffix; anything else is a plain subscription.
func splitPackageID(id string) (base, suffix string, isCopy bool) {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[:i], id[i+1:], true
	}
	return id, "", false
}

func (r *run) migratePackages() {
	nodes := r.nodes[models.ComponentPackage]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating integration packages (%d in scope)", len(nodes))

	var list odataList[livePackage]
	if err := r.source.GetJSON("/api/v1/IntegrationPackages", &list); err != nil {
		r.itemError(models.ComponentPackage, "", fmt.Errorf("failed to list source packages: %w", err))
		return
	}
	live := make(map[string]livePackage, len(list.D.Results))
	for _, p := range list.D.Results {
		live[p.ID] = p
	}

	success := 0
	for _, node := range nodes {
		p, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentPackage, node.ItemID)
			continue
		}
		if node.ConfigureOnly {
			if r.configurePackage(p) {
				success++
			}
			continue
		}
		if r.copyPackage(node, p) {
			success++
		}
	}
	r.tally(models.ComponentPackage, success, len(nodes))
}

// copyPackage performs a full package transfer. Vendor packages go through
// the subscription or named-copy call; custom packages move as zip archives.
func (r *run) copyPackage(node models.TaskNode, p livePackage) bool {
	r.log(2, "Package %s", p.ID)

	if r.s.cfg.DeleteTargetBeforeCopy && node.ExistInTarget {
		// The remote API only partially supports overwrites, removing the
		// target copy first avoids drift.
		resp, err := r.target.Delete(fmt.Sprintf("/api/v1/IntegrationPackages('%s')", api.EscapeKey(p.ID)))
		if err != nil {
			r.itemError(models.ComponentPackage, p.ID, fmt.Errorf("failed to delete existing target package: %w", err))
			return false
		}
		if !resp.IsSuccess() && resp.StatusCode != 404 {
			r.itemError(models.ComponentPackage, p.ID,
				fmt.Errorf("deletion of existing target package returned HTTP %d", resp.StatusCode))
			return false
		}
		r.log(2, "Removed existing target copy of %s", p.ID)
	}

	if p.Vendor == "SAP" || p.PartnerContent {
		return r.subscribePackage(p)
	}
	return r.uploadCustomPackage(p)
}

func (r *run) subscribePackage(p livePackage) bool {
	var path string
	if base, suffix, isCopy := splitPackageID(p.ID); isCopy {
		path = fmt.Sprintf("/api/v1/CopyIntegrationPackages?Id='%s'&ImportMode='CREATE_COPY'&Suffix='%s'",
			api.EscapeKey(base), api.EscapeKey(suffix))
	} else {
		path = fmt.Sprintf("/api/v1/CopyIntegrationPackages?Id='%s'", api.EscapeKey(p.ID))
	}

	resp, err := r.target.Post(path, nil)
	if err != nil {
		r.itemError(models.ComponentPackage, p.ID, err)
		return false
	}
	// 409: already subscribed on the target, not worth failing the item over.
	return r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentPackage, p.ID, "package subscription")
}

func (r *run) uploadCustomPackage(p livePackage) bool {
	data, err := r.source.GetBinary(fmt.Sprintf("/api/v1/IntegrationPackages('%s')/$value", api.EscapeKey(p.ID)))
	if err != nil {
		r.itemError(models.ComponentPackage, p.ID, fmt.Errorf("package download failed: %w", err))
		return false
	}

	artifact := hooks.PackageArtifact{PackageID: p.ID, Name: p.Name, Archive: data}
	if err := r.s.customizations.OnMigratePackage(&artifact); err != nil {
		r.itemError(models.ComponentPackage, p.ID, fmt.Errorf("customization hook: %w", err))
		return false
	}

	resp, err := r.target.Post("/api/v1/IntegrationPackages", map[string]string{
		"PackageContent": base64.StdEncoding.EncodeToString(artifact.Archive),
	})
	if err != nil {
		r.itemError(models.ComponentPackage, p.ID, err)
		return false
	}
	return r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentPackage, p.ID, "package upload")
}

// configurePackage re-applies the source's flow configuration values onto the
// flows already present in the target package, one changeset per flow.
func (r *run) configurePackage(p livePackage) bool {
	r.log(2, "Package %s (configure only)", p.ID)

	var artifacts odataList[liveArtifact]
	path := fmt.Sprintf("/api/v1/IntegrationPackages('%s')/IntegrationDesigntimeArtifacts", api.EscapeKey(p.ID))
	if err := r.source.GetJSON(path, &artifacts); err != nil {
		r.itemError(models.ComponentPackage, p.ID, fmt.Errorf("failed to list package artifacts: %w", err))
		return false
	}

	ok := true
	for _, artifact := range artifacts.D.Results {
		if !r.configureFlow(p.ID, artifact.ID) {
			ok = false
		}
	}
	return ok
}

func (r *run) configureFlow(packageID, flowID string) bool {
	var configs odataList[liveConfiguration]
	path := fmt.Sprintf("/api/v1/IntegrationDesigntimeArtifacts(Id='%s',Version='active')/Configurations", api.EscapeKey(flowID))
	if err := r.source.GetJSON(path, &configs); err != nil {
		r.itemError(models.ComponentFlow, flowID, fmt.Errorf("failed to read configuration: %w", err))
		return false
	}
	if len(configs.D.Results) == 0 {
		return true
	}

	req := batch.New()
	for _, c := range configs.D.Results {
		opPath := fmt.Sprintf("/api/v1/IntegrationDesigntimeArtifacts(Id='%s',Version='active')/$links/Configurations('%s')",
			api.EscapeKey(flowID), api.EscapeKey(c.ParameterKey))
		if err := req.AddPut(opPath, map[string]string{
			"ParameterValue": c.ParameterValue,
			"DataType":       c.DataType,
		}); err != nil {
			r.itemError(models.ComponentFlow, flowID, err)
			return false
		}
	}

	resp, err := r.target.PostMultipart("/api/v1/$batch", req.Boundary(), req.Build())
	if err != nil {
		r.itemError(models.ComponentFlow, flowID, err)
		return false
	}
	return r.classify(resp, api.Rules{}, models.ComponentFlow, flowID,
		fmt.Sprintf("configuration update (%d parameters, package %s)", req.Len(), packageID))
}
