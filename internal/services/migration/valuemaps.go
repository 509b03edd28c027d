package migration

import (
	"encoding/base64"
	"fmt"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api/batch"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

func (r *run) migrateValueMappings() {
	nodes := r.nodes[models.ComponentValueMapping]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating value mappings (%d in scope)", len(nodes))

	var list odataList[struct {
		ID        string `json:"Id"`
		Name      string `json:"Name"`
		PackageID string `json:"PackageId"`
	}]
	if err := r.source.GetJSON("/api/v1/ValueMappingDesigntimeArtifacts", &list); err != nil {
		r.itemError(models.ComponentValueMapping, "", fmt.Errorf("failed to list source value mappings: %w", err))
		return
	}
	live := make(map[string]struct{ Name, PackageID string }, len(list.D.Results))
	for _, vm := range list.D.Results {
		live[vm.ID] = struct{ Name, PackageID string }{vm.Name, vm.PackageID}
	}

	success := 0
	for _, node := range nodes {
		meta, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentValueMapping, node.ItemID)
			continue
		}
		if r.migrateValueMapping(node.ItemID, meta.Name, meta.PackageID) {
			success++
		}
	}
	r.tally(models.ComponentValueMapping, success, len(nodes))
}

// migrateValueMapping recreates the artifact on the target, replays its rows
// through one batch changeset per schema, then re-applies the schema's default
// mapping.
func (r *run) migrateValueMapping(id, name, packageID string) bool {
	r.log(2, "Value mapping %s", id)

	item := models.ContentValueMapping{MappingID: id, Name: name, PackageID: packageID}
	if err := r.s.customizations.OnMigrateValueMapping(&item); err != nil {
		r.itemError(models.ComponentValueMapping, id, fmt.Errorf("customization hook: %w", err))
		return false
	}

	data, err := r.source.GetBinary(fmt.Sprintf("/api/v1/ValueMappingDesigntimeArtifacts(Id='%s',Version='active')/$value", api.EscapeKey(id)))
	if err != nil {
		r.itemError(models.ComponentValueMapping, id, fmt.Errorf("artifact download failed: %w", err))
		return false
	}

	resp, err := r.target.Post("/api/v1/ValueMappingDesigntimeArtifacts", map[string]string{
		"Id":              item.MappingID,
		"Name":            item.Name,
		"PackageId":       item.PackageID,
		"ArtifactContent": base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		r.itemError(models.ComponentValueMapping, id, err)
		return false
	}
	if !r.classify(resp, api.Rules{Ignore: []int{409}}, models.ComponentValueMapping, id, "artifact creation") {
		return false
	}

	var schemas odataList[liveValMapSchema]
	if err := r.source.GetJSON(fmt.Sprintf("/api/v1/ValueMappingDesigntimeArtifacts(Id='%s',Version='active')/ValMapSchema", api.EscapeKey(id)), &schemas); err != nil {
		r.itemError(models.ComponentValueMapping, id, fmt.Errorf("failed to list schemas: %w", err))
		return false
	}

	ok := true
	for _, schema := range schemas.D.Results {
		if !r.migrateValMapSchema(id, schema) {
			ok = false
		}
	}
	return ok
}

func valMapSchemaPath(artifactID string, s liveValMapSchema, tail string) string {
	return fmt.Sprintf("/api/v1/ValueMappingDesigntimeArtifacts(Id='%s',Version='active')/ValMapSchema(SrcAgency='%s',SrcId='%s',TgtAgency='%s',TgtId='%s')%s",
		api.EscapeKey(artifactID),
		api.EscapeKey(s.SrcAgency), api.EscapeKey(s.SrcID),
		api.EscapeKey(s.TgtAgency), api.EscapeKey(s.TgtID), tail)
}

func (r *run) migrateValMapSchema(artifactID string, schema liveValMapSchema) bool {
	var rows odataList[liveValMap]
	if err := r.source.GetJSON(valMapSchemaPath(artifactID, schema, "/ValMaps"), &rows); err != nil {
		r.itemError(models.ComponentValueMapping, artifactID, fmt.Errorf("failed to list rows: %w", err))
		return false
	}

	if len(rows.D.Results) > 0 {
		req := batch.New()
		for _, row := range rows.D.Results {
			path := fmt.Sprintf("/UpsertValMaps?Id='%s'&Version='active'&SrcAgency='%s'&SrcId='%s'&TgtAgency='%s'&TgtId='%s'&SrcValue='%s'&TgtValue='%s'&IsConfigured=true",
				api.EscapeKey(artifactID),
				api.EscapeKey(schema.SrcAgency), api.EscapeKey(schema.SrcID),
				api.EscapeKey(schema.TgtAgency), api.EscapeKey(schema.TgtID),
				api.EscapeKey(row.Value.SrcValue), api.EscapeKey(row.Value.TgtValue))
			if err := req.AddPost(path, nil); err != nil {
				r.itemError(models.ComponentValueMapping, artifactID, err)
				return false
			}
		}
		resp, err := r.target.PostMultipart("/api/v1/$batch", req.Boundary(), req.Build())
		if err != nil {
			r.itemError(models.ComponentValueMapping, artifactID, err)
			return false
		}
		if !r.classify(resp, api.Rules{}, models.ComponentValueMapping, artifactID,
			fmt.Sprintf("row replay (%d rows)", req.Len())) {
			return false
		}
	}

	return r.applyDefaultValMap(artifactID, schema)
}

// applyDefaultValMap looks up the schema's default row on the source and
// re-points the freshly created target row's generated id at it. Zero or more
// than one candidate is an ambiguous state that is surfaced, never guessed.
func (r *run) applyDefaultValMap(artifactID string, schema liveValMapSchema) bool {
	var defaults odataList[liveValMap]
	if err := r.source.GetJSON(valMapSchemaPath(artifactID, schema, "/DefaultValMaps"), &defaults); err != nil {
		r.itemError(models.ComponentValueMapping, artifactID, fmt.Errorf("failed to read default mapping: %w", err))
		return false
	}
	if len(defaults.D.Results) == 0 {
		return true
	}
	if len(defaults.D.Results) > 1 {
		r.itemError(models.ComponentValueMapping, artifactID,
			fmt.Errorf("schema %s/%s has %d default mappings on the source, expected one",
				schema.SrcAgency, schema.TgtAgency, len(defaults.D.Results)))
		return false
	}
	wanted := defaults.D.Results[0].Value.SrcValue

	var targetRows odataList[liveValMap]
	if err := r.target.GetJSON(valMapSchemaPath(artifactID, schema, "/ValMaps"), &targetRows); err != nil {
		r.itemError(models.ComponentValueMapping, artifactID, fmt.Errorf("failed to list target rows: %w", err))
		return false
	}

	var candidates []liveValMap
	for _, row := range targetRows.D.Results {
		if row.Value.SrcValue == wanted {
			candidates = append(candidates, row)
		}
	}
	if len(candidates) != 1 {
		r.itemError(models.ComponentValueMapping, artifactID,
			fmt.Errorf("default mapping %q matches %d target rows, expected exactly one", wanted, len(candidates)))
		return false
	}

	path := fmt.Sprintf("/api/v1/UpdateDefaultValMap?Id='%s'&Version='active'&SrcAgency='%s'&SrcId='%s'&TgtAgency='%s'&TgtId='%s'&ValMapId='%s'&IsConfigured=true",
		api.EscapeKey(artifactID),
		api.EscapeKey(schema.SrcAgency), api.EscapeKey(schema.SrcID),
		api.EscapeKey(schema.TgtAgency), api.EscapeKey(schema.TgtID),
		api.EscapeKey(candidates[0].ID))
	resp, err := r.target.Post(path, nil)
	if err != nil {
		r.itemError(models.ComponentValueMapping, artifactID, err)
		return false
	}
	return r.classify(resp, api.Rules{}, models.ComponentValueMapping, artifactID, "default mapping update")
}
