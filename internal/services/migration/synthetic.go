package migration

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
)

// transientPackageID names the throwaway package that hosts synthetic flows on
// the target tenant. It is created on demand and removed after each flow.
const transientPackageID = "CloudIntegrationMigrationTransit"

// Runtime status sentinels of deployed artifacts.
const (
	runtimeStatusStarted = "STARTED"
	runtimeStatusError   = "ERROR"
)

// Message-processing log status sentinels.
const (
	mplStatusCompleted = "COMPLETED"
	mplStatusFailed    = "FAILED"
)

var flowIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// syntheticFlowID derives a deployable artifact id from an item's natural key.
func syntheticFlowID(prefix, naturalKey string) string {
	id := prefix + "_" + flowIDSanitizer.ReplaceAllString(naturalKey, "_")
	if len(id) > 80 {
		id = id[:80]
	}
	return id
}

// ensureTransientPackage creates the throwaway package on the target. An
// already existing package is fine.
func (r *run) ensureTransientPackage() error {
	resp, err := r.target.Post("/api/v1/IntegrationPackages", map[string]string{
		"Id":        transientPackageID,
		"Name":      "Migration Transit",
		"ShortText": "Temporary package for content migration, safe to delete",
		"Version":   "1.0.0",
	})
	if err != nil {
		return fmt.Errorf("failed to create transit package: %w", err)
	}
	if !resp.IsSuccess() && resp.StatusCode != 409 {
		return fmt.Errorf("transit package creation returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// removeTransientPackage deletes the throwaway package. Failures are logged
// only; a leftover package is harmless and flagged as safe to delete.
func (r *run) removeTransientPackage() {
	resp, err := r.target.Delete(fmt.Sprintf("/api/v1/IntegrationPackages('%s')", transientPackageID))
	if err != nil {
		r.log(2, "transit package cleanup failed: %v", err)
		return
	}
	if !resp.IsSuccess() && resp.StatusCode != 404 {
		r.log(2, "transit package cleanup returned HTTP %d", resp.StatusCode)
	}
}

// uploadSyntheticFlow uploads a flow archive into the transit package.
func (r *run) uploadSyntheticFlow(flowID string, content []byte) error {
	resp, err := r.target.Post("/api/v1/IntegrationDesigntimeArtifacts", map[string]string{
		"Id":              flowID,
		"Name":            flowID,
		"PackageId":       transientPackageID,
		"ArtifactContent": base64.StdEncoding.EncodeToString(content),
	})
	if err != nil {
		return fmt.Errorf("flow upload failed: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("flow upload returned HTTP %d: %s", resp.StatusCode, truncate(string(resp.Body), 300))
	}
	return nil
}

// deployAndAwait deploys an uploaded flow and polls its runtime status until
// it starts, errors out or the deploy wait elapses.
func (r *run) deployAndAwait(flowID string) (PollResult, error) {
	resp, err := r.target.Post(fmt.Sprintf("/api/v1/DeployIntegrationDesigntimeArtifact?Id='%s'&Version='active'", api.EscapeKey(flowID)), nil)
	if err != nil {
		return PollFailed, fmt.Errorf("deploy request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return PollFailed, fmt.Errorf("deploy request returned HTTP %d", resp.StatusCode)
	}

	result, status, err := pollUntil(func() (string, error) {
		var artifact odataSingle[liveRuntimeArtifact]
		err := r.target.GetJSON(fmt.Sprintf("/api/v1/IntegrationRuntimeArtifacts('%s')", api.EscapeKey(flowID)), &artifact)
		if err != nil {
			// The runtime artifact appears only once deployment progressed.
			var remote *api.RemoteError
			if errors.As(err, &remote) && remote.StatusCode == 404 {
				return "DEPLOYING", nil
			}
			return "", err
		}
		return artifact.D.Status, nil
	}, runtimeStatusStarted, runtimeStatusError, r.s.cfg.PollInterval, r.s.cfg.FlowDeployMaxWait)
	if err != nil {
		return PollFailed, err
	}
	if result != PollSucceeded {
		return result, fmt.Errorf("deployment %s (last status %s)", result, status)
	}
	return PollSucceeded, nil
}

// awaitProcessing polls the flow's message-processing logs. A completed log is
// the signal that the synthetic flow's work actually ran; a started runtime
// alone is not strong enough for data-store replays.
func (r *run) awaitProcessing(flowID string) (PollResult, error) {
	result, status, err := pollUntil(func() (string, error) {
		var logs odataList[liveMessageLog]
		path := fmt.Sprintf("/api/v1/MessageProcessingLogs?$filter=IntegrationFlowName eq '%s'&$orderby=LogEnd desc&$top=1", api.EscapeKey(flowID))
		if err := r.target.GetJSON(path, &logs); err != nil {
			return "", err
		}
		if len(logs.D.Results) == 0 {
			return "PENDING", nil
		}
		return logs.D.Results[0].Status, nil
	}, mplStatusCompleted, mplStatusFailed, r.s.cfg.PollInterval, r.s.cfg.DataStoreMaxWait)
	if err != nil {
		return PollFailed, err
	}
	if result != PollSucceeded {
		return result, fmt.Errorf("message processing %s (last status %s)", result, status)
	}
	return PollSucceeded, nil
}

// teardownSyntheticFlow undeploys and deletes a synthetic flow. It runs
// regardless of deployment outcome; failures are logged, never escalated.
func (r *run) teardownSyntheticFlow(flowID string) {
	if resp, err := r.target.Delete(fmt.Sprintf("/api/v1/IntegrationRuntimeArtifacts('%s')", api.EscapeKey(flowID))); err != nil {
		r.log(2, "undeploy of %s failed: %v", flowID, err)
	} else if !resp.IsSuccess() && resp.StatusCode != 404 {
		r.log(2, "undeploy of %s returned HTTP %d", flowID, resp.StatusCode)
	}

	if resp, err := r.target.Delete(fmt.Sprintf("/api/v1/IntegrationDesigntimeArtifacts(Id='%s',Version='active')", api.EscapeKey(flowID))); err != nil {
		r.log(2, "deletion of %s failed: %v", flowID, err)
	} else if !resp.IsSuccess() && resp.StatusCode != 404 {
		r.log(2, "deletion of %s returned HTTP %d", flowID, resp.StatusCode)
	}
}
