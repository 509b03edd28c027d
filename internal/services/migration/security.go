package migration

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// transitSecret is deployed in place of secrets the source API never exposes.
// Every credential carrying it gets a warning finding so the operator knows to
// re-enter the real value.
const transitSecret = "TransitSecret!42"

func (r *run) migrateCredentials() {
	nodes := r.nodes[models.ComponentCredential]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating user credentials (%d in scope)", len(nodes))

	var list odataList[liveCredential]
	if err := r.source.GetJSON("/api/v1/UserCredentials", &list); err != nil {
		r.itemError(models.ComponentCredential, "", fmt.Errorf("failed to list source credentials: %w", err))
		return
	}
	live := make(map[string]liveCredential, len(list.D.Results))
	for _, c := range list.D.Results {
		live[c.Name] = c
	}

	success := 0
	for _, node := range nodes {
		c, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentCredential, node.ItemID)
			continue
		}

		item := models.ContentCredential{Name: c.Name, Kind: c.Kind, User: c.User}
		if err := r.s.customizations.OnMigrateCredential(&item); err != nil {
			r.itemError(models.ComponentCredential, c.Name, fmt.Errorf("customization hook: %w", err))
			continue
		}

		resp, err := r.target.Post("/api/v1/UserCredentials", map[string]string{
			"Name":        item.Name,
			"Kind":        item.Kind,
			"Description": c.Description,
			"User":        item.User,
			"Password":    transitSecret,
		})
		if err != nil {
			r.itemError(models.ComponentCredential, c.Name, err)
			continue
		}
		if r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentCredential, c.Name, "credential creation") {
			success++
			// The remote API never exposes passwords, a placeholder went in.
			r.finding(models.FindingWarning, models.ComponentCredential, item.Name,
				fmt.Sprintf("Credential %s was created with a placeholder password, re-enter the real secret on the target tenant", item.Name),
				models.SeverityNegative)
		}
	}
	r.tally(models.ComponentCredential, success, len(nodes))
}

func (r *run) migrateKeystoreEntries() {
	nodes := r.nodes[models.ComponentKeystoreEntry]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating keystore entries (%d in scope)", len(nodes))

	var list odataList[struct {
		Hexalias string `json:"Hexalias"`
		Alias    string `json:"Alias"`
		Type     string `json:"Type"`
	}]
	if err := r.source.GetJSON("/api/v1/KeystoreEntries", &list); err != nil {
		r.itemError(models.ComponentKeystoreEntry, "", fmt.Errorf("failed to list source keystore: %w", err))
		return
	}
	live := make(map[string]models.ContentKeystoreEntry, len(list.D.Results))
	for _, e := range list.D.Results {
		live[e.Hexalias] = models.ContentKeystoreEntry{Hexalias: e.Hexalias, Alias: e.Alias, Type: e.Type}
	}

	success := 0
	for _, node := range nodes {
		entry, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentKeystoreEntry, node.ItemID)
			continue
		}
		if entry.Type != "Certificate" {
			// Key pairs cannot be exported through the API.
			r.log(2, "Keystore entry %s is a %s, only certificates can be migrated", entry.Alias, entry.Type)
			r.finding(models.FindingWarning, models.ComponentKeystoreEntry, entry.Alias,
				fmt.Sprintf("Keystore entry %s of type %s cannot be exported, recreate it manually on the target tenant", entry.Alias, entry.Type),
				models.SeverityNegative)
			continue
		}

		pem, err := r.source.GetBinary(fmt.Sprintf("/api/v1/KeystoreEntries('%s')/Certificate/$value", api.EscapeKey(entry.Hexalias)))
		if err != nil {
			r.itemError(models.ComponentKeystoreEntry, entry.Alias, fmt.Errorf("certificate download failed: %w", err))
			continue
		}
		if err := r.s.customizations.OnMigrateKeystoreEntry(&entry, &pem); err != nil {
			r.itemError(models.ComponentKeystoreEntry, entry.Alias, fmt.Errorf("customization hook: %w", err))
			continue
		}

		resp, err := r.target.PostCertificate(
			fmt.Sprintf("/api/v1/KeystoreEntries('%s')/Certificate/$value?overwrite=true", api.EscapeKey(entry.Hexalias)), pem)
		if err != nil {
			r.itemError(models.ComponentKeystoreEntry, entry.Alias, err)
			continue
		}
		if r.classify(resp, api.Rules{}, models.ComponentKeystoreEntry, entry.Alias, "certificate import") {
			success++
		}
	}
	r.tally(models.ComponentKeystoreEntry, success, len(nodes))
}

func (r *run) migrateOAuthCredentials() {
	nodes := r.nodes[models.ComponentOAuthCredential]
	if len(nodes) == 0 {
		return
	}
	r.log(1, "Migrating OAuth2 client credentials (%d in scope)", len(nodes))

	var list odataList[liveOAuthCredential]
	if err := r.source.GetJSON("/api/v1/OAuth2ClientCredentials", &list); err != nil {
		r.itemError(models.ComponentOAuthCredential, "", fmt.Errorf("failed to list source OAuth credentials: %w", err))
		return
	}
	live := make(map[string]liveOAuthCredential, len(list.D.Results))
	for _, c := range list.D.Results {
		live[c.Name] = c
	}

	success := 0
	for _, node := range nodes {
		c, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentOAuthCredential, node.ItemID)
			continue
		}

		item := models.ContentOAuthCredential{Name: c.Name, TokenURL: c.TokenServiceURL, ClientID: c.ClientID, Scope: c.Scope}
		if err := r.s.customizations.OnMigrateOAuthCredential(&item); err != nil {
			r.itemError(models.ComponentOAuthCredential, c.Name, fmt.Errorf("customization hook: %w", err))
			continue
		}

		resp, err := r.target.Post("/api/v1/OAuth2ClientCredentials", map[string]string{
			"Name":                 item.Name,
			"Description":          c.Description,
			"TokenServiceUrl":      item.TokenURL,
			"ClientId":             item.ClientID,
			"ClientSecret":         transitSecret,
			"Scope":                item.Scope,
			"ScopeContentType":     c.ScopeContentType,
			"ClientAuthentication": c.ClientAuth,
		})
		if err != nil {
			r.itemError(models.ComponentOAuthCredential, c.Name, err)
			continue
		}
		if r.classify(resp, api.Rules{Warning: []int{409}}, models.ComponentOAuthCredential, c.Name, "OAuth credential creation") {
			success++
			r.finding(models.FindingWarning, models.ComponentOAuthCredential, item.Name,
				fmt.Sprintf("OAuth credential %s was created with a placeholder secret, re-enter the real client secret on the target tenant", item.Name),
				models.SeverityNegative)
		}
	}
	r.tally(models.ComponentOAuthCredential, success, len(nodes))
}

// migrateCertUserMappings moves certificate-to-user mappings from a Neo source
// to a Cloud Foundry target, where they become a service instance plus a
// credential binding carrying the certificate.
func (r *run) migrateCertUserMappings() {
	nodes := r.nodes[models.ComponentCertUserMapping]
	if len(nodes) == 0 {
		return
	}
	if r.sourceTenant.Platform != models.PlatformNeo || !r.targetTenant.IsCloudFoundry() {
		r.log(1, "Skipping certificate-user mappings, only Neo to Cloud Foundry is supported")
		return
	}
	r.log(1, "Migrating certificate-user mappings (%d in scope)", len(nodes))

	var list odataList[struct {
		ID          string `json:"Id"`
		User        string `json:"User"`
		Certificate string `json:"Certificate"`
	}]
	if err := r.source.GetJSON("/api/v1/CertificateUserMappings", &list); err != nil {
		r.itemError(models.ComponentCertUserMapping, "", fmt.Errorf("failed to list source mappings: %w", err))
		return
	}
	live := make(map[string]models.ContentCertUserMapping, len(list.D.Results))
	for _, m := range list.D.Results {
		live[m.ID] = models.ContentCertUserMapping{MappingID: m.ID, User: m.User, Certificate: m.Certificate}
	}

	success := 0
	for _, node := range nodes {
		m, ok := live[node.ItemID]
		if !ok {
			r.missingContent(models.ComponentCertUserMapping, node.ItemID)
			continue
		}
		if err := r.s.customizations.OnMigrateCertUserMapping(&m); err != nil {
			r.itemError(models.ComponentCertUserMapping, m.User, fmt.Errorf("customization hook: %w", err))
			continue
		}
		if r.migrateCertUserMapping(m) {
			success++
		}
	}
	r.tally(models.ComponentCertUserMapping, success, len(nodes))
}

func (r *run) migrateCertUserMapping(m models.ContentCertUserMapping) bool {
	r.log(2, "Certificate-user mapping for %s", m.User)

	instanceID, ok := r.ensureServiceInstance(m.User)
	if !ok {
		return false
	}
	if instanceID == "" {
		// Existing instance in success state, nothing left to do.
		return true
	}
	return r.createCertificateBinding(instanceID, m)
}

// ensureServiceInstance creates (or finds) the service instance named after
// the mapping's user and waits for it to settle. An existing instance in
// success state is a no-op warning; one in error state needs manual cleanup.
// It returns ("", true) for the no-op case.
func (r *run) ensureServiceInstance(name string) (string, bool) {
	existing, ok, err := r.findServiceInstance(name)
	if err != nil {
		r.itemError(models.ComponentCertUserMapping, name, err)
		return "", false
	}
	if ok {
		switch existing.LastOperation.State {
		case "succeeded":
			r.log(2, "Service instance %s already exists, leaving it untouched", name)
			r.finding(models.FindingWarning, models.ComponentCertUserMapping, name,
				fmt.Sprintf("Service instance %s already exists on the target, the existing certificate mapping was kept", name),
				models.SeverityNeutral)
			return "", true
		case "failed":
			r.itemError(models.ComponentCertUserMapping, name,
				fmt.Errorf("service instance %s exists in a failed state and must be cleaned up manually", name))
			return "", false
		}
	}

	if !ok {
		resp, err := r.target.PlatformPost("/v1/service_instances", map[string]interface{}{
			"name":          name,
			"subaccount_id": r.targetTenant.PlatformSubaccountID,
			"parameters":    map[string]string{"grant-types": "client_x509"},
		})
		if err != nil {
			r.itemError(models.ComponentCertUserMapping, name, err)
			return "", false
		}
		if !resp.IsSuccess() {
			r.itemError(models.ComponentCertUserMapping, name,
				fmt.Errorf("service instance creation returned HTTP %d", resp.StatusCode))
			return "", false
		}
	}

	result, state, err := pollUntil(func() (string, error) {
		instance, found, err := r.findServiceInstance(name)
		if err != nil {
			return "", err
		}
		if !found {
			return "pending", nil
		}
		return instance.LastOperation.State, nil
	}, "succeeded", "failed", r.s.cfg.PollInterval, r.s.cfg.ServiceInstanceMaxWait)
	if err != nil {
		r.itemError(models.ComponentCertUserMapping, name, err)
		return "", false
	}
	if result != PollSucceeded {
		if result == PollTimedOut {
			r.log(2, "service instance %s provisioning timed out", name)
		}
		r.itemError(models.ComponentCertUserMapping, name,
			fmt.Errorf("service instance provisioning %s (last state %s)", result, state))
		return "", false
	}

	instance, _, err := r.findServiceInstance(name)
	if err != nil {
		r.itemError(models.ComponentCertUserMapping, name, err)
		return "", false
	}
	return instance.ID, true
}

func (r *run) findServiceInstance(name string) (*serviceInstance, bool, error) {
	body, err := r.target.PlatformGet("/v1/service_instances?fieldQuery=" + url.QueryEscape(fmt.Sprintf("name eq '%s'", name)))
	if err != nil {
		return nil, false, fmt.Errorf("service instance lookup failed: %w", err)
	}
	var instances struct {
		Items []serviceInstance `json:"items"`
	}
	if err := unmarshal(body, &instances); err != nil {
		return nil, false, err
	}
	switch len(instances.Items) {
	case 0:
		return nil, false, nil
	case 1:
		return &instances.Items[0], true, nil
	default:
		return nil, false, fmt.Errorf("%d service instances named %s, expected at most one", len(instances.Items), name)
	}
}

// createCertificateBinding attaches the mapping's certificate to the service
// instance as a credential binding and waits for it to settle.
func (r *run) createCertificateBinding(instanceID string, m models.ContentCertUserMapping) bool {
	cert := base64.StdEncoding.EncodeToString([]byte(strings.ReplaceAll(m.Certificate, "\n", "")))

	resp, err := r.target.PlatformPost("/v1/service_bindings", map[string]interface{}{
		"name":                m.User,
		"service_instance_id": instanceID,
		"parameters":          map[string]string{"certificate": cert},
	})
	if err != nil {
		r.itemError(models.ComponentCertUserMapping, m.User, err)
		return false
	}
	if !resp.IsSuccess() && resp.StatusCode != 409 {
		r.itemError(models.ComponentCertUserMapping, m.User,
			fmt.Errorf("binding creation returned HTTP %d", resp.StatusCode))
		return false
	}

	result, state, err := pollUntil(func() (string, error) {
		body, err := r.target.PlatformGet("/v1/service_bindings?fieldQuery=" + url.QueryEscape(fmt.Sprintf("name eq '%s'", m.User)))
		if err != nil {
			return "", err
		}
		var bindings struct {
			Items []serviceBinding `json:"items"`
		}
		if err := unmarshal(body, &bindings); err != nil {
			return "", err
		}
		if len(bindings.Items) == 0 {
			return "pending", nil
		}
		return bindings.Items[0].LastOperation.State, nil
	}, "succeeded", "failed", r.s.cfg.PollInterval, r.s.cfg.ServiceInstanceMaxWait)
	if err != nil {
		r.itemError(models.ComponentCertUserMapping, m.User, err)
		return false
	}
	if result != PollSucceeded {
		if result == PollTimedOut {
			r.log(2, "binding for %s timed out", m.User)
		}
		r.itemError(models.ComponentCertUserMapping, m.User,
			fmt.Errorf("binding provisioning %s (last state %s)", result, state))
		return false
	}
	return true
}
