package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/crypto"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

// ErrReadOnlyTenant is returned when a write call targets a tenant flagged
// read-only and the caller did not explicitly override the block.
var ErrReadOnlyTenant = errors.New("tenant is read-only, write operations are blocked")

// Connector talks to one tenant of the integration platform. It manages two
// independent bearer tokens: one for the integration API and, on Cloud
// Foundry, one for the platform API (service instances and bindings).
type Connector struct {
	Tenant *models.Tenant

	http *resty.Client

	tokenMu          sync.Mutex
	integrationToken *bearerToken
	platformToken    *bearerToken

	// AllowReadOnlyWrites bypasses the read-only tenant guard. Only the
	// connection test sets this.
	AllowReadOnlyWrites bool
}

type bearerToken struct {
	value     string
	expiresAt time.Time
}

func (t *bearerToken) valid() bool {
	return t != nil && t.value != "" && time.Now().Before(t.expiresAt)
}

// Response is the reduced view of a remote call handed to callers.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewConnector creates a connector for one tenant. Secrets are decrypted
// lazily when the first token is requested.
func NewConnector(tenant *models.Tenant) *Connector {
	c := &Connector{Tenant: tenant}
	c.http = resty.New().
		SetBaseURL(strings.TrimRight(tenant.Host, "/")).
		SetTimeout(120 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})
	return c
}

// integrationAuth attaches a bearer token for the integration API to a request.
func (c *Connector) integrationAuth(req *resty.Request) error {
	token, err := c.getIntegrationToken()
	if err != nil {
		return err
	}
	req.SetAuthToken(token)
	return nil
}

// getIntegrationToken returns a valid bearer token for the integration API,
// refreshing it when expired. Cloud Foundry tenants use the client-credentials
// grant, Neo tenants the resource-owner password grant.
func (c *Connector) getIntegrationToken() (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.integrationToken.valid() {
		return c.integrationToken.value, nil
	}

	var token *bearerToken
	if c.Tenant.Platform == models.PlatformNeo {
		password, err := crypto.DecryptSecret(c.Tenant.NeoPasswordEnc)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt Neo password: %w", err)
		}
		token, err = fetchPasswordToken(c.neoTokenHost(), c.Tenant.NeoUsername, password)
		if err != nil {
			return "", fmt.Errorf("integration token request failed: %w", err)
		}
	} else {
		secret, err := crypto.DecryptSecret(c.Tenant.OauthSecretEnc)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt OAuth secret: %w", err)
		}
		token, err = fetchToken(c.Tenant.OauthTokenHost, c.Tenant.OauthClientID, secret)
		if err != nil {
			return "", fmt.Errorf("integration token request failed: %w", err)
		}
	}
	c.integrationToken = token
	return token.value, nil
}

// neoTokenHost returns the token endpoint host for a Neo tenant. Neo serves
// its token endpoint from the integration host unless a dedicated one is set.
func (c *Connector) neoTokenHost() string {
	if c.Tenant.OauthTokenHost != "" {
		return c.Tenant.OauthTokenHost
	}
	return c.Tenant.Host
}

// getPlatformToken returns a valid bearer token for the platform API. Only
// Cloud Foundry tenants have a platform API surface.
func (c *Connector) getPlatformToken() (string, error) {
	if !c.Tenant.IsCloudFoundry() {
		return "", fmt.Errorf("tenant %s has no platform API", c.Tenant.Name)
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.platformToken.valid() {
		return c.platformToken.value, nil
	}

	secret, err := crypto.DecryptSecret(c.Tenant.PlatformSecretEnc)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt platform secret: %w", err)
	}

	token, err := fetchToken(c.Tenant.PlatformTokenHost, c.Tenant.PlatformClientID, secret)
	if err != nil {
		return "", fmt.Errorf("platform token request failed: %w", err)
	}
	c.platformToken = token
	return token.value, nil
}

// fetchToken performs a client-credentials grant against a token host.
func fetchToken(tokenHost, clientID, secret string) (*bearerToken, error) {
	return requestToken(tokenHost, clientID, secret, map[string]string{
		"grant_type": "client_credentials",
	})
}

// fetchPasswordToken performs a resource-owner password grant (Neo tenants).
func fetchPasswordToken(tokenHost, username, password string) (*bearerToken, error) {
	return requestToken(tokenHost, username, password, map[string]string{
		"grant_type": "password",
		"username":   username,
		"password":   password,
	})
}

func requestToken(tokenHost, basicUser, basicSecret string, form map[string]string) (*bearerToken, error) {
	resp, err := resty.New().
		SetTimeout(30*time.Second).
		R().
		SetBasicAuth(basicUser, basicSecret).
		SetFormData(form).
		Post(strings.TrimRight(tokenHost, "/") + "/oauth/token")
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode())
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("token endpoint returned no access token")
	}

	// Refresh one minute early to avoid using a token at its expiry edge.
	expiry := time.Duration(body.ExpiresIn)*time.Second - time.Minute
	if expiry < time.Minute {
		expiry = time.Minute
	}
	return &bearerToken{value: body.AccessToken, expiresAt: time.Now().Add(expiry)}, nil
}

func (c *Connector) checkWritable() error {
	if c.Tenant.ReadOnly && !c.AllowReadOnlyWrites {
		return ErrReadOnlyTenant
	}
	return nil
}

// Get performs a GET against the integration API and returns the raw body.
func (c *Connector) Get(path string) ([]byte, error) {
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.SetHeader("Accept", "application/json").Get(path)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body()), Path: path}
	}
	return resp.Body(), nil
}

// GetJSON performs a GET and decodes the body into out.
func (c *Connector) GetJSON(path string, out interface{}) error {
	body, err := c.Get(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// GetBinary performs a GET requesting a raw binary payload (package and flow
// archives).
func (c *Connector) GetBinary(path string) ([]byte, error) {
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.SetHeader("Accept", "application/octet-stream").Get(path)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body()), Path: path}
	}
	return resp.Body(), nil
}

// Post performs a JSON POST against the integration API.
func (c *Connector) Post(path string, payload interface{}) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// Put performs a JSON PUT against the integration API.
func (c *Connector) Put(path string, payload interface{}) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Put(path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// Delete performs a DELETE against the integration API.
func (c *Connector) Delete(path string) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.Delete(path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PostCertificate posts a PEM certificate body (keystore imports).
func (c *Connector) PostCertificate(path string, pem []byte) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("Content-Type", "application/x-pem-file").
		SetBody(pem).
		Post(path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PostMultipart sends a prebuilt multipart $batch body. The boundary must
// match the one embedded in body (see the batch package).
func (c *Connector) PostMultipart(path, boundary string, body []byte) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	req := c.http.R()
	if err := c.integrationAuth(req); err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("Content-Type", "multipart/mixed; boundary="+boundary).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PlatformGet performs a GET against the platform API (Cloud Foundry only).
func (c *Connector) PlatformGet(path string) ([]byte, error) {
	token, err := c.getPlatformToken()
	if err != nil {
		return nil, err
	}
	resp, err := resty.New().SetTimeout(60*time.Second).R().
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(strings.TrimRight(c.Tenant.PlatformHost, "/") + path)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &RemoteError{StatusCode: resp.StatusCode(), Body: string(resp.Body()), Path: path}
	}
	return resp.Body(), nil
}

// PlatformPost performs a JSON POST against the platform API.
func (c *Connector) PlatformPost(path string, payload interface{}) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	token, err := c.getPlatformToken()
	if err != nil {
		return nil, err
	}
	resp, err := resty.New().SetTimeout(60*time.Second).R().
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(strings.TrimRight(c.Tenant.PlatformHost, "/") + path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PlatformDelete performs a DELETE against the platform API.
func (c *Connector) PlatformDelete(path string) (*Response, error) {
	if err := c.checkWritable(); err != nil {
		return nil, err
	}
	token, err := c.getPlatformToken()
	if err != nil {
		return nil, err
	}
	resp, err := resty.New().SetTimeout(60 * time.Second).R().
		SetAuthToken(token).
		Delete(strings.TrimRight(c.Tenant.PlatformHost, "/") + path)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// TestConnection fetches one cheap resource from the integration API (and the
// platform API for Cloud Foundry tenants) to verify the profile.
func (c *Connector) TestConnection() error {
	if err := c.Tenant.RequiredFieldsPresent(); err != nil {
		return err
	}
	if _, err := c.Get("/api/v1/IntegrationPackages?$top=1"); err != nil {
		return fmt.Errorf("integration API unreachable: %w", err)
	}
	if c.Tenant.IsCloudFoundry() && c.Tenant.PlatformHost != "" {
		if _, err := c.PlatformGet("/health"); err != nil {
			return fmt.Errorf("platform API unreachable: %w", err)
		}
	}
	return nil
}

// EscapeKey escapes one natural key for embedding in an OData path segment.
func EscapeKey(key string) string {
	return url.PathEscape(strings.ReplaceAll(key, "'", "''"))
}

// RemoteError is a non-2xx response from the remote platform.
type RemoteError struct {
	StatusCode int
	Body       string
	Path       string
}

func (e *RemoteError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("remote call %s returned HTTP %d: %s", e.Path, e.StatusCode, body)
}
