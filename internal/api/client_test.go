package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/crypto"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

func TestNeoTokenAuthentication(t *testing.T) {
	t.Setenv("MIGRATION_ENCRYPTION_KEY", "unit-test-key")
	require.NoError(t, crypto.InitEncryption())
	encrypted, err := crypto.EncryptSecret("s3cret")
	require.NoError(t, err)

	var tokenCalls int
	var lastGrant, lastUser, lastPassword string
	var lastBasicUser, lastBasicSecret string

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		require.NoError(t, r.ParseForm())
		lastGrant = r.PostFormValue("grant_type")
		lastUser = r.PostFormValue("username")
		lastPassword = r.PostFormValue("password")
		lastBasicUser, lastBasicSecret, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-123","expires_in":3600}`)
	})
	mux.HandleFunc("/api/v1/IntegrationPackages", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"d":{"results":[]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tenant := &models.Tenant{
		Name:           "neo-dev",
		Platform:       models.PlatformNeo,
		Host:           srv.URL,
		NeoUsername:    "p100001",
		NeoPasswordEnc: encrypted,
	}

	t.Run("Should obtain a bearer token via the password grant", func(t *testing.T) {
		conn := NewConnector(tenant)

		var out struct {
			D struct {
				Results []struct{} `json:"results"`
			} `json:"d"`
		}
		require.NoError(t, conn.GetJSON("/api/v1/IntegrationPackages", &out))

		assert.Equal(t, "password", lastGrant)
		assert.Equal(t, "p100001", lastUser)
		assert.Equal(t, "s3cret", lastPassword)
		assert.Equal(t, "p100001", lastBasicUser)
		assert.Equal(t, "s3cret", lastBasicSecret)
	})

	t.Run("Should reuse the cached token across calls", func(t *testing.T) {
		conn := NewConnector(tenant)
		before := tokenCalls

		var out map[string]interface{}
		require.NoError(t, conn.GetJSON("/api/v1/IntegrationPackages", &out))
		require.NoError(t, conn.GetJSON("/api/v1/IntegrationPackages", &out))

		assert.Equal(t, before+1, tokenCalls)
	})

	t.Run("Should prefer a dedicated token host when configured", func(t *testing.T) {
		dedicated := models.Tenant{
			Platform:       models.PlatformNeo,
			Host:           "https://integration.example.com",
			OauthTokenHost: "https://auth.example.com",
		}
		conn := NewConnector(&dedicated)
		assert.Equal(t, "https://auth.example.com", conn.neoTokenHost())

		conn = NewConnector(tenant)
		assert.Equal(t, srv.URL, conn.neoTokenHost())
	})
}
