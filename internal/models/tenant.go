package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform kinds. A tenant is exactly one of the two; each kind requires a
// different set of connection fields (see RequiredFieldsPresent).
const (
	PlatformNeo          = "Neo"
	PlatformCloudFoundry = "CloudFoundry"
)

// Tenant is a connection profile for one instance of the integration platform
type Tenant struct {
	ID       string `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"unique;not null" json:"name"`
	Platform string `gorm:"not null" json:"platform"` // Neo or CloudFoundry
	Host     string `gorm:"not null" json:"host"`     // integration API host

	// Neo tenants obtain a bearer token via the resource-owner password grant.
	// The token endpoint lives on the integration host unless OauthTokenHost
	// names a dedicated one.
	NeoUsername    string `gorm:"column:neo_username" json:"neo_username"`
	NeoPasswordEnc string `gorm:"column:neo_password_enc" json:"-"` // encrypted, never exposed

	// Cloud Foundry tenants use two OAuth client-credential pairs: one for the
	// integration API, one for the platform API (service instances, bindings)
	OauthClientID        string `gorm:"column:oauth_client_id" json:"oauth_client_id"`
	OauthSecretEnc       string `gorm:"column:oauth_secret_enc" json:"-"`
	OauthTokenHost       string `gorm:"column:oauth_token_host" json:"oauth_token_host"`
	PlatformHost         string `gorm:"column:platform_host" json:"platform_host"`
	PlatformClientID     string `gorm:"column:platform_client_id" json:"platform_client_id"`
	PlatformSecretEnc    string `gorm:"column:platform_secret_enc" json:"-"`
	PlatformTokenHost    string `gorm:"column:platform_token_host" json:"platform_token_host"`
	PlatformSubaccountID string `gorm:"column:platform_subaccount_id" json:"platform_subaccount_id"`

	ReadOnly bool `gorm:"default:false" json:"read_only"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

func (Tenant) TableName() string {
	return "tenants"
}

// RequiredFieldsPresent checks that the fields needed for the tenant's
// platform kind are populated. Called before any network activity.
func (t *Tenant) RequiredFieldsPresent() error {
	if t.Host == "" {
		return fmt.Errorf("tenant %s: host is not configured", t.Name)
	}
	switch t.Platform {
	case PlatformNeo:
		if t.NeoUsername == "" || t.NeoPasswordEnc == "" {
			return fmt.Errorf("tenant %s: Neo username/password not configured", t.Name)
		}
	case PlatformCloudFoundry:
		if t.OauthClientID == "" || t.OauthSecretEnc == "" || t.OauthTokenHost == "" {
			return fmt.Errorf("tenant %s: OAuth client credentials not configured", t.Name)
		}
	default:
		return fmt.Errorf("tenant %s: unknown platform kind %q", t.Name, t.Platform)
	}
	return nil
}

// IsCloudFoundry reports whether the tenant runs on the Cloud Foundry stack.
func (t *Tenant) IsCloudFoundry() bool {
	return t.Platform == PlatformCloudFoundry
}
