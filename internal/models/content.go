package models

import "time"

// Mirrored content: one local copy of each remote object, keyed by the
// category's natural key plus the owning tenant. Rows are refreshed
// destructively (delete-then-insert) by the sync service; the migration
// orchestrator never touches them.

// ContentPackage mirrors an integration package.
type ContentPackage struct {
	ObjectID       uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID       string    `gorm:"index;not null" json:"tenant_id"`
	PackageID      string    `gorm:"index;not null;column:package_id" json:"package_id"`
	Name           string    `json:"name"`
	Version        string    `json:"version"`
	Vendor         string    `json:"vendor"`
	PartnerContent bool      `json:"partner_content"`
	Mode           string    `json:"mode"` // EDIT_ALLOWED for custom content
	ModifiedBy     string    `json:"modified_by"`
	ModifiedAt     string    `json:"modified_at"`
	CreatedAt      time.Time `json:"created_at"`
}

func (ContentPackage) TableName() string { return "content_packages" }

// IsSAP reports whether the package is vendor-delivered (not customer content).
func (p *ContentPackage) IsSAP() bool {
	return p.Vendor == "SAP" || p.PartnerContent
}

// ContentFlow mirrors a design-time integration artifact within a package.
type ContentFlow struct {
	ObjectID     uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID     string    `gorm:"index;not null" json:"tenant_id"`
	PackageID    string    `gorm:"index;not null;column:package_id" json:"package_id"`
	FlowID       string    `gorm:"index;not null;column:flow_id" json:"flow_id"`
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	ArtifactType string    `json:"artifact_type"` // IntegrationFlow, ScriptCollection, MessageMapping
	Draft        bool      `json:"draft"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ContentFlow) TableName() string { return "content_flows" }

// ContentValueMapping mirrors a value mapping artifact.
type ContentValueMapping struct {
	ObjectID  uint                  `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID  string                `gorm:"index;not null" json:"tenant_id"`
	PackageID string                `gorm:"index;column:package_id" json:"package_id"`
	MappingID string                `gorm:"index;not null;column:mapping_id" json:"mapping_id"`
	Name      string                `json:"name"`
	Version   string                `json:"version"`
	Schemas   []ContentValMapSchema `gorm:"foreignKey:MappingObjectID" json:"schemas"`
	CreatedAt time.Time             `json:"created_at"`
}

func (ContentValueMapping) TableName() string { return "content_value_mappings" }

// ContentValMapSchema is one agency/identifier pair within a value mapping.
type ContentValMapSchema struct {
	ObjectID        uint   `gorm:"primaryKey;autoIncrement" json:"object_id"`
	MappingObjectID uint   `gorm:"index;not null" json:"mapping_object_id"`
	SrcAgency       string `json:"src_agency"`
	SrcID           string `gorm:"column:src_id" json:"src_id"`
	TgtAgency       string `json:"tgt_agency"`
	TgtID           string `gorm:"column:tgt_id" json:"tgt_id"`
	State           string `json:"state"` // Configured or Draft
}

func (ContentValMapSchema) TableName() string { return "content_valmap_schemas" }

// ContentKeystoreEntry mirrors one keystore certificate entry.
type ContentKeystoreEntry struct {
	ObjectID      uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID      string    `gorm:"index;not null" json:"tenant_id"`
	Hexalias      string    `gorm:"index;not null" json:"hexalias"`
	Alias         string    `json:"alias"`
	Type          string    `json:"type"` // Certificate, KeyPair, ...
	Owner         string    `json:"owner"`
	ValidNotAfter string    `json:"valid_not_after"`
	CreatedAt     time.Time `json:"created_at"`
}

func (ContentKeystoreEntry) TableName() string { return "content_keystore_entries" }

// ContentCredential mirrors a deployed user credential. Secrets are not
// exposed by the remote API and are never mirrored.
type ContentCredential struct {
	ObjectID   uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID   string    `gorm:"index;not null" json:"tenant_id"`
	Name       string    `gorm:"index;not null" json:"name"`
	Kind       string    `json:"kind"` // default, successfactors, openconnectors
	User       string    `json:"user"`
	DeployedBy string    `json:"deployed_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ContentCredential) TableName() string { return "content_credentials" }

// ContentOAuthCredential mirrors an OAuth2 client credential.
type ContentOAuthCredential struct {
	ObjectID  uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Name      string    `gorm:"index;not null" json:"name"`
	TokenURL  string    `gorm:"column:token_url" json:"token_url"`
	ClientID  string    `gorm:"column:client_id" json:"client_id"`
	Scope     string    `json:"scope"`
	CreatedAt time.Time `json:"created_at"`
}

func (ContentOAuthCredential) TableName() string { return "content_oauth_credentials" }

// ContentNumberRange mirrors a number range object.
type ContentNumberRange struct {
	ObjectID     uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID     string    `gorm:"index;not null" json:"tenant_id"`
	Name         string    `gorm:"index;not null" json:"name"`
	Description  string    `json:"description"`
	MinValue     string    `gorm:"column:min_value" json:"min_value"`
	MaxValue     string    `gorm:"column:max_value" json:"max_value"`
	CurrentValue string    `gorm:"column:current_value" json:"current_value"`
	Rotate       bool      `json:"rotate"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ContentNumberRange) TableName() string { return "content_number_ranges" }

// ContentAccessPolicy mirrors an access policy and its artifact references.
type ContentAccessPolicy struct {
	ObjectID    uint                     `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID    string                   `gorm:"index;not null" json:"tenant_id"`
	RoleName    string                   `gorm:"index;not null;column:role_name" json:"role_name"`
	Description string                   `json:"description"`
	References  []ContentPolicyReference `gorm:"foreignKey:PolicyObjectID" json:"references"`
	CreatedAt   time.Time                `json:"created_at"`
}

func (ContentAccessPolicy) TableName() string { return "content_access_policies" }

// ContentPolicyReference is one artifact reference owned by an access policy.
type ContentPolicyReference struct {
	ObjectID           uint   `gorm:"primaryKey;autoIncrement" json:"object_id"`
	PolicyObjectID     uint   `gorm:"index;not null" json:"policy_object_id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Type               string `json:"type"`
	ConditionAttribute string `json:"condition_attribute"`
	ConditionValue     string `json:"condition_value"`
	ConditionType      string `json:"condition_type"`
}

func (ContentPolicyReference) TableName() string { return "content_policy_references" }

// ContentCustomTag mirrors a custom tag attached to a design-time artifact.
type ContentCustomTag struct {
	ObjectID   uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID   string    `gorm:"index;not null" json:"tenant_id"`
	PackageID  string    `gorm:"index;column:package_id" json:"package_id"`
	ArtifactID string    `gorm:"index;column:artifact_id" json:"artifact_id"`
	Name       string    `gorm:"index;not null" json:"name"`
	Value      string    `json:"value"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ContentCustomTag) TableName() string { return "content_custom_tags" }

// ContentTagConfiguration mirrors a tenant-level custom tag definition.
type ContentTagConfiguration struct {
	ObjectID        uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID        string    `gorm:"index;not null" json:"tenant_id"`
	Name            string    `gorm:"index;not null" json:"name"`
	PermittedValues string    `gorm:"column:permitted_values" json:"permitted_values"` // comma separated
	IsMandatory     bool      `gorm:"column:is_mandatory" json:"is_mandatory"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ContentTagConfiguration) TableName() string { return "content_tag_configurations" }

// ContentJMSBroker mirrors the tenant's JMS broker capacity record. A tenant
// without JMS provisioning has no row, which is expected.
type ContentJMSBroker struct {
	ObjectID    uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID    string    `gorm:"index;not null" json:"tenant_id"`
	Key         string    `gorm:"not null" json:"key"`
	Capacity    int       `json:"capacity"`
	MaxCapacity int       `gorm:"column:max_capacity" json:"max_capacity"`
	QueueCount  int       `gorm:"column:queue_count" json:"queue_count"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ContentJMSBroker) TableName() string { return "content_jms_brokers" }

// Variable visibility values.
const (
	VisibilityGlobal = "Global"
	VisibilityLocal  = "Local"
)

// ContentVariable mirrors a global or flow-local variable.
type ContentVariable struct {
	ObjectID        uint      `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID        string    `gorm:"index;not null" json:"tenant_id"`
	VariableName    string    `gorm:"index;not null;column:variable_name" json:"variable_name"`
	Visibility      string    `json:"visibility"`                    // Global or Local
	FlowID          string    `gorm:"column:flow_id" json:"flow_id"` // owning flow for local variables
	UpdatedAtRemote string    `gorm:"column:updated_at_remote" json:"updated_at_remote"`
	RetainUntil     string    `gorm:"column:retain_until" json:"retain_until"`
	CreatedAt       time.Time `json:"created_at"`
}

func (ContentVariable) TableName() string { return "content_variables" }

// ContentDataStore mirrors a data store and owns its entries.
type ContentDataStore struct {
	ObjectID         uint                    `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID         string                  `gorm:"index;not null" json:"tenant_id"`
	DataStoreName    string                  `gorm:"index;not null;column:data_store_name" json:"data_store_name"`
	Visibility       string                  `json:"visibility"` // Global or Local
	FlowID           string                  `gorm:"column:flow_id" json:"flow_id"`
	NumberOfMessages int                     `gorm:"column:number_of_messages" json:"number_of_messages"`
	Entries          []ContentDataStoreEntry `gorm:"foreignKey:StoreObjectID" json:"entries"`
	CreatedAt        time.Time               `json:"created_at"`
}

func (ContentDataStore) TableName() string { return "content_data_stores" }

// ContentDataStoreEntry is one entry within a data store.
type ContentDataStoreEntry struct {
	ObjectID      uint   `gorm:"primaryKey;autoIncrement" json:"object_id"`
	StoreObjectID uint   `gorm:"index;not null" json:"store_object_id"`
	EntryID       string `gorm:"not null;column:entry_id" json:"entry_id"`
	Status        string `json:"status"`
	MessageID     string `gorm:"column:message_id" json:"message_id"`
	DueAt         string `gorm:"column:due_at" json:"due_at"`
	ExpiresAt     string `gorm:"column:expires_at" json:"expires_at"`
}

func (ContentDataStoreEntry) TableName() string { return "content_data_store_entries" }

// ContentCertUserMapping mirrors a certificate-to-user mapping and its roles.
type ContentCertUserMapping struct {
	ObjectID       uint                     `gorm:"primaryKey;autoIncrement" json:"object_id"`
	TenantID       string                   `gorm:"index;not null" json:"tenant_id"`
	MappingID      string                   `gorm:"index;not null;column:mapping_id" json:"mapping_id"`
	User           string                   `json:"user"`
	Certificate    string                   `gorm:"type:text" json:"certificate"`
	LastModifiedBy string                   `gorm:"column:last_modified_by" json:"last_modified_by"`
	Roles          []ContentCertMappingRole `gorm:"foreignKey:MappingObjectID" json:"roles"`
	CreatedAt      time.Time                `json:"created_at"`
}

func (ContentCertUserMapping) TableName() string { return "content_cert_user_mappings" }

// ContentCertMappingRole is one role granted to a certificate-user mapping.
type ContentCertMappingRole struct {
	ObjectID        uint   `gorm:"primaryKey;autoIncrement" json:"object_id"`
	MappingObjectID uint   `gorm:"index;not null" json:"mapping_object_id"`
	Name            string `json:"name"`
	ApplicationName string `gorm:"column:application_name" json:"application_name"`
	ProviderAccount string `gorm:"column:provider_account" json:"provider_account"`
}

func (ContentCertMappingRole) TableName() string { return "content_cert_mapping_roles" }
