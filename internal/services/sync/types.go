package sync

import "github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"

// Selection scopes one category of a sync. Keys empty means the whole
// category. Exclude flips the polarity: sync everything except Keys.
type Selection struct {
	Keys    []string
	Exclude bool
}

// Matches reports whether a natural key falls inside the selection.
func (s *Selection) Matches(key string) bool {
	if s == nil || len(s.Keys) == 0 {
		return true
	}
	for _, k := range s.Keys {
		if k == key {
			return !s.Exclude
		}
	}
	return s.Exclude
}

// Filter enumerates the categories a sync covers. A category absent from the
// map is skipped entirely.
type Filter map[models.Component]*Selection

// FullFilter selects every category without key restrictions.
func FullFilter() Filter {
	f := make(Filter, len(models.AllComponents))
	for _, c := range models.AllComponents {
		f[c] = &Selection{}
	}
	return f
}

// Status is the progress snapshot exposed to pollers. One record exists per
// sync run, held in a keyed registry so concurrent syncs don't clobber each
// other's reporting.
type Status struct {
	Running    bool   `json:"Running"`
	Tenant     string `json:"Tenant"`
	Progress   int    `json:"Progress"` // 0-100
	Topic      string `json:"Topic"`
	Item       string `json:"Item"`
	ErrorState bool   `json:"ErrorState"`
}

// OData response envelopes used by the integration API.

type odataList[T any] struct {
	D struct {
		Results []T `json:"results"`
	} `json:"d"`
}

type odataSingle[T any] struct {
	D T `json:"d"`
}

type apiPackage struct {
	ID              string `json:"Id"`
	Name            string `json:"Name"`
	Version         string `json:"Version"`
	Vendor          string `json:"Vendor"`
	PartnerContent  bool   `json:"PartnerContent"`
	Mode            string `json:"Mode"`
	ModifiedBy      string `json:"ModifiedBy"`
	ModifiedDate    string `json:"ModifiedDate"`
	UpdateAvailable bool   `json:"UpdateAvailable"`
}

type apiArtifact struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Version string `json:"Version"`
	Type    string `json:"Type"`
}

type apiValueMapping struct {
	ID        string `json:"Id"`
	Name      string `json:"Name"`
	Version   string `json:"Version"`
	PackageID string `json:"PackageId"`
}

type apiValMapSchema struct {
	SrcAgency string `json:"SrcAgency"`
	SrcID     string `json:"SrcId"`
	TgtAgency string `json:"TgtAgency"`
	TgtID     string `json:"TgtId"`
	State     string `json:"State"`
}

type apiKeystoreEntry struct {
	Hexalias      string `json:"Hexalias"`
	Alias         string `json:"Alias"`
	Type          string `json:"Type"`
	Owner         string `json:"Owner"`
	ValidNotAfter string `json:"ValidNotAfter"`
}

type apiCredential struct {
	Name                       string `json:"Name"`
	Kind                       string `json:"Kind"`
	User                       string `json:"User"`
	SecurityArtifactDescriptor struct {
		DeployedBy string `json:"DeployedBy"`
	} `json:"SecurityArtifactDescriptor"`
}

type apiOAuthCredential struct {
	Name     string `json:"Name"`
	TokenURL string `json:"TokenServiceUrl"`
	ClientID string `json:"ClientId"`
	Scope    string `json:"Scope"`
}

type apiNumberRange struct {
	Name         string `json:"Name"`
	Description  string `json:"Description"`
	MinValue     string `json:"MinValue"`
	MaxValue     string `json:"MaxValue"`
	CurrentValue string `json:"CurrentValue"`
	Rotate       bool   `json:"Rotate,string"`
}

type apiAccessPolicy struct {
	ID                 string `json:"Id"`
	RoleName           string `json:"RoleName"`
	Description        string `json:"Description"`
	ArtifactReferences struct {
		Results []apiPolicyReference `json:"results"`
	} `json:"ArtifactReferences"`
}

type apiPolicyReference struct {
	Name               string `json:"Name"`
	Description        string `json:"Description"`
	Type               string `json:"Type"`
	ConditionAttribute string `json:"ConditionAttribute"`
	ConditionValue     string `json:"ConditionValue"`
	ConditionType      string `json:"ConditionType"`
}

type apiCustomTag struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type apiTagConfiguration struct {
	Name            string   `json:"tagName"`
	PermittedValues []string `json:"permittedValues"`
	IsMandatory     bool     `json:"isMandatory"`
}

type apiJMSBroker struct {
	Key         string `json:"Key"`
	Capacity    int    `json:"Capacity"`
	MaxCapacity int    `json:"MaxQueueNumber"`
	QueueCount  int    `json:"QueueNumber"`
}

type apiVariable struct {
	VariableName    string `json:"VariableName"`
	IntegrationFlow string `json:"IntegrationFlow"`
	Visibility      string `json:"Visibility"`
	UpdatedAt       string `json:"UpdatedAt"`
	RetainUntil     string `json:"RetainUntil"`
}

type apiDataStore struct {
	DataStoreName    string `json:"DataStoreName"`
	IntegrationFlow  string `json:"IntegrationFlow"`
	Visibility       string `json:"Visibility"`
	NumberOfMessages int    `json:"NumberOfMessages"`
}

type apiDataStoreEntry struct {
	ID        string `json:"Id"`
	Status    string `json:"Status"`
	MessageID string `json:"MessageId"`
	DueAt     string `json:"DueAt"`
	ExpiresAt string `json:"ExpiresAt"`
}

type apiCertUserMapping struct {
	ID             string `json:"Id"`
	User           string `json:"User"`
	Certificate    string `json:"Certificate"`
	LastModifiedBy string `json:"LastModifiedBy"`
}

type apiCertMappingRole struct {
	Name            string `json:"name"`
	ApplicationName string `json:"applicationName"`
	ProviderAccount string `json:"providerAccount"`
}
