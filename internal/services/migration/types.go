package migration

// OData envelopes for live reads during a job. The orchestrator never reads
// the local mirror for content; only the task scope comes from storage.

type odataList[T any] struct {
	D struct {
		Results []T `json:"results"`
	} `json:"d"`
}

type odataSingle[T any] struct {
	D T `json:"d"`
}

type liveVariable struct {
	VariableName    string `json:"VariableName"`
	IntegrationFlow string `json:"IntegrationFlow"`
	Visibility      string `json:"Visibility"`
}

type liveDataStore struct {
	DataStoreName    string `json:"DataStoreName"`
	IntegrationFlow  string `json:"IntegrationFlow"`
	Visibility       string `json:"Visibility"`
	NumberOfMessages int    `json:"NumberOfMessages"`
}

type liveDataStoreEntry struct {
	ID        string `json:"Id"`
	Status    string `json:"Status"`
	MessageID string `json:"MessageId"`
}

type livePackage struct {
	ID             string `json:"Id"`
	Name           string `json:"Name"`
	Vendor         string `json:"Vendor"`
	PartnerContent bool   `json:"PartnerContent"`
	Mode           string `json:"Mode"`
}

type liveArtifact struct {
	ID      string `json:"Id"`
	Name    string `json:"Name"`
	Version string `json:"Version"`
}

type liveConfiguration struct {
	ParameterKey   string `json:"ParameterKey"`
	ParameterValue string `json:"ParameterValue"`
	DataType       string `json:"DataType"`
}

type liveCredential struct {
	Name        string `json:"Name"`
	Kind        string `json:"Kind"`
	Description string `json:"Description"`
	User        string `json:"User"`
}

type liveOAuthCredential struct {
	Name             string `json:"Name"`
	Description      string `json:"Description"`
	TokenServiceURL  string `json:"TokenServiceUrl"`
	ClientID         string `json:"ClientId"`
	Scope            string `json:"Scope"`
	ClientAuth       string `json:"ClientAuthentication"`
	ScopeContentType string `json:"ScopeContentType"`
}

type liveNumberRange struct {
	Name         string `json:"Name"`
	Description  string `json:"Description"`
	MinValue     string `json:"MinValue"`
	MaxValue     string `json:"MaxValue"`
	CurrentValue string `json:"CurrentValue"`
	FieldLength  string `json:"FieldLength"`
	Rotate       bool   `json:"Rotate,string"`
}

type liveAccessPolicy struct {
	ID                 string `json:"Id"`
	RoleName           string `json:"RoleName"`
	Description        string `json:"Description"`
	ArtifactReferences struct {
		Results []livePolicyReference `json:"results"`
	} `json:"ArtifactReferences"`
}

type livePolicyReference struct {
	Name               string `json:"Name"`
	Description        string `json:"Description"`
	Type               string `json:"Type"`
	ConditionAttribute string `json:"ConditionAttribute"`
	ConditionValue     string `json:"ConditionValue"`
	ConditionType      string `json:"ConditionType"`
}

type liveValMapSchema struct {
	SrcAgency string `json:"SrcAgency"`
	SrcID     string `json:"SrcId"`
	TgtAgency string `json:"TgtAgency"`
	TgtID     string `json:"TgtId"`
	State     string `json:"State"`
}

type liveValMap struct {
	ID    string `json:"Id"`
	Value struct {
		SrcValue string `json:"SrcValue"`
		TgtValue string `json:"TgtValue"`
	} `json:"Value"`
}

type liveJMSBroker struct {
	Key         string `json:"Key"`
	Capacity    int    `json:"Capacity"`
	MaxCapacity int    `json:"MaxQueueNumber"`
	QueueCount  int    `json:"QueueNumber"`
}

type liveRuntimeArtifact struct {
	ID     string `json:"Id"`
	Status string `json:"Status"`
}

type liveMessageLog struct {
	MessageGUID string `json:"MessageGuid"`
	Status      string `json:"Status"`
}

type tagConfigurationDoc struct {
	CustomTagsConfiguration []tagDefinition `json:"customTagsConfiguration"`
}

type tagDefinition struct {
	TagName         string   `json:"tagName"`
	PermittedValues []string `json:"permittedValues"`
	IsMandatory     bool     `json:"isMandatory"`
}

type serviceInstance struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LastOperation struct {
		State string `json:"state"`
	} `json:"last_operation"`
}

type serviceBinding struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LastOperation struct {
		State string `json:"state"`
	} `json:"last_operation"`
}
