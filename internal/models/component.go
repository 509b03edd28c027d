package models

// Component identifies one migratable content category. The set is closed:
// every per-category routine (sync, scope, migration, customization hooks) is
// keyed by one of these values.
type Component string

const (
	ComponentPackage          Component = "Package"
	ComponentFlow             Component = "Flow"
	ComponentValueMapping     Component = "ValueMapping"
	ComponentKeystoreEntry    Component = "KeystoreEntry"
	ComponentCredential       Component = "Credential"
	ComponentOAuthCredential  Component = "OAuthCredential"
	ComponentNumberRange      Component = "NumberRange"
	ComponentAccessPolicy     Component = "AccessPolicy"
	ComponentCustomTag        Component = "CustomTag"
	ComponentTagConfiguration Component = "TagConfiguration"
	ComponentJMSBroker        Component = "JMSBroker"
	ComponentVariable         Component = "Variable"
	ComponentDataStore        Component = "DataStore"
	ComponentCertUserMapping  Component = "CertUserMapping"
)

// AllComponents lists every category in sync order.
var AllComponents = []Component{
	ComponentPackage,
	ComponentFlow,
	ComponentValueMapping,
	ComponentKeystoreEntry,
	ComponentCredential,
	ComponentOAuthCredential,
	ComponentNumberRange,
	ComponentAccessPolicy,
	ComponentCustomTag,
	ComponentTagConfiguration,
	ComponentJMSBroker,
	ComponentVariable,
	ComponentDataStore,
	ComponentCertUserMapping,
}

// DisplayName returns the label used in findings and job logs.
func (c Component) DisplayName() string {
	switch c {
	case ComponentPackage:
		return "Integration Package"
	case ComponentFlow:
		return "Integration Flow"
	case ComponentValueMapping:
		return "Value Mapping"
	case ComponentKeystoreEntry:
		return "Keystore Entry"
	case ComponentCredential:
		return "User Credential"
	case ComponentOAuthCredential:
		return "OAuth2 Client Credential"
	case ComponentNumberRange:
		return "Number Range"
	case ComponentAccessPolicy:
		return "Access Policy"
	case ComponentCustomTag:
		return "Custom Tag"
	case ComponentTagConfiguration:
		return "Custom Tag Configuration"
	case ComponentJMSBroker:
		return "JMS Broker"
	case ComponentVariable:
		return "Variable"
	case ComponentDataStore:
		return "Data Store"
	case ComponentCertUserMapping:
		return "Certificate-to-User Mapping"
	}
	return string(c)
}
