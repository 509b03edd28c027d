package sync

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/api"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/archive"
	"github.com/SAP/migration-tool-for-cloud-integration-sub000/internal/models"
)

var (
	// scriptPathPattern matches script resources inside an artifact archive.
	scriptPathPattern = regexp.MustCompile(`^src/main/resources/script/.+\.(groovy|gsh|js)$`)

	// envAccessPattern finds environment-variable access in scripts. Such
	// access usually breaks when a flow moves to the other platform kind.
	envAccessPattern = regexp.MustCompile(`System\.getenv|System\.env\b`)

	flowXMLPattern = regexp.MustCompile(`^src/main/resources/scenarioflows/integrationflow/.+\.iflw$`)

	zipMagic = []byte{'P', 'K', 0x03, 0x04}
)

// inspectPackage downloads a custom package archive and scans its flows and
// script collections for content that will likely break after migrating to
// the other platform kind. Analysis failures on one resource are recorded
// with a count of -1 and never abort the surrounding scan.
func (s *Service) inspectPackage(conn Connector, tenant *models.Tenant, pkg *models.ContentPackage) {
	data, err := conn.GetBinary(fmt.Sprintf("/api/v1/IntegrationPackages('%s')/$value", api.EscapeKey(pkg.PackageID)))
	if err != nil {
		log.Warn("package download for analysis failed", "package", pkg.PackageID, "error", err)
		return
	}

	entries, err := archive.ReadAll(data)
	if err != nil {
		log.Warn("package archive unreadable", "package", pkg.PackageID, "error", err)
		return
	}

	for path, content := range entries {
		if !bytes.HasPrefix(content, zipMagic) {
			continue
		}
		// Nested archive: an integration flow or script collection resource.
		artifactName := artifactNameFromPath(path)
		nested, err := archive.ReadAll(content)
		if err != nil {
			log.Warn("nested archive unreadable", "package", pkg.PackageID, "resource", path, "error", err)
			continue
		}

		manifest := parseManifest(nested["META-INF/MANIFEST.MF"])
		if name := manifest["Bundle-Name"]; name != "" {
			artifactName = name
		}

		for nestedPath, nestedContent := range nested {
			if scriptPathPattern.MatchString(nestedPath) {
				// Customization hooks see every script before the scan. The
				// content is passed by value; hooks inspect, they don't rewrite.
				if err := s.customizations.OnMigrateScript(nestedPath, artifactName, string(nestedContent)); err != nil {
					s.addFinding(tenant, models.FindingWarning, models.ComponentPackage, pkg.PackageID,
						fmt.Sprintf("Script hook rejected %s of %s: %v", nestedPath, artifactName, err),
						models.SeverityNegative)
				}
				count := countEnvAccess(nestedContent)
				if count != 0 {
					text := fmt.Sprintf("Script %s of %s reads environment variables (%d occurrences), verify it after migration", nestedPath, artifactName, count)
					if count < 0 {
						text = fmt.Sprintf("Script %s of %s could not be analyzed", nestedPath, artifactName)
					}
					s.addFinding(tenant, models.FindingInfo, models.ComponentPackage, pkg.PackageID, text, models.SeverityNeutral)
				}
			}
			if flowXMLPattern.MatchString(nestedPath) {
				if hasClientCertSender(nestedContent) {
					s.addFinding(tenant, models.FindingWarning, models.ComponentFlow, artifactName,
						fmt.Sprintf("Flow %s has sender channels using client-certificate authentication, these will not work after migrating to the other platform kind", artifactName),
						models.SeverityNegative)
				}
			}
		}
	}
}

// countEnvAccess counts environment accesses in a script file. A panic while
// scanning (malformed content) yields the sentinel -1.
func countEnvAccess(content []byte) (count int) {
	defer func() {
		if r := recover(); r != nil {
			count = -1
		}
	}()
	return len(envAccessPattern.FindAll(content, -1))
}

// hasClientCertSender scans a flow definition (BPMN dialect) for a sender
// channel authenticating with client certificates. The property appears as a
// key/value pair inside extension elements.
func hasClientCertSender(flowXML []byte) bool {
	decoder := xml.NewDecoder(bytes.NewReader(flowXML))

	var currentKey string
	var inKey, inValue bool
	for {
		token, err := decoder.Token()
		if err != nil {
			return false
		}
		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "key":
				inKey = true
			case "value":
				inValue = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "key":
				inKey = false
			case "value":
				inValue = false
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if inKey {
				currentKey = text
			} else if inValue {
				if currentKey == "senderAuthType" && text == "ClientCertificate" {
					return true
				}
			}
		}
	}
}

// parseManifest reads an OSGi manifest into a header map. Continuation lines
// (leading space) fold into the previous header.
func parseManifest(content []byte) map[string]string {
	headers := make(map[string]string)
	if len(content) == 0 {
		return headers
	}

	var lastKey string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, " ") && lastKey != "" {
			headers[lastKey] += strings.TrimPrefix(line, " ")
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		headers[key] = strings.TrimSpace(line[idx+1:])
		lastKey = key
	}
	return headers
}

// artifactNameFromPath derives a readable artifact name from a resource path.
func artifactNameFromPath(path string) string {
	name := path
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimSuffix(name, ".zip")
}
