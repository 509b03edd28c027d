// Package batch builds multipart $batch requests in the remote platform's
// OData changeset wire format. The format is a protocol detail of the
// platform, kept here so the escaping and framing are testable on their own.
package batch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Request accumulates operations for one $batch call. All operations are
// wrapped in a single changeset so the remote side applies them atomically.
type Request struct {
	boundary   string
	csBoundary string
	operations []string
}

// New creates an empty batch request with generated boundaries.
func New() *Request {
	return &Request{
		boundary:   "batch_" + uuid.New().String(),
		csBoundary: "changeset_" + uuid.New().String(),
	}
}

// Boundary returns the outer boundary for the Content-Type header.
func (r *Request) Boundary() string {
	return r.boundary
}

// AddPost appends a POST operation with a JSON payload to the changeset.
func (r *Request) AddPost(path string, payload interface{}) error {
	return r.add("POST", path, payload)
}

// AddPut appends a PUT operation with a JSON payload to the changeset.
func (r *Request) AddPut(path string, payload interface{}) error {
	return r.add("PUT", path, payload)
}

func (r *Request) add(method, path string, payload interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal batch payload: %w", err)
		}
	}

	var op strings.Builder
	op.WriteString("Content-Type: application/http\r\n")
	op.WriteString("Content-Transfer-Encoding: binary\r\n")
	op.WriteString("\r\n")
	op.WriteString(fmt.Sprintf("%s %s HTTP/1.1\r\n", method, path))
	op.WriteString("Content-Type: application/json\r\n")
	op.WriteString(fmt.Sprintf("Content-Length: %d\r\n", len(body)))
	op.WriteString("\r\n")
	op.Write(body)
	op.WriteString("\r\n")

	r.operations = append(r.operations, op.String())
	return nil
}

// Len reports the number of queued operations.
func (r *Request) Len() int {
	return len(r.operations)
}

// Build renders the full multipart body.
func (r *Request) Build() []byte {
	var b strings.Builder

	b.WriteString("--" + r.boundary + "\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=" + r.csBoundary + "\r\n")
	b.WriteString("\r\n")

	for _, op := range r.operations {
		b.WriteString("--" + r.csBoundary + "\r\n")
		b.WriteString(op)
	}

	b.WriteString("--" + r.csBoundary + "--\r\n")
	b.WriteString("--" + r.boundary + "--\r\n")

	return []byte(b.String())
}
