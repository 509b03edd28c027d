package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest(t *testing.T) {
	t.Run("Should generate unique boundaries", func(t *testing.T) {
		a := New()
		b := New()

		assert.True(t, strings.HasPrefix(a.Boundary(), "batch_"))
		assert.NotEqual(t, a.Boundary(), b.Boundary())
	})

	t.Run("Should render an empty changeset", func(t *testing.T) {
		r := New()
		body := string(r.Build())

		assert.Equal(t, 0, r.Len())
		assert.Contains(t, body, "--"+r.Boundary()+"\r\n")
		assert.Contains(t, body, "--"+r.Boundary()+"--\r\n")
		assert.Contains(t, body, "Content-Type: multipart/mixed; boundary=changeset_")
	})

	t.Run("Should frame POST operations inside the changeset", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddPost("/UpsertValMaps?Id='vm1'", nil))
		require.NoError(t, r.AddPost("/Other", map[string]string{"Name": "x"}))
		assert.Equal(t, 2, r.Len())

		body := string(r.Build())
		assert.Contains(t, body, "POST /UpsertValMaps?Id='vm1' HTTP/1.1\r\n")
		assert.Contains(t, body, "Content-Transfer-Encoding: binary\r\n")
		assert.Contains(t, body, `{"Name":"x"}`)

		// The changeset closes before the outer boundary does.
		csClose := strings.Index(body, "--\r\n--"+r.Boundary()+"--")
		assert.Greater(t, csClose, 0)
	})

	t.Run("Should render PUT operations with payload length", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddPut("/Configurations('key')", map[string]string{"ParameterValue": "v"}))

		body := string(r.Build())
		assert.Contains(t, body, "PUT /Configurations('key') HTTP/1.1\r\n")
		assert.Contains(t, body, "Content-Length: 22\r\n")
	})

	t.Run("Should reject unmarshalable payloads", func(t *testing.T) {
		r := New()
		err := r.AddPost("/x", func() {})
		assert.Error(t, err)
		assert.Equal(t, 0, r.Len())
	})
}
