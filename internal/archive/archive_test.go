package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive(t *testing.T) {
	entries := map[string][]byte{
		"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n"),
		"src/flow.iflw":        []byte("<definitions/>"),
	}

	t.Run("Should round-trip entries through write and read", func(t *testing.T) {
		data, err := Write(entries)
		require.NoError(t, err)

		got, err := ReadAll(data)
		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})

	t.Run("Should patch one entry and keep the rest", func(t *testing.T) {
		data, err := Write(entries)
		require.NoError(t, err)

		patched, err := PatchOne(data, "src/flow.iflw", func(content []byte) ([]byte, error) {
			return []byte("<patched/>"), nil
		})
		require.NoError(t, err)

		got, err := ReadAll(patched)
		require.NoError(t, err)
		assert.Equal(t, []byte("<patched/>"), got["src/flow.iflw"])
		assert.Equal(t, entries["META-INF/MANIFEST.MF"], got["META-INF/MANIFEST.MF"])
	})

	t.Run("Should fail patching a missing entry", func(t *testing.T) {
		data, err := Write(entries)
		require.NoError(t, err)

		_, err = PatchOne(data, "nope.txt", func(content []byte) ([]byte, error) {
			return content, nil
		})
		assert.ErrorContains(t, err, "no entry")
	})

	t.Run("Should reject non-zip input", func(t *testing.T) {
		_, err := ReadAll([]byte("not an archive"))
		assert.Error(t, err)
	})
}
