package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionRoundTrip(t *testing.T) {
	t.Setenv("MIGRATION_ENCRYPTION_KEY", "test-passphrase")
	require.NoError(t, InitEncryption())

	t.Run("Should round-trip secrets", func(t *testing.T) {
		ciphertext, err := EncryptSecret("hunter2")
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2", ciphertext)

		plaintext, err := DecryptSecret(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", plaintext)
	})

	t.Run("Should produce distinct ciphertexts per call", func(t *testing.T) {
		a, err := Encrypt("same")
		require.NoError(t, err)
		b, err := Encrypt("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should reject tampered ciphertext", func(t *testing.T) {
		_, err := Decrypt("bm90IGEgcmVhbCBjaXBoZXJ0ZXh0IGF0IGFsbCBidXQgbG9uZyBlbm91Z2g=")
		assert.Error(t, err)
	})

	t.Run("Should reject truncated ciphertext", func(t *testing.T) {
		_, err := Decrypt("c2hvcnQ=")
		assert.ErrorContains(t, err, "too short")
	})
}
