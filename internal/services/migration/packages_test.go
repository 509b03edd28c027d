package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPackageID(t *testing.T) {
	t.Run("Should route ids without a dot to subscription", func(t *testing.T) {
		base, suffix, isCopy := splitPackageID("StandardPackage")
		assert.False(t, isCopy)
		assert.Equal(t, "StandardPackage", base)
		assert.Empty(t, suffix)
	})

	t.Run("Should detect a copy of a namespaced package", func(t *testing.T) {
		base, suffix, isCopy := splitPackageID("com.acme.base.copy1")
		assert.True(t, isCopy)
		assert.Equal(t, "com.acme.base", base)
		assert.Equal(t, "copy1", suffix)
	})

	t.Run("Should recognize a named copy", func(t *testing.T) {
		base, suffix, isCopy := splitPackageID("BasePackage.copy1")
		assert.True(t, isCopy)
		assert.Equal(t, "BasePackage", base)
		assert.Equal(t, "copy1", suffix)
	})

	t.Run("Should handle a trailing dot", func(t *testing.T) {
		base, suffix, isCopy := splitPackageID("Base.")
		assert.True(t, isCopy)
		assert.Equal(t, "Base", base)
		assert.Empty(t, suffix)
	})
}
