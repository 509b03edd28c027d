package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCron(t *testing.T) {
	t.Run("Should convert 5-field to 6-field cron", func(t *testing.T) {
		tests := []struct {
			name     string
			input    string
			expected string
		}{
			{name: "Daily at 2 AM", input: "0 2 * * *", expected: "0 0 2 * * *"},
			{name: "Every 15 minutes", input: "*/15 * * * *", expected: "0 */15 * * * *"},
			{name: "Every Monday at 9 AM", input: "0 9 * * 1", expected: "0 0 9 * * 1"},
			{name: "With surrounding whitespace", input: "  30 15 * * *  ", expected: "0 30 15 * * *"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				result, err := normalizeCron(tt.input)
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			})
		}
	})

	t.Run("Should keep 6-field cron unchanged", func(t *testing.T) {
		result, err := normalizeCron("30 0 2 * * 1")
		require.NoError(t, err)
		assert.Equal(t, "30 0 2 * * 1", result)
	})

	t.Run("Should accept descriptors", func(t *testing.T) {
		result, err := normalizeCron("@hourly")
		require.NoError(t, err)
		assert.Equal(t, "@hourly", result)
	})

	t.Run("Should reject malformed expressions", func(t *testing.T) {
		_, err := normalizeCron("not a cron")
		assert.Error(t, err)

		_, err = normalizeCron("99 99 * * *")
		assert.Error(t, err)
	})
}
