package migration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollUntil(t *testing.T) {
	interval := time.Millisecond
	maxWait := 20 * time.Millisecond

	t.Run("Should return success when the sentinel appears", func(t *testing.T) {
		statuses := []string{"DEPLOYING", "DEPLOYING", "STARTED"}
		calls := 0
		result, status, err := pollUntil(func() (string, error) {
			s := statuses[calls]
			calls++
			return s, nil
		}, "STARTED", "ERROR", interval, maxWait)

		require.NoError(t, err)
		assert.Equal(t, PollSucceeded, result)
		assert.Equal(t, "STARTED", status)
		assert.Equal(t, 3, calls)
	})

	t.Run("Should return failure on the error sentinel", func(t *testing.T) {
		result, status, err := pollUntil(func() (string, error) {
			return "ERROR", nil
		}, "STARTED", "ERROR", interval, maxWait)

		require.NoError(t, err)
		assert.Equal(t, PollFailed, result)
		assert.Equal(t, "ERROR", status)
	})

	t.Run("Should time out within the iteration bound", func(t *testing.T) {
		calls := 0
		result, status, err := pollUntil(func() (string, error) {
			calls++
			return "DEPLOYING", nil
		}, "STARTED", "ERROR", interval, maxWait)

		require.NoError(t, err)
		assert.Equal(t, PollTimedOut, result)
		assert.Equal(t, "DEPLOYING", status)
		// ceil(maxWait/interval)+1 iterations at most.
		assert.LessOrEqual(t, calls, int(maxWait/interval)+2)
		assert.GreaterOrEqual(t, calls, 2)
	})

	t.Run("Should fail immediately on a check error", func(t *testing.T) {
		result, _, err := pollUntil(func() (string, error) {
			return "", errors.New("boom")
		}, "STARTED", "ERROR", interval, maxWait)

		assert.Equal(t, PollFailed, result)
		assert.Error(t, err)
	})

	t.Run("Should check at least once even with zero max wait", func(t *testing.T) {
		calls := 0
		result, _, err := pollUntil(func() (string, error) {
			calls++
			return "PENDING", nil
		}, "DONE", "", interval, 0)

		require.NoError(t, err)
		assert.Equal(t, PollTimedOut, result)
		assert.Equal(t, 1, calls)
	})
}
