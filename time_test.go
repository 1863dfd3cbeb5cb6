package onboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemporaryPasswordStale(t *testing.T) {
	t.Run("fresh issuance is not stale", func(t *testing.T) {
		stale, err := temporaryPasswordStale(time.Now().Add(-time.Hour), "72h")
		require.NoError(t, err)
		assert.False(t, stale)
	})

	t.Run("issuance past the ttl is stale", func(t *testing.T) {
		stale, err := temporaryPasswordStale(time.Now().Add(-100*time.Hour), "72h")
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("bad ttl pattern errors", func(t *testing.T) {
		_, err := temporaryPasswordStale(time.Now(), "not-a-duration")
		assert.Error(t, err)
	})
}
