package onboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPasswordWithCost(t *testing.T) {
	t.Run("hashes and verifies a password", func(t *testing.T) {
		hash, err := HashPasswordWithCost("super-secret", bcrypt.MinCost)
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "super-secret", hash)

		assert.NoError(t, ComparePasswordAndHash("super-secret", hash))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := HashPasswordWithCost("", bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrNoEmptyPassword)
	})

	t.Run("produces different hashes for the same input", func(t *testing.T) {
		a, err := HashPasswordWithCost("same-input", bcrypt.MinCost)
		require.NoError(t, err)
		b, err := HashPasswordWithCost("same-input", bcrypt.MinCost)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := HashPasswordWithCost("right-password", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("wrong password fails as mismatch", func(t *testing.T) {
		err := ComparePasswordAndHash("wrong-password", hash)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("malformed hash fails as mismatch", func(t *testing.T) {
		err := ComparePasswordAndHash("right-password", "not-a-bcrypt-hash")
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})

	t.Run("empty password fails as mismatch", func(t *testing.T) {
		err := ComparePasswordAndHash("", hash)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})
}

func TestGenerateTemporaryPassword(t *testing.T) {
	plaintext, hash, err := GenerateTemporaryPassword()
	require.NoError(t, err)

	assert.NotEmpty(t, plaintext)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, plaintext, hash)

	assert.NoError(t, ComparePasswordAndHash(plaintext, hash))
}
