package onboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticatorLogin(t *testing.T) {
	repo := setupTestRepo(t)
	sink := &recordingSink{}
	auth := NewAuthenticator(repo, testTokenService(t)).WithActivitySink(sink)
	ctx := context.Background()

	user := seedUser(t, repo, "login@example.com", "correct-pass", RoleInstructor)

	result, err := auth.Login(ctx, "Login@Example.com", "correct-pass")
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.Identity.ID)
	assert.Equal(t, RoleInstructor, result.Identity.Role)
	assert.False(t, result.RequirePasswordChange)

	t.Run("token claims bind id and role", func(t *testing.T) {
		claims, err := testTokenService(t).Validate(result.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), claims.UserID())
		assert.True(t, claims.HasRole(RoleInstructor))
	})

	t.Run("records a success event", func(t *testing.T) {
		events := sink.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, ActivityEventLoginSuccess, events[0].EventType)
	})
}

func TestAuthenticatorLoginFailuresAreIndistinguishable(t *testing.T) {
	repo := setupTestRepo(t)
	sink := &recordingSink{}
	auth := NewAuthenticator(repo, testTokenService(t)).WithActivitySink(sink)
	ctx := context.Background()

	seedUser(t, repo, "known@example.com", "right-pass", RoleStudent)

	_, wrongPass := auth.Login(ctx, "known@example.com", "wrong-pass")
	_, unknownUser := auth.Login(ctx, "ghost@example.com", "whatever-pass")

	require.Error(t, wrongPass)
	require.Error(t, unknownUser)

	assert.ErrorIs(t, wrongPass, ErrMismatchedHashAndPassword)
	assert.ErrorIs(t, unknownUser, ErrMismatchedHashAndPassword)
	assert.Equal(t, wrongPass.Error(), unknownUser.Error())

	events := sink.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, ActivityEventLoginFailure, events[0].EventType)
	assert.Equal(t, ActivityEventLoginFailure, events[1].EventType)
}

func TestAuthenticatorTemporaryPasswordWindow(t *testing.T) {
	repo, db := setupRepoWithDB(t)
	auth := NewAuthenticator(repo, testTokenService(t))
	ctx := context.Background()

	user := seedUser(t, repo, "temp@example.com", "temp-pass", RoleStudent)

	setResetAt := func(t *testing.T, at time.Time) {
		t.Helper()
		_, err := db.NewUpdate().
			Model((*User)(nil)).
			Set("require_password_change = ?", true).
			Set("password_reset_at = ?", at).
			Where("id = ?", user.ID.String()).
			Exec(ctx)
		require.NoError(t, err)
	}

	t.Run("fresh temporary password logs in and demands a change", func(t *testing.T) {
		setResetAt(t, time.Now().Add(-time.Hour))

		result, err := auth.Login(ctx, "temp@example.com", "temp-pass")
		require.NoError(t, err)
		assert.True(t, result.RequirePasswordChange)
	})

	t.Run("stale temporary password fails like a wrong password", func(t *testing.T) {
		setResetAt(t, time.Now().Add(-100*time.Hour))

		_, err := auth.Login(ctx, "temp@example.com", "temp-pass")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMismatchedHashAndPassword)
	})
}
