package onboard

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// raceRepo lets a competing review slip in between a handler's
// pre-fetch and its transaction.
type raceRepo struct {
	RepositoryManager
	once  sync.Once
	rival func()
}

func (r *raceRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	r.once.Do(r.rival)
	return r.RepositoryManager.RunInTx(ctx, opts, f)
}

func TestApproveApplication(t *testing.T) {
	repo := setupTestRepo(t)
	mailer := &recordingMailer{}
	sink := &recordingSink{}
	handler := NewReviewApplicationHandler(repo).WithMailer(mailer).WithActivitySink(sink)
	ctx := context.Background()

	app := seedApplication(t, repo, "promote@example.com")
	approver := uuid.New()

	var resp *ApproveApplicationResponse
	err := handler.Approve(ctx, ApproveApplicationMessage{
		ApplicationID: app.ID,
		ApproverID:    approver,
		OnResponse:    func(r *ApproveApplicationResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	t.Run("creates an instructor with the applicant's credentials", func(t *testing.T) {
		user, err := repo.Users().GetByEmail(ctx, "promote@example.com")
		require.NoError(t, err)
		assert.Equal(t, RoleInstructor, user.Role)
		assert.Equal(t, app.Profile, user.Profile)
		assert.NoError(t, ComparePasswordAndHash("applicant-secret", user.PasswordHash))
		assert.Equal(t, user.ID, resp.Identity.ID)
	})

	t.Run("stamps the audit fields", func(t *testing.T) {
		assert.Equal(t, StatusApproved, resp.Application.Status)
		require.NotNil(t, resp.Application.ApprovedBy)
		assert.Equal(t, approver, *resp.Application.ApprovedBy)
		assert.NotNil(t, resp.Application.ApprovedAt)
	})

	t.Run("notifies the applicant", func(t *testing.T) {
		sent := mailer.sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "promote@example.com", sent[0].To)
	})

	t.Run("records the approval event", func(t *testing.T) {
		events := sink.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, ActivityEventApplicationApproved, events[0].EventType)
		assert.Equal(t, StatusPending, events[0].FromStatus)
		assert.Equal(t, StatusApproved, events[0].ToStatus)
	})

	t.Run("a second approval reports the actual state", func(t *testing.T) {
		err := handler.Approve(ctx, ApproveApplicationMessage{
			ApplicationID: app.ID,
			ApproverID:    uuid.New(),
		})
		require.Error(t, err)
		assert.True(t, IsInvalidTransition(err))
	})
}

func TestRejectApplication(t *testing.T) {
	repo := setupTestRepo(t)
	sink := &recordingSink{}
	handler := NewReviewApplicationHandler(repo).WithActivitySink(sink)
	ctx := context.Background()

	app := seedApplication(t, repo, "decline@example.com")
	rejecter := uuid.New()

	var resp *RejectApplicationResponse
	err := handler.Reject(ctx, RejectApplicationMessage{
		ApplicationID: app.ID,
		RejecterID:    rejecter,
		Reason:        "needs more experience",
		OnResponse:    func(r *RejectApplicationResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	t.Run("records the rejection", func(t *testing.T) {
		assert.Equal(t, StatusRejected, resp.Application.Status)
		assert.Equal(t, "needs more experience", resp.Application.RejectionReason)
		require.NotNil(t, resp.Application.RejectedBy)
		assert.Equal(t, rejecter, *resp.Application.RejectedBy)
		assert.NotNil(t, resp.Application.RejectedAt)
	})

	t.Run("creates no user", func(t *testing.T) {
		_, err := repo.Users().GetByEmail(ctx, "decline@example.com")
		assert.Error(t, err)
	})

	t.Run("the applicant can reapply with a fresh application", func(t *testing.T) {
		// The resolved application still occupies the email, so a new
		// submission conflicts until it is deleted.
		submit := NewSubmitApplicationHandler(repo)
		err := submit.Execute(ctx, submitMessage("decline@example.com"))
		require.Error(t, err)
		assert.True(t, IsEmailTaken(err))

		require.NoError(t, repo.Applications().DeleteByID(ctx, app.ID))
		assert.NoError(t, submit.Execute(ctx, submitMessage("decline@example.com")))
	})

	t.Run("rejecting again reports the actual state", func(t *testing.T) {
		sinkEvents := len(sink.recorded())

		fresh, err := repo.Applications().GetByEmail(ctx, "decline@example.com")
		require.NoError(t, err)

		err = handler.Reject(ctx, RejectApplicationMessage{
			ApplicationID: fresh.ID,
			RejecterID:    rejecter,
		})
		require.NoError(t, err)

		err = handler.Reject(ctx, RejectApplicationMessage{
			ApplicationID: fresh.ID,
			RejecterID:    rejecter,
		})
		require.Error(t, err)
		assert.True(t, IsInvalidTransition(err))
		assert.Len(t, sink.recorded(), sinkEvents+1)
	})
}

func TestReviewRejectedThenApprove(t *testing.T) {
	repo := setupTestRepo(t)
	handler := NewReviewApplicationHandler(repo)
	ctx := context.Background()

	app := seedApplication(t, repo, "flip@example.com")

	require.NoError(t, handler.Reject(ctx, RejectApplicationMessage{
		ApplicationID: app.ID,
		RejecterID:    uuid.New(),
	}))

	err := handler.Approve(ctx, ApproveApplicationMessage{
		ApplicationID: app.ID,
		ApproverID:    uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	_, err = repo.Users().GetByEmail(ctx, "flip@example.com")
	assert.Error(t, err)
}

func TestApproveLostReviewRaceIsAStateConflict(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	app := seedApplication(t, repo, "contested@example.com")

	// The rival approval wins after the loser's pre-fetch saw the
	// application still pending.
	raced := &raceRepo{RepositoryManager: repo}
	raced.rival = func() {
		require.NoError(t, NewReviewApplicationHandler(repo).Approve(ctx, ApproveApplicationMessage{
			ApplicationID: app.ID,
			ApproverID:    uuid.New(),
		}))
	}

	err := NewReviewApplicationHandler(raced).Approve(ctx, ApproveApplicationMessage{
		ApplicationID: app.ID,
		ApproverID:    uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.False(t, IsEmailTaken(err))

	// Only the winner created an instructor record.
	_, total, lerr := repo.Users().ListUsers(ctx, UserListCriteria{})
	require.NoError(t, lerr)
	assert.Equal(t, 1, total)
}

func TestApproveApplicationEmailRegisteredMidFlight(t *testing.T) {
	repo := setupTestRepo(t)
	handler := NewReviewApplicationHandler(repo)
	ctx := context.Background()

	app := seedApplication(t, repo, "raced@example.com")

	// The email gets registered as a user between submission and review.
	seedUser(t, repo, "raced@example.com", "user-pass", RoleStudent)

	err := handler.Approve(ctx, ApproveApplicationMessage{
		ApplicationID: app.ID,
		ApproverID:    uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, IsEmailTaken(err))

	// The transaction rolled back: the application is still pending.
	current, err := repo.Applications().GetByEmail(ctx, "raced@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, current.Status)
}

func TestReviewApplicationGuards(t *testing.T) {
	repo := setupTestRepo(t)
	handler := NewReviewApplicationHandler(repo)
	ctx := context.Background()

	t.Run("unknown application", func(t *testing.T) {
		err := handler.Approve(ctx, ApproveApplicationMessage{
			ApplicationID: uuid.New(),
			ApproverID:    uuid.New(),
		})
		assert.ErrorIs(t, err, ErrApplicationNotFound)
	})

	t.Run("missing ids", func(t *testing.T) {
		assert.Error(t, handler.Approve(ctx, ApproveApplicationMessage{}))
		assert.Error(t, handler.Reject(ctx, RejectApplicationMessage{}))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Error(t, handler.Approve(cancelled, ApproveApplicationMessage{
			ApplicationID: uuid.New(),
			ApproverID:    uuid.New(),
		}))
	})
}
