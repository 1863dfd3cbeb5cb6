package onboard

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// TemporaryPasswordTTL bounds how long a system-generated temporary
// password stays usable. A login with an older one fails exactly like a
// wrong password.
var TemporaryPasswordTTL = "72h"

// LoginResult is what a successful login returns.
type LoginResult struct {
	Token                 string          `json:"token"`
	Identity              IdentitySummary `json:"identity"`
	RequirePasswordChange bool            `json:"require_password_change"`
}

// Authenticator verifies credentials and issues session tokens.
type Authenticator struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewAuthenticator will create a new Authenticator
func NewAuthenticator(repo RepositoryManager, tokens TokenService) *Authenticator {
	return &Authenticator{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit login events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithLogger overrides the logger used by the authenticator.
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Login verifies the email/password pair and mints a session token.
// Unknown emails and wrong passwords return the same error so callers
// cannot probe for account existence.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			a.recordFailure(ctx, NormalizeEmail(email))
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		a.recordFailure(ctx, user.ID.String())
		return nil, ErrMismatchedHashAndPassword
	}

	if expired, err := a.temporaryPasswordExpired(user); err != nil {
		return nil, err
	} else if expired {
		a.recordFailure(ctx, user.ID.String())
		return nil, ErrMismatchedHashAndPassword
	}

	token, err := a.tokens.Generate(UserIdentity(user))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	return &LoginResult{
		Token:                 token,
		Identity:              user.Summary(),
		RequirePasswordChange: user.RequirePasswordChange,
	}, nil
}

func (a *Authenticator) temporaryPasswordExpired(user *User) (bool, error) {
	if !user.RequirePasswordChange || user.PasswordResetAt == nil {
		return false, nil
	}

	expired, err := temporaryPasswordStale(*user.PasswordResetAt, TemporaryPasswordTTL)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check temporary password age")
	}

	return expired, nil
}

func (a *Authenticator) recordFailure(ctx context.Context, subject string) {
	recordActivity(ctx, a.activity, a.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{ID: subject, Type: "user"},
	})
}
