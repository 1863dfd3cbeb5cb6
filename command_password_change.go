package onboard

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangePasswordMessage rotates a user's password after verifying the
// current one. Used both for voluntary changes and for the mandatory
// change after a temporary password login.
type ChangePasswordMessage struct {
	UserID          uuid.UUID `json:"user_id"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
	OnResponse      func(resp *ChangePasswordResponse)
}

func (m ChangePasswordMessage) Type() string { return "user.password_change" }

// Validate will run validation rules
func (m ChangePasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.CurrentPassword, validation.Required),
		validation.Field(&m.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

// ChangePasswordResponse carries the fresh session token.
type ChangePasswordResponse struct {
	Identity IdentitySummary
	Token    string
}

// ChangePasswordHandler verifies and rotates credentials.
type ChangePasswordHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(repo RepositoryManager, tokens TokenService) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit change events.
func (h *ChangePasswordHandler) WithActivitySink(sink ActivitySink) *ChangePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if event.UserID == uuid.Nil {
		return goerrors.New("user id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password change payload").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByID(ctx, event.UserID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return annotate(ErrUserNotFound, map[string]any{"id": event.UserID.String()})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
	}

	if err := ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		return ErrMismatchedHashAndPassword
	}

	hash, err := HashPassword(event.NewPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	// Clears the temporary flag: a changed password is no longer
	// system-generated.
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash, false)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
	}

	token, err := h.tokens.Generate(UserIdentity(user))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue session token")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&ChangePasswordResponse{
			Identity: user.Summary(),
			Token:    token,
		})
	}

	return nil
}
