package onboard

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// ForgotPasswordMessage rotates an account's password to a random
// temporary one and delivers it to the account email.
type ForgotPasswordMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *ForgotPasswordResponse)
}

func (m ForgotPasswordMessage) Type() string { return "user.password_forgot" }

// Validate will run validation rules
func (m ForgotPasswordMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

// ForgotPasswordResponse confirms the rotation and delivery.
type ForgotPasswordResponse struct {
	Delivered bool
}

// ForgotPasswordHandler is the one flow where notification delivery is
// required rather than best-effort: the temporary password only exists
// in the outgoing message, so a delivery failure fails the operation.
type ForgotPasswordHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewForgotPasswordHandler creates a handler with sane defaults.
func NewForgotPasswordHandler(repo RepositoryManager, mailer Mailer) *ForgotPasswordHandler {
	return &ForgotPasswordHandler{
		repo:     repo,
		mailer:   normalizeMailer(mailer),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the delivery channel for temporary passwords.
func (h *ForgotPasswordHandler) WithMailer(mailer Mailer) *ForgotPasswordHandler {
	h.mailer = normalizeMailer(mailer)
	return h
}

// WithActivitySink sets the sink used to emit reset events.
func (h *ForgotPasswordHandler) WithActivitySink(sink ActivitySink) *ForgotPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ForgotPasswordHandler) WithLogger(logger Logger) *ForgotPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ForgotPasswordHandler) Execute(ctx context.Context, event ForgotPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ForgotPasswordHandler) execute(ctx context.Context, event ForgotPasswordMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password reset payload").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return annotate(ErrUserNotFound, map[string]any{"email": NormalizeEmail(event.Email)})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	plaintext, hash, err := GenerateTemporaryPassword()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate temporary password")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.Users().UpdatePasswordTx(ctx, tx, user.ID, hash, true)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store temporary password")
	}

	if err := h.mailer.Send(ctx, temporaryPasswordMessage(user, plaintext)); err != nil {
		h.logger.Error("temporary password delivery failed", "user_id", user.ID.String(), "error", err)
		return annotate(ErrDeliveryFailed, map[string]any{"error": err.Error()})
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&ForgotPasswordResponse{Delivered: true})
	}

	return nil
}
