package onboard

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubmitApplicationMessage carries a new instructor application.
type SubmitApplicationMessage struct {
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Password   string            `json:"password"`
	Profile    InstructorProfile `json:"profile"`
	OnResponse func(resp *SubmitApplicationResponse)
}

func (m SubmitApplicationMessage) Type() string { return "application.submit" }

// Validate will run validation rules
func (m SubmitApplicationMessage) Validate() error {
	if err := validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(6, 72)),
	); err != nil {
		return err
	}
	return m.Profile.Validate()
}

// SubmitApplicationResponse reports the persisted application id.
type SubmitApplicationResponse struct {
	ApplicationID uuid.UUID
	Application   *InstructorApplication
}

// SubmitApplicationHandler persists a pending application after
// checking both collections for the email.
type SubmitApplicationHandler struct {
	repo       RepositoryManager
	mailer     Mailer
	activity   ActivitySink
	logger     Logger
	adminEmail string
}

// NewSubmitApplicationHandler creates a handler with sane defaults.
func NewSubmitApplicationHandler(repo RepositoryManager) *SubmitApplicationHandler {
	return &SubmitApplicationHandler{
		repo:     repo,
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the sink used to notify administrators of new
// applications.
func (h *SubmitApplicationHandler) WithMailer(m Mailer) *SubmitApplicationHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithAdminEmail sets the recipient for submission notifications.
func (h *SubmitApplicationHandler) WithAdminEmail(email string) *SubmitApplicationHandler {
	h.adminEmail = NormalizeEmail(email)
	return h
}

// WithActivitySink sets the sink used to emit submission events.
func (h *SubmitApplicationHandler) WithActivitySink(sink ActivitySink) *SubmitApplicationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SubmitApplicationHandler) WithLogger(logger Logger) *SubmitApplicationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SubmitApplicationHandler) Execute(ctx context.Context, event SubmitApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application submission",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SubmitApplicationHandler) execute(ctx context.Context, event SubmitApplicationMessage) error {
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid application payload").
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	// Advisory pre-checks. The unique indexes remain the authoritative
	// guard for races between concurrent submissions.
	if err := h.ensureEmailAvailable(ctx, email); err != nil {
		return err
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	app := &InstructorApplication{
		Name:         event.Name,
		Email:        email,
		PasswordHash: hash,
		Profile:      event.Profile,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if app, err = h.repo.Applications().CreateTx(ctx, tx, app); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "application submission transaction failed")
	}

	// The submission already committed; notification failures must not
	// undo or fail it.
	if h.adminEmail != "" {
		notifyBestEffort(ctx, h.mailer, h.logger, applicationSubmittedMessage(h.adminEmail, app))
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:     ActivityEventApplicationSubmitted,
		Actor:         ActorRef{ID: app.ID.String(), Type: "applicant"},
		ApplicationID: app.ID.String(),
		ToStatus:      StatusPending,
	})

	if event.OnResponse != nil {
		event.OnResponse(&SubmitApplicationResponse{
			ApplicationID: app.ID,
			Application:   app,
		})
	}

	return nil
}

func (h *SubmitApplicationHandler) ensureEmailAvailable(ctx context.Context, email string) error {
	if _, err := h.repo.Users().GetByEmail(ctx, email); err == nil {
		return annotate(ErrEmailTaken, map[string]any{"email": email})
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check users for email")
	}

	if _, err := h.repo.Applications().GetByEmail(ctx, email); err == nil {
		return annotate(ErrEmailTaken, map[string]any{"email": email})
	} else if !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check applications for email")
	}

	return nil
}
