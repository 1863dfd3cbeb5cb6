package onboard

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ApproveApplicationMessage promotes a pending application to a user.
type ApproveApplicationMessage struct {
	ApplicationID uuid.UUID `json:"application_id"`
	ApproverID    uuid.UUID `json:"approver_id"`
	OnResponse    func(resp *ApproveApplicationResponse)
}

func (m ApproveApplicationMessage) Type() string { return "application.approve" }

// ApproveApplicationResponse carries the created identity's public
// fields and the resolved application.
type ApproveApplicationResponse struct {
	Identity    IdentitySummary
	Application *InstructorApplication
}

// RejectApplicationMessage resolves a pending application without
// creating a user.
type RejectApplicationMessage struct {
	ApplicationID uuid.UUID `json:"application_id"`
	RejecterID    uuid.UUID `json:"rejecter_id"`
	Reason        string    `json:"reason,omitempty"`
	OnResponse    func(resp *RejectApplicationResponse)
}

func (m RejectApplicationMessage) Type() string { return "application.reject" }

// RejectApplicationResponse confirms the rejection.
type RejectApplicationResponse struct {
	Application *InstructorApplication
}

// ReviewApplicationHandler hosts the approve and reject transitions.
// Both run the status-check-then-mutate sequence against the storage
// layer's compare-and-set, so a concurrent review loses cleanly.
type ReviewApplicationHandler struct {
	repo     RepositoryManager
	sm       ApplicationStateMachine
	mailer   Mailer
	activity ActivitySink
	logger   Logger
}

// NewReviewApplicationHandler creates a handler with sane defaults.
func NewReviewApplicationHandler(repo RepositoryManager) *ReviewApplicationHandler {
	return &ReviewApplicationHandler{
		repo:     repo,
		sm:       NewApplicationStateMachine(),
		mailer:   noopMailer{},
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the sink used to notify applicants of the outcome.
func (h *ReviewApplicationHandler) WithMailer(m Mailer) *ReviewApplicationHandler {
	h.mailer = normalizeMailer(m)
	return h
}

// WithActivitySink sets the sink used to emit review events.
func (h *ReviewApplicationHandler) WithActivitySink(sink ActivitySink) *ReviewApplicationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ReviewApplicationHandler) WithLogger(logger Logger) *ReviewApplicationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// Approve executes the approval transition.
func (h *ReviewApplicationHandler) Approve(ctx context.Context, event ApproveApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application approval",
		)
	default:
		return h.approve(ctx, event)
	}
}

func (h *ReviewApplicationHandler) approve(ctx context.Context, event ApproveApplicationMessage) error {
	if event.ApplicationID == uuid.Nil || event.ApproverID == uuid.Nil {
		return goerrors.New("application id and approver id are required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	app, err := h.getApplication(ctx, event.ApplicationID)
	if err != nil {
		return err
	}

	if err := h.sm.EnsureTransition(h.sm.CurrentStatus(app), StatusApproved); err != nil {
		return err
	}

	var user *User
	var updated *InstructorApplication

	// One logical transition: the status update and the user insert
	// commit together or not at all. The compare-and-set runs first so
	// a lost review race surfaces as a state conflict rather than an
	// email conflict. If the email was registered mid-flight the insert
	// conflicts, the transaction aborts, and the application stays
	// pending.
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if updated, err = h.repo.Applications().ApproveTx(ctx, tx, app.ID, event.ApproverID, time.Now()); err != nil {
			return err
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, app.PromoteToUser()); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		return h.reviewError(ctx, err, event.ApplicationID, StatusApproved)
	}

	notifyBestEffort(ctx, h.mailer, h.logger, applicationApprovedMessage(updated))

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:     ActivityEventApplicationApproved,
		Actor:         ActorRef{ID: event.ApproverID.String(), Type: "admin"},
		UserID:        user.ID.String(),
		ApplicationID: updated.ID.String(),
		FromStatus:    StatusPending,
		ToStatus:      StatusApproved,
	})

	if event.OnResponse != nil {
		event.OnResponse(&ApproveApplicationResponse{
			Identity:    user.Summary(),
			Application: updated,
		})
	}

	return nil
}

// Reject executes the rejection transition.
func (h *ReviewApplicationHandler) Reject(ctx context.Context, event RejectApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application rejection",
		)
	default:
		return h.reject(ctx, event)
	}
}

func (h *ReviewApplicationHandler) reject(ctx context.Context, event RejectApplicationMessage) error {
	if event.ApplicationID == uuid.Nil || event.RejecterID == uuid.Nil {
		return goerrors.New("application id and rejecter id are required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	app, err := h.getApplication(ctx, event.ApplicationID)
	if err != nil {
		return err
	}

	if err := h.sm.EnsureTransition(h.sm.CurrentStatus(app), StatusRejected); err != nil {
		return err
	}

	var updated *InstructorApplication

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err = h.repo.Applications().RejectTx(ctx, tx, app.ID, event.RejecterID, event.Reason, time.Now())
		return err
	})

	if err != nil {
		return h.reviewError(ctx, err, event.ApplicationID, StatusRejected)
	}

	notifyBestEffort(ctx, h.mailer, h.logger, applicationRejectedMessage(updated))

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:     ActivityEventApplicationRejected,
		Actor:         ActorRef{ID: event.RejecterID.String(), Type: "admin"},
		ApplicationID: updated.ID.String(),
		FromStatus:    StatusPending,
		ToStatus:      StatusRejected,
		Metadata:      rejectionMetadata(event.Reason),
	})

	if event.OnResponse != nil {
		event.OnResponse(&RejectApplicationResponse{Application: updated})
	}

	return nil
}

func (h *ReviewApplicationHandler) getApplication(ctx context.Context, id uuid.UUID) (*InstructorApplication, error) {
	app, err := h.repo.Applications().GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, annotate(ErrApplicationNotFound, map[string]any{"id": id.String()})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve instructor application")
	}
	return app, nil
}

// reviewError translates a lost compare-and-set into the same invalid
// state error a pre-check would have produced, reporting the status the
// application actually holds.
func (h *ReviewApplicationHandler) reviewError(ctx context.Context, err error, id uuid.UUID, target ApplicationStatus) error {
	if goerrors.Is(err, errApplicationNotPending) {
		current, ferr := h.getApplication(ctx, id)
		if ferr != nil {
			return ferr
		}
		return annotate(ErrInvalidTransition, map[string]any{
			"from": current.Status,
			"to":   target,
		})
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "application review transaction failed")
}

func rejectionMetadata(reason string) map[string]any {
	if reason == "" {
		return nil
	}
	return map[string]any{"reason": reason}
}
