package onboard

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DeleteApplicationMessage hard-deletes an application. Deletion is
// unconditional: it applies to pending and resolved applications alike.
type DeleteApplicationMessage struct {
	ApplicationID uuid.UUID `json:"application_id"`
	ActorID       uuid.UUID `json:"actor_id"`
}

func (m DeleteApplicationMessage) Type() string { return "application.delete" }

// DeleteApplicationHandler removes application records.
type DeleteApplicationHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewDeleteApplicationHandler creates a handler with sane defaults.
func NewDeleteApplicationHandler(repo RepositoryManager) *DeleteApplicationHandler {
	return &DeleteApplicationHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit deletion events.
func (h *DeleteApplicationHandler) WithActivitySink(sink ActivitySink) *DeleteApplicationHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *DeleteApplicationHandler) WithLogger(logger Logger) *DeleteApplicationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteApplicationHandler) Execute(ctx context.Context, event DeleteApplicationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during application deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteApplicationHandler) execute(ctx context.Context, event DeleteApplicationMessage) error {
	if event.ApplicationID == uuid.Nil {
		return goerrors.New("application id is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.repo.Applications().DeleteByID(ctx, event.ApplicationID); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete application")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:     ActivityEventApplicationDeleted,
		Actor:         ActorRef{ID: event.ActorID.String(), Type: "admin"},
		ApplicationID: event.ApplicationID.String(),
	})

	return nil
}
