package onboard

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventApplicationSubmitted ActivityEventType = "application.submitted"
	ActivityEventApplicationApproved  ActivityEventType = "application.approved"
	ActivityEventApplicationRejected  ActivityEventType = "application.rejected"
	ActivityEventApplicationDeleted   ActivityEventType = "application.deleted"
	ActivityEventUserRegistered       ActivityEventType = "user.registered"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventPasswordReset        ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChanged      ActivityEventType = "auth.password.changed"
)

// ActorRef identifies who/what triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType     ActivityEventType
	Actor         ActorRef
	UserID        string
	ApplicationID string
	FromStatus    ApplicationStatus
	ToStatus      ApplicationStatus
	Metadata      map[string]any
	OccurredAt    time.Time
}

// ActivitySink consumes activity events for auditing/telemetry
// purposes. Sink failures never block or fail the triggering operation.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("activity sink error: %v", err)
	}
}
