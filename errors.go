package onboard

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Stable text codes surfaced to API clients alongside the error category.
const (
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeApplicationNotFound = "APPLICATION_NOT_FOUND"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeInvalidTransition   = "INVALID_APPLICATION_TRANSITION"
	TextCodeTerminalState       = "TERMINAL_APPLICATION_STATE"
	TextCodeDeliveryFailed      = "NOTIFICATION_DELIVERY_FAILED"
	TextCodeMissingSigningKey   = "MISSING_SIGNING_KEY"
	TextCodeInvalidRole         = "INVALID_ROLE"
)

// ErrEmailTaken is returned when an email already exists in either the
// users or the applications collection. A pre-check miss and a
// unique-index violation surface as this same error.
var ErrEmailTaken = goerrors.New("an account or application with this email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword is the single credentials error. It is
// intentionally returned both for unknown identifiers and for wrong
// passwords so callers cannot probe for account existence.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyPassword rejects empty password input before hashing.
var ErrNoEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrApplicationNotFound is returned when an application id does not exist.
var ErrApplicationNotFound = goerrors.New("instructor application not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeApplicationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserNotFound is returned when a user lookup by id or email misses.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid application state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalState is returned when attempting to move away from a
// terminal status (approved or rejected).
var ErrTerminalState = goerrors.New("application state is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalState).
	WithCode(goerrors.CodeConflict)

// ErrDeliveryFailed is returned when a notification the caller depends
// on could not be delivered. Only the forgot-password flow escalates
// delivery failures; everywhere else they are logged and swallowed.
var ErrDeliveryFailed = goerrors.New("could not deliver notification", goerrors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(goerrors.CodeInternal)

// ErrMissingSigningKey is fatal at startup: the token service refuses
// to construct without a signing key.
var ErrMissingSigningKey = goerrors.New("token signing key is not configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(goerrors.CodeInternal)

// ErrInvalidRole rejects roles outside the known enumeration.
var ErrInvalidRole = goerrors.New("unknown or invalid role", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(goerrors.CodeBadRequest)

// IsEmailTaken reports whether err is the uniqueness conflict error,
// regardless of which layer detected it.
func IsEmailTaken(err error) bool {
	return hasTextCode(err, TextCodeEmailTaken)
}

// IsInvalidTransition reports whether err is a lifecycle violation,
// terminal or otherwise.
func IsInvalidTransition(err error) bool {
	return hasTextCode(err, TextCodeInvalidTransition) || hasTextCode(err, TextCodeTerminalState)
}

// IsDeliveryFailure reports whether err came from the notification sink.
func IsDeliveryFailure(err error) bool {
	return hasTextCode(err, TextCodeDeliveryFailed)
}

// annotate attaches metadata to a copy of the sentinel. The sentinels
// are shared package state: annotating them in place would leak
// metadata between unrelated requests and race under concurrent
// writes. The sentinel stays on the error chain so errors.Is checks
// against it keep working.
func annotate(sentinel *goerrors.Error, meta map[string]any) error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	clone.Source = sentinel
	return clone.WithMetadata(meta)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// isUniqueViolation sniffs driver-level unique index errors. SQLite and
// Postgres spell these differently and neither exposes a typed error
// through database/sql.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

// translateCreateError folds unique-index violations into the same
// conflict error a pre-check would have produced.
func translateCreateError(err error, email string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return annotate(ErrEmailTaken, map[string]any{"email": email})
	}
	return err
}
