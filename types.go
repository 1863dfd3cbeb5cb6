package onboard

import (
	"fmt"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface the package needs. Secret
// material must never be passed to any of these methods.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity.
type Identity interface {
	ID() string
	Name() string
	Email() string
	Role() string
}

// IdentitySummary is the public projection of a user: the fields that
// are safe to return from any operation.
type IdentitySummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  UserRole  `json:"role"`
}

// Config holds token issuance options. Implementations load values once
// at startup; nothing in this package reads ambient process state.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

type identitySummaryAdapter struct {
	summary IdentitySummary
}

func (a identitySummaryAdapter) ID() string    { return a.summary.ID.String() }
func (a identitySummaryAdapter) Name() string  { return a.summary.Name }
func (a identitySummaryAdapter) Email() string { return a.summary.Email }
func (a identitySummaryAdapter) Role() string  { return string(a.summary.Role) }

// IdentityFromSummary adapts a summary to the Identity interface.
func IdentityFromSummary(s IdentitySummary) Identity {
	return identitySummaryAdapter{summary: s}
}

// UserIdentity adapts a user record to the Identity interface.
func UserIdentity(u *User) Identity {
	return identitySummaryAdapter{summary: u.Summary()}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ONBOARD "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ONBOARD "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ONBOARD "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ONBOARD "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
