package onboard

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ApplicationStatus is the lifecycle state of an instructor application.
type ApplicationStatus = string

const (
	// StatusPending is the initial state of every submitted application.
	StatusPending ApplicationStatus = "pending"
	// StatusApproved is terminal: the applicant has been promoted to a user.
	StatusApproved ApplicationStatus = "approved"
	// StatusRejected is terminal: no user is created.
	StatusRejected ApplicationStatus = "rejected"
)

// ExperienceLevel is the applicant's years of teaching experience.
type ExperienceLevel = string

const (
	ExperienceNone    ExperienceLevel = "0-1"
	ExperienceJunior  ExperienceLevel = "1-3"
	ExperienceMid     ExperienceLevel = "3-5"
	ExperienceSenior  ExperienceLevel = "5-10"
	ExperienceVeteran ExperienceLevel = "10+"
)

// ExperienceLevels returns the allowed values in ascending order.
func ExperienceLevels() []ExperienceLevel {
	return []ExperienceLevel{
		ExperienceNone,
		ExperienceJunior,
		ExperienceMid,
		ExperienceSenior,
		ExperienceVeteran,
	}
}

// InstructorProfile carries the instructor-specific profile data. An
// application owns its copy until approval, at which point the profile
// is copied into the new user record and the two become independent.
type InstructorProfile struct {
	Bio          string          `bun:"bio" json:"bio,omitempty"`
	Expertise    string          `bun:"expertise" json:"expertise,omitempty"`
	Experience   ExperienceLevel `bun:"experience" json:"experience,omitempty"`
	Education    string          `bun:"education" json:"education,omitempty"`
	Phone        string          `bun:"phone_number" json:"phone_number,omitempty"`
	LinkedInURL  string          `bun:"linkedin_url" json:"linkedin_url,omitempty"`
	GitHubURL    string          `bun:"github_url" json:"github_url,omitempty"`
	PortfolioURL string          `bun:"portfolio_url" json:"portfolio_url,omitempty"`
}

// User is the identity model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID    uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role  UserRole  `bun:"user_role,notnull" json:"user_role,omitempty"`
	Name  string    `bun:"name,notnull" json:"name,omitempty"`
	Email string    `bun:"email,notnull,unique" json:"email,omitempty"`

	// PasswordHash never leaves the process: excluded from JSON and
	// from list projections.
	PasswordHash string `bun:"password_hash" json:"-"`

	// RequirePasswordChange marks a system-generated temporary
	// password that must be rotated on next login.
	RequirePasswordChange bool       `bun:"require_password_change" json:"require_password_change,omitempty"`
	PasswordResetAt       *time.Time `bun:"password_reset_at,nullzero" json:"password_reset_at,omitempty"`

	Profile InstructorProfile `bun:"embed:profile_" json:"profile,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() IdentitySummary {
	return IdentitySummary{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// InstructorApplication is a pending request to become an instructor.
// It holds its own copy of the applicant's name, email, password hash,
// and profile until a reviewer resolves it.
type InstructorApplication struct {
	bun.BaseModel `bun:"table:instructor_applications,alias:app"`

	ID    uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name  string    `bun:"name,notnull" json:"name,omitempty"`
	Email string    `bun:"email,notnull,unique" json:"email,omitempty"`

	PasswordHash string `bun:"password_hash" json:"-"`

	Profile InstructorProfile `bun:"embed:profile_" json:"profile,omitempty"`

	Status ApplicationStatus `bun:"status,notnull,default:'pending'" json:"status,omitempty"`

	ApprovedBy      *uuid.UUID `bun:"approved_by,nullzero,type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `bun:"approved_at,nullzero" json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID `bun:"rejected_by,nullzero,type:uuid" json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `bun:"rejected_at,nullzero" json:"rejected_at,omitempty"`
	RejectionReason string     `bun:"rejection_reason" json:"rejection_reason,omitempty"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults the zero value to pending.
func (a *InstructorApplication) EnsureStatus() {
	if a.Status == "" {
		a.Status = StatusPending
	}
}

// IsResolved reports whether the application reached a terminal state.
func (a *InstructorApplication) IsResolved() bool {
	return a.Status == StatusApproved || a.Status == StatusRejected
}

// PromoteToUser builds the user record created when the application is
// approved. The profile is copied, not referenced.
func (a *InstructorApplication) PromoteToUser() *User {
	return &User{
		Role:         RoleInstructor,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Profile:      a.Profile,
	}
}

// NormalizeEmail trims and lowercases an email address. All lookups and
// writes go through this so the unique index sees one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
