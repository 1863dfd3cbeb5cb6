package onboard

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    user_role TEXT NOT NULL DEFAULT 'student',
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    require_password_change BOOLEAN NOT NULL DEFAULT FALSE,
    password_reset_at TIMESTAMP NULL,
    profile_bio TEXT,
    profile_expertise TEXT,
    profile_experience TEXT,
    profile_education TEXT,
    profile_phone_number TEXT,
    profile_linkedin_url TEXT,
    profile_github_url TEXT,
    profile_portfolio_url TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`

	sqliteCreateApplications = `CREATE TABLE instructor_applications (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    profile_bio TEXT,
    profile_expertise TEXT,
    profile_experience TEXT,
    profile_education TEXT,
    profile_phone_number TEXT,
    profile_linkedin_url TEXT,
    profile_github_url TEXT,
    profile_portfolio_url TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    approved_by TEXT NULL,
    approved_at TIMESTAMP NULL,
    rejected_by TEXT NULL,
    rejected_at TIMESTAMP NULL,
    rejection_reason TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateApplications)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	return bunDB
}

func setupTestRepo(t *testing.T) RepositoryManager {
	t.Helper()
	return NewRepositoryManager(setupTestDB(t))
}

func setupRepoWithDB(t *testing.T) (RepositoryManager, *bun.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositoryManager(db), db
}

func testTokenService(t *testing.T) TokenService {
	t.Helper()

	svc, err := NewTokenService([]byte("test-signing-key"), 1, "test-issuer", nil, nil)
	require.NoError(t, err)

	return svc
}

// testHash hashes at the minimum cost so fixtures stay fast.
func testHash(t *testing.T, password string) string {
	t.Helper()

	hash, err := HashPasswordWithCost(password, bcrypt.MinCost)
	require.NoError(t, err)

	return hash
}

func validProfile() InstructorProfile {
	return InstructorProfile{
		Bio:          "Teaching distributed systems for a decade.",
		Expertise:    "Distributed Systems",
		Experience:   ExperienceVeteran,
		Education:    "MSc Computer Science",
		Phone:        "+1 650-253-0000",
		LinkedInURL:  "https://linkedin.com/in/jdoe",
		GitHubURL:    "https://github.com/jdoe",
		PortfolioURL: "https://jdoe.dev",
	}
}

func seedUser(t *testing.T, repo RepositoryManager, email, password string, role UserRole) *User {
	t.Helper()

	user, err := repo.Users().Create(context.Background(), &User{
		Name:         "Seeded User",
		Email:        email,
		Role:         role,
		PasswordHash: testHash(t, password),
	})
	require.NoError(t, err)

	return user
}

func seedApplication(t *testing.T, repo RepositoryManager, email string) *InstructorApplication {
	t.Helper()

	app, err := repo.Applications().Create(context.Background(), &InstructorApplication{
		Name:         "Seeded Applicant",
		Email:        email,
		PasswordHash: testHash(t, "applicant-secret"),
		Profile:      validProfile(),
	})
	require.NoError(t, err)

	return app
}

// recordingMailer captures sent messages for assertions.
type recordingMailer struct {
	mu       sync.Mutex
	messages []Message
	fail     error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}

	m.messages = append(m.messages, msg)
	return nil
}

func (m *recordingMailer) sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) recorded() []ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}
