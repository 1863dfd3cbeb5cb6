package onboard

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var updateUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"require_password_change" = ?,
	"password_reset_at" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

// UserListCriteria narrows and pages List results.
type UserListCriteria struct {
	Role    UserRole
	Page    int
	PerPage int
}

// Users is the identity store.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, temporary bool) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, temporary bool) error

	ListUsers(ctx context.Context, criteria UserListCriteria) ([]*User, int, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository builds the identity store on top of the generic
// bun repository.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

// GetByEmail looks up a user by normalized email.
func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, annotate(ErrUserNotFound, map[string]any{"email": NormalizeEmail(email)})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

// CreateTx inserts the record. The unique email index is the
// authoritative uniqueness guard: index violations come back as the
// same conflict error a pre-check would have produced.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, translateCreateError(err, record.Email)
	}

	return created, nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, temporary bool) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash, temporary)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, temporary bool) error {
	var resetAt *time.Time
	if temporary {
		now := time.Now()
		resetAt = &now
	}

	res, err := a.Repository.RawTx(ctx, tx, updateUserPasswordSQL,
		passwordHash, temporary, resetAt, time.Now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return annotate(ErrUserNotFound, map[string]any{"id": id.String()})
	}

	return nil
}

// ListUsers returns a page of users ordered newest first. The password
// hash column is excluded from the projection.
func (a *users) ListUsers(ctx context.Context, criteria UserListCriteria) ([]*User, int, error) {
	page, perPage := normalizePagination(criteria.Page, criteria.PerPage)

	records := []*User{}
	q := a.db.NewSelect().
		Model(&records).
		ExcludeColumn("password_hash").
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage)

	if criteria.Role != "" {
		q = q.Where("?TableAlias.user_role = ?", criteria.Role)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleStudent
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func normalizePagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
