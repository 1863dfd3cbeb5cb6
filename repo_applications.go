package onboard

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Compare-and-set updates: the WHERE clause only matches while the
// stored status is still pending, so a second concurrent review of the
// same application updates zero rows.
var approveApplicationSQL = `UPDATE "instructor_applications" AS "app"
SET
	"status" = 'approved',
	"approved_by" = ?,
	"approved_at" = ?,
	"updated_at" = ?
WHERE
	"app"."id" = ?
AND
	"app"."status" = 'pending'
RETURNING *;`

var rejectApplicationSQL = `UPDATE "instructor_applications" AS "app"
SET
	"status" = 'rejected',
	"rejected_by" = ?,
	"rejected_at" = ?,
	"rejection_reason" = ?,
	"updated_at" = ?
WHERE
	"app"."id" = ?
AND
	"app"."status" = 'pending'
RETURNING *;`

// errApplicationNotPending reports a lost compare-and-set race: the
// application left pending between the caller's read and its write.
var errApplicationNotPending = goerrors.New("application is no longer pending", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict)

// ApplicationListCriteria narrows and pages List results.
type ApplicationListCriteria struct {
	Status  ApplicationStatus
	Page    int
	PerPage int
}

// Applications is the instructor application store.
type Applications interface {
	repository.Repository[*InstructorApplication]

	GetByEmail(ctx context.Context, email string) (*InstructorApplication, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*InstructorApplication, error)

	Create(ctx context.Context, record *InstructorApplication, criteria ...repository.InsertCriteria) (*InstructorApplication, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *InstructorApplication, criteria ...repository.InsertCriteria) (*InstructorApplication, error)

	ApproveTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID, at time.Time) (*InstructorApplication, error)
	RejectTx(ctx context.Context, tx bun.IDB, id, rejecterID uuid.UUID, reason string, at time.Time) (*InstructorApplication, error)

	DeleteByID(ctx context.Context, id uuid.UUID) error

	ListApplications(ctx context.Context, criteria ApplicationListCriteria) ([]*InstructorApplication, int, error)
}

type applications struct {
	repository.Repository[*InstructorApplication]
	db *bun.DB
}

var (
	_ Applications                                  = (*applications)(nil)
	_ repository.Repository[*InstructorApplication] = (*applications)(nil)
)

// NewApplicationsRepository builds the application store on top of the
// generic bun repository.
func NewApplicationsRepository(db *bun.DB) Applications {
	repo := repository.NewRepository[*InstructorApplication](db, repository.ModelHandlers[*InstructorApplication]{
		NewRecord: func() *InstructorApplication { return &InstructorApplication{} },
		GetID: func(a *InstructorApplication) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *InstructorApplication, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &applications{
		Repository: repo,
		db:         db,
	}
}

// GetByEmail looks up an application by normalized email.
func (a *applications) GetByEmail(ctx context.Context, email string) (*InstructorApplication, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *applications) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*InstructorApplication, error) {
	record := &InstructorApplication{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, annotate(ErrApplicationNotFound, map[string]any{"email": NormalizeEmail(email)})
		}
		return nil, err
	}

	return record, nil
}

func (a *applications) Create(ctx context.Context, record *InstructorApplication, criteria ...repository.InsertCriteria) (*InstructorApplication, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *applications) CreateTx(ctx context.Context, tx bun.IDB, record *InstructorApplication, criteria ...repository.InsertCriteria) (*InstructorApplication, error) {
	prepareApplicationDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		return nil, translateCreateError(err, record.Email)
	}

	return created, nil
}

// ApproveTx transitions the application to approved if and only if it
// is still pending. A lost race returns errApplicationNotPending and
// the caller re-fetches to report the actual state.
func (a *applications) ApproveTx(ctx context.Context, tx bun.IDB, id, approverID uuid.UUID, at time.Time) (*InstructorApplication, error) {
	res, err := a.Repository.RawTx(ctx, tx, approveApplicationSQL,
		approverID.String(), at, at, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, errApplicationNotPending
	}

	return res[0], nil
}

// RejectTx is the rejection counterpart of ApproveTx.
func (a *applications) RejectTx(ctx context.Context, tx bun.IDB, id, rejecterID uuid.UUID, reason string, at time.Time) (*InstructorApplication, error) {
	res, err := a.Repository.RawTx(ctx, tx, rejectApplicationSQL,
		rejecterID.String(), at, reason, at, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, errApplicationNotPending
	}

	return res[0], nil
}

// DeleteByID hard-deletes the application regardless of status.
func (a *applications) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*InstructorApplication)(nil)).
		Where("id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return annotate(ErrApplicationNotFound, map[string]any{"id": id.String()})
	}

	return nil
}

// ListApplications returns a page of applications ordered newest first.
// The password hash column is excluded from the projection.
func (a *applications) ListApplications(ctx context.Context, criteria ApplicationListCriteria) ([]*InstructorApplication, int, error) {
	page, perPage := normalizePagination(criteria.Page, criteria.PerPage)

	records := []*InstructorApplication{}
	q := a.db.NewSelect().
		Model(&records).
		ExcludeColumn("password_hash").
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage)

	if criteria.Status != "" {
		q = q.Where("?TableAlias.status = ?", criteria.Status)
	}

	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func prepareApplicationDefaults(record *InstructorApplication) {
	if record == nil {
		return
	}

	record.EnsureStatus()
	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
