package events

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// Tx is the set of statements available inside the create transaction.
type Tx interface {
	raci.Queries
	InsertEvent(ctx context.Context, e *models.Event) error
}

// ListFilter narrows an event listing. AssigneeID restricts to events the user is assigned on.
type ListFilter struct {
	CompanyID    uuid.UUID
	DepartmentID *uuid.UUID
	AssigneeID   *uuid.UUID
	Status       models.ApprovalStatus
	Search       string
}

// TrackerRef is a tracker with the tenant scope of its event.
type TrackerRef struct {
	Tracker      models.EventTracker
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
}

// Store is the persistence of events and trackers.
type Store interface {
	Department(ctx context.Context, id uuid.UUID) (*models.Department, error)
	InTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter, p pagination.Params) ([]models.Event, int, error)
	EventTrackers(ctx context.Context, eventID uuid.UUID) ([]models.EventTracker, error)
	UserTrackers(ctx context.Context, userID uuid.UUID) ([]models.EventTracker, error)
	Tracker(ctx context.Context, id uuid.UUID) (*TrackerRef, error)
	UpdateTrackerStatus(ctx context.Context, id uuid.UUID, status models.TrackerStatus) (*models.EventTracker, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txQueries struct {
	raci.Queries
	db database.DBTX
}

func (t txQueries) InsertEvent(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (name, description, department_id, hod_id, created_by, document_path, document_key)
		VALUES ($1, NULLIF($2,''), $3, $4, $5, NULLIF($6,''), NULLIF($7,''))
		RETURNING id, approval_status, created_at, updated_at`
	err := t.db.QueryRow(ctx, q, e.Name, e.Description, e.DepartmentID, e.HODID, e.CreatedBy, e.DocumentPath, e.DocumentKey).
		Scan(&e.ID, &e.ApprovalStatus, &e.CreatedAt, &e.UpdatedAt)
	return database.MapError(err, "")
}

// InTx runs fn inside one transaction; the matrix statements share it.
func (r *Repository) InTx(ctx context.Context, fn func(Tx) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(txQueries{Queries: raci.NewQueries(tx), db: tx})
	})
}

// Department loads a department with its company.
func (r *Repository) Department(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	const q = `SELECT id, name, company_id, hod_id, created_at, updated_at FROM departments WHERE id = $1`
	var d models.Department
	err := r.pool.QueryRow(ctx, q, id).Scan(&d.ID, &d.Name, &d.CompanyID, &d.HODID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "department not found")
	}
	return &d, nil
}

const eventColumns = `e.id, e.name, COALESCE(e.description,''), e.department_id, d.company_id, e.hod_id, e.created_by,
	COALESCE(e.document_path,''), COALESCE(e.document_key,''), e.approval_status, COALESCE(e.rejection_reason,''),
	e.approved_by, e.created_at, e.updated_at`

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.DepartmentID, &e.CompanyID, &e.HODID, &e.CreatedBy,
		&e.DocumentPath, &e.DocumentKey, &e.ApprovalStatus, &e.RejectionReason, &e.ApprovedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Get loads one event.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events e JOIN departments d ON d.id = e.department_id WHERE e.id = $1`
	e, err := scanEvent(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, database.MapError(err, "event not found")
	}
	return e, nil
}

// List returns one page of events matching f, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter, p pagination.Params) ([]models.Event, int, error) {
	where := ` WHERE d.company_id = $1`
	args := []any{f.CompanyID}
	if f.DepartmentID != nil {
		args = append(args, *f.DepartmentID)
		where += ` AND e.department_id = $` + strconv.Itoa(len(args))
	}
	if f.AssigneeID != nil {
		args = append(args, *f.AssigneeID)
		n := strconv.Itoa(len(args))
		where += ` AND (EXISTS (SELECT 1 FROM raci_assignments ra WHERE ra.event_id = e.id AND ra.user_id = $` + n + `)
			OR EXISTS (SELECT 1 FROM event_trackers et WHERE et.event_id = e.id AND et.user_id = $` + n + `))`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where += ` AND e.approval_status = $` + strconv.Itoa(len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += ` AND e.name ILIKE $` + strconv.Itoa(len(args))
	}
	from := ` FROM events e JOIN departments d ON d.id = e.department_id`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+from+where, args...).Scan(&total); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	n := len(args)
	q := `SELECT ` + eventColumns + from + where + ` ORDER BY e.created_at DESC, e.id
		LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.pool.Query(ctx, q, append(args, p.PageSize, p.Offset())...)
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	defer rows.Close()
	list := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, database.MapError(err, "")
		}
		list = append(list, *e)
	}
	return list, total, database.MapError(rows.Err(), "")
}

const trackerColumns = `t.id, t.event_id, e.name, t.user_id, t.status, t.created_at, t.updated_at`

func collectTrackers(rows pgx.Rows) ([]models.EventTracker, error) {
	defer rows.Close()
	list := []models.EventTracker{}
	for rows.Next() {
		var t models.EventTracker
		if err := rows.Scan(&t.ID, &t.EventID, &t.EventName, &t.UserID, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, database.MapError(err, "")
		}
		list = append(list, t)
	}
	return list, database.MapError(rows.Err(), "")
}

// EventTrackers lists the trackers of an event.
func (r *Repository) EventTrackers(ctx context.Context, eventID uuid.UUID) ([]models.EventTracker, error) {
	const q = `SELECT ` + trackerColumns + ` FROM event_trackers t JOIN events e ON e.id = t.event_id
		WHERE t.event_id = $1 ORDER BY t.created_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	return collectTrackers(rows)
}

// UserTrackers lists a user's trackers across events.
func (r *Repository) UserTrackers(ctx context.Context, userID uuid.UUID) ([]models.EventTracker, error) {
	const q = `SELECT ` + trackerColumns + ` FROM event_trackers t JOIN events e ON e.id = t.event_id
		WHERE t.user_id = $1 ORDER BY t.updated_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	return collectTrackers(rows)
}

// Tracker loads a tracker with the company and department of its event.
func (r *Repository) Tracker(ctx context.Context, id uuid.UUID) (*TrackerRef, error) {
	const q = `SELECT ` + trackerColumns + `, d.company_id, e.department_id FROM event_trackers t
		JOIN events e ON e.id = t.event_id JOIN departments d ON d.id = e.department_id WHERE t.id = $1`
	var ref TrackerRef
	t := &ref.Tracker
	err := r.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.EventID, &t.EventName, &t.UserID, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		&ref.CompanyID, &ref.DepartmentID)
	if err != nil {
		return nil, database.MapError(err, "tracker not found")
	}
	return &ref, nil
}

// UpdateTrackerStatus sets the status of a tracker.
func (r *Repository) UpdateTrackerStatus(ctx context.Context, id uuid.UUID, status models.TrackerStatus) (*models.EventTracker, error) {
	const q = `UPDATE event_trackers t SET status = $2, updated_at = NOW() FROM events e
		WHERE t.id = $1 AND e.id = t.event_id RETURNING ` + trackerColumns
	var t models.EventTracker
	err := r.pool.QueryRow(ctx, q, id, string(status)).Scan(&t.ID, &t.EventID, &t.EventName, &t.UserID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "tracker not found")
	}
	return &t, nil
}
