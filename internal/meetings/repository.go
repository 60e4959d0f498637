package meetings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/pkg/database"
)

// Meeting is a meeting with the tenant scope of its event.
type Meeting struct {
	models.RaciMeeting
	EventName    string    `json:"eventName,omitempty"`
	CompanyID    uuid.UUID `json:"-"`
	DepartmentID uuid.UUID `json:"-"`
}

// EventScope locates an event within its tenant.
type EventScope struct {
	ID           uuid.UUID
	Name         string
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
}

// Store is the persistence of meetings and their guest sets.
type Store interface {
	Event(ctx context.Context, eventID uuid.UUID) (*EventScope, error)
	CompanyUserIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, guestID *uuid.UUID) ([]Meeting, error)
	Get(ctx context.Context, id uuid.UUID) (*Meeting, error)
	// Save inserts (zero ID) or updates m and replaces its guest set in one transaction.
	Save(ctx context.Context, m *models.RaciMeeting) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Event returns the tenant scope of an event.
func (r *Repository) Event(ctx context.Context, eventID uuid.UUID) (*EventScope, error) {
	const q = `SELECT e.id, e.name, d.company_id, e.department_id FROM events e
		JOIN departments d ON d.id = e.department_id WHERE e.id = $1`
	var e EventScope
	if err := r.pool.QueryRow(ctx, q, eventID).Scan(&e.ID, &e.Name, &e.CompanyID, &e.DepartmentID); err != nil {
		return nil, database.MapError(err, "event not found")
	}
	return &e, nil
}

// CompanyUserIDs reports which of ids are users of the company.
func (r *Repository) CompanyUserIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	return raci.NewQueries(r.pool).CompanyUserIDs(ctx, companyID, ids)
}

const selectMeeting = `SELECT m.id, m.event_id, e.name, d.company_id, e.department_id, m.meeting_date, m.title,
	COALESCE(m.description,''), COALESCE(m.meeting_url,''), m.created_at, m.updated_at,
	COALESCE((SELECT array_agg(g.user_id::text ORDER BY g.user_id) FROM raci_meeting_guests g WHERE g.meeting_id = m.id), '{}')
	FROM raci_meetings m JOIN events e ON e.id = m.event_id JOIN departments d ON d.id = e.department_id`

func scan(row pgx.Row) (*Meeting, error) {
	var m Meeting
	var guests []string
	err := row.Scan(&m.ID, &m.EventID, &m.EventName, &m.CompanyID, &m.DepartmentID, &m.MeetingDate, &m.Title,
		&m.Description, &m.MeetingURL, &m.CreatedAt, &m.UpdatedAt, &guests)
	if err != nil {
		return nil, database.MapError(err, "meeting not found")
	}
	m.GuestIDs = make([]uuid.UUID, 0, len(guests))
	for _, g := range guests {
		id, err := uuid.Parse(g)
		if err != nil {
			return nil, database.MapError(err, "")
		}
		m.GuestIDs = append(m.GuestIDs, id)
	}
	return &m, nil
}

// ListByEvent returns the meetings of an event by date. guestID limits the result to meetings
// that user is invited to.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, guestID *uuid.UUID) ([]Meeting, error) {
	q := selectMeeting + ` WHERE m.event_id = $1 AND ($2::uuid IS NULL OR EXISTS
		(SELECT 1 FROM raci_meeting_guests g WHERE g.meeting_id = m.id AND g.user_id = $2))
		ORDER BY m.meeting_date, m.id`
	rows, err := r.pool.Query(ctx, q, eventID, guestID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	list := []Meeting{}
	for rows.Next() {
		m, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, database.MapError(rows.Err(), "")
}

// Get returns one meeting with its guests.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	return scan(r.pool.QueryRow(ctx, selectMeeting+` WHERE m.id = $1`, id))
}

// Save writes the meeting row and its guest set.
func (r *Repository) Save(ctx context.Context, m *models.RaciMeeting) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if m.ID == uuid.Nil {
			const q = `INSERT INTO raci_meetings (event_id, meeting_date, title, description, meeting_url)
				VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,'')) RETURNING id, created_at, updated_at`
			err = tx.QueryRow(ctx, q, m.EventID, m.MeetingDate, m.Title, m.Description, m.MeetingURL).
				Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		} else {
			const q = `UPDATE raci_meetings SET meeting_date = $2, title = $3, description = NULLIF($4,''),
				meeting_url = NULLIF($5,''), updated_at = NOW() WHERE id = $1 RETURNING updated_at`
			err = tx.QueryRow(ctx, q, m.ID, m.MeetingDate, m.Title, m.Description, m.MeetingURL).Scan(&m.UpdatedAt)
		}
		if err != nil {
			return database.MapError(err, "meeting not found")
		}
		if _, err := tx.Exec(ctx, `DELETE FROM raci_meeting_guests WHERE meeting_id = $1`, m.ID); err != nil {
			return database.MapError(err, "")
		}
		if len(m.GuestIDs) == 0 {
			return nil
		}
		const ins = `INSERT INTO raci_meeting_guests (meeting_id, user_id) SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`
		_, err = tx.Exec(ctx, ins, m.ID, m.GuestIDs)
		return database.MapError(err, "")
	})
}

// Delete removes a meeting and its guest rows.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM raci_meetings WHERE id = $1`, id)
	if err != nil {
		return database.MapError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return database.MapError(pgx.ErrNoRows, "meeting not found")
	}
	return nil
}
