package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
)

// Scope narrows company aggregates. Nil fields do not filter.
type Scope struct {
	CompanyID    uuid.UUID
	DepartmentID *uuid.UUID
	AssigneeID   *uuid.UUID
}

// Store runs the aggregation queries. Every method is safe for concurrent use.
type Store interface {
	PlatformStats(ctx context.Context) (*PlatformStats, error)
	RecentCompanies(ctx context.Context, limit int) ([]CompanyBrief, error)
	Company(ctx context.Context, id uuid.UUID) (*CompanyBrief, error)
	Department(ctx context.Context, id uuid.UUID) (*DepartmentBrief, error)
	UserStats(ctx context.Context, s Scope) (*UserStats, error)
	DepartmentCount(ctx context.Context, companyID uuid.UUID) (int, error)
	EventStats(ctx context.Context, s Scope) (*EventStats, error)
	RecentEvents(ctx context.Context, s Scope, limit int) ([]RecentEvent, error)
	PendingApprovals(ctx context.Context, s Scope, approverID *uuid.UUID) (int, error)
	AssignmentStats(ctx context.Context, userID uuid.UUID) (*AssignmentStats, error)
	TrackerStats(ctx context.Context, userID uuid.UUID) (*TrackerStats, error)
	UpcomingMeetings(ctx context.Context, userID uuid.UUID, from time.Time, limit int) ([]MeetingBrief, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a dashboard repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// PlatformStats counts tenants and accounts across the platform.
func (r *Repository) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	const q = `SELECT (SELECT COUNT(*) FROM companies), (SELECT COUNT(*) FROM users),
		(SELECT COUNT(*) FROM website_admins), (SELECT COUNT(*) FROM events)`
	var s PlatformStats
	if err := r.pool.QueryRow(ctx, q).Scan(&s.Companies, &s.Users, &s.WebsiteAdmins, &s.Events); err != nil {
		return nil, database.MapError(err, "")
	}
	return &s, nil
}

// RecentCompanies returns the newest companies.
func (r *Repository) RecentCompanies(ctx context.Context, limit int) ([]CompanyBrief, error) {
	const q = `SELECT id, name, COALESCE(logo_url,''), created_at FROM companies ORDER BY created_at DESC, id LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	list := []CompanyBrief{}
	for rows.Next() {
		var c CompanyBrief
		if err := rows.Scan(&c.ID, &c.Name, &c.LogoURL, &c.CreatedAt); err != nil {
			return nil, database.MapError(err, "")
		}
		list = append(list, c)
	}
	return list, database.MapError(rows.Err(), "")
}

// Company returns the header of the company dashboard.
func (r *Repository) Company(ctx context.Context, id uuid.UUID) (*CompanyBrief, error) {
	var c CompanyBrief
	err := r.pool.QueryRow(ctx, `SELECT id, name, COALESCE(logo_url,''), created_at FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.LogoURL, &c.CreatedAt)
	if err != nil {
		return nil, database.MapError(err, "company not found")
	}
	return &c, nil
}

// Department returns the header of the HOD dashboard.
func (r *Repository) Department(ctx context.Context, id uuid.UUID) (*DepartmentBrief, error) {
	var d DepartmentBrief
	if err := r.pool.QueryRow(ctx, `SELECT id, name FROM departments WHERE id = $1`, id).Scan(&d.ID, &d.Name); err != nil {
		return nil, database.MapError(err, "department not found")
	}
	return &d, nil
}

// UserStats counts users per role.
func (r *Repository) UserStats(ctx context.Context, s Scope) (*UserStats, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE role = 'company_admin'), COUNT(*) FILTER (WHERE role = 'hod'),
		COUNT(*) FILTER (WHERE role = 'user')
		FROM users WHERE company_id = $1 AND ($2::uuid IS NULL OR department_id = $2)`
	var u UserStats
	if err := r.pool.QueryRow(ctx, q, s.CompanyID, s.DepartmentID).Scan(&u.Total, &u.CompanyAdmin, &u.HOD, &u.User); err != nil {
		return nil, database.MapError(err, "")
	}
	return &u, nil
}

// DepartmentCount counts a company's departments.
func (r *Repository) DepartmentCount(ctx context.Context, companyID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM departments WHERE company_id = $1`, companyID).Scan(&n)
	return n, database.MapError(err, "")
}

const eventScope = `FROM events e JOIN departments d ON d.id = e.department_id
	WHERE d.company_id = $1 AND ($2::uuid IS NULL OR e.department_id = $2)
	AND ($3::uuid IS NULL OR EXISTS (SELECT 1 FROM raci_assignments a WHERE a.event_id = e.id AND a.user_id = $3))`

// EventStats counts events per approval status.
func (r *Repository) EventStats(ctx context.Context, s Scope) (*EventStats, error) {
	q := `SELECT COUNT(*), COUNT(*) FILTER (WHERE e.approval_status = 'pending'),
		COUNT(*) FILTER (WHERE e.approval_status = 'approved'), COUNT(*) FILTER (WHERE e.approval_status = 'rejected') ` + eventScope
	var e EventStats
	if err := r.pool.QueryRow(ctx, q, s.CompanyID, s.DepartmentID, s.AssigneeID).Scan(&e.Total, &e.Pending, &e.Approved, &e.Rejected); err != nil {
		return nil, database.MapError(err, "")
	}
	return &e, nil
}

// RecentEvents returns the newest events in scope.
func (r *Repository) RecentEvents(ctx context.Context, s Scope, limit int) ([]RecentEvent, error) {
	q := `SELECT e.id, e.name, e.approval_status, d.id, d.name, e.created_at ` + eventScope +
		` ORDER BY e.created_at DESC, e.id LIMIT $4`
	rows, err := r.pool.Query(ctx, q, s.CompanyID, s.DepartmentID, s.AssigneeID, limit)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	list := []RecentEvent{}
	for rows.Next() {
		var e RecentEvent
		var status string
		if err := rows.Scan(&e.ID, &e.Name, &status, &e.Department.ID, &e.Department.Name, &e.CreatedAt); err != nil {
			return nil, database.MapError(err, "")
		}
		e.ApprovalStatus = models.ApprovalStatus(status)
		list = append(list, e)
	}
	return list, database.MapError(rows.Err(), "")
}

// PendingApprovals counts pending approvals on pending events in scope, optionally only those
// designated to approverID.
func (r *Repository) PendingApprovals(ctx context.Context, s Scope, approverID *uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM raci_approvals ap
		JOIN raci_assignments a ON a.id = ap.raci_id
		JOIN events e ON e.id = a.event_id
		JOIN departments d ON d.id = e.department_id
		WHERE ap.status = 'pending' AND e.approval_status = 'pending' AND d.company_id = $1
		AND ($2::uuid IS NULL OR e.department_id = $2) AND ($3::uuid IS NULL OR ap.approver_id = $3)`
	var n int
	err := r.pool.QueryRow(ctx, q, s.CompanyID, s.DepartmentID, approverID).Scan(&n)
	return n, database.MapError(err, "")
}

// AssignmentStats counts a user's assignments per RACI type.
func (r *Repository) AssignmentStats(ctx context.Context, userID uuid.UUID) (*AssignmentStats, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE type = 'R'), COUNT(*) FILTER (WHERE type = 'A'),
		COUNT(*) FILTER (WHERE type = 'C'), COUNT(*) FILTER (WHERE type = 'I')
		FROM raci_assignments WHERE user_id = $1`
	var a AssignmentStats
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&a.Total, &a.Responsible, &a.Accountable, &a.Consulted, &a.Informed); err != nil {
		return nil, database.MapError(err, "")
	}
	return &a, nil
}

// TrackerStats counts a user's trackers per status.
func (r *Repository) TrackerStats(ctx context.Context, userID uuid.UUID) (*TrackerStats, error) {
	const q = `SELECT COUNT(*) FILTER (WHERE status = 'pending'), COUNT(*) FILTER (WHERE status = 'in_progress'),
		COUNT(*) FILTER (WHERE status = 'completed') FROM event_trackers WHERE user_id = $1`
	var t TrackerStats
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&t.Pending, &t.InProgress, &t.Completed); err != nil {
		return nil, database.MapError(err, "")
	}
	return &t, nil
}

// UpcomingMeetings returns the next meetings the user is invited to.
func (r *Repository) UpcomingMeetings(ctx context.Context, userID uuid.UUID, from time.Time, limit int) ([]MeetingBrief, error) {
	const q = `SELECT m.id, m.title, m.meeting_date, e.id, e.name FROM raci_meetings m
		JOIN raci_meeting_guests g ON g.meeting_id = m.id JOIN events e ON e.id = m.event_id
		WHERE g.user_id = $1 AND m.meeting_date >= $2 ORDER BY m.meeting_date, m.id LIMIT $3`
	rows, err := r.pool.Query(ctx, q, userID, from, limit)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	list := []MeetingBrief{}
	for rows.Next() {
		var m MeetingBrief
		if err := rows.Scan(&m.ID, &m.Title, &m.MeetingDate, &m.EventID, &m.EventName); err != nil {
			return nil, database.MapError(err, "")
		}
		list = append(list, m)
	}
	return list, database.MapError(rows.Err(), "")
}
