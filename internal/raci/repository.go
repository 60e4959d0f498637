package raci

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// EventRef is the part of an event the workflow needs, read under a row lock when deciding.
type EventRef struct {
	ID           uuid.UUID
	Name         string
	CompanyID    uuid.UUID
	DepartmentID uuid.UUID
	HODID        *uuid.UUID
	CreatedBy    *uuid.UUID
	Status       models.ApprovalStatus
}

// ApprovalRef is an approval together with the assignment it belongs to.
type ApprovalRef struct {
	Approval   models.RaciApproval
	EventID    uuid.UUID
	AssigneeID uuid.UUID
	Type       models.RaciType
}

// AssignmentView is an assignment listed with its event and department.
type AssignmentView struct {
	ID                uuid.UUID             `json:"id"`
	Type              models.RaciType       `json:"type"`
	UserID            uuid.UUID             `json:"userId"`
	UserName          string                `json:"userName,omitempty"`
	FinancialLimitMin *float64              `json:"financialLimitMin,omitempty"`
	FinancialLimitMax *float64              `json:"financialLimitMax,omitempty"`
	Event             EventBrief            `json:"event"`
	Department        DepartmentBrief       `json:"department"`
	Approvals         []models.RaciApproval `json:"approvals"`
}

// EventBrief identifies an event in listings.
type EventBrief struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	ApprovalStatus models.ApprovalStatus `json:"approvalStatus"`
}

// DepartmentBrief identifies a department in listings.
type DepartmentBrief struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// PendingApproval is an approval awaiting a decision, with enough context to act on it.
type PendingApproval struct {
	models.RaciApproval
	AssignmentType models.RaciType `json:"assignmentType"`
	AssigneeID     uuid.UUID       `json:"assigneeId"`
	AssigneeName   string          `json:"assigneeName"`
	Event          EventBrief      `json:"event"`
	DepartmentID   uuid.UUID       `json:"departmentId"`
}

// Queries are the statements the workflow runs. They are usable inside or outside a transaction.
type Queries interface {
	ApprovalByID(ctx context.Context, id uuid.UUID) (*ApprovalRef, error)
	LockEvent(ctx context.Context, id uuid.UUID) (*EventRef, error)
	Settings(ctx context.Context, companyID uuid.UUID) (*models.CompanySettings, error)
	Chain(ctx context.Context, raciID uuid.UUID) ([]models.RaciApproval, error)
	EventApprovals(ctx context.Context, eventID uuid.UUID) ([]models.RaciApproval, error)
	UpdateApproval(ctx context.Context, a *models.RaciApproval) error
	UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.ApprovalStatus, reason string, approvedBy *uuid.UUID) error
	CompanyUserIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	InsertMatrix(ctx context.Context, eventID uuid.UUID, matrix []AssignmentInput) error
	DeleteMatrix(ctx context.Context, eventID uuid.UUID) error
}

// Store is the persistence of the raci package.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(Queries) error) error
	EventRef(ctx context.Context, eventID uuid.UUID) (*EventRef, error)
	Matrix(ctx context.Context, eventID uuid.UUID) ([]models.RaciAssignment, error)
	UserAssignments(ctx context.Context, userID uuid.UUID, p pagination.Params) ([]AssignmentView, int, error)
	CompanyAssignments(ctx context.Context, companyID uuid.UUID, departmentID *uuid.UUID, p pagination.Params) ([]AssignmentView, int, error)
	PendingApprovals(ctx context.Context, f PendingFilter) ([]PendingApproval, error)
}

// PendingFilter narrows pending approvals to what a principal may act on.
type PendingFilter struct {
	CompanyID    uuid.UUID
	DepartmentID *uuid.UUID
	ApproverID   *uuid.UUID
	AssigneeID   *uuid.UUID
}

// Repository is the PostgreSQL Store.
type Repository struct {
	queries
	pool *pgxpool.Pool
}

// NewRepository creates a raci repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{queries: queries{db: pool}, pool: pool}
}

// InTx runs fn with queries bound to one transaction.
func (r *Repository) InTx(ctx context.Context, fn func(Queries) error) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewQueries(tx))
	})
}

// NewQueries binds the workflow statements to db. The events package uses it to write a
// matrix inside its own create transaction.
func NewQueries(db database.DBTX) Queries {
	return queries{db: db}
}

type queries struct {
	db database.DBTX
}

const approvalColumns = `ap.id, ap.raci_id, ap.approval_level, ap.approver_id, ap.status, COALESCE(ap.reason,''),
	ap.approved_by, ap.approved_at, ap.created_at, ap.updated_at`

func scanApproval(row pgx.Row, extra ...any) (models.RaciApproval, error) {
	var a models.RaciApproval
	dest := append([]any{&a.ID, &a.RaciID, &a.ApprovalLevel, &a.ApproverID, &a.Status, &a.Reason,
		&a.ApprovedBy, &a.ApprovedAt, &a.CreatedAt, &a.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return a, err
}

func collectApprovals(rows pgx.Rows) ([]models.RaciApproval, error) {
	defer rows.Close()
	list := []models.RaciApproval{}
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, database.MapError(err, "")
		}
		list = append(list, a)
	}
	return list, database.MapError(rows.Err(), "")
}

func (q queries) ApprovalByID(ctx context.Context, id uuid.UUID) (*ApprovalRef, error) {
	const sql = `SELECT ` + approvalColumns + `, ra.event_id, ra.user_id, ra.type
		FROM raci_approvals ap JOIN raci_assignments ra ON ra.id = ap.raci_id WHERE ap.id = $1`
	var ref ApprovalRef
	a, err := scanApproval(q.db.QueryRow(ctx, sql, id), &ref.EventID, &ref.AssigneeID, &ref.Type)
	if err != nil {
		return nil, database.MapError(err, "approval not found")
	}
	ref.Approval = a
	return &ref, nil
}

const eventRefColumns = `e.id, e.name, d.company_id, e.department_id, e.hod_id, e.created_by, e.approval_status`

func scanEventRef(row pgx.Row) (*EventRef, error) {
	var e EventRef
	if err := row.Scan(&e.ID, &e.Name, &e.CompanyID, &e.DepartmentID, &e.HODID, &e.CreatedBy, &e.Status); err != nil {
		return nil, database.MapError(err, "event not found")
	}
	return &e, nil
}

// LockEvent reads the event and holds its row lock until the transaction ends, serialising
// decisions on the same event.
func (q queries) LockEvent(ctx context.Context, id uuid.UUID) (*EventRef, error) {
	const sql = `SELECT ` + eventRefColumns + ` FROM events e JOIN departments d ON d.id = e.department_id
		WHERE e.id = $1 FOR UPDATE OF e`
	return scanEventRef(q.db.QueryRow(ctx, sql, id))
}

func (q queries) Settings(ctx context.Context, companyID uuid.UUID) (*models.CompanySettings, error) {
	const sql = `SELECT company_id, approval_workflow, default_approver, allow_rejection_feedback,
		notify_on_approval, notify_on_rejection, updated_at FROM company_settings WHERE company_id = $1`
	var s models.CompanySettings
	err := q.db.QueryRow(ctx, sql, companyID).Scan(&s.CompanyID, &s.ApprovalWorkflow, &s.DefaultApprover,
		&s.AllowRejectionFeedback, &s.NotifyOnApproval, &s.NotifyOnRejection, &s.UpdatedAt)
	if err == pgx.ErrNoRows {
		def := models.DefaultCompanySettings(companyID)
		return &def, nil
	}
	if err != nil {
		return nil, database.MapError(err, "")
	}
	return &s, nil
}

func (q queries) Chain(ctx context.Context, raciID uuid.UUID) ([]models.RaciApproval, error) {
	const sql = `SELECT ` + approvalColumns + ` FROM raci_approvals ap WHERE ap.raci_id = $1 ORDER BY ap.approval_level`
	rows, err := q.db.Query(ctx, sql, raciID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	return collectApprovals(rows)
}

func (q queries) EventApprovals(ctx context.Context, eventID uuid.UUID) ([]models.RaciApproval, error) {
	const sql = `SELECT ` + approvalColumns + ` FROM raci_approvals ap
		JOIN raci_assignments ra ON ra.id = ap.raci_id WHERE ra.event_id = $1 ORDER BY ra.created_at, ap.approval_level`
	rows, err := q.db.Query(ctx, sql, eventID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	return collectApprovals(rows)
}

func (q queries) UpdateApproval(ctx context.Context, a *models.RaciApproval) error {
	const sql = `UPDATE raci_approvals SET status = $2, reason = NULLIF($3,''), approved_by = $4, approved_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'pending' RETURNING updated_at`
	err := q.db.QueryRow(ctx, sql, a.ID, string(a.Status), a.Reason, a.ApprovedBy, a.ApprovedAt).Scan(&a.UpdatedAt)
	if err == pgx.ErrNoRows {
		return errAlreadyDecided
	}
	return database.MapError(err, "approval not found")
}

func (q queries) UpdateEventStatus(ctx context.Context, eventID uuid.UUID, status models.ApprovalStatus, reason string, approvedBy *uuid.UUID) error {
	const sql = `UPDATE events SET approval_status = $2,
		rejection_reason = CASE WHEN $2 = 'rejected' THEN NULLIF($3,'') ELSE rejection_reason END,
		approved_by = CASE WHEN $2 = 'approved' THEN $4 ELSE approved_by END,
		updated_at = NOW() WHERE id = $1`
	_, err := q.db.Exec(ctx, sql, eventID, string(status), reason, approvedBy)
	return database.MapError(err, "event not found")
}

func (q queries) CompanyUserIDs(ctx context.Context, companyID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	found := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	rows, err := q.db.Query(ctx, `SELECT id FROM users WHERE company_id = $1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, database.MapError(err, "")
		}
		found[id] = true
	}
	return found, database.MapError(rows.Err(), "")
}

// InsertMatrix writes assignments, their approval chains and a tracker row per assigned user.
func (q queries) InsertMatrix(ctx context.Context, eventID uuid.UUID, matrix []AssignmentInput) error {
	for _, in := range matrix {
		var raciID uuid.UUID
		const insertAssignment = `INSERT INTO raci_assignments (event_id, type, user_id, financial_limit_min, financial_limit_max)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`
		err := q.db.QueryRow(ctx, insertAssignment, eventID, string(in.Type), in.UserID, in.FinancialLimitMin, in.FinancialLimitMax).Scan(&raciID)
		if err != nil {
			return database.MapError(err, "")
		}
		for _, ap := range in.Approvals {
			const insertApproval = `INSERT INTO raci_approvals (raci_id, approval_level, approver_id) VALUES ($1, $2, $3)`
			if _, err := q.db.Exec(ctx, insertApproval, raciID, ap.Level, ap.ApproverID); err != nil {
				return database.MapError(err, "")
			}
		}
		const insertTracker = `INSERT INTO event_trackers (event_id, user_id) VALUES ($1, $2)
			ON CONFLICT (event_id, user_id) DO NOTHING`
		if _, err := q.db.Exec(ctx, insertTracker, eventID, in.UserID); err != nil {
			return database.MapError(err, "")
		}
	}
	return nil
}

// DeleteMatrix removes every assignment of the event (approvals cascade) and the trackers of
// users who are no longer assigned.
func (q queries) DeleteMatrix(ctx context.Context, eventID uuid.UUID) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM raci_assignments WHERE event_id = $1`, eventID); err != nil {
		return database.MapError(err, "")
	}
	_, err := q.db.Exec(ctx, `DELETE FROM event_trackers WHERE event_id = $1 AND status = 'pending'`, eventID)
	return database.MapError(err, "")
}

// EventRef reads an event without locking.
func (r *Repository) EventRef(ctx context.Context, eventID uuid.UUID) (*EventRef, error) {
	const sql = `SELECT ` + eventRefColumns + ` FROM events e JOIN departments d ON d.id = e.department_id WHERE e.id = $1`
	return scanEventRef(r.pool.QueryRow(ctx, sql, eventID))
}

// Matrix returns the assignments of an event with their approval chains.
func (r *Repository) Matrix(ctx context.Context, eventID uuid.UUID) ([]models.RaciAssignment, error) {
	const sql = `SELECT ra.id, ra.event_id, ra.type, ra.user_id, u.full_name, ra.financial_limit_min::float8,
		ra.financial_limit_max::float8, ra.created_at, ra.updated_at
		FROM raci_assignments ra JOIN users u ON u.id = ra.user_id WHERE ra.event_id = $1
		ORDER BY ra.type, u.full_name`
	rows, err := r.pool.Query(ctx, sql, eventID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	list := []models.RaciAssignment{}
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var a models.RaciAssignment
		if err := rows.Scan(&a.ID, &a.EventID, &a.Type, &a.UserID, &a.UserName, &a.FinancialLimitMin,
			&a.FinancialLimitMax, &a.CreatedAt, &a.UpdatedAt); err != nil {
			rows.Close()
			return nil, database.MapError(err, "")
		}
		a.Approvals = []models.RaciApproval{}
		index[a.ID] = len(list)
		list = append(list, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, "")
	}

	approvals, err := r.EventApprovals(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for _, ap := range approvals {
		if i, ok := index[ap.RaciID]; ok {
			list[i].Approvals = append(list[i].Approvals, ap)
		}
	}
	return list, nil
}

const assignmentViewSelect = `SELECT ra.id, ra.type, ra.user_id, u.full_name, ra.financial_limit_min::float8, ra.financial_limit_max::float8,
	e.id, e.name, e.approval_status, d.id, d.name
	FROM raci_assignments ra
	JOIN users u ON u.id = ra.user_id
	JOIN events e ON e.id = ra.event_id
	JOIN departments d ON d.id = e.department_id`

func (r *Repository) listAssignments(ctx context.Context, where string, args []any, p pagination.Params) ([]AssignmentView, int, error) {
	var total int
	countSQL := `SELECT COUNT(*) FROM raci_assignments ra JOIN events e ON e.id = ra.event_id
		JOIN departments d ON d.id = e.department_id ` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	n := len(args)
	sql := assignmentViewSelect + " " + where + ` ORDER BY ra.created_at DESC, ra.id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.pool.Query(ctx, sql, append(args, p.PageSize, p.Offset())...)
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	list := []AssignmentView{}
	ids := []uuid.UUID{}
	for rows.Next() {
		var v AssignmentView
		if err := rows.Scan(&v.ID, &v.Type, &v.UserID, &v.UserName, &v.FinancialLimitMin, &v.FinancialLimitMax,
			&v.Event.ID, &v.Event.Name, &v.Event.ApprovalStatus, &v.Department.ID, &v.Department.Name); err != nil {
			rows.Close()
			return nil, 0, database.MapError(err, "")
		}
		v.Approvals = []models.RaciApproval{}
		list = append(list, v)
		ids = append(ids, v.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	if len(ids) == 0 {
		return list, total, nil
	}

	const approvalsSQL = `SELECT ` + approvalColumns + ` FROM raci_approvals ap WHERE ap.raci_id = ANY($1) ORDER BY ap.approval_level`
	arows, err := r.pool.Query(ctx, approvalsSQL, ids)
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	approvals, err := collectApprovals(arows)
	if err != nil {
		return nil, 0, err
	}
	pos := make(map[uuid.UUID]int, len(list))
	for i, v := range list {
		pos[v.ID] = i
	}
	for _, ap := range approvals {
		list[pos[ap.RaciID]].Approvals = append(list[pos[ap.RaciID]].Approvals, ap)
	}
	return list, total, nil
}

// UserAssignments lists the assignments of one user, newest first.
func (r *Repository) UserAssignments(ctx context.Context, userID uuid.UUID, p pagination.Params) ([]AssignmentView, int, error) {
	return r.listAssignments(ctx, `WHERE ra.user_id = $1`, []any{userID}, p)
}

// CompanyAssignments lists every assignment in a company, optionally within one department.
func (r *Repository) CompanyAssignments(ctx context.Context, companyID uuid.UUID, departmentID *uuid.UUID, p pagination.Params) ([]AssignmentView, int, error) {
	if departmentID != nil {
		return r.listAssignments(ctx, `WHERE d.company_id = $1 AND d.id = $2`, []any{companyID, *departmentID}, p)
	}
	return r.listAssignments(ctx, `WHERE d.company_id = $1`, []any{companyID}, p)
}

// PendingApprovals lists pending approvals of non-rejected events matching f.
func (r *Repository) PendingApprovals(ctx context.Context, f PendingFilter) ([]PendingApproval, error) {
	const sql = `SELECT ` + approvalColumns + `, ra.type, ra.user_id, u.full_name, e.id, e.name, e.approval_status, e.department_id
		FROM raci_approvals ap
		JOIN raci_assignments ra ON ra.id = ap.raci_id
		JOIN users u ON u.id = ra.user_id
		JOIN events e ON e.id = ra.event_id
		JOIN departments d ON d.id = e.department_id
		WHERE d.company_id = $1 AND ap.status = 'pending' AND e.approval_status = 'pending'
		  AND ($2::uuid IS NULL OR e.department_id = $2 OR ap.approver_id = $3)
		  AND ($3::uuid IS NULL OR ap.approver_id = $3 OR ($2::uuid IS NOT NULL AND ap.approver_id IS NULL AND e.department_id = $2)
		       OR ($4::uuid IS NOT NULL AND ap.approver_id IS NULL AND ra.user_id = $4))
		ORDER BY e.created_at, ap.approval_level`
	rows, err := r.pool.Query(ctx, sql, f.CompanyID, f.DepartmentID, f.ApproverID, f.AssigneeID)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	list := []PendingApproval{}
	for rows.Next() {
		var pa PendingApproval
		a, err := scanApproval(rows, &pa.AssignmentType, &pa.AssigneeID, &pa.AssigneeName,
			&pa.Event.ID, &pa.Event.Name, &pa.Event.ApprovalStatus, &pa.DepartmentID)
		if err != nil {
			return nil, database.MapError(err, "")
		}
		pa.RaciApproval = a
		list = append(list, pa)
	}
	return list, database.MapError(rows.Err(), "")
}
