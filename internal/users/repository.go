package users

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// Filter narrows a user listing. Zero values do not filter.
type Filter struct {
	CompanyID    uuid.UUID
	DepartmentID *uuid.UUID
	Role         models.Role
	Search       string
}

// Store is the persistence of tenant users.
type Store interface {
	List(ctx context.Context, f Filter, p pagination.Params) ([]models.User, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	DepartmentCompany(ctx context.Context, departmentID uuid.UUID) (uuid.UUID, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, full_name, email, password_hash, COALESCE(phone,''), COALESCE(designation,''), COALESCE(employee_id,''),
	role, company_id, department_id, approval_assign, is_default_password, created_at, updated_at`

func scan(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Password, &u.Phone, &u.Designation, &u.EmployeeID,
		&u.Role, &u.CompanyID, &u.DepartmentID, &u.ApprovalAssign, &u.IsDefaultPassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "user not found")
	}
	return &u, nil
}

func (f Filter) where() (string, []any) {
	conds := []string{"company_id = $1"}
	args := []any{f.CompanyID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.DepartmentID != nil {
		add("department_id = ?", *f.DepartmentID)
	}
	if f.Role != "" {
		add("role = ?", string(f.Role))
	}
	if f.Search != "" {
		add("(full_name ILIKE ? OR email ILIKE ? OR COALESCE(employee_id,'') ILIKE ?)", "%"+f.Search+"%")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page of users matching f, by name.
func (r *Repository) List(ctx context.Context, f Filter, p pagination.Params) ([]models.User, int, error) {
	where, args := f.where()
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	n := len(args)
	q := `SELECT ` + columns + ` FROM users` + where + ` ORDER BY full_name, id LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	rows, err := r.pool.Query(ctx, q, append(args, p.PageSize, p.Offset())...)
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	defer rows.Close()
	list := []models.User{}
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *u)
	}
	return list, total, database.MapError(rows.Err(), "")
}

// Get returns one user.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id))
}

// Create inserts a user. A taken email is a conflict.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (full_name, email, password_hash, phone, designation, employee_id, role,
		company_id, department_id, approval_assign, is_default_password)
		VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''), $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, u.FullName, u.Email, u.Password, u.Phone, u.Designation, u.EmployeeID,
		string(u.Role), u.CompanyID, u.DepartmentID, u.ApprovalAssign, u.IsDefaultPassword).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return database.MapError(err, "")
}

// Update writes every editable column.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	const q = `UPDATE users SET full_name = $2, email = $3, password_hash = $4, phone = NULLIF($5,''),
		designation = NULLIF($6,''), employee_id = NULLIF($7,''), role = $8, department_id = $9,
		approval_assign = $10, is_default_password = $11, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, u.ID, u.FullName, u.Email, u.Password, u.Phone, u.Designation, u.EmployeeID,
		string(u.Role), u.DepartmentID, u.ApprovalAssign, u.IsDefaultPassword).Scan(&u.UpdatedAt)
	return database.MapError(err, "user not found")
}

// Delete removes a user. Their assignments and trackers cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return database.MapError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return database.MapError(pgx.ErrNoRows, "user not found")
	}
	return nil
}

// DepartmentCompany returns the company owning a department.
func (r *Repository) DepartmentCompany(ctx context.Context, departmentID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT company_id FROM departments WHERE id = $1`, departmentID).Scan(&id)
	return id, database.MapError(err, "department not found")
}
