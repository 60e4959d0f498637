package departments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// Member is the company membership of a user considered as HOD.
type Member struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Role      models.Role
}

// Store is the persistence of departments.
type Store interface {
	List(ctx context.Context, companyID uuid.UUID, only *uuid.UUID, search string, p pagination.Params) ([]models.Department, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Department, error)
	Member(ctx context.Context, userID uuid.UUID) (*Member, error)
	// Save inserts (zero ID) or updates d. When the HOD changes, the new head is promoted and
	// moved into the department and a previous head that heads nothing else is demoted.
	Save(ctx context.Context, d *models.Department, previousHOD *uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a departments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectDepartment = `SELECT d.id, d.name, d.company_id, d.hod_id, COALESCE(u.full_name,''), d.created_at, d.updated_at
	FROM departments d LEFT JOIN users u ON u.id = d.hod_id`

func scan(row pgx.Row) (*models.Department, error) {
	var d models.Department
	if err := row.Scan(&d.ID, &d.Name, &d.CompanyID, &d.HODID, &d.HODName, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, database.MapError(err, "department not found")
	}
	return &d, nil
}

// List returns one page of a company's departments by name. only restricts the result to
// one department.
func (r *Repository) List(ctx context.Context, companyID uuid.UUID, only *uuid.UUID, search string, p pagination.Params) ([]models.Department, int, error) {
	const where = ` WHERE d.company_id = $1 AND ($2::uuid IS NULL OR d.id = $2) AND d.name ILIKE $3`
	pattern := "%" + search + "%"
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM departments d`+where, companyID, only, pattern).Scan(&total); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	rows, err := r.pool.Query(ctx, selectDepartment+where+` ORDER BY d.name, d.id LIMIT $4 OFFSET $5`,
		companyID, only, pattern, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	defer rows.Close()
	list := []models.Department{}
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *d)
	}
	return list, total, database.MapError(rows.Err(), "")
}

// Get returns one department with its HOD name.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	return scan(r.pool.QueryRow(ctx, selectDepartment+` WHERE d.id = $1`, id))
}

// Member returns the company and role of a user.
func (r *Repository) Member(ctx context.Context, userID uuid.UUID) (*Member, error) {
	m := Member{ID: userID}
	err := r.pool.QueryRow(ctx, `SELECT company_id, role FROM users WHERE id = $1`, userID).Scan(&m.CompanyID, &m.Role)
	if err != nil {
		return nil, database.MapError(err, "user not found")
	}
	return &m, nil
}

// Save writes d and the HOD side effects in one transaction.
func (r *Repository) Save(ctx context.Context, d *models.Department, previousHOD *uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if d.ID == uuid.Nil {
			const q = `INSERT INTO departments (name, company_id, hod_id) VALUES ($1, $2, $3)
				RETURNING id, created_at, updated_at`
			err = tx.QueryRow(ctx, q, d.Name, d.CompanyID, d.HODID).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
		} else {
			const q = `UPDATE departments SET name = $2, hod_id = $3, updated_at = NOW() WHERE id = $1 RETURNING updated_at`
			err = tx.QueryRow(ctx, q, d.ID, d.Name, d.HODID).Scan(&d.UpdatedAt)
		}
		if err != nil {
			return database.MapError(err, "department not found")
		}
		if d.HODID != nil && (previousHOD == nil || *previousHOD != *d.HODID) {
			const promote = `UPDATE users SET role = CASE WHEN role = 'user' THEN 'hod' ELSE role END,
				department_id = $2, updated_at = NOW() WHERE id = $1 AND company_id = $3 RETURNING full_name`
			if err := tx.QueryRow(ctx, promote, *d.HODID, d.ID, d.CompanyID).Scan(&d.HODName); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperr.Validation("hod must be a user of the same company")
				}
				return database.MapError(err, "")
			}
		}
		if previousHOD != nil && (d.HODID == nil || *previousHOD != *d.HODID) {
			const demote = `UPDATE users SET role = 'user', updated_at = NOW()
				WHERE id = $1 AND role = 'hod' AND NOT EXISTS (SELECT 1 FROM departments WHERE hod_id = $1)`
			if _, err := tx.Exec(ctx, demote, *previousHOD); err != nil {
				return database.MapError(err, "")
			}
		}
		return nil
	})
}

// Delete removes a department. Its events cascade, its users are detached and a head that
// heads nothing else is demoted.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var hod *uuid.UUID
		if err := tx.QueryRow(ctx, `DELETE FROM departments WHERE id = $1 RETURNING hod_id`, id).Scan(&hod); err != nil {
			return database.MapError(err, "department not found")
		}
		if hod == nil {
			return nil
		}
		const demote = `UPDATE users SET role = 'user', updated_at = NOW()
			WHERE id = $1 AND role = 'hod' AND NOT EXISTS (SELECT 1 FROM departments WHERE hod_id = $1)`
		_, err := tx.Exec(ctx, demote, *hod)
		return database.MapError(err, "")
	})
}
