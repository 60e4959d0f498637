package websiteadmins

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// Store is the persistence of platform administrators.
type Store interface {
	List(ctx context.Context, search string, p pagination.Params) ([]models.WebsiteAdmin, int, error)
	Get(ctx context.Context, id uuid.UUID) (*models.WebsiteAdmin, error)
	Create(ctx context.Context, a *models.WebsiteAdmin) error
	Update(ctx context.Context, a *models.WebsiteAdmin) error
	// DeleteUnlessLast removes the admin unless it is the only one left, in which case it
	// returns errLastAdmin.
	DeleteUnlessLast(ctx context.Context, id uuid.UUID) error
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a website admins repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, full_name, email, password_hash, COALESCE(phone,''), created_at, updated_at`

func scan(row pgx.Row) (*models.WebsiteAdmin, error) {
	var a models.WebsiteAdmin
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Password, &a.Phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, database.MapError(err, "website admin not found")
	}
	return &a, nil
}

// List returns one page of admins matching search on name or email, newest first.
func (r *Repository) List(ctx context.Context, search string, p pagination.Params) ([]models.WebsiteAdmin, int, error) {
	pattern := "%" + search + "%"
	const where = ` WHERE full_name ILIKE $1 OR email ILIKE $1`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM website_admins`+where, pattern).Scan(&total); err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM website_admins`+where+
		` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, pattern, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	defer rows.Close()
	list := []models.WebsiteAdmin{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *a)
	}
	return list, total, database.MapError(rows.Err(), "")
}

// Get returns one admin.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.WebsiteAdmin, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM website_admins WHERE id = $1`, id))
}

// Create inserts an admin. A taken email is reported as a conflict by MapError.
func (r *Repository) Create(ctx context.Context, a *models.WebsiteAdmin) error {
	const q = `INSERT INTO website_admins (full_name, email, password_hash, phone)
		VALUES ($1, $2, $3, NULLIF($4,'')) RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, a.FullName, a.Email, a.Password, a.Phone).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	return database.MapError(err, "")
}

// Update writes name, email, phone and password hash.
func (r *Repository) Update(ctx context.Context, a *models.WebsiteAdmin) error {
	const q = `UPDATE website_admins SET full_name = $2, email = $3, phone = NULLIF($4,''), password_hash = $5,
		updated_at = NOW() WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, a.ID, a.FullName, a.Email, a.Phone, a.Password).Scan(&a.UpdatedAt)
	return database.MapError(err, "website admin not found")
}

// DeleteUnlessLast locks every admin row so two concurrent deletes cannot both pass the count.
func (r *Repository) DeleteUnlessLast(ctx context.Context, id uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id FROM website_admins FOR UPDATE`)
		if err != nil {
			return database.MapError(err, "")
		}
		found, count := false, 0
		for rows.Next() {
			var got uuid.UUID
			if err := rows.Scan(&got); err != nil {
				rows.Close()
				return database.MapError(err, "")
			}
			count++
			found = found || got == id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return database.MapError(err, "")
		}
		if !found {
			return database.MapError(pgx.ErrNoRows, "website admin not found")
		}
		if count <= 1 {
			return errLastAdmin
		}
		_, err = tx.Exec(ctx, `DELETE FROM website_admins WHERE id = $1`, id)
		return database.MapError(err, "")
	})
}
