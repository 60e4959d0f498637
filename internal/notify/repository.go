package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/pkg/database"
)

// Recipient is the addressable part of a user.
type Recipient struct {
	ID       uuid.UUID
	Email    string
	FullName string
}

// Directory resolves user ids to mail recipients.
type Directory interface {
	Recipients(ctx context.Context, ids []uuid.UUID) ([]Recipient, error)
}

// Repository is the PostgreSQL Directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recipient directory.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Recipients returns the users among ids that still exist.
func (r *Repository) Recipients(ctx context.Context, ids []uuid.UUID) ([]Recipient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, email, full_name FROM users WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, database.MapError(err, "")
	}
	defer rows.Close()
	var list []Recipient
	for rows.Next() {
		var rc Recipient
		if err := rows.Scan(&rc.ID, &rc.Email, &rc.FullName); err != nil {
			return nil, database.MapError(err, "")
		}
		list = append(list, rc)
	}
	return list, database.MapError(rows.Err(), "")
}
