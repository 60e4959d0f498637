package companies

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/pagination"
)

// Summary is a company row in the platform listing.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	LogoURL     string    `json:"logoUrl,omitempty"`
	Domain      string    `json:"domain,omitempty"`
	AdminsCount int       `json:"adminsCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Stats are the headline counts of one company.
type Stats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalDepartments int `json:"totalDepartments"`
	TotalEvents      int `json:"totalEvents"`
}

// Store is the persistence of companies and their settings.
type Store interface {
	Create(ctx context.Context, c *models.Company) error
	Get(ctx context.Context, id uuid.UUID) (*models.Company, error)
	List(ctx context.Context, search string, p pagination.Params) ([]Summary, int, error)
	Update(ctx context.Context, c *models.Company) error
	UpdateSettings(ctx context.Context, s *models.CompanySettings) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*Stats, error)
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a companies repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the company and its default settings in one transaction.
func (r *Repository) Create(ctx context.Context, c *models.Company) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO companies (name, logo_url, logo_key, domain, industry, size)
			VALUES ($1, NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), NULLIF($6,''))
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, q, c.Name, c.LogoURL, c.LogoKey, c.Domain, c.Industry, c.Size).
			Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return database.MapError(err, "")
		}
		s := models.DefaultCompanySettings(c.ID)
		const qs = `INSERT INTO company_settings (company_id, approval_workflow, default_approver,
			allow_rejection_feedback, notify_on_approval, notify_on_rejection)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING updated_at`
		err = tx.QueryRow(ctx, qs, c.ID, string(s.ApprovalWorkflow), string(s.DefaultApprover),
			s.AllowRejectionFeedback, s.NotifyOnApproval, s.NotifyOnRejection).Scan(&s.UpdatedAt)
		if err != nil {
			return database.MapError(err, "")
		}
		c.Settings = &s
		return nil
	})
}

// Get loads a company with its settings. A missing settings row reads as the defaults.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	const q = `SELECT c.id, c.name, COALESCE(c.logo_url,''), COALESCE(c.logo_key,''), COALESCE(c.domain,''),
		COALESCE(c.industry,''), COALESCE(c.size,''), c.created_at, c.updated_at,
		COALESCE(s.approval_workflow, 'sequential'), COALESCE(s.default_approver, 'department_head'),
		COALESCE(s.allow_rejection_feedback, TRUE), COALESCE(s.notify_on_approval, TRUE),
		COALESCE(s.notify_on_rejection, TRUE), COALESCE(s.updated_at, c.updated_at)
		FROM companies c LEFT JOIN company_settings s ON s.company_id = c.id WHERE c.id = $1`
	var c models.Company
	s := models.CompanySettings{CompanyID: id}
	err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.LogoURL, &c.LogoKey, &c.Domain, &c.Industry, &c.Size,
		&c.CreatedAt, &c.UpdatedAt, &s.ApprovalWorkflow, &s.DefaultApprover, &s.AllowRejectionFeedback,
		&s.NotifyOnApproval, &s.NotifyOnRejection, &s.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "company not found")
	}
	c.Settings = &s
	return &c, nil
}

// List returns one page of companies whose name or domain matches search.
func (r *Repository) List(ctx context.Context, search string, p pagination.Params) ([]Summary, int, error) {
	pattern := "%" + search + "%"
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM companies WHERE name ILIKE $1 OR COALESCE(domain,'') ILIKE $1`, pattern).Scan(&total)
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	p = pagination.Clamp(p, total)
	const q = `SELECT c.id, c.name, COALESCE(c.logo_url,''), COALESCE(c.domain,''),
		COUNT(u.id) FILTER (WHERE u.role = 'company_admin'), c.created_at
		FROM companies c LEFT JOIN users u ON u.company_id = c.id
		WHERE c.name ILIKE $1 OR COALESCE(c.domain,'') ILIKE $1
		GROUP BY c.id ORDER BY c.created_at DESC, c.id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, pattern, p.PageSize, p.Offset())
	if err != nil {
		return nil, 0, database.MapError(err, "")
	}
	defer rows.Close()
	list := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.LogoURL, &s.Domain, &s.AdminsCount, &s.CreatedAt); err != nil {
			return nil, 0, database.MapError(err, "")
		}
		list = append(list, s)
	}
	return list, total, database.MapError(rows.Err(), "")
}

// Update writes the editable company fields.
func (r *Repository) Update(ctx context.Context, c *models.Company) error {
	const q = `UPDATE companies SET name = $2, logo_url = NULLIF($3,''), logo_key = NULLIF($4,''),
		domain = NULLIF($5,''), industry = NULLIF($6,''), size = NULLIF($7,''), updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, c.ID, c.Name, c.LogoURL, c.LogoKey, c.Domain, c.Industry, c.Size).Scan(&c.UpdatedAt)
	return database.MapError(err, "company not found")
}

// UpdateSettings upserts the settings row.
func (r *Repository) UpdateSettings(ctx context.Context, s *models.CompanySettings) error {
	const q = `INSERT INTO company_settings (company_id, approval_workflow, default_approver,
		allow_rejection_feedback, notify_on_approval, notify_on_rejection, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (company_id) DO UPDATE SET approval_workflow = EXCLUDED.approval_workflow,
			default_approver = EXCLUDED.default_approver, allow_rejection_feedback = EXCLUDED.allow_rejection_feedback,
			notify_on_approval = EXCLUDED.notify_on_approval, notify_on_rejection = EXCLUDED.notify_on_rejection,
			updated_at = NOW()
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, s.CompanyID, string(s.ApprovalWorkflow), string(s.DefaultApprover),
		s.AllowRejectionFeedback, s.NotifyOnApproval, s.NotifyOnRejection).Scan(&s.UpdatedAt)
	return database.MapError(err, "company not found")
}

// Delete removes the company; users, departments and events cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return database.MapError(err, "")
	}
	if tag.RowsAffected() == 0 {
		return database.MapError(pgx.ErrNoRows, "company not found")
	}
	return nil
}

// Stats counts users, departments and events of a company.
func (r *Repository) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM users WHERE company_id = $1),
		(SELECT COUNT(*) FROM departments WHERE company_id = $1),
		(SELECT COUNT(*) FROM events e JOIN departments d ON d.id = e.department_id WHERE d.company_id = $1)`
	var s Stats
	if err := r.pool.QueryRow(ctx, q, id).Scan(&s.TotalUsers, &s.TotalDepartments, &s.TotalEvents); err != nil {
		return nil, database.MapError(err, "")
	}
	return &s, nil
}
