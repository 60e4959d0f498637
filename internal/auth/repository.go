package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/database"
)

// PasswordReset is one issued OTP. Only the SHA-256 of the code is stored.
type PasswordReset struct {
	ID          uuid.UUID
	Email       string
	SubjectKind SubjectKind
	CodeHash    string
	ExpiresAt   time.Time
	Attempts    int
	VerifiedAt  *time.Time
	ConsumedAt  *time.Time
	CreatedAt   time.Time
}

// CompanyBrief is the company summary returned with the current user.
type CompanyBrief struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	LogoURL string    `json:"logoUrl,omitempty"`
}

// Store is the persistence the auth service needs.
type Store interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AdminByEmail(ctx context.Context, email string) (*models.WebsiteAdmin, error)
	AdminByID(ctx context.Context, id uuid.UUID) (*models.WebsiteAdmin, error)
	CompanyBrief(ctx context.Context, id uuid.UUID) (*CompanyBrief, error)

	SaveRefreshToken(ctx context.Context, jti, subject uuid.UUID, kind SubjectKind, expires time.Time) error
	RefreshTokenActive(ctx context.Context, jti, subject uuid.UUID, now time.Time) (bool, error)
	RevokeRefreshToken(ctx context.Context, jti, subject uuid.UUID) error
	RevokeRefreshTokens(ctx context.Context, subject uuid.UUID, except uuid.UUID) error

	UpdatePassword(ctx context.Context, kind SubjectKind, id uuid.UUID, hash string) error

	CreateReset(ctx context.Context, r *PasswordReset) error
	LatestReset(ctx context.Context, email string) (*PasswordReset, error)
	IncrementResetAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkResetVerified(ctx context.Context, id uuid.UUID, at time.Time) error
	CompleteReset(ctx context.Context, r *PasswordReset, subject uuid.UUID, hash string, at time.Time) error
}

// Repository is the PostgreSQL Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, full_name, email, password_hash, COALESCE(phone,''), COALESCE(designation,''), COALESCE(employee_id,''),
	role, company_id, department_id, approval_assign, is_default_password, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Password, &u.Phone, &u.Designation, &u.EmployeeID,
		&u.Role, &u.CompanyID, &u.DepartmentID, &u.ApprovalAssign, &u.IsDefaultPassword, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "user not found")
	}
	return &u, nil
}

const adminColumns = `id, full_name, email, password_hash, COALESCE(phone,''), created_at, updated_at`

func scanAdmin(row pgx.Row) (*models.WebsiteAdmin, error) {
	var a models.WebsiteAdmin
	if err := row.Scan(&a.ID, &a.FullName, &a.Email, &a.Password, &a.Phone, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, database.MapError(err, "website admin not found")
	}
	return &a, nil
}

// UserByEmail returns a tenant user by email (case-insensitive).
func (r *Repository) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// UserByID returns a tenant user by id.
func (r *Repository) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// AdminByEmail returns a website admin by email.
func (r *Repository) AdminByEmail(ctx context.Context, email string) (*models.WebsiteAdmin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM website_admins WHERE lower(email) = lower($1)`, email))
}

// AdminByID returns a website admin by id.
func (r *Repository) AdminByID(ctx context.Context, id uuid.UUID) (*models.WebsiteAdmin, error) {
	return scanAdmin(r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM website_admins WHERE id = $1`, id))
}

// CompanyBrief returns id, name and logo of a company.
func (r *Repository) CompanyBrief(ctx context.Context, id uuid.UUID) (*CompanyBrief, error) {
	const q = `SELECT id, name, COALESCE(logo_url,'') FROM companies WHERE id = $1`
	var c CompanyBrief
	if err := r.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.LogoURL); err != nil {
		return nil, database.MapError(err, "company not found")
	}
	return &c, nil
}

// SaveRefreshToken persists an issued refresh token id.
func (r *Repository) SaveRefreshToken(ctx context.Context, jti, subject uuid.UUID, kind SubjectKind, expires time.Time) error {
	const q = `INSERT INTO refresh_tokens (id, subject_id, subject_kind, expires_at) VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, q, jti, subject, string(kind), expires)
	return database.MapError(err, "")
}

// RefreshTokenActive reports whether jti belongs to subject and is neither revoked nor expired.
func (r *Repository) RefreshTokenActive(ctx context.Context, jti, subject uuid.UUID, now time.Time) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM refresh_tokens
		WHERE id = $1 AND subject_id = $2 AND revoked_at IS NULL AND expires_at > $3)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, jti, subject, now).Scan(&ok); err != nil {
		return false, database.MapError(err, "")
	}
	return ok, nil
}

// RevokeRefreshToken revokes one token of subject.
func (r *Repository) RevokeRefreshToken(ctx context.Context, jti, subject uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND subject_id = $2 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, jti, subject)
	return database.MapError(err, "")
}

// RevokeRefreshTokens revokes every active token of subject except the given jti (uuid.Nil for none).
func (r *Repository) RevokeRefreshTokens(ctx context.Context, subject uuid.UUID, except uuid.UUID) error {
	return revokeAll(ctx, r.pool, subject, except)
}

func revokeAll(ctx context.Context, db database.DBTX, subject, except uuid.UUID) error {
	const q = `UPDATE refresh_tokens SET revoked_at = NOW() WHERE subject_id = $1 AND id <> $2 AND revoked_at IS NULL`
	_, err := db.Exec(ctx, q, subject, except)
	return database.MapError(err, "")
}

func updatePassword(ctx context.Context, db database.DBTX, kind SubjectKind, id uuid.UUID, hash string) error {
	q := `UPDATE users SET password_hash = $2, is_default_password = FALSE, updated_at = NOW() WHERE id = $1`
	notFound := "user not found"
	if kind == SubjectWebsiteAdmin {
		q = `UPDATE website_admins SET password_hash = $2, updated_at = NOW() WHERE id = $1`
		notFound = "website admin not found"
	}
	tag, err := db.Exec(ctx, q, id, hash)
	if err != nil {
		return database.MapError(err, notFound)
	}
	if tag.RowsAffected() == 0 {
		return database.MapError(pgx.ErrNoRows, notFound)
	}
	return nil
}

// UpdatePassword stores a new hash and clears the default-password flag.
func (r *Repository) UpdatePassword(ctx context.Context, kind SubjectKind, id uuid.UUID, hash string) error {
	return updatePassword(ctx, r.pool, kind, id, hash)
}

// CreateReset stores a new code and consumes any earlier unconsumed codes for the email.
func (r *Repository) CreateReset(ctx context.Context, pr *PasswordReset) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const burn = `UPDATE password_resets SET consumed_at = NOW() WHERE lower(email) = lower($1) AND consumed_at IS NULL`
		if _, err := tx.Exec(ctx, burn, pr.Email); err != nil {
			return database.MapError(err, "")
		}
		const q = `INSERT INTO password_resets (email, subject_kind, code_hash, expires_at)
			VALUES ($1, $2, $3, $4) RETURNING id, created_at`
		err := tx.QueryRow(ctx, q, pr.Email, string(pr.SubjectKind), pr.CodeHash, pr.ExpiresAt).Scan(&pr.ID, &pr.CreatedAt)
		return database.MapError(err, "")
	})
}

// LatestReset returns the most recently issued code for email.
func (r *Repository) LatestReset(ctx context.Context, email string) (*PasswordReset, error) {
	const q = `SELECT id, email, subject_kind, code_hash, expires_at, attempts, verified_at, consumed_at, created_at
		FROM password_resets WHERE lower(email) = lower($1) ORDER BY created_at DESC LIMIT 1`
	var pr PasswordReset
	var kind string
	err := r.pool.QueryRow(ctx, q, email).Scan(&pr.ID, &pr.Email, &kind, &pr.CodeHash, &pr.ExpiresAt,
		&pr.Attempts, &pr.VerifiedAt, &pr.ConsumedAt, &pr.CreatedAt)
	if err != nil {
		return nil, database.MapError(err, "no reset code requested")
	}
	pr.SubjectKind = SubjectKind(kind)
	return &pr, nil
}

// IncrementResetAttempts records a failed verification and returns the new count.
func (r *Repository) IncrementResetAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `UPDATE password_resets SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`
	var n int
	if err := r.pool.QueryRow(ctx, q, id).Scan(&n); err != nil {
		return 0, database.MapError(err, "no reset code requested")
	}
	return n, nil
}

// MarkResetVerified records a successful verification.
func (r *Repository) MarkResetVerified(ctx context.Context, id uuid.UUID, at time.Time) error {
	const q = `UPDATE password_resets SET verified_at = $2 WHERE id = $1 AND verified_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id, at)
	return database.MapError(err, "")
}

// CompleteReset stores the new password, consumes the code and revokes every refresh token
// of the subject in one transaction.
func (r *Repository) CompleteReset(ctx context.Context, pr *PasswordReset, subject uuid.UUID, hash string, at time.Time) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const consume = `UPDATE password_resets SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`
		tag, err := tx.Exec(ctx, consume, pr.ID, at)
		if err != nil {
			return database.MapError(err, "")
		}
		if tag.RowsAffected() == 0 {
			return errCodeConsumed
		}
		if err := updatePassword(ctx, tx, pr.SubjectKind, subject, hash); err != nil {
			return err
		}
		return revokeAll(ctx, tx, subject, uuid.Nil)
	})
}
