package database

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/raci-tracker/backend/pkg/apperr"
)

// MapError converts pgx errors into application errors. notFound is the message used for
// pgx.ErrNoRows. Errors that carry no domain meaning are wrapped as internal.
func MapError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s", notFound)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return apperr.Wrap(err, "database error")
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &apperr.Error{Kind: apperr.KindConflict, Code: apperr.CodeDuplicate, Message: uniqueMessage(pgErr.ConstraintName), Err: err}
	case pgerrcode.ForeignKeyViolation:
		return &apperr.Error{Kind: apperr.KindValidation, Message: "referenced record does not exist", Err: err}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation:
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid value", Err: err}
	default:
		return apperr.Wrap(err, "database error")
	}
}

func uniqueMessage(constraint string) string {
	switch constraint {
	case "users_email_key", "website_admins_email_key":
		return "email already registered"
	case "raci_approvals_raci_id_approval_level_key":
		return "approval level already exists for this assignment"
	case "event_trackers_event_id_user_id_key":
		return "tracker already exists for this user"
	default:
		return "record already exists"
	}
}
