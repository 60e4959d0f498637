package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/utils"
)

var (
	errInvalidCredentials = apperr.Authentication("invalid email or password").WithCode(apperr.CodeInvalidCredentials)
	errInvalidCode        = apperr.Validation("invalid verification code").WithCode(apperr.CodeInvalidCode)
	errCodeExpired        = apperr.Validation("verification code has expired").WithCode(apperr.CodeOTPExpired)
	errCodeNotVerified    = apperr.Validation("verification code has not been verified").WithCode(apperr.CodeOTPNotVerified)
	errWrongPassword      = apperr.Validation("current password is incorrect").WithCode(apperr.CodeWrongPassword)
	errCodeConsumed       = errors.New("reset code already consumed")
)

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, email, name, code string, ttl time.Duration) error
}

// Options tunes the password reset flow.
type Options struct {
	OTPTTL         time.Duration
	OTPMaxAttempts int
	ResetWindow    time.Duration
}

// Session is returned by a successful login.
type Session struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refreshToken"`
	User         Profile `json:"user"`
}

// Profile is the public view of the authenticated principal.
type Profile struct {
	ID                uuid.UUID     `json:"id"`
	FullName          string        `json:"fullName"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone,omitempty"`
	Role              models.Role   `json:"role"`
	Designation       string        `json:"designation,omitempty"`
	EmployeeID        string        `json:"employeeId,omitempty"`
	CompanyID         *uuid.UUID    `json:"companyId,omitempty"`
	DepartmentID      *uuid.UUID    `json:"departmentId,omitempty"`
	ApprovalAssign    bool          `json:"approvalAssign"`
	IsDefaultPassword bool          `json:"isDefaultPassword"`
	Company           *CompanyBrief `json:"company,omitempty"`
}

func userProfile(u *models.User) Profile {
	companyID := u.CompanyID
	return Profile{
		ID:                u.ID,
		FullName:          u.FullName,
		Email:             u.Email,
		Phone:             u.Phone,
		Role:              u.Role,
		Designation:       u.Designation,
		EmployeeID:        u.EmployeeID,
		CompanyID:         &companyID,
		DepartmentID:      u.DepartmentID,
		ApprovalAssign:    u.ApprovalAssign,
		IsDefaultPassword: u.IsDefaultPassword,
	}
}

func adminProfile(a *models.WebsiteAdmin) Profile {
	return Profile{ID: a.ID, FullName: a.FullName, Email: a.Email, Phone: a.Phone, Role: models.RoleWebsiteAdmin}
}

// PrincipalForUser builds the access-token principal of a tenant user.
func PrincipalForUser(u *models.User) authz.Principal {
	p := authz.Principal{ID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
	if u.DepartmentID != nil {
		p.DepartmentID = *u.DepartmentID
	}
	return p
}

// Service implements the session lifecycle.
type Service struct {
	store  Store
	jwt    *JWTService
	mailer Mailer
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the auth service.
func NewService(store Store, jwt *JWTService, mailer Mailer, opts Options, logger *zap.Logger) *Service {
	return &Service{store: store, jwt: jwt, mailer: mailer, opts: opts, logger: logger, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) issue(ctx context.Context, p authz.Principal, kind SubjectKind, profile Profile) (*Session, error) {
	access, err := s.jwt.GenerateAccess(p)
	if err != nil {
		return nil, apperr.Wrap(err, "sign access token")
	}
	refresh, jti, expires, err := s.jwt.GenerateRefresh(p.ID, kind)
	if err != nil {
		return nil, apperr.Wrap(err, "sign refresh token")
	}
	if err := s.store.SaveRefreshToken(ctx, jti, p.ID, kind, expires); err != nil {
		return nil, err
	}
	return &Session{Token: access, RefreshToken: refresh, User: profile}, nil
}

// Login authenticates a tenant user. Unknown email and wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			utils.BurnPasswordCheck(password)
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, u.Password) {
		return nil, errInvalidCredentials
	}
	return s.issue(ctx, PrincipalForUser(u), SubjectUser, userProfile(u))
}

// AdminLogin authenticates a website admin.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*Session, error) {
	a, err := s.store.AdminByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			utils.BurnPasswordCheck(password)
			return nil, errInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(password, a.Password) {
		return nil, errInvalidCredentials
	}
	p := authz.Principal{ID: a.ID, Role: models.RoleWebsiteAdmin}
	return s.issue(ctx, p, SubjectWebsiteAdmin, adminProfile(a))
}

// Refresh issues a new access token for a valid, persisted, unrevoked refresh token.
// The principal is reloaded so role and department changes take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, subject, jti, err := s.jwt.ValidateRefresh(refreshToken)
	if err != nil {
		return "", err
	}
	active, err := s.store.RefreshTokenActive(ctx, jti, subject, s.now())
	if err != nil {
		return "", err
	}
	if !active {
		return "", ErrInvalidToken
	}

	var p authz.Principal
	switch claims.Kind {
	case SubjectWebsiteAdmin:
		a, err := s.store.AdminByID(ctx, subject)
		if err != nil {
			if apperr.IsNotFound(err) {
				return "", ErrInvalidToken
			}
			return "", err
		}
		p = authz.Principal{ID: a.ID, Role: models.RoleWebsiteAdmin}
	case SubjectUser:
		u, err := s.store.UserByID(ctx, subject)
		if err != nil {
			if apperr.IsNotFound(err) {
				return "", ErrInvalidToken
			}
			return "", err
		}
		p = PrincipalForUser(u)
	default:
		return "", ErrInvalidToken
	}
	token, err := s.jwt.GenerateAccess(p)
	if err != nil {
		return "", apperr.Wrap(err, "sign access token")
	}
	return token, nil
}

// Me returns the profile of p, with company summary for tenant users.
func (s *Service) Me(ctx context.Context, p authz.Principal) (*Profile, error) {
	if p.IsWebsiteAdmin() {
		a, err := s.store.AdminByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		prof := adminProfile(a)
		return &prof, nil
	}
	u, err := s.store.UserByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	prof := userProfile(u)
	company, err := s.store.CompanyBrief(ctx, u.CompanyID)
	if err != nil && !apperr.IsNotFound(err) {
		return nil, err
	}
	prof.Company = company
	return &prof, nil
}

// Logout revokes refreshToken, or every refresh token of p when it is empty.
func (s *Service) Logout(ctx context.Context, p authz.Principal, refreshToken string) error {
	if refreshToken == "" {
		return s.store.RevokeRefreshTokens(ctx, p.ID, uuid.Nil)
	}
	_, subject, jti, err := s.jwt.ValidateRefresh(refreshToken)
	if err != nil || subject != p.ID {
		return ErrInvalidToken
	}
	return s.store.RevokeRefreshToken(ctx, jti, p.ID)
}

// ChangePassword replaces the password of p after checking the current one. Refresh tokens other
// than currentRefresh are revoked.
func (s *Service) ChangePassword(ctx context.Context, p authz.Principal, oldPassword, newPassword, currentRefresh string) error {
	kind := SubjectUser
	var hash string
	if p.IsWebsiteAdmin() {
		kind = SubjectWebsiteAdmin
		a, err := s.store.AdminByID(ctx, p.ID)
		if err != nil {
			return err
		}
		hash = a.Password
	} else {
		u, err := s.store.UserByID(ctx, p.ID)
		if err != nil {
			return err
		}
		hash = u.Password
	}
	if !utils.CheckPassword(oldPassword, hash) {
		return errWrongPassword
	}
	newHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(err, "hash password")
	}
	if err := s.store.UpdatePassword(ctx, kind, p.ID, newHash); err != nil {
		return err
	}

	keep := uuid.Nil
	if currentRefresh != "" {
		if _, subject, jti, err := s.jwt.ValidateRefresh(currentRefresh); err == nil && subject == p.ID {
			keep = jti
		}
	}
	return s.store.RevokeRefreshTokens(ctx, p.ID, keep)
}

// resolveSubject finds who owns email: tenant users first, then website admins.
func (s *Service) resolveSubject(ctx context.Context, email string, kind SubjectKind) (uuid.UUID, string, SubjectKind, error) {
	if kind == "" || kind == SubjectUser {
		u, err := s.store.UserByEmail(ctx, email)
		if err == nil {
			return u.ID, u.FullName, SubjectUser, nil
		}
		if !apperr.IsNotFound(err) || kind == SubjectUser {
			return uuid.Nil, "", "", err
		}
	}
	a, err := s.store.AdminByEmail(ctx, email)
	if err != nil {
		return uuid.Nil, "", "", err
	}
	return a.ID, a.FullName, SubjectWebsiteAdmin, nil
}

// ForgotPassword issues a reset code. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	_, name, kind, err := s.resolveSubject(ctx, email, "")
	if err != nil {
		if apperr.IsNotFound(err) {
			s.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return err
	}
	code, err := utils.GenerateOTP()
	if err != nil {
		return apperr.Wrap(err, "generate code")
	}
	pr := &PasswordReset{
		Email:       email,
		SubjectKind: kind,
		CodeHash:    utils.SHA256Hex(code),
		ExpiresAt:   s.now().Add(s.opts.OTPTTL),
	}
	if err := s.store.CreateReset(ctx, pr); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, email, name, code, s.opts.OTPTTL); err != nil {
		return apperr.Wrap(err, "send reset code")
	}
	return nil
}

func codeMatches(pr *PasswordReset, code string) bool {
	return subtle.ConstantTimeCompare([]byte(pr.CodeHash), []byte(utils.SHA256Hex(strings.TrimSpace(code)))) == 1
}

// VerifyOTP checks code against the latest code issued for email.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	pr, err := s.store.LatestReset(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsNotFound(err) {
			return errInvalidCode
		}
		return err
	}
	now := s.now()
	if pr.ConsumedAt != nil || pr.Attempts >= s.opts.OTPMaxAttempts {
		return errInvalidCode
	}
	if now.After(pr.ExpiresAt) {
		return errCodeExpired
	}
	if !codeMatches(pr, code) {
		if _, err := s.store.IncrementResetAttempts(ctx, pr.ID); err != nil {
			return err
		}
		return errInvalidCode
	}
	if pr.VerifiedAt == nil {
		if err := s.store.MarkResetVerified(ctx, pr.ID, now); err != nil {
			return err
		}
	}
	return nil
}

// ResetPassword sets a new password using a verified, unconsumed code and revokes every session.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	pr, err := s.store.LatestReset(ctx, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return errInvalidCode
		}
		return err
	}
	now := s.now()
	if pr.ConsumedAt != nil || pr.Attempts >= s.opts.OTPMaxAttempts {
		return errInvalidCode
	}
	if !codeMatches(pr, code) {
		if _, err := s.store.IncrementResetAttempts(ctx, pr.ID); err != nil {
			return err
		}
		return errInvalidCode
	}
	if pr.VerifiedAt == nil {
		return errCodeNotVerified
	}
	if now.After(pr.VerifiedAt.Add(s.opts.ResetWindow)) {
		return errCodeExpired
	}
	subject, _, _, err := s.resolveSubject(ctx, email, pr.SubjectKind)
	if err != nil {
		if apperr.IsNotFound(err) {
			return errInvalidCode
		}
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperr.Wrap(err, "hash password")
	}
	if err := s.store.CompleteReset(ctx, pr, subject, hash, now); err != nil {
		if errors.Is(err, errCodeConsumed) {
			return errInvalidCode
		}
		return err
	}
	s.logger.Info("password reset completed", zap.String("subject_kind", string(pr.SubjectKind)), zap.String("subject_id", subject.String()))
	return nil
}
