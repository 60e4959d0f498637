package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// SubjectKind tells which table a token subject lives in.
type SubjectKind string

const (
	SubjectUser         SubjectKind = "user"
	SubjectWebsiteAdmin SubjectKind = "website_admin"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = apperr.Authentication("invalid or expired token").WithCode(apperr.CodeInvalidToken)

// AccessClaims are carried by short-lived access tokens. Subject is the principal id.
type AccessClaims struct {
	Role         models.Role `json:"role"`
	CompanyID    *uuid.UUID  `json:"company_id,omitempty"`
	DepartmentID *uuid.UUID  `json:"department_id,omitempty"`
	Type         string      `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims are carried by refresh tokens. ID is the persisted jti.
type RefreshClaims struct {
	Kind SubjectKind `json:"kind"`
	Type string      `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation. Access and refresh tokens are signed
// with different secrets.
type JWTService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

// GenerateAccess creates an access token for p.
func (s *JWTService) GenerateAccess(p authz.Principal) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Role: p.Role,
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if p.CompanyID != uuid.Nil {
		id := p.CompanyID
		claims.CompanyID = &id
	}
	if p.DepartmentID != uuid.Nil {
		id := p.DepartmentID
		claims.DepartmentID = &id
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// GenerateRefresh creates a refresh token and returns its jti and expiry for persistence.
func (s *JWTService) GenerateRefresh(subject uuid.UUID, kind SubjectKind) (string, uuid.UUID, time.Time, error) {
	now := s.now()
	jti := uuid.New()
	expires := now.Add(s.refreshTTL)
	claims := RefreshClaims{
		Kind: kind,
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti.String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", uuid.Nil, time.Time{}, err
	}
	return token, jti, expires, nil
}

func (s *JWTService) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ValidateAccess parses an access token into the principal it was issued for.
func (s *JWTService) ValidateAccess(tokenString string) (authz.Principal, error) {
	var claims AccessClaims
	if err := s.parse(tokenString, &claims, s.accessSecret); err != nil {
		return authz.Principal{}, err
	}
	if claims.Type != tokenTypeAccess {
		return authz.Principal{}, ErrInvalidToken
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authz.Principal{}, ErrInvalidToken
	}
	p := authz.Principal{ID: id, Role: claims.Role}
	if claims.CompanyID != nil {
		p.CompanyID = *claims.CompanyID
	}
	if claims.DepartmentID != nil {
		p.DepartmentID = *claims.DepartmentID
	}
	if p.Role != models.RoleWebsiteAdmin && (!p.Role.Valid() || p.CompanyID == uuid.Nil) {
		return authz.Principal{}, ErrInvalidToken
	}
	return p, nil
}

// ValidateRefresh parses a refresh token. The caller still checks the jti against storage.
func (s *JWTService) ValidateRefresh(tokenString string) (*RefreshClaims, uuid.UUID, uuid.UUID, error) {
	var claims RefreshClaims
	if err := s.parse(tokenString, &claims, s.refreshSecret); err != nil {
		return nil, uuid.Nil, uuid.Nil, err
	}
	if claims.Type != tokenTypeRefresh {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	jti, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, uuid.Nil, uuid.Nil, ErrInvalidToken
	}
	return &claims, subject, jti, nil
}
