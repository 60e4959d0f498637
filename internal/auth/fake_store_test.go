package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
)

type refreshRow struct {
	subject uuid.UUID
	kind    SubjectKind
	expires time.Time
	revoked bool
}

type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	admins   map[uuid.UUID]*models.WebsiteAdmin
	refresh  map[uuid.UUID]*refreshRow
	resets   []*PasswordReset
	companys map[uuid.UUID]*CompanyBrief
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[uuid.UUID]*models.User{},
		admins:   map[uuid.UUID]*models.WebsiteAdmin{},
		refresh:  map[uuid.UUID]*refreshRow{},
		companys: map[uuid.UUID]*CompanyBrief{},
	}
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (f *fakeStore) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperr.NotFound("user not found")
}

func (f *fakeStore) AdminByEmail(_ context.Context, email string) (*models.WebsiteAdmin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.admins {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("website admin not found")
}

func (f *fakeStore) AdminByID(_ context.Context, id uuid.UUID) (*models.WebsiteAdmin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.admins[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, apperr.NotFound("website admin not found")
}

func (f *fakeStore) CompanyBrief(_ context.Context, id uuid.UUID) (*CompanyBrief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.companys[id]; ok {
		return c, nil
	}
	return nil, apperr.NotFound("company not found")
}

func (f *fakeStore) SaveRefreshToken(_ context.Context, jti, subject uuid.UUID, kind SubjectKind, expires time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[jti] = &refreshRow{subject: subject, kind: kind, expires: expires}
	return nil
}

func (f *fakeStore) RefreshTokenActive(_ context.Context, jti, subject uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.refresh[jti]
	return ok && r.subject == subject && !r.revoked && r.expires.After(now), nil
}

func (f *fakeStore) RevokeRefreshToken(_ context.Context, jti, subject uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.refresh[jti]; ok && r.subject == subject {
		r.revoked = true
	}
	return nil
}

func (f *fakeStore) RevokeRefreshTokens(_ context.Context, subject, except uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for jti, r := range f.refresh {
		if r.subject == subject && jti != except {
			r.revoked = true
		}
	}
	return nil
}

func (f *fakeStore) activeTokens(subject uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.refresh {
		if r.subject == subject && !r.revoked {
			n++
		}
	}
	return n
}

func (f *fakeStore) UpdatePassword(_ context.Context, kind SubjectKind, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == SubjectWebsiteAdmin {
		a, ok := f.admins[id]
		if !ok {
			return apperr.NotFound("website admin not found")
		}
		a.Password = hash
		return nil
	}
	u, ok := f.users[id]
	if !ok {
		return apperr.NotFound("user not found")
	}
	u.Password = hash
	u.IsDefaultPassword = false
	return nil
}

func (f *fakeStore) CreateReset(_ context.Context, r *PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, old := range f.resets {
		if strings.EqualFold(old.Email, r.Email) && old.ConsumedAt == nil {
			old.ConsumedAt = &now
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = now
	cp := *r
	f.resets = append(f.resets, &cp)
	return nil
}

func (f *fakeStore) LatestReset(_ context.Context, email string) (*PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.resets) - 1; i >= 0; i-- {
		if strings.EqualFold(f.resets[i].Email, email) {
			cp := *f.resets[i]
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("no reset code requested")
}

func (f *fakeStore) reset(id uuid.UUID) *PasswordReset {
	for _, r := range f.resets {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeStore) IncrementResetAttempts(_ context.Context, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reset(id)
	r.Attempts++
	return r.Attempts, nil
}

func (f *fakeStore) MarkResetVerified(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset(id).VerifiedAt = &at
	return nil
}

func (f *fakeStore) CompleteReset(ctx context.Context, pr *PasswordReset, subject uuid.UUID, hash string, at time.Time) error {
	f.mu.Lock()
	r := f.reset(pr.ID)
	if r.ConsumedAt != nil {
		f.mu.Unlock()
		return errCodeConsumed
	}
	r.ConsumedAt = &at
	f.mu.Unlock()
	if err := f.UpdatePassword(ctx, pr.SubjectKind, subject, hash); err != nil {
		return err
	}
	return f.RevokeRefreshTokens(ctx, subject, uuid.Nil)
}

type sentOTP struct {
	email, code string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentOTP
}

func (m *fakeMailer) SendOTP(_ context.Context, email, _ string, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentOTP{email: email, code: code})
	return nil
}

func (m *fakeMailer) last() sentOTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}
