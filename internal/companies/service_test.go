package companies

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/storage"
)

type fakeStore struct {
	companies map[uuid.UUID]*models.Company
	failWrite error
}

func newFakeStore() *fakeStore {
	return &fakeStore{companies: map[uuid.UUID]*models.Company{}}
}

func (f *fakeStore) Create(ctx context.Context, c *models.Company) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	s := models.DefaultCompanySettings(c.ID)
	c.Settings = &s
	cp := *c
	f.companies[c.ID] = &cp
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return nil, apperr.NotFound("company not found")
	}
	cp := *c
	s := *c.Settings
	cp.Settings = &s
	return &cp, nil
}

func (f *fakeStore) List(ctx context.Context, search string, p pagination.Params) ([]Summary, int, error) {
	list := []Summary{}
	for _, c := range f.companies {
		list = append(list, Summary{ID: c.ID, Name: c.Name})
	}
	return list, len(list), nil
}

func (f *fakeStore) Update(ctx context.Context, c *models.Company) error {
	if f.failWrite != nil {
		return f.failWrite
	}
	cp := *c
	f.companies[c.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateSettings(ctx context.Context, s *models.CompanySettings) error {
	c, ok := f.companies[s.CompanyID]
	if !ok {
		return apperr.NotFound("company not found")
	}
	cp := *s
	c.Settings = &cp
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.companies[id]; !ok {
		return apperr.NotFound("company not found")
	}
	delete(f.companies, id)
	return nil
}

func (f *fakeStore) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	return &Stats{TotalUsers: 3, TotalDepartments: 1, TotalEvents: 2}, nil
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string]bool
}

func (b *memBlob) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = true
	return "/uploads/" + key, nil
}

func (b *memBlob) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func logo(name string) *storage.Upload {
	return storage.FromBytes(name, "image/png", []byte{0x89, 'P', 'N', 'G'})
}

func strPtr(s string) *string { return &s }

type fixture struct {
	store    *fakeStore
	blob     *memBlob
	svc      *Service
	webAdmin authz.Principal
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{store: newFakeStore(), blob: &memBlob{objects: map[string]bool{}}}
	f.svc = NewService(f.store, f.blob, nil, zaptest.NewLogger(t))
	f.webAdmin = authz.Principal{ID: uuid.New(), Role: models.RoleWebsiteAdmin}
	return f
}

func (f *fixture) company(t *testing.T) *models.Company {
	c, err := f.svc.Create(context.Background(), f.webAdmin, Input{Name: strPtr("Acme")}, logo("acme.png"))
	require.NoError(t, err)
	return c
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.company(t)
	assert.Equal(t, "Acme", c.Name)
	assert.Contains(t, c.LogoURL, "/uploads/logos/")
	assert.Equal(t, models.WorkflowSequential, c.Settings.ApprovalWorkflow)
	assert.True(t, f.blob.objects[c.LogoKey])

	admin := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: c.ID}
	_, err := f.svc.Create(ctx, admin, Input{Name: strPtr("Other")}, nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, f.webAdmin, Input{Name: strPtr("  ")}, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	f.store.failWrite = errors.New("connection refused")
	_, err = f.svc.Create(ctx, f.webAdmin, Input{Name: strPtr("Broken")}, logo("broken.png"))
	require.Error(t, err)
	assert.Len(t, f.blob.objects, 1, "logo of the failed insert is removed")
}

func TestUpdateReplacesLogo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.company(t)
	admin := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: c.ID}
	oldKey := c.LogoKey

	f.store.failWrite = errors.New("timeout")
	_, err := f.svc.Update(ctx, admin, c.ID, Input{Industry: strPtr("Retail")}, logo("new.png"))
	require.Error(t, err)
	assert.Equal(t, map[string]bool{oldKey: true}, f.blob.objects, "old logo kept, new one removed")

	f.store.failWrite = nil
	updated, err := f.svc.Update(ctx, admin, c.ID, Input{Industry: strPtr("Retail")}, logo("new.png"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name)
	assert.Equal(t, "Retail", updated.Industry)
	assert.NotEqual(t, oldKey, updated.LogoKey)
	assert.Equal(t, map[string]bool{updated.LogoKey: true}, f.blob.objects, "old logo deleted after commit")

	hod := authz.Principal{ID: uuid.New(), Role: models.RoleHOD, CompanyID: c.ID, DepartmentID: uuid.New()}
	_, err = f.svc.Update(ctx, hod, c.ID, Input{Name: strPtr("x")}, nil)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	stranger := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: uuid.New()}
	_, err = f.svc.Update(ctx, stranger, c.ID, Input{Name: strPtr("x")}, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = f.svc.Update(ctx, f.webAdmin, c.ID, Input{Name: strPtr("Acme Corp")}, nil)
	require.NoError(t, err)
}

func TestUpdateSettingsPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.company(t)
	admin := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: c.ID}

	parallel := models.WorkflowParallel
	hyphen := models.DefaultApprover("assigned-approver")
	off := false
	_, err := f.svc.UpdateSettings(ctx, admin, c.ID, SettingsInput{ApprovalWorkflow: &parallel, DefaultApprover: &hyphen, NotifyOnApproval: &off})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowParallel, got.Settings.ApprovalWorkflow)
	assert.Equal(t, models.ApproverAssignedApprover, got.Settings.DefaultApprover)
	assert.False(t, got.Settings.NotifyOnApproval)
	assert.True(t, got.Settings.NotifyOnRejection, "untouched fields keep their value")

	bad := models.ApprovalWorkflow("random")
	_, err = f.svc.UpdateSettings(ctx, admin, c.ID, SettingsInput{ApprovalWorkflow: &bad})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.UpdateSettings(ctx, f.webAdmin, c.ID, SettingsInput{ApprovalWorkflow: &parallel})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	user := authz.Principal{ID: uuid.New(), Role: models.RoleUser, CompanyID: c.ID}
	_, err = f.svc.UpdateSettings(ctx, user, c.ID, SettingsInput{ApprovalWorkflow: &parallel})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestMineAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.company(t)
	hod := authz.Principal{ID: uuid.New(), Role: models.RoleHOD, CompanyID: c.ID, DepartmentID: uuid.New()}

	mine, err := f.svc.Mine(ctx, hod)
	require.NoError(t, err)
	assert.Equal(t, c.ID, mine.ID)
	assert.Equal(t, 3, mine.Stats.TotalUsers)

	_, err = f.svc.Mine(ctx, f.webAdmin)
	assert.True(t, apperr.IsNotFound(err))

	_, err = f.svc.Get(ctx, f.webAdmin, c.ID)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, hod, uuid.New())
	assert.True(t, apperr.IsNotFound(err), "other ids are hidden")

	list, meta, err := f.svc.List(ctx, f.webAdmin, "", pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, meta.TotalItems)

	_, _, err = f.svc.List(ctx, hod, "", pagination.Params{Page: 1, PageSize: 10})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestDeleteRemovesLogo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.company(t)

	admin := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: c.ID}
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(f.svc.Delete(ctx, admin, c.ID)))

	require.NoError(t, f.svc.Delete(ctx, f.webAdmin, c.ID))
	assert.Empty(t, f.blob.objects)
	assert.True(t, apperr.IsNotFound(f.svc.Delete(ctx, f.webAdmin, c.ID)))
}
