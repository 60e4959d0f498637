package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raci-tracker/backend/internal/authz"
	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/apperr"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/utils"
)

type fakeStore struct {
	users       map[uuid.UUID]models.User
	departments map[uuid.UUID]uuid.UUID
	lastFilter  Filter
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]models.User{}, departments: map[uuid.UUID]uuid.UUID{}}
}

func (f *fakeStore) List(ctx context.Context, flt Filter, p pagination.Params) ([]models.User, int, error) {
	f.lastFilter = flt
	list := []models.User{}
	for _, u := range f.users {
		if u.CompanyID != flt.CompanyID {
			continue
		}
		if flt.DepartmentID != nil && (u.DepartmentID == nil || *u.DepartmentID != *flt.DepartmentID) {
			continue
		}
		if flt.Role != "" && u.Role != flt.Role {
			continue
		}
		if flt.Search != "" && !strings.Contains(strings.ToLower(u.FullName), strings.ToLower(flt.Search)) {
			continue
		}
		list = append(list, u)
	}
	total := len(list)
	p = pagination.Clamp(p, total)
	end := p.Offset() + p.PageSize
	if end > total {
		end = total
	}
	if p.Offset() >= total {
		return []models.User{}, total, nil
	}
	return list[p.Offset():end], total, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return &u, nil
}

func (f *fakeStore) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range f.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (f *fakeStore) Create(ctx context.Context, u *models.User) error {
	if f.emailTaken(u.Email, uuid.Nil) {
		return apperr.Conflict("email already registered").WithCode(apperr.CodeDuplicate)
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) Update(ctx context.Context, u *models.User) error {
	if f.emailTaken(u.Email, u.ID) {
		return apperr.Conflict("email already registered").WithCode(apperr.CodeDuplicate)
	}
	f.users[u.ID] = *u
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(f.users, id)
	return nil
}

func (f *fakeStore) DepartmentCompany(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	c, ok := f.departments[id]
	if !ok {
		return uuid.Nil, apperr.NotFound("department not found")
	}
	return c, nil
}

type fixture struct {
	store   *fakeStore
	svc     *Service
	company uuid.UUID
	dept    uuid.UUID
	admin   authz.Principal
	hod     authz.Principal
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{store: newFakeStore(), company: uuid.New(), dept: uuid.New()}
	f.store.departments[f.dept] = f.company
	f.svc = NewService(f.store, nil, zaptest.NewLogger(t))
	f.admin = authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: f.company}
	f.store.users[f.admin.ID] = models.User{ID: f.admin.ID, FullName: "Admin", Email: "admin@acme.test", Role: models.RoleCompanyAdmin, CompanyID: f.company}
	f.hod = authz.Principal{ID: uuid.New(), Role: models.RoleHOD, CompanyID: f.company, DepartmentID: f.dept}
	return f
}

func (f *fixture) create(t *testing.T, name string, role models.Role, dept *uuid.UUID) *models.User {
	u, err := f.svc.Create(context.Background(), f.admin, CreateInput{
		FullName: name, Email: strings.ToLower(name) + "@acme.test", Password: "secret1", Role: role, DepartmentID: dept,
	})
	require.NoError(t, err)
	return u
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.create(t, "Alice", models.RoleUser, &f.dept)
	assert.True(t, u.IsDefaultPassword)
	assert.Equal(t, f.company, u.CompanyID)
	assert.True(t, utils.CheckPassword("secret1", u.Password))

	_, err := f.svc.Create(ctx, f.admin, CreateInput{FullName: "Again", Email: "ALICE@acme.test", Password: "secret1", Role: models.RoleUser})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	foreign := uuid.New()
	f.store.departments[foreign] = uuid.New()
	_, err = f.svc.Create(ctx, f.admin, CreateInput{FullName: "Bob", Email: "bob@acme.test", Password: "secret1", Role: models.RoleUser, DepartmentID: &foreign})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, f.hod, CreateInput{FullName: "Carl", Email: "carl@acme.test", Password: "secret1", Role: models.RoleUser})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestWebsiteAdminManagesCompanyAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	web := authz.Principal{ID: uuid.New(), Role: models.RoleWebsiteAdmin}

	_, err := f.svc.Create(ctx, web, CreateInput{FullName: "Dora", Email: "dora@acme.test", Password: "secret1", Role: models.RoleCompanyAdmin})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "company is required")

	_, err = f.svc.Create(ctx, web, CreateInput{FullName: "Dora", Email: "dora@acme.test", Password: "secret1", Role: models.RoleUser, CompanyID: &f.company})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	dora, err := f.svc.Create(ctx, web, CreateInput{FullName: "Dora", Email: "dora@acme.test", Password: "secret1", Role: models.RoleCompanyAdmin, CompanyID: &f.company})
	require.NoError(t, err)
	assert.Equal(t, f.company, dora.CompanyID)

	list, _, err := f.svc.List(ctx, web, ListQuery{CompanyID: &f.company}, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, models.RoleCompanyAdmin, f.store.lastFilter.Role)

	alice := f.create(t, "Alice", models.RoleUser, nil)
	_, err = f.svc.Get(ctx, web, alice.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	require.NoError(t, f.svc.Delete(ctx, web, dora.ID))
}

func TestListScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Alice", "Bea", "Cem"} {
		f.create(t, name, models.RoleUser, &f.dept)
	}
	f.create(t, "Dan", models.RoleUser, nil)

	list, meta, err := f.svc.List(ctx, f.admin, ListQuery{}, pagination.Params{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, pagination.Meta{TotalItems: 5, TotalPages: 3, CurrentPage: 2, PageSize: 2}, meta)

	list, meta, err = f.svc.List(ctx, f.hod, ListQuery{}, pagination.Params{Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 1, meta.CurrentPage, "page clamped to the last page")

	other := uuid.New()
	_, _, err = f.svc.List(ctx, f.hod, ListQuery{DepartmentID: &other}, pagination.Params{Page: 1, PageSize: 10})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, meta, err = f.svc.List(ctx, f.admin, ListQuery{Search: "nobody"}, pagination.Params{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, meta.TotalPages)
	assert.Equal(t, 0, meta.CurrentPage)

	_, _, err = f.svc.List(ctx, f.admin, ListQuery{Role: "root"}, pagination.Params{Page: 1, PageSize: 10})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	user := authz.Principal{ID: uuid.New(), Role: models.RoleUser, CompanyID: f.company}
	_, _, err = f.svc.List(ctx, user, ListQuery{}, pagination.Params{Page: 1, PageSize: 10})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.create(t, "Alice", models.RoleUser, &f.dept)

	self := authz.Principal{ID: alice.ID, Role: models.RoleUser, CompanyID: f.company, DepartmentID: f.dept}
	got, err := f.svc.Get(ctx, self, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FullName)

	hod := models.RoleHOD
	_, err = f.svc.Update(ctx, self, alice.ID, UpdateInput{Role: &hod})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err), "users cannot promote themselves")

	pw := "changed1"
	updated, err := f.svc.Update(ctx, f.admin, alice.ID, UpdateInput{Role: &hod, Password: &pw, ClearDepartment: true})
	require.NoError(t, err)
	assert.Equal(t, models.RoleHOD, updated.Role)
	assert.Nil(t, updated.DepartmentID)
	assert.True(t, utils.CheckPassword(pw, updated.Password))

	user := models.RoleUser
	_, err = f.svc.Update(ctx, f.admin, f.admin.ID, UpdateInput{Role: &user})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(f.svc.Delete(ctx, f.admin, f.admin.ID)))

	stranger := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: uuid.New()}
	assert.True(t, apperr.IsNotFound(f.svc.Delete(ctx, stranger, alice.ID)))

	require.NoError(t, f.svc.Delete(ctx, f.admin, alice.ID))
	_, err = f.svc.Get(ctx, f.admin, alice.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	f.create(t, "Alice", models.RoleUser, &f.dept)
	h := NewHandler(f.svc, zaptest.NewLogger(t))

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, f.admin) })
	r.GET("/api/users", h.List)
	r.POST("/api/users", h.Create)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users?departmentId="+f.dept.String()+"&pageSize=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data       []map[string]any `json:"data"`
		TotalItems int              `json:"totalItems"`
		PageSize   int              `json:"pageSize"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Data, 1)
	assert.Equal(t, 5, page.PageSize)
	assert.NotContains(t, page.Data[0], "password")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users?departmentId=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"fullName":"Eve","email":"eve@acme.test","password":"secret1","role":"root"}`
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
