package websiteadmins

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
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
	mu     sync.Mutex
	admins map[uuid.UUID]models.WebsiteAdmin
}

func newFakeStore() *fakeStore {
	return &fakeStore{admins: map[uuid.UUID]models.WebsiteAdmin{}}
}

func (f *fakeStore) emailTaken(email string, except uuid.UUID) bool {
	for id, a := range f.admins {
		if id != except && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (f *fakeStore) List(ctx context.Context, search string, p pagination.Params) ([]models.WebsiteAdmin, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := []models.WebsiteAdmin{}
	for _, a := range f.admins {
		if strings.Contains(a.FullName, search) || strings.Contains(a.Email, search) {
			list = append(list, a)
		}
	}
	return list, len(list), nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.WebsiteAdmin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.admins[id]
	if !ok {
		return nil, apperr.NotFound("website admin not found")
	}
	return &a, nil
}

func (f *fakeStore) Create(ctx context.Context, a *models.WebsiteAdmin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emailTaken(a.Email, uuid.Nil) {
		return apperr.Conflict("email already registered").WithCode(apperr.CodeDuplicate)
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	f.admins[a.ID] = *a
	return nil
}

func (f *fakeStore) Update(ctx context.Context, a *models.WebsiteAdmin) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[a.ID]; !ok {
		return apperr.NotFound("website admin not found")
	}
	if f.emailTaken(a.Email, a.ID) {
		return apperr.Conflict("email already registered").WithCode(apperr.CodeDuplicate)
	}
	f.admins[a.ID] = *a
	return nil
}

func (f *fakeStore) DeleteUnlessLast(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.admins[id]; !ok {
		return apperr.NotFound("website admin not found")
	}
	if len(f.admins) <= 1 {
		return errLastAdmin
	}
	delete(f.admins, id)
	return nil
}

func newService(t *testing.T) (*Service, *fakeStore, authz.Principal) {
	store := newFakeStore()
	root := models.WebsiteAdmin{ID: uuid.New(), FullName: "Root", Email: "root@example.com"}
	store.admins[root.ID] = root
	return NewService(store, zaptest.NewLogger(t)), store, authz.Principal{ID: root.ID, Role: models.RoleWebsiteAdmin}
}

func TestCreateAndUpdate(t *testing.T) {
	svc, _, root := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, root, CreateInput{FullName: " Ops ", Email: "Ops@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ops", a.FullName)
	assert.Equal(t, "ops@example.com", a.Email)
	assert.True(t, utils.CheckPassword("secret1", a.Password))

	_, err = svc.Create(ctx, root, CreateInput{FullName: "Dup", Email: "OPS@example.com", Password: "secret1"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	phone, pw := "+100", "another1"
	updated, err := svc.Update(ctx, root, a.ID, UpdateInput{Phone: &phone, Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "Ops", updated.FullName)
	assert.Equal(t, "+100", updated.Phone)
	assert.True(t, utils.CheckPassword(pw, updated.Password))

	taken := "root@example.com"
	_, err = svc.Update(ctx, root, a.ID, UpdateInput{Email: &taken})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.Update(ctx, root, uuid.New(), UpdateInput{Phone: &phone})
	assert.True(t, apperr.IsNotFound(err))
}

func TestTenantPrincipalsDenied(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	admin := authz.Principal{ID: uuid.New(), Role: models.RoleCompanyAdmin, CompanyID: uuid.New()}

	_, _, err := svc.List(ctx, admin, "", pagination.Params{Page: 1, PageSize: 10})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	_, err = svc.Create(ctx, admin, CreateInput{FullName: "x", Email: "x@example.com", Password: "secret1"})
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(svc.Delete(ctx, authz.Principal{}, uuid.New())))
}

func TestDeleteKeepsLastAdmin(t *testing.T) {
	svc, store, root := newService(t)
	ctx := context.Background()

	err := svc.Delete(ctx, root, root.ID)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, apperr.CodeLastAdmin, apperr.CodeOf(err))

	second, err := svc.Create(ctx, root, CreateInput{FullName: "Second", Email: "second@example.com", Password: "secret1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uuid.UUID{root.ID, second.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			errs[i] = svc.Delete(ctx, root, id)
		}(i, id)
	}
	wg.Wait()

	assert.Len(t, store.admins, 1)
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.Equal(t, apperr.CodeLastAdmin, apperr.CodeOf(err))
		}
	}
	assert.Equal(t, 1, failed)
}

func TestHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _, root := newService(t)
	h := NewHandler(svc, zaptest.NewLogger(t))

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(middleware.ContextPrincipal, root) })
	r.POST("/api/website-admins", h.Create)
	r.DELETE("/api/website-admins/:id", h.Delete)

	body := `{"fullName":"Ops","email":"ops@example.com","password":"secret1"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/website-admins", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/website-admins", strings.NewReader(`{"email":"bad"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/website-admins/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/website-admins/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, false, out["success"])
}
