package companies

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
	"github.com/raci-tracker/backend/pkg/storage"
)

// Handler handles company endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a companies handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func formValue(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

// bindInput reads JSON, or a multipart form with an optional logo file.
func bindInput(c *gin.Context) (Input, *storage.Upload, error) {
	var in Input
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		if c.Request.ContentLength == 0 {
			return in, nil, nil
		}
		return in, nil, c.ShouldBindJSON(&in)
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+1<<20)
	in = Input{
		Name:     formValue(c, "name"),
		Domain:   formValue(c, "domain"),
		Industry: formValue(c, "industry"),
		Size:     formValue(c, "size"),
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		return in, nil, err
	}
	fh, err := c.FormFile("logo")
	if err != nil && err != http.ErrMissingFile {
		return in, nil, err
	}
	return in, storage.FromFileHeader(fh), nil
}

func companyID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid company id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /api/companies.
func (h *Handler) Create(c *gin.Context) {
	in, logo, err := bindInput(c)
	if err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	company, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), in, logo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, company)
}

// List handles GET /api/companies.
func (h *Handler) List(c *gin.Context) {
	list, meta, err := h.svc.List(c.Request.Context(), middleware.Principal(c), c.Query("search"), pagination.FromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// Mine handles GET /api/companies/my-company.
func (h *Handler) Mine(c *gin.Context) {
	company, err := h.svc.Mine(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, company)
}

// Get handles GET /api/companies/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}
	company, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, company)
}

// Update handles PUT /api/companies/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}
	in, logo, err := bindInput(c)
	if err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	company, err := h.svc.Update(c.Request.Context(), middleware.Principal(c), id, in, logo)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, company)
}

// UpdateSettings handles PATCH /api/companies/:id/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}
	var in SettingsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	company, err := h.svc.UpdateSettings(c.Request.Context(), middleware.Principal(c), id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, company)
}

// Delete handles DELETE /api/companies/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := companyID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "company deleted successfully")
}
