package events

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/internal/models"
	"github.com/raci-tracker/backend/pkg/pagination"
	"github.com/raci-tracker/backend/pkg/response"
	"github.com/raci-tracker/backend/pkg/storage"
)

// UpdateTrackerRequest is the body for PATCH /api/trackers/:id.
type UpdateTrackerRequest struct {
	Status models.TrackerStatus `json:"status" binding:"required"`
}

// Handler handles event and tracker endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// bindCreate reads a JSON body, or a multipart form whose matrix field carries JSON.
func bindCreate(c *gin.Context) (CreateInput, *storage.Upload, error) {
	var in CreateInput
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		err := c.ShouldBindJSON(&in)
		return in, nil, err
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+1<<20)
	in.Name = c.PostForm("name")
	in.Description = c.PostForm("description")
	if raw := c.PostForm("departmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return in, nil, err
		}
		in.DepartmentID = id
	}
	if raw := c.PostForm("matrix"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Matrix); err != nil {
			return in, nil, err
		}
	}
	if err := binding.Validator.ValidateStruct(&in); err != nil {
		return in, nil, err
	}
	fh, err := c.FormFile("document")
	if err != nil && err != http.ErrMissingFile {
		return in, nil, err
	}
	return in, storage.FromFileHeader(fh), nil
}

// Create handles POST /api/events.
func (h *Handler) Create(c *gin.Context) {
	in, doc, err := bindCreate(c)
	if err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	detail, err := h.svc.Create(c.Request.Context(), middleware.Principal(c), in, doc)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List handles GET /api/events.
func (h *Handler) List(c *gin.Context) {
	q := ListQuery{Status: models.ApprovalStatus(c.Query("status")), Search: c.Query("search")}
	if raw := c.Query("departmentId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid departmentId")
			return
		}
		q.DepartmentID = &id
	}
	page := pagination.FromQuery(c)
	list, meta, err := h.svc.List(c.Request.Context(), middleware.Principal(c), q, page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, list, meta)
}

// Get handles GET /api/events/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// MyTrackers handles GET /api/trackers/mine.
func (h *Handler) MyTrackers(c *gin.Context) {
	list, err := h.svc.MyTrackers(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// UpdateTracker handles PATCH /api/trackers/:id.
func (h *Handler) UpdateTracker(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid tracker id")
		return
	}
	var req UpdateTrackerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := h.svc.UpdateTracker(c.Request.Context(), middleware.Principal(c), id, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, t)
}
