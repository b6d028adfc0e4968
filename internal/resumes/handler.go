package resumes

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/shared/server/respond"
)

const defaultMaxUploadBytes = 10 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes}
}

// RegisterRoutes attaches resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.upload)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
}

type resumeResponse struct {
	ResumeID  string    `json:"resumeId"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	Chars     int       `json:"chars"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text,omitempty"`
}

func toResponse(r Resume, withText bool) resumeResponse {
	resp := resumeResponse{
		ResumeID:  r.ID,
		FileName:  r.FileName,
		MimeType:  r.MimeType,
		Chars:     len([]rune(r.Text)),
		CreatedAt: r.CreatedAt,
	}
	if withText {
		resp.Text = r.Text
	}
	return resp
}

// RequesterFromContext builds the access-control identity of the caller.
func RequesterFromContext(c *gin.Context) Requester {
	return Requester{
		ID:   middleware.UserIDFromContext(c),
		Role: ParseRole(middleware.UserRoleFromContext(c)),
	}
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	resume, err := h.Svc.Upload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrResumeTextTooShort):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store resume", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(resume, false))
}

func (h *Handler) list(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view stored resumes", nil)
		return
	}

	limit, offset := 20, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	out := make([]resumeResponse, 0, len(items))
	for _, r := range items {
		out = append(out, toResponse(r, false))
	}
	respond.OK(c, gin.H{"items": out, "limit": limit, "offset": offset})
}

func (h *Handler) get(c *gin.Context) {
	resume, err := h.Svc.Get(c.Request.Context(), c.Param("id"), RequesterFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrResumeNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
		case errors.Is(err, ErrAccessDenied):
			respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch resume", nil)
		}
		return
	}
	respond.OK(c, toResponse(resume, true))
}
