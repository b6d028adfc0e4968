package generations

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resume-bridge/internal/answers"
	"resume-bridge/internal/resumes"
	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/shared/server/respond"
	"resume-bridge/internal/upstream"
)

const defaultMaxUploadBytes = 10 << 20

// Inbound multipart field names.
const (
	formResumeFile = "resume_file"
	formFile       = "file"
	formResumeID   = "resume_id"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
	// Diagnostics attaches failure detail to responses; off in production.
	Diagnostics bool
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64, diagnostics bool) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{Svc: svc, MaxUploadBytes: maxUploadBytes, Diagnostics: diagnostics}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/generations/score", h.score)
	rg.POST("/generations/cold-email", h.coldEmail)
	rg.POST("/generations/interview-answers", h.interviewAnswers)
	rg.GET("/generations", h.list)
	rg.GET("/generations/:id", h.get)
}

// failureDefaults are the empty task values failure responses still carry.
func failureDefaults(task upstream.Task) gin.H {
	switch task {
	case upstream.TaskScore:
		return gin.H{"score": 0, "data": nil}
	case upstream.TaskColdEmail:
		return gin.H{"subject": "", "body": ""}
	case upstream.TaskInterviewAnswers:
		return gin.H{"answers": []answers.Answer{}}
	default:
		return nil
	}
}

func (h *Handler) score(c *gin.Context) {
	common, ok := h.common(c, upstream.TaskScore)
	if !ok {
		return
	}
	res, err := h.Svc.Score(c.Request.Context(), ScoreInput{
		Common:         common,
		JobDescription: c.PostForm("job_description"),
		JobTitle:       c.PostForm("job_title"),
		CompanyName:    c.PostForm("company_name"),
	})
	if err != nil {
		h.fail(c, upstream.TaskScore, err)
		return
	}
	h.annotate(c, res.GenerationID, res.Source)
	respond.Success(c, "Resume evaluated successfully", gin.H{
		"generationId":    res.GenerationID,
		"score":           res.Score,
		"summary":         res.Summary,
		"matchedKeywords": res.MatchedKeywords,
		"missingKeywords": res.MissingKeywords,
		"data":            res.Data,
		"source":          res.Source,
	})
}

func (h *Handler) coldEmail(c *gin.Context) {
	common, ok := h.common(c, upstream.TaskColdEmail)
	if !ok {
		return
	}
	res, err := h.Svc.ColdEmail(c.Request.Context(), ColdEmailInput{
		Common:         common,
		RecipientName:  c.PostForm("recipient_name"),
		RecipientRole:  c.PostForm("recipient_role"),
		CompanyName:    c.PostForm("company_name"),
		SenderName:     c.PostForm("sender_name"),
		JobTitle:       c.PostForm("job_title"),
		Tone:           c.PostForm("tone"),
		WordLimit:      c.PostForm("word_limit"),
		AdditionalInfo: c.PostForm("additional_info"),
	})
	if err != nil {
		h.fail(c, upstream.TaskColdEmail, err)
		return
	}
	h.annotate(c, res.GenerationID, res.Source)
	respond.Success(c, "Cold email generated successfully", gin.H{
		"generationId": res.GenerationID,
		"subject":      res.Subject,
		"body":         res.Body,
		"source":       res.Source,
	})
}

func (h *Handler) interviewAnswers(c *gin.Context) {
	common, ok := h.common(c, upstream.TaskInterviewAnswers)
	if !ok {
		return
	}
	questions, err := answers.ParseQuestions(c.PostForm("questions"))
	if err != nil {
		h.fail(c, upstream.TaskInterviewAnswers, err)
		return
	}
	res, err := h.Svc.InterviewAnswers(c.Request.Context(), InterviewInput{
		Common:         common,
		Role:           c.PostForm("role"),
		CompanyName:    c.PostForm("company_name"),
		Questions:      questions,
		JobDescription: c.PostForm("job_description"),
		WordLimit:      c.PostForm("word_limit"),
	})
	if err != nil {
		h.fail(c, upstream.TaskInterviewAnswers, err)
		return
	}
	h.annotate(c, res.GenerationID, res.Source)
	respond.Success(c, "Interview answers generated successfully", gin.H{
		"generationId": res.GenerationID,
		"answers":      res.Answers,
		"source":       res.Source,
	})
}

// common reads the resume source and caller identity from the multipart form.
func (h *Handler) common(c *gin.Context, task upstream.Task) (Common, bool) {
	c.Set(middleware.TaskKey, string(task))
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respond.Failure(c, http.StatusBadRequest, "validation_error", "invalid multipart form", failureDefaults(task), nil)
		return Common{}, false
	}

	src := resumes.Source{ResumeID: c.PostForm(formResumeID)}
	fileHeader, err := c.FormFile(formResumeFile)
	if err != nil {
		fileHeader, err = c.FormFile(formFile)
	}
	if err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			respond.Failure(c, http.StatusBadRequest, "validation_error", "unable to read file", failureDefaults(task), nil)
			return Common{}, false
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			respond.Failure(c, http.StatusBadRequest, "validation_error", "unable to read file", failureDefaults(task), nil)
			return Common{}, false
		}
		src.File = data
		src.FileName = fileHeader.Filename
		src.ContentType = fileHeader.Header.Get("Content-Type")
	}

	return Common{
		Requester: resumes.RequesterFromContext(c),
		Source:    src,
		RequestID: middleware.RequestIDFromContext(c),
	}, true
}

func (h *Handler) annotate(c *gin.Context, generationID string, source resumes.SourceKind) {
	c.Set(middleware.GenerationIDKey, generationID)
	c.Set(middleware.ResumeSourceKey, string(source))
}

// fail maps a task error onto the failure envelope.
func (h *Handler) fail(c *gin.Context, task upstream.Task, err error) {
	defaults := failureDefaults(task)
	switch {
	case errors.Is(err, resumes.ErrBothSourcesProvided),
		errors.Is(err, resumes.ErrNoSourceProvided),
		errors.Is(err, resumes.ErrResumeTextTooShort),
		errors.Is(err, resumes.ErrInvalidInput),
		errors.Is(err, answers.ErrNoQuestions),
		errors.Is(err, ErrInvalidInput):
		respond.Failure(c, http.StatusBadRequest, "validation_error", validationMessage(err), defaults, nil)
	case errors.Is(err, resumes.ErrAccessDenied):
		respond.Failure(c, http.StatusForbidden, "forbidden", resumes.ErrAccessDenied.Error(), defaults, nil)
	case errors.Is(err, resumes.ErrResumeNotFound):
		respond.Failure(c, http.StatusNotFound, "not_found", resumes.ErrResumeNotFound.Error(), defaults, nil)
	case errors.Is(err, ErrPersistence):
		respond.Failure(c, http.StatusInternalServerError, "persistence_error", "Failed to save interview answers. Please try again.", defaults, nil)
	default:
		if f, ok := upstream.AsFailure(err); ok {
			respond.Failure(c, f.Status, string(f.Kind), f.Message, defaults, h.diagnostics(f))
			return
		}
		respond.Failure(c, http.StatusInternalServerError, "internal_error", "An unexpected error occurred.", defaults, nil)
	}
}

func (h *Handler) diagnostics(f *upstream.Failure) map[string]any {
	if !h.Diagnostics || f == nil {
		return nil
	}
	return f.Diagnostics()
}

// validationMessage drops the generic sentinel prefix from wrapped errors.
func validationMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{ErrInvalidInput.Error() + ": ", resumes.ErrInvalidInput.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}

type generationResponse struct {
	GenerationID string             `json:"generationId"`
	Task         upstream.Task      `json:"task"`
	Source       resumes.SourceKind `json:"source"`
	ResumeID     string             `json:"resumeId,omitempty"`
	FileName     string             `json:"fileName,omitempty"`
	Params       map[string]any     `json:"params"`
	Result       json.RawMessage    `json:"result,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	Answers      []answers.Answer   `json:"answers,omitempty"`
}

func toResponse(req Request, items []Answer) generationResponse {
	resp := generationResponse{
		GenerationID: req.ID,
		Task:         req.Task,
		Source:       req.ResumeSource,
		ResumeID:     req.ResumeID,
		FileName:     req.FileName,
		Params:       req.Params,
		Result:       req.Result,
		CreatedAt:    req.CreatedAt,
	}
	for _, a := range items {
		resp.Answers = append(resp.Answers, answers.Answer{Question: a.Question, Answer: a.Answer})
	}
	return resp
}

func (h *Handler) list(c *gin.Context) {
	if middleware.IsGuest(c) {
		respond.Error(c, http.StatusUnauthorized, "login_required", "Login required to view history", nil)
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

	items, err := h.Svc.History(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list generations", nil)
		return
	}
	out := make([]generationResponse, 0, len(items))
	for _, req := range items {
		out = append(out, toResponse(req, nil))
	}
	respond.OK(c, gin.H{"items": out, "limit": limit, "offset": offset})
}

func (h *Handler) get(c *gin.Context) {
	req, items, err := h.Svc.Get(c.Request.Context(), c.Param("id"), resumes.RequesterFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "generation not found", nil)
		case errors.Is(err, ErrForbidden):
			respond.Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch generation", nil)
		}
		return
	}
	respond.OK(c, toResponse(req, items))
}
