package generations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-bridge/internal/resumes"
	"resume-bridge/internal/shared/auth"
	"resume-bridge/internal/shared/server/middleware"
	"resume-bridge/internal/upstream"
)

const storedText = "Senior Go engineer with ten years of distributed systems experience."

// countingBridge records calls and returns a fixed outcome.
type countingBridge struct {
	calls   atomic.Int32
	last    upstream.Call
	payload upstream.Payload
	err     error
}

func (b *countingBridge) Dispatch(_ context.Context, call upstream.Call) (upstream.Payload, error) {
	b.calls.Add(1)
	b.last = call
	return b.payload, b.err
}

type testEnv struct {
	router  *gin.Engine
	signer  *auth.Signer
	resumes *resumes.MemoryRepo
	gens    Repo
}

func newTestEnv(t *testing.T, bridge Bridge, gens Repo) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := auth.NewSigner("test-secret", false)
	require.NoError(t, err)

	resumeRepo := resumes.NewMemoryRepo()
	require.NoError(t, resumeRepo.Create(context.Background(), resumes.Resume{
		ID:        "resume-1",
		OwnerID:   "owner-1",
		FileName:  "cv.pdf",
		Text:      storedText,
		CreatedAt: time.Now().UTC(),
	}))
	if gens == nil {
		gens = NewMemoryRepo()
	}

	svc := NewService(resumes.NewResolver(resumeRepo, 20), bridge, gens)
	h := NewHandler(svc, 0, true)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Auth(signer, true))
	h.RegisterRoutes(api)

	return &testEnv{router: r, signer: signer, resumes: resumeRepo, gens: gens}
}

func (e *testEnv) token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := e.signer.Sign(auth.Claims{Sub: sub, Role: role})
	require.NoError(t, err)
	return tok
}

type testFormFile struct {
	name string
	data []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, file *testFormFile) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("resume_file", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (e *testEnv) do(req *http.Request, token string) (*httptest.ResponseRecorder, map[string]any) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-Guest-Id", "test-guest")
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	var body map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	return resp, body
}

func TestBothSourcesRejectedWithoutOutboundCall(t *testing.T) {
	bridge := &countingBridge{}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/score",
		map[string]string{"resume_id": "resume-1", "job_description": "Go"},
		&testFormFile{name: "cv.pdf", data: []byte("%PDF-1.4")})
	resp, body := env.do(req, env.token(t, "owner-1", "user"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, resumes.ErrBothSourcesProvided.Error(), body["message"])
	assert.Equal(t, float64(0), body["score"])
	assert.Zero(t, bridge.calls.Load())
}

func TestNoSourceRejected(t *testing.T) {
	bridge := &countingBridge{}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/cold-email",
		map[string]string{"recipient_name": "Ada", "company_name": "Acme", "sender_name": "Bo"}, nil)
	resp, body := env.do(req, "")

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, resumes.ErrNoSourceProvided.Error(), body["message"])
	assert.Equal(t, "", body["subject"])
	assert.Zero(t, bridge.calls.Load())
}

func TestAccessDeniedWithoutOutboundCall(t *testing.T) {
	bridge := &countingBridge{}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/interview-answers", map[string]string{
		"resume_id":    "resume-1",
		"role":         "SRE",
		"company_name": "Acme",
		"questions":    "Why us?",
	}, nil)
	resp, body := env.do(req, env.token(t, "intruder", "user"))

	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, resumes.ErrAccessDenied.Error(), body["message"])
	assert.Equal(t, []any{}, body["answers"])
	assert.Zero(t, bridge.calls.Load())
}

func TestUnknownResumeIsNotFound(t *testing.T) {
	bridge := &countingBridge{}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"resume_id": "nope", "job_description": "Go"}, nil)
	resp, _ := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Zero(t, bridge.calls.Load())
}

func TestMissingRequiredFieldsRejected(t *testing.T) {
	bridge := &countingBridge{}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/cold-email", map[string]string{"resume_id": "resume-1"}, nil)
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "company_name, recipient_name, sender_name required", body["message"])

	req = multipartRequest(t, "/api/v1/generations/interview-answers",
		map[string]string{"resume_id": "resume-1", "role": "SRE", "company_name": "Acme", "questions": " "}, nil)
	resp, _ = env.do(req, env.token(t, "owner-1", ""))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, bridge.calls.Load())
}

func TestElevatedRoleUsesStoredResume(t *testing.T) {
	bridge := &countingBridge{payload: payloadOf(`{"ats_score": "72.5", "feedback": "Solid", "matched_keywords": ["go"]}`)}
	gens := NewMemoryRepo()
	env := newTestEnv(t, bridge, gens)

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"resume_id": "resume-1", "job_description": "Go"}, nil)
	resp, body := env.do(req, env.token(t, "recruiter-1", "recruiter"))

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 72.5, body["score"])
	assert.Equal(t, "Solid", body["summary"])
	assert.Equal(t, string(resumes.SourceStored), body["source"])
	assert.Equal(t, storedText, bridge.last.Resume.Text)

	history, err := gens.ListByUser(context.Background(), "recruiter-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, upstream.TaskScore, history[0].Task)
}

func TestUpstreamFailurePassesThrough(t *testing.T) {
	f := &upstream.Failure{Kind: upstream.KindApplication, Status: http.StatusBadGateway, Message: "Server error: 502 Bad Gateway", BodyPreview: "<html>"}
	bridge := &countingBridge{err: f}
	gens := NewMemoryRepo()
	env := newTestEnv(t, bridge, gens)

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"job_description": "Go"}, &testFormFile{name: "cv.pdf", data: []byte("%PDF")})
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, body["message"], "502 Bad Gateway")
	diag, ok := body["diagnostics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "<html>", diag["body_preview"])

	history, _ := gens.ListByUser(context.Background(), "owner-1", 10, 0)
	assert.Empty(t, history)
}

func TestDiagnosticsHiddenInProduction(t *testing.T) {
	bridge := &countingBridge{err: upstream.ContractViolation("bad")}
	env := newTestEnv(t, bridge, nil)

	h := NewHandler(NewService(resumes.NewResolver(env.resumes, 20), bridge, NewMemoryRepo()), 0, false)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1", middleware.Auth(env.signer, true)))
	env.router = r

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"resume_id": "resume-1", "job_description": "Go"}, nil)
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, upstream.MsgInvalidResponse, body["message"])
	_, has := body["diagnostics"]
	assert.False(t, has)
}

func TestMissingScoreIsContractViolation(t *testing.T) {
	bridge := &countingBridge{payload: payloadOf(`{"summary": "no number here"}`)}
	gens := NewMemoryRepo()
	env := newTestEnv(t, bridge, gens)

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"resume_id": "resume-1", "job_description": "Go"}, nil)
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Equal(t, upstream.MsgInvalidResponse, body["message"])
	history, _ := gens.ListByUser(context.Background(), "owner-1", 10, 0)
	assert.Empty(t, history)
}

func TestColdEmailFromUpload(t *testing.T) {
	bridge := &countingBridge{payload: payloadOf(`{"subject": "Hello &amp; welcome", "email": "<p>Dear Ada,</p>"}`)}
	env := newTestEnv(t, bridge, nil)

	req := multipartRequest(t, "/api/v1/generations/cold-email", map[string]string{
		"recipient_name": "Ada",
		"company_name":   "Acme",
		"sender_name":    "Bo",
		"tone":           "",
	}, &testFormFile{name: "cv.pdf", data: []byte("%PDF-1.4")})
	resp, body := env.do(req, "")

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "Hello & welcome", body["subject"])
	assert.Equal(t, "Dear Ada,", body["body"])
	assert.Equal(t, string(resumes.SourceUploaded), body["source"])
	assert.Equal(t, "cv.pdf", bridge.last.Resume.FileName)
	for _, f := range bridge.last.Fields {
		if f.Name == "tone" {
			assert.Empty(t, strings.TrimSpace(f.Value))
		}
	}
}

func TestInterviewAnswersEndToEnd(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answers": "1. Why this role?\nBecause I love it.\n2. Your strength?\nProblem solving."}`))
	}))
	t.Cleanup(upstreamSrv.Close)

	bridge := upstream.NewDispatcher(upstream.Config{BaseURL: upstreamSrv.URL}, nil)
	gens := NewMemoryRepo()
	env := newTestEnv(t, bridge, gens)
	token := env.token(t, "owner-1", "user")

	req := multipartRequest(t, "/api/v1/generations/interview-answers", map[string]string{
		"resume_id":    "resume-1",
		"role":         "Engineer",
		"company_name": "Acme",
		"questions":    `["Why this role?", "Your strength?"]`,
	}, nil)
	resp, body := env.do(req, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	got, ok := body["answers"].([]any)
	require.True(t, ok)
	require.Len(t, got, 2)
	first := got[0].(map[string]any)
	assert.Equal(t, "Why this role?", first["question"])
	assert.Equal(t, "Because I love it.", first["answer"])

	id, _ := body["generationId"].(string)
	require.NotEmpty(t, id)

	getResp, detail := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+id, nil), token)
	require.Equal(t, http.StatusOK, getResp.Code)
	assert.Len(t, detail["answers"], 2)
	assert.Equal(t, "interview_answers", detail["task"])

	otherResp, _ := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/generations/"+id, nil), env.token(t, "someone", "user"))
	assert.Equal(t, http.StatusForbidden, otherResp.Code)
}

func TestUnparseableSuccessBodyIsBadGatewayAndNotStored(t *testing.T) {
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("\x00\x01garbage{not json"))
	}))
	t.Cleanup(upstreamSrv.Close)

	bridge := upstream.NewDispatcher(upstream.Config{BaseURL: upstreamSrv.URL}, nil)
	gens := NewMemoryRepo()
	env := newTestEnv(t, bridge, gens)
	token := env.token(t, "owner-1", "user")

	cases := []struct {
		path   string
		fields map[string]string
	}{
		{"/api/v1/generations/score", map[string]string{"resume_id": "resume-1", "job_description": "Go"}},
		{"/api/v1/generations/interview-answers", map[string]string{
			"resume_id":    "resume-1",
			"role":         "Engineer",
			"company_name": "Acme",
			"questions":    "Why this role?",
		}},
	}
	for _, tc := range cases {
		resp, body := env.do(multipartRequest(t, tc.path, tc.fields, nil), token)
		assert.Equal(t, http.StatusBadGateway, resp.Code, tc.path)
		assert.Equal(t, false, body["success"], tc.path)
		assert.Equal(t, upstream.MsgInvalidResponse, body["message"], tc.path)
	}

	history, err := gens.ListByUser(context.Background(), "owner-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

type brokenAnswersRepo struct{ *MemoryRepo }

func (brokenAnswersRepo) CreateAnswer(context.Context, Answer) error { return errors.New("disk full") }

type brokenRequestsRepo struct{ *MemoryRepo }

func (brokenRequestsRepo) CreateRequest(context.Context, Request) error {
	return errors.New("db down")
}

func TestInterviewPersistenceFailureIsFatal(t *testing.T) {
	bridge := &countingBridge{payload: payloadOf(`{"Why us?": "Mission."}`)}
	env := newTestEnv(t, bridge, brokenAnswersRepo{NewMemoryRepo()})

	req := multipartRequest(t, "/api/v1/generations/interview-answers", map[string]string{
		"resume_id": "resume-1", "role": "SRE", "company_name": "Acme", "questions": "Why us?",
	}, nil)
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, false, body["success"])
}

func TestScorePersistenceFailureIsNotFatal(t *testing.T) {
	bridge := &countingBridge{payload: payloadOf(`{"score": 91}`)}
	env := newTestEnv(t, bridge, brokenRequestsRepo{NewMemoryRepo()})

	req := multipartRequest(t, "/api/v1/generations/score", map[string]string{"resume_id": "resume-1", "job_description": "Go"}, nil)
	resp, body := env.do(req, env.token(t, "owner-1", ""))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, float64(91), body["score"])
	assert.Equal(t, "", body["generationId"])
}

func TestHistoryRequiresLogin(t *testing.T) {
	env := newTestEnv(t, &countingBridge{}, nil)
	resp, _ := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/generations", nil), "")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func payloadOf(raw string) upstream.Payload {
	p, err := upstream.Classify(upstream.DefaultSpecs(upstream.Config{})[upstream.TaskScore], http.StatusOK, nil, []byte(raw))
	if err != nil {
		panic(err)
	}
	return p
}
