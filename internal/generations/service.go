package generations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"

	"resume-bridge/internal/answers"
	"resume-bridge/internal/resumes"
	"resume-bridge/internal/sanitize"
	"resume-bridge/internal/shared/metrics"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/shared/util"
	"resume-bridge/internal/upstream"
)

// Bridge performs one upstream call. *upstream.Dispatcher satisfies it.
type Bridge interface {
	Dispatch(ctx context.Context, call upstream.Call) (upstream.Payload, error)
}

// Service runs the three generation tasks: resolve the resume, call the
// backend, shape and store the result.
type Service struct {
	Resolver *resumes.Resolver
	Bridge   Bridge
	Writer   *Writer
	Repo     Repo
}

// NewService constructs a Service.
func NewService(resolver *resumes.Resolver, bridge Bridge, repo Repo) *Service {
	return &Service{
		Resolver: resolver,
		Bridge:   bridge,
		Writer:   NewWriter(repo),
		Repo:     repo,
	}
}

// Common carries the inputs every task shares.
type Common struct {
	Requester resumes.Requester
	Source    resumes.Source
	RequestID string
}

// ScoreInput requests an ATS evaluation against a job description.
type ScoreInput struct {
	Common
	JobDescription string
	JobTitle       string
	CompanyName    string
}

// ScoreResult is the evaluated score plus the raw backend payload.
type ScoreResult struct {
	GenerationID    string             `json:"generationId,omitempty"`
	Source          resumes.SourceKind `json:"source"`
	Score           float64            `json:"score"`
	Summary         string             `json:"summary,omitempty"`
	MatchedKeywords []string           `json:"matchedKeywords"`
	MissingKeywords []string           `json:"missingKeywords"`
	Data            json.RawMessage    `json:"data"`
}

// ColdEmailInput requests a cold email draft.
type ColdEmailInput struct {
	Common
	RecipientName  string
	RecipientRole  string
	CompanyName    string
	SenderName     string
	JobTitle       string
	Tone           string
	WordLimit      string
	AdditionalInfo string
}

// ColdEmailResult is the generated email.
type ColdEmailResult struct {
	GenerationID string             `json:"generationId,omitempty"`
	Source       resumes.SourceKind `json:"source"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
}

// InterviewInput requests answers to interview questions.
type InterviewInput struct {
	Common
	Role           string
	CompanyName    string
	Questions      []string
	JobDescription string
	WordLimit      string
}

// InterviewResult is the normalized, stored answer set.
type InterviewResult struct {
	GenerationID string             `json:"generationId"`
	Source       resumes.SourceKind `json:"source"`
	Answers      []answers.Answer   `json:"answers"`
}

// Score evaluates a resume. A failure to store the result is logged only.
func (s *Service) Score(ctx context.Context, in ScoreInput) (ScoreResult, error) {
	if strings.TrimSpace(in.JobDescription) == "" {
		return ScoreResult{}, fmt.Errorf("%w: job_description is required", ErrInvalidInput)
	}
	fields := []upstream.Field{
		{Name: "job_description", Value: in.JobDescription},
		{Name: "job_title", Value: in.JobTitle},
		{Name: "company_name", Value: in.CompanyName},
	}
	desc, payload, err := s.call(ctx, upstream.TaskScore, in.Common, fields)
	if err != nil {
		return ScoreResult{}, err
	}

	res, err := decodeScore(payload)
	if err != nil {
		return ScoreResult{}, s.contractViolation(upstream.TaskScore, payload, err)
	}
	res.Source = desc.Kind

	req := newRequest(upstream.TaskScore, in.Common, desc, fieldParams(fields))
	req.Result = payload.Body
	if stored, _, err := s.Writer.Persist(ctx, req, nil); err != nil {
		s.persistFailed(upstream.TaskScore, err)
	} else {
		res.GenerationID = stored.ID
	}
	metrics.IncGenerationSucceeded(string(upstream.TaskScore))
	return res, nil
}

// ColdEmail drafts an email. A failure to store the result is logged only.
func (s *Service) ColdEmail(ctx context.Context, in ColdEmailInput) (ColdEmailResult, error) {
	if err := required(map[string]string{
		"recipient_name": in.RecipientName,
		"company_name":   in.CompanyName,
		"sender_name":    in.SenderName,
	}); err != nil {
		return ColdEmailResult{}, err
	}
	fields := []upstream.Field{
		{Name: "recipient_name", Value: in.RecipientName},
		{Name: "recipient_role", Value: in.RecipientRole},
		{Name: "company_name", Value: in.CompanyName},
		{Name: "sender_name", Value: in.SenderName},
		{Name: "job_title", Value: in.JobTitle},
		{Name: "tone", Value: in.Tone},
		{Name: "word_limit", Value: in.WordLimit},
		{Name: "additional_info", Value: in.AdditionalInfo},
	}
	desc, payload, err := s.call(ctx, upstream.TaskColdEmail, in.Common, fields)
	if err != nil {
		return ColdEmailResult{}, err
	}

	subject, body, err := decodeColdEmail(payload.Value)
	if err != nil {
		return ColdEmailResult{}, s.contractViolation(upstream.TaskColdEmail, payload, err)
	}
	res := ColdEmailResult{Source: desc.Kind, Subject: subject, Body: body}

	req := newRequest(upstream.TaskColdEmail, in.Common, desc, fieldParams(fields))
	req.Result, _ = json.Marshal(map[string]string{"subject": subject, "body": body})
	if stored, _, err := s.Writer.Persist(ctx, req, nil); err != nil {
		s.persistFailed(upstream.TaskColdEmail, err)
	} else {
		res.GenerationID = stored.ID
	}
	metrics.IncGenerationSucceeded(string(upstream.TaskColdEmail))
	return res, nil
}

// InterviewAnswers generates, normalizes and stores answers. The answers are
// only reachable through storage, so a failed write fails the call.
func (s *Service) InterviewAnswers(ctx context.Context, in InterviewInput) (InterviewResult, error) {
	if err := required(map[string]string{
		"role":         in.Role,
		"company_name": in.CompanyName,
	}); err != nil {
		return InterviewResult{}, err
	}
	questions := trimmed(in.Questions)
	if len(questions) == 0 {
		return InterviewResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, answers.ErrNoQuestions)
	}
	encoded, err := json.Marshal(questions)
	if err != nil {
		return InterviewResult{}, err
	}
	fields := []upstream.Field{
		{Name: "role", Value: in.Role},
		{Name: "company_name", Value: in.CompanyName},
		{Name: "questions", Value: string(encoded)},
		{Name: "job_description", Value: in.JobDescription},
		{Name: "word_limit", Value: in.WordLimit},
	}
	desc, payload, err := s.call(ctx, upstream.TaskInterviewAnswers, in.Common, fields)
	if err != nil {
		return InterviewResult{}, err
	}

	pairs := answers.Normalize(payload.Value, questions)

	params := fieldParams(fields)
	params["questions"] = questions
	req := newRequest(upstream.TaskInterviewAnswers, in.Common, desc, params)
	req.Result = payload.Body
	stored, _, err := s.Writer.Persist(ctx, req, pairs)
	if err != nil {
		s.persistFailed(upstream.TaskInterviewAnswers, err)
		metrics.IncGenerationFailed(string(upstream.TaskInterviewAnswers), "persistence")
		return InterviewResult{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.IncGenerationSucceeded(string(upstream.TaskInterviewAnswers))
	return InterviewResult{GenerationID: stored.ID, Source: desc.Kind, Answers: pairs}, nil
}

// call resolves the resume and performs the upstream call.
func (s *Service) call(ctx context.Context, task upstream.Task, common Common, fields []upstream.Field) (resumes.Descriptor, upstream.Payload, error) {
	metrics.IncGenerationStarted(string(task))

	desc, err := s.Resolver.Resolve(ctx, common.Source, common.Requester)
	if err != nil {
		metrics.IncGenerationFailed(string(task), "validation")
		return resumes.Descriptor{}, upstream.Payload{}, err
	}

	payload, err := s.Bridge.Dispatch(ctx, upstream.Call{
		Task:      task,
		Resume:    desc,
		Fields:    fields,
		RequestID: common.RequestID,
	})
	if err != nil {
		kind := string(upstream.KindInternal)
		logFields := map[string]any{"task": string(task), "request_id": common.RequestID, "error": err}
		if f, ok := upstream.AsFailure(err); ok {
			kind = string(f.Kind)
			logFields["status"] = f.Status
			logFields["content_type"] = f.ContentType
			logFields["body_preview"] = f.BodyPreview
		}
		metrics.IncGenerationFailed(string(task), kind)
		telemetry.Warn("generation.upstream_failed", logFields)
		return resumes.Descriptor{}, upstream.Payload{}, err
	}
	return desc, payload, nil
}

func (s *Service) contractViolation(task upstream.Task, payload upstream.Payload, cause error) *upstream.Failure {
	f := upstream.ContractViolation(cause.Error())
	f.ContentType = payload.ContentType
	f.BodyPreview = upstream.Preview(payload.Body)
	metrics.IncGenerationFailed(string(task), string(f.Kind))
	telemetry.Warn("generation.contract_violation", map[string]any{
		"task":         string(task),
		"detail":       f.Detail,
		"body_preview": f.BodyPreview,
	})
	return f
}

func (s *Service) persistFailed(task upstream.Task, err error) {
	metrics.IncPersistenceFailed(string(task))
	telemetry.Error("generation.persist_failed", map[string]any{
		"task":  string(task),
		"error": err,
	})
}

// History returns the caller's recent generations.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// Get returns one generation with its answers. Owners and elevated roles
// may read it.
func (s *Service) Get(ctx context.Context, id string, requester resumes.Requester) (Request, []Answer, error) {
	req, err := s.Repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return Request{}, nil, err
	}
	if req.UserID != requester.ID && !requester.Role.Elevated() {
		return Request{}, nil, ErrForbidden
	}
	items, err := s.Repo.ListAnswers(ctx, req.ID)
	if err != nil {
		return Request{}, nil, err
	}
	return req, items, nil
}

func newRequest(task upstream.Task, common Common, desc resumes.Descriptor, params map[string]any) Request {
	req := Request{
		UserID:       common.Requester.ID,
		Task:         task,
		ResumeSource: desc.Kind,
		ResumeID:     desc.ResumeID,
		FileName:     desc.FileName,
		Params:       params,
		CreatedAt:    time.Now().UTC(),
	}
	if desc.Uploaded() {
		req.FileChecksum = util.Checksum(desc.File)
	}
	return req
}

func fieldParams(fields []upstream.Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(f.Value); v != "" {
			out[f.Name] = v
		}
	}
	return out
}

func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s required", ErrInvalidInput, strings.Join(missing, ", "))
}

func trimmed(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// scoreFields are the loosely typed fields of a score payload.
type scoreFields struct {
	Score           *float64      `mapstructure:"score"`
	ATSScore        *float64      `mapstructure:"ats_score"`
	MatchScore      *float64      `mapstructure:"match_score"`
	Summary         interface{}   `mapstructure:"summary"`
	Feedback        interface{}   `mapstructure:"feedback"`
	MatchedKeywords []interface{} `mapstructure:"matched_keywords"`
	MissingKeywords []interface{} `mapstructure:"missing_keywords"`
}

var errMissingScore = errors.New("score payload has no numeric score")

func decodeScore(payload upstream.Payload) (ScoreResult, error) {
	raw, ok := payload.Value.Value().(map[string]interface{})
	if !ok {
		return ScoreResult{}, errors.New("score payload is not an object")
	}
	var fields scoreFields
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return ScoreResult{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return ScoreResult{}, fmt.Errorf("decode score payload: %w", err)
	}

	score, ok := firstScore(fields, payload.Value)
	if !ok {
		return ScoreResult{}, errMissingScore
	}
	summary, _ := fields.Summary.(string)
	if summary == "" {
		summary, _ = fields.Feedback.(string)
	}
	res := ScoreResult{
		Score:           score,
		Summary:         sanitize.Text(summary),
		MatchedKeywords: keywords(fields.MatchedKeywords),
		MissingKeywords: keywords(fields.MissingKeywords),
		Data:            json.RawMessage(payload.Body),
	}
	return res, nil
}

func firstScore(fields scoreFields, doc gjson.Result) (float64, bool) {
	for _, v := range []*float64{fields.Score, fields.ATSScore, fields.MatchScore} {
		if v != nil {
			return *v, true
		}
	}
	nested := doc.Get("data.score")
	switch nested.Type {
	case gjson.Number:
		return nested.Float(), true
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(nested.Str), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

var coldEmailBodyPaths = []string{"body", "email", "content", "email.body", "data.body", "data.email"}

func decodeColdEmail(doc gjson.Result) (string, string, error) {
	if !doc.IsObject() {
		return "", "", errors.New("cold email payload is not an object")
	}
	var body string
	for _, path := range coldEmailBodyPaths {
		v := doc.Get(path)
		if v.Type == gjson.String {
			if body = sanitize.Text(v.Str); body != "" {
				break
			}
		}
	}
	if body == "" {
		return "", "", errors.New("cold email payload has no body")
	}
	subject := doc.Get("subject")
	if !subject.Exists() {
		subject = doc.Get("email.subject")
	}
	if !subject.Exists() {
		subject = doc.Get("data.subject")
	}
	return sanitize.Text(subject.String()), body, nil
}

// keywords keeps the non-blank string entries of a keyword list.
func keywords(items []interface{}) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
