// Package upstream bridges requests to the external generation backend: it
// picks the wire variant for the resolved resume source, performs a single
// bounded call and classifies whatever comes back.
package upstream

import "time"

// Task identifies a bridge call site.
type Task string

const (
	TaskScore            Task = "score"
	TaskColdEmail        Task = "cold_email"
	TaskInterviewAnswers Task = "interview_answers"
)

// Encoding is how the text variant carries its payload.
type Encoding int

const (
	EncodingMultipart Encoding = iota
	EncodingJSON
)

// Wire field names shared by both variants.
const (
	FieldResumeFile = "resume_file"
	FieldResumeText = "resume_text"
)

// TaskSpec describes the endpoints and limits of one task.
type TaskSpec struct {
	Task Task
	// FilePath accepts multipart uploads carrying raw resume bytes.
	FilePath string
	// TextPath accepts already extracted resume text.
	TextPath     string
	TextEncoding Encoding
	Timeout      time.Duration
	// FailureMessage is the last-resort message for unclassifiable errors.
	FailureMessage string
}

// Config configures the Dispatcher.
type Config struct {
	BaseURL          string
	APIKey           string
	ScoreTimeout     time.Duration
	ColdEmailTimeout time.Duration
	InterviewTimeout time.Duration
}

// DefaultSpecs returns the endpoint table for the configured timeouts.
func DefaultSpecs(cfg Config) map[Task]TaskSpec {
	return map[Task]TaskSpec{
		TaskScore: {
			Task:           TaskScore,
			FilePath:       "/api/v1/ats/evaluate",
			TextPath:       "/api/v2/ats/evaluate-text",
			TextEncoding:   EncodingJSON,
			Timeout:        orDefault(cfg.ScoreTimeout, 60*time.Second),
			FailureMessage: "Failed to evaluate resume against job description",
		},
		TaskColdEmail: {
			Task:           TaskColdEmail,
			FilePath:       "/api/v1/cold-email/generate",
			TextPath:       "/api/v1/cold-email/generate-text",
			TextEncoding:   EncodingMultipart,
			Timeout:        orDefault(cfg.ColdEmailTimeout, 30*time.Second),
			FailureMessage: "Failed to generate cold email",
		},
		TaskInterviewAnswers: {
			Task:           TaskInterviewAnswers,
			FilePath:       "/api/v1/interview/answers",
			TextPath:       "/api/v2/interview/answers-text",
			TextEncoding:   EncodingJSON,
			Timeout:        orDefault(cfg.InterviewTimeout, 30*time.Second),
			FailureMessage: "Failed to generate interview answers",
		},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
