package generations

import (
	"encoding/json"
	"time"

	"resume-bridge/internal/resumes"
	"resume-bridge/internal/upstream"
)

// Request is the immutable record of one bridge invocation.
type Request struct {
	ID           string
	UserID       string
	Task         upstream.Task
	ResumeSource resumes.SourceKind
	ResumeID     string
	FileName     string
	FileChecksum string
	Params       map[string]any
	Result       json.RawMessage
	CreatedAt    time.Time
}

// Answer is a normalized question/answer pair stored under a Request.
type Answer struct {
	ID        string
	RequestID string
	Position  int
	Question  string
	Answer    string
	CreatedAt time.Time
}
