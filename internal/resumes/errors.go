package resumes

import "errors"

var (
	ErrBothSourcesProvided = errors.New("provide either a resume file or a resume id, not both")
	ErrNoSourceProvided    = errors.New("a resume file or a resume id is required")
	ErrResumeNotFound      = errors.New("resume not found")
	ErrAccessDenied        = errors.New("you do not have access to this resume")
	ErrResumeTextTooShort  = errors.New("resume text is too short to process")
	ErrInvalidInput        = errors.New("invalid input")
)
