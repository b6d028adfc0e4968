package resumes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resume-bridge/internal/extract"
	"resume-bridge/internal/sanitize"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/shared/util"
)

// Service stores uploaded resumes as extracted, sanitized text.
type Service struct {
	Repo     Repo
	MinChars int
	Now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, minChars int) *Service {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Service{Repo: repo, MinChars: minChars, Now: time.Now}
}

// Upload extracts the text of an uploaded file and stores it for ownerID.
func (s *Service) Upload(ctx context.Context, ownerID, fileName, contentType string, data []byte) (Resume, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Resume{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(data) == 0 {
		return Resume{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}

	mime := extract.DetectMime(data, contentType, name)
	raw, err := extract.Text(ctx, data, contentType, name)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return Resume{}, fmt.Errorf("extract resume text: %w", err)
	}
	text := sanitize.Text(raw)
	if utf8.RuneCountInString(text) < s.MinChars {
		return Resume{}, ErrResumeTextTooShort
	}

	resume := Resume{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		FileName:  name,
		MimeType:  mime,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.Repo.Create(ctx, resume); err != nil {
		return Resume{}, err
	}
	telemetry.Info("resume.stored", map[string]any{
		"resume_id": resume.ID,
		"owner_id":  ownerID,
		"mime_type": mime,
		"chars":     utf8.RuneCountInString(text),
		"checksum":  util.Checksum(data),
	})
	return resume, nil
}

// Get returns a resume the requester may read.
func (s *Service) Get(ctx context.Context, id string, requester Requester) (Resume, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resume{}, ErrResumeNotFound
	}
	resume, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Resume{}, err
	}
	if Decide(resume, requester) != Allowed {
		return Resume{}, ErrAccessDenied
	}
	return resume, nil
}

// List returns the requester's own resumes, newest first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Resume, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
