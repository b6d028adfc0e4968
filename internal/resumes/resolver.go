package resumes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMinChars is the shortest stored resume text the upstream can work with.
const DefaultMinChars = 100

// SourceKind names the resume source a request resolved to. The values are
// part of the public response contract.
type SourceKind string

const (
	SourceUploaded SourceKind = "uploaded_file"
	SourceStored   SourceKind = "existing_resume"
)

// Source is the raw, unvalidated resume input of a request.
type Source struct {
	File        []byte
	FileName    string
	ContentType string
	ResumeID    string
}

// Descriptor is the resolved resume: exactly one of the uploaded file or the
// stored resume is populated, as indicated by Kind.
type Descriptor struct {
	Kind        SourceKind
	File        []byte
	FileName    string
	ContentType string
	ResumeID    string
	Text        string
}

// Uploaded reports whether the descriptor carries raw file bytes.
func (d Descriptor) Uploaded() bool {
	return d.Kind == SourceUploaded
}

// Resolver picks the resume source for a request and enforces access control.
type Resolver struct {
	Repo     Repo
	MinChars int
}

// NewResolver constructs a Resolver. A non-positive minChars uses DefaultMinChars.
func NewResolver(repo Repo, minChars int) *Resolver {
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &Resolver{Repo: repo, MinChars: minChars}
}

// Resolve validates the exactly-one-source invariant and loads stored text.
func (r *Resolver) Resolve(ctx context.Context, src Source, requester Requester) (Descriptor, error) {
	hasFile := len(src.File) > 0 || strings.TrimSpace(src.FileName) != ""
	resumeID := strings.TrimSpace(src.ResumeID)
	hasID := resumeID != ""

	switch {
	case hasFile && hasID:
		return Descriptor{}, ErrBothSourcesProvided
	case !hasFile && !hasID:
		return Descriptor{}, ErrNoSourceProvided
	case hasFile:
		if len(src.File) == 0 {
			return Descriptor{}, fmt.Errorf("%w: uploaded file is empty", ErrInvalidInput)
		}
		return Descriptor{
			Kind:        SourceUploaded,
			File:        src.File,
			FileName:    src.FileName,
			ContentType: src.ContentType,
		}, nil
	}

	if r.Repo == nil {
		return Descriptor{}, errors.New("resume repository not configured")
	}
	resume, err := r.Repo.GetByID(ctx, resumeID)
	if err != nil {
		if errors.Is(err, ErrResumeNotFound) {
			return Descriptor{}, ErrResumeNotFound
		}
		return Descriptor{}, fmt.Errorf("load resume %s: %w", resumeID, err)
	}
	if Decide(resume, requester) != Allowed {
		return Descriptor{}, ErrAccessDenied
	}

	text := strings.TrimSpace(resume.Text)
	if utf8.RuneCountInString(text) < r.minChars() {
		return Descriptor{}, ErrResumeTextTooShort
	}

	return Descriptor{
		Kind:     SourceStored,
		ResumeID: resume.ID,
		FileName: resume.FileName,
		Text:     text,
	}, nil
}

func (r *Resolver) minChars() int {
	if r.MinChars <= 0 {
		return DefaultMinChars
	}
	return r.MinChars
}
