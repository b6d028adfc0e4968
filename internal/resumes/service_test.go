package resumes

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceUploadStoresSanitizedText(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, 20)

	raw := "Jane Doe &amp; Co\r\n<b>Go engineer</b>   building   distributed systems for ten years."
	resume, err := svc.Upload(context.Background(), "user-1", "cv.txt", "text/plain", []byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe & Co\nGo engineer building distributed systems for ten years.", resume.Text)
	assert.Equal(t, "text/plain", resume.MimeType)

	stored, err := repo.GetByID(context.Background(), resume.ID)
	require.NoError(t, err)
	assert.Equal(t, resume.Text, stored.Text)
}

func TestServiceUploadRejects(t *testing.T) {
	svc := NewService(NewMemoryRepo(), 50)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "user-1", "cv.txt", "text/plain", []byte("too short"))
	assert.ErrorIs(t, err, ErrResumeTextTooShort)

	_, err = svc.Upload(ctx, "user-1", "../cv.txt", "text/plain", []byte(strings.Repeat("a", 60)))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, "", "cv.txt", "text/plain", []byte(strings.Repeat("a", 60)))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upload(ctx, "user-1", "cv.bin", "image/png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestServiceGetAppliesAccessRule(t *testing.T) {
	repo := NewMemoryRepo()
	seedResume(t, repo, "r-1", "owner", strings.Repeat("text ", 30))
	svc := NewService(repo, 0)
	ctx := context.Background()

	_, err := svc.Get(ctx, "r-1", Requester{ID: "owner"})
	assert.NoError(t, err)
	_, err = svc.Get(ctx, "r-1", Requester{ID: "admin-1", Role: RoleAdministrator})
	assert.NoError(t, err)
	_, err = svc.Get(ctx, "r-1", Requester{ID: "other", Role: RoleUser})
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = svc.Get(ctx, "missing", Requester{ID: "owner"})
	assert.ErrorIs(t, err, ErrResumeNotFound)
}
