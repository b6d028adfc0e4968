package resumes

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedResume(t *testing.T, repo *MemoryRepo, id, owner, text string) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), Resume{
		ID:        id,
		OwnerID:   owner,
		FileName:  "cv.pdf",
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}))
}

func TestResolveSourceSelection(t *testing.T) {
	repo := NewMemoryRepo()
	longText := strings.Repeat("experienced go engineer ", 10)
	seedResume(t, repo, "r-1", "user-1", longText)
	resolver := NewResolver(repo, 100)
	owner := Requester{ID: "user-1", Role: RoleUser}

	cases := []struct {
		name    string
		src     Source
		wantErr error
		want    SourceKind
	}{
		{name: "both", src: Source{File: []byte("pdf"), FileName: "cv.pdf", ResumeID: "r-1"}, wantErr: ErrBothSourcesProvided},
		{name: "neither", src: Source{ResumeID: "   "}, wantErr: ErrNoSourceProvided},
		{name: "empty upload", src: Source{FileName: "cv.pdf"}, wantErr: ErrInvalidInput},
		{name: "uploaded", src: Source{File: []byte("pdf"), FileName: "cv.pdf"}, want: SourceUploaded},
		{name: "stored", src: Source{ResumeID: " r-1 "}, want: SourceStored},
		{name: "missing", src: Source{ResumeID: "nope"}, wantErr: ErrResumeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			desc, err := resolver.Resolve(context.Background(), tc.src, owner)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, desc.Kind)
		})
	}
}

func TestResolveStoredText(t *testing.T) {
	repo := NewMemoryRepo()
	text := strings.Repeat("a", 120)
	seedResume(t, repo, "r-1", "user-1", "  "+text+"  ")

	desc, err := NewResolver(repo, 0).Resolve(context.Background(), Source{ResumeID: "r-1"}, Requester{ID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, text, desc.Text)
	assert.Equal(t, "r-1", desc.ResumeID)
	assert.False(t, desc.Uploaded())
}

func TestResolveAccessControl(t *testing.T) {
	repo := NewMemoryRepo()
	seedResume(t, repo, "r-1", "owner", strings.Repeat("b", 200))
	resolver := NewResolver(repo, 100)

	_, err := resolver.Resolve(context.Background(), Source{ResumeID: "r-1"}, Requester{ID: "stranger", Role: RoleUser})
	assert.ErrorIs(t, err, ErrAccessDenied)

	for _, role := range []Role{RoleAdministrator, RoleRecruiter} {
		_, err := resolver.Resolve(context.Background(), Source{ResumeID: "r-1"}, Requester{ID: "staff", Role: role})
		assert.NoError(t, err, "role %s", role)
	}
}

func TestResolveTextTooShort(t *testing.T) {
	repo := NewMemoryRepo()
	seedResume(t, repo, "r-1", "user-1", strings.Repeat("c", 99))

	_, err := NewResolver(repo, 100).Resolve(context.Background(), Source{ResumeID: "r-1"}, Requester{ID: "user-1"})
	assert.ErrorIs(t, err, ErrResumeTextTooShort)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdministrator, ParseRole("administrator"))
	assert.Equal(t, RoleAdministrator, ParseRole("admin"))
	assert.Equal(t, RoleRecruiter, ParseRole("recruiter"))
	assert.Equal(t, RoleUser, ParseRole(""))
	assert.True(t, RoleRecruiter.Elevated())
	assert.False(t, RoleUser.Elevated())
}
