package resumes

import "context"

// Repo defines persistence operations for stored resumes.
type Repo interface {
	Create(ctx context.Context, resume Resume) error
	GetByID(ctx context.Context, id string) (Resume, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Resume, error)
}
