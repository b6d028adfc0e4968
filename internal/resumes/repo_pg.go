package resumes

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new resume.
func (r *PGRepo) Create(ctx context.Context, resume Resume) error {
	const query = `
INSERT INTO resumes (id, owner_id, file_name, mime_type, text, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		resume.ID,
		resume.OwnerID,
		resume.FileName,
		resume.MimeType,
		resume.Text,
		resume.CreatedAt,
	)
	return err
}

// GetByID fetches a resume regardless of owner; callers apply Decide.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Resume, error) {
	const query = `
SELECT id, owner_id, file_name, mime_type, text, created_at
FROM resumes
WHERE id = $1
LIMIT 1`
	var resume Resume
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&resume.ID,
		&resume.OwnerID,
		&resume.FileName,
		&resume.MimeType,
		&resume.Text,
		&resume.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Resume{}, ErrResumeNotFound
		}
		return Resume{}, err
	}
	return resume, nil
}

// ListByOwner lists resumes ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Resume, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, owner_id, file_name, mime_type, text, created_at
FROM resumes
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Resume
	for rows.Next() {
		var resume Resume
		if err := rows.Scan(
			&resume.ID,
			&resume.OwnerID,
			&resume.FileName,
			&resume.MimeType,
			&resume.Text,
			&resume.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, resume)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
