package generations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"resume-bridge/internal/resumes"
	"resume-bridge/internal/upstream"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// CreateRequest inserts the parent row.
func (r *PGRepo) CreateRequest(ctx context.Context, req Request) error {
	params, err := json.Marshal(req.Params)
	if err != nil {
		return err
	}
	var result interface{}
	if len(req.Result) > 0 {
		result = []byte(req.Result)
	}

	const query = `
INSERT INTO generation_requests (
	id, user_id, task, resume_source, resume_id, file_name, file_checksum, params, result, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = r.DB.ExecContext(ctx, query,
		req.ID,
		req.UserID,
		string(req.Task),
		string(req.ResumeSource),
		nullString(req.ResumeID),
		nullString(req.FileName),
		nullString(req.FileChecksum),
		params,
		result,
		req.CreatedAt,
	)
	return err
}

// CreateAnswer inserts one child row.
func (r *PGRepo) CreateAnswer(ctx context.Context, answer Answer) error {
	const query = `
INSERT INTO generation_answers (id, request_id, position, question, answer, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		answer.ID,
		answer.RequestID,
		answer.Position,
		answer.Question,
		answer.Answer,
		answer.CreatedAt,
	)
	return err
}

const requestColumns = `id, user_id, task, resume_source, resume_id, file_name, file_checksum, params, result, created_at`

func (r *PGRepo) GetByID(ctx context.Context, id string) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM generation_requests WHERE id = $1 LIMIT 1`
	req, err := scanRequest(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// ListByUser lists requests ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + requestColumns + `
FROM generation_requests
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (r *PGRepo) ListAnswers(ctx context.Context, requestID string) ([]Answer, error) {
	const query = `
SELECT id, request_id, position, question, answer, created_at
FROM generation_answers
WHERE request_id = $1
ORDER BY position ASC`

	rows, err := r.DB.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.RequestID, &a.Position, &a.Question, &a.Answer, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var (
		req                          Request
		task, source                 string
		resumeID, fileName, checksum sql.NullString
		params, result               []byte
	)
	if err := row.Scan(
		&req.ID,
		&req.UserID,
		&task,
		&source,
		&resumeID,
		&fileName,
		&checksum,
		&params,
		&result,
		&req.CreatedAt,
	); err != nil {
		return Request{}, err
	}
	req.Task = upstream.Task(task)
	req.ResumeSource = resumes.SourceKind(source)
	req.ResumeID = resumeID.String
	req.FileName = fileName.String
	req.FileChecksum = checksum.String
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req.Params); err != nil {
			return Request{}, err
		}
	}
	if len(result) > 0 {
		req.Result = json.RawMessage(result)
	}
	return req, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
