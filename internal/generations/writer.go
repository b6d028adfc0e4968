package generations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"resume-bridge/internal/answers"
	"resume-bridge/internal/shared/telemetry"
	"resume-bridge/internal/upstream"
)

// Writer records a request and its normalized answers.
type Writer struct {
	Repo Repo
	Now  func() time.Time
}

// NewWriter constructs a Writer.
func NewWriter(repo Repo) *Writer {
	return &Writer{Repo: repo, Now: time.Now}
}

// Persist creates the parent row, then every answer row concurrently. Only
// interview generations are expected to carry answer rows; an empty set there
// is logged as a warning. Any
// failed insert fails the whole call; rows already written are left to the
// store and to cascading deletes of the parent.
func (w *Writer) Persist(ctx context.Context, req Request, items []answers.Answer) (Request, []Answer, error) {
	now := w.now()
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if err := w.Repo.CreateRequest(ctx, req); err != nil {
		return Request{}, nil, fmt.Errorf("create generation request: %w", err)
	}

	if len(items) == 0 {
		if req.Task != upstream.TaskInterviewAnswers {
			return req, nil, nil
		}
		telemetry.Warn("generation.no_answers", map[string]any{
			"generation_id": req.ID,
			"task":          string(req.Task),
		})
		return req, nil, nil
	}

	rows := make([]Answer, len(items))
	for i, item := range items {
		rows[i] = Answer{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			Position:  i,
			Question:  item.Question,
			Answer:    item.Answer,
			CreatedAt: now,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range rows {
		row := rows[i]
		g.Go(func() error {
			return w.Repo.CreateAnswer(gctx, row)
		})
	}
	if err := g.Wait(); err != nil {
		return req, nil, fmt.Errorf("create generation answers: %w", err)
	}
	return req, rows, nil
}

func (w *Writer) now() time.Time {
	if w.Now == nil {
		return time.Now().UTC()
	}
	return w.Now().UTC()
}
