package generations

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu       sync.RWMutex
	requests map[string]Request
	answers  map[string][]Answer
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		requests: make(map[string]Request),
		answers:  make(map[string][]Answer),
	}
}

func (r *MemoryRepo) CreateRequest(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = req
	return nil
}

// CreateAnswer stores an answer; the parent request must exist.
func (r *MemoryRepo) CreateAnswer(ctx context.Context, answer Answer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[answer.RequestID]; !ok {
		return fmt.Errorf("answer %s: parent request %s missing", answer.ID, answer.RequestID)
	}
	r.answers[answer.RequestID] = append(r.answers[answer.RequestID], answer)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Request, error) {
	if err := ctx.Err(); err != nil {
		return Request{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return req, nil
}

// ListByUser returns requests for a user, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var out []Request
	for _, req := range r.requests {
		if req.UserID == userID {
			out = append(out, req)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Request{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// ListAnswers returns the answers of a request ordered by position.
func (r *MemoryRepo) ListAnswers(ctx context.Context, requestID string) ([]Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := append([]Answer(nil), r.answers[requestID]...)
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
