package generations

import "context"

// Repo defines persistence operations for generation requests and answers.
type Repo interface {
	CreateRequest(ctx context.Context, req Request) error
	CreateAnswer(ctx context.Context, answer Answer) error
	GetByID(ctx context.Context, id string) (Request, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Request, error)
	ListAnswers(ctx context.Context, requestID string) ([]Answer, error)
}
