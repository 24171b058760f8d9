package convo

import (
	"context"
	"time"

	"bot-crm/internal/ai"
	"bot-crm/internal/quote"
	"bot-crm/internal/repo"
)

// CustomerDirectory looks up and registers customers. Create returns the
// existing record together with repo.ErrDuplicate when the phone is taken.
type CustomerDirectory interface {
	LookupByPhone(ctx context.Context, phone string) (*repo.Customer, error)
	SearchByName(ctx context.Context, name string) ([]repo.Customer, error)
	Create(ctx context.Context, in repo.NewCustomer) (*repo.Customer, error)
}

// Catalog queries stock.
type Catalog interface {
	Query(ctx context.Context, f repo.ItemFilter) ([]repo.Item, error)
}

// TaskStore creates tasks.
type TaskStore interface {
	Create(ctx context.Context, in repo.NewTask) (*repo.Task, error)
}

// QuotationGenerator prices, numbers and stores a quotation draft.
type QuotationGenerator interface {
	Generate(ctx context.Context, d quote.Draft) (*quote.Result, error)
}

// Assistant answers unmatched messages.
type Assistant interface {
	Ask(ctx context.Context, q ai.Query) ai.Reply
}

// MessageLog records chat traffic.
type MessageLog interface {
	InsertMessage(ctx context.Context, rec repo.MessageRecord) error
}

// RateLimiter is a fixed-window counter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
