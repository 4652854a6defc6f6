package store

import (
	"context"

	"github.com/mvdbosch/bookwish/internal/lifecycle"
	"github.com/mvdbosch/bookwish/internal/model"
)

// ItemReader provides read access to items.
type ItemReader interface {
	GetItem(ctx context.Context, id string) (*model.ItemWithLogs, error)
	ListItems(ctx context.Context, f model.ItemFilter) ([]model.Item, error)
	CountByStatus(ctx context.Context) (model.StatusCounts, error)
}

// ItemWriter provides write access to items.
type ItemWriter interface {
	CreateItem(ctx context.Context, item model.Item) error
	DeleteItem(ctx context.Context, id string) error
	BulkDeleteByStatus(ctx context.Context, status string) (int64, error)
}

// ItemClaimer provides the conditional transitions used by the worker cycle.
// ApplyDecision succeeds only when the item is still in fromStatus, which is
// the mechanism enforcing at-most-one-concurrent-search-per-item.
type ItemClaimer interface {
	ListPending(ctx context.Context, limit int) ([]model.Item, error)
	ApplyDecision(ctx context.Context, id, fromStatus string, d lifecycle.Decision) (*model.Item, error)
	ResetStaleSearching(ctx context.Context) (int64, error)
}

// LogStore provides access to the append-only activity log.
type LogStore interface {
	AppendLog(ctx context.Context, e model.LogEntry) error
	ListLogs(ctx context.Context, itemID *string, limit int) ([]model.LogEntry, error)
	TrimLogs(ctx context.Context, keep int) (int64, error)
}

// ItemRepository combines all store operations for the API layer.
type ItemRepository interface {
	ItemReader
	ItemWriter
	ItemClaimer
	LogStore
}
