// Package worker drives the wishlist lifecycle: on a fixed interval, or on an
// explicit trigger, it claims pending items, runs the search and submission
// capabilities, and persists the lifecycle engine's decisions.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/mvdbosch/bookwish/internal/lifecycle"
	"github.com/mvdbosch/bookwish/internal/logger"
	"github.com/mvdbosch/bookwish/internal/model"
	"github.com/mvdbosch/bookwish/internal/search"
	"github.com/mvdbosch/bookwish/internal/submit"
)

// Store is the subset of the persistent store the worker needs.
type Store interface {
	ListPending(ctx context.Context, limit int) ([]model.Item, error)
	ApplyDecision(ctx context.Context, id, fromStatus string, d lifecycle.Decision) (*model.Item, error)
	TrimLogs(ctx context.Context, keep int) (int64, error)
}

// Options configure the worker loop.
type Options struct {
	// Interval between timer-driven cycles.
	Interval time.Duration
	// BatchSize bounds how many pending items one cycle may process.
	BatchSize int
	// SearchTimeout bounds each indexer call.
	SearchTimeout time.Duration
	// SubmitTimeout bounds each download-manager call.
	SubmitTimeout time.Duration
	// ItemPause is the delay between items within a cycle.
	ItemPause time.Duration
	// LogRetention keeps this many activity log entries; 0 disables trimming.
	LogRetention int
}

// Worker owns the polling loop. At most one cycle runs at a time.
type Worker struct {
	store     Store
	searcher  search.Searcher
	submitter submit.Submitter
	log       logger.Logger
	opts      Options

	trigger chan struct{}
	busy    atomic.Bool
}

// New creates a Worker.
func New(store Store, searcher search.Searcher, submitter submit.Submitter, log logger.Logger, opts Options) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 30 * time.Second
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = 30 * time.Second
	}
	return &Worker{
		store:     store,
		searcher:  searcher,
		submitter: submitter,
		log:       log,
		opts:      opts,
		trigger:   make(chan struct{}, 1),
	}
}

// Start runs the loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("worker started",
		logger.Duration("interval", w.opts.Interval),
		logger.Int("batch_size", w.opts.BatchSize))

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
			w.RunCycle(ctx)
		case <-w.trigger:
			w.RunCycle(ctx)
		}
	}
}

// TriggerNow requests an immediate cycle. It returns model.ErrBusy when a
// cycle is already running or queued; triggers never join or cancel a running
// cycle.
func (w *Worker) TriggerNow() error {
	if w.busy.Load() {
		return model.ErrBusy
	}
	select {
	case w.trigger <- struct{}{}:
		return nil
	default:
		return model.ErrBusy
	}
}

// RunCycle processes one batch of pending items. Overlapping invocations
// degrade to a no-op: the busy flag keeps a second cycle out, and the
// conditional claim in the store protects each item even if two processes
// race.
func (w *Worker) RunCycle(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		return
	}
	defer w.busy.Store(false)

	items, err := w.store.ListPending(ctx, w.opts.BatchSize)
	if err != nil {
		// Store unreachable: give up on this tick, the next one retries.
		w.log.Error("list pending failed, skipping cycle", logger.Error(err))
		return
	}
	if len(items) == 0 {
		return
	}

	w.log.Info("cycle started", logger.Int("pending", len(items)))

	for i, item := range items {
		if ctx.Err() != nil {
			return
		}
		w.processItem(ctx, item)

		if w.opts.ItemPause > 0 && i < len(items)-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.opts.ItemPause):
			}
		}
	}

	if w.opts.LogRetention > 0 {
		if _, err := w.store.TrimLogs(ctx, w.opts.LogRetention); err != nil {
			w.log.Warn("log trim failed", logger.Error(err))
		}
	}
}

// processItem runs the full attempt for one item. Failures stay scoped to the
// item; the cycle always moves on.
func (w *Worker) processItem(ctx context.Context, item model.Item) {
	claim, err := lifecycle.Decide(item, lifecycle.NotAttempted())
	if err != nil {
		w.log.Warn("claim decision rejected", logger.String("item_id", item.ID), logger.Error(err))
		return
	}

	claimed, err := w.store.ApplyDecision(ctx, item.ID, model.StatusPending, claim)
	switch {
	case errors.Is(err, model.ErrConflict):
		// Another cycle got there first.
		w.log.Debug("claim lost, skipping", logger.String("item_id", item.ID))
		return
	case errors.Is(err, model.ErrNotFound):
		// Deleted between select and claim.
		return
	case err != nil:
		w.log.Error("claim failed", logger.String("item_id", item.ID), logger.Error(err))
		return
	}

	w.log.Info("searching",
		logger.String("item_id", claimed.ID),
		logger.String("author", claimed.Author),
		logger.String("title", claimed.Title))

	outcome := w.attempt(ctx, *claimed)

	decision, err := lifecycle.Decide(*claimed, outcome)
	if err != nil {
		w.log.Error("decision rejected", logger.String("item_id", claimed.ID), logger.Error(err))
		return
	}

	if _, err := w.store.ApplyDecision(ctx, claimed.ID, model.StatusSearching, decision); err != nil {
		w.log.Error("persist decision failed", logger.String("item_id", claimed.ID), logger.Error(err))
		return
	}

	w.log.Info("item processed",
		logger.String("item_id", claimed.ID),
		logger.String("status", decision.NextStatus))
}

// attempt runs the search and, on candidates, the submission. Each call
// carries its own timeout; a timeout surfaces as a search error or a
// rejection, never as a hung cycle.
func (w *Worker) attempt(ctx context.Context, item model.Item) lifecycle.Outcome {
	sctx, cancel := context.WithTimeout(ctx, w.opts.SearchTimeout)
	defer cancel()

	candidates, err := w.searcher.Search(sctx, item.Author, item.Title)
	if err != nil {
		return lifecycle.SearchError(err.Error())
	}
	if len(candidates) == 0 {
		return lifecycle.NoMatch()
	}

	if _, err := lifecycle.Decide(item, lifecycle.Candidates()); err != nil {
		return lifecycle.SearchError(err.Error())
	}

	// The capability ranks; the engine takes the top candidate and does not
	// fall back to the next one on rejection.
	best := candidates[0]
	w.log.Info("candidate found",
		logger.String("item_id", item.ID),
		logger.String("release", best.Title))

	subctx, cancel := context.WithTimeout(ctx, w.opts.SubmitTimeout)
	defer cancel()

	ref, err := w.submitter.Submit(subctx, best, item.Author+" - "+item.Title)
	if err != nil {
		return lifecycle.SubmitRejected(err.Error())
	}
	return lifecycle.SubmitAccepted(ref)
}
