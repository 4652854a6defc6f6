package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdbosch/bookwish/internal/lifecycle"
	"github.com/mvdbosch/bookwish/internal/logger"
	"github.com/mvdbosch/bookwish/internal/model"
	"github.com/mvdbosch/bookwish/internal/search"
	"github.com/mvdbosch/bookwish/internal/store"
	"github.com/mvdbosch/bookwish/internal/submit"
)

// fakeSearcher returns canned candidates or an error.
type fakeSearcher struct {
	mu         sync.Mutex
	candidates []search.Candidate
	err        error
	block      chan struct{} // when set, Search waits until closed
	calls      int
}

func (f *fakeSearcher) Search(ctx context.Context, author, title string) ([]search.Candidate, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	cands, err := f.candidates, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return cands, err
}

type fakeSubmitter struct {
	ref  string
	err  error
	name string
}

func (f *fakeSubmitter) Submit(ctx context.Context, cand search.Candidate, name string) (string, error) {
	f.name = name
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db)
	require.NoError(t, err)
	return s
}

func addItem(t *testing.T, s *store.Store, id, author, title string) model.Item {
	t.Helper()
	item, err := model.NewItem(id, author, title, model.ViaWeb)
	require.NoError(t, err)
	require.NoError(t, s.CreateItem(context.Background(), item))
	return item
}

func newWorker(s *store.Store, searcher search.Searcher, submitter submit.Submitter) *Worker {
	return New(s, searcher, submitter, logger.NewNop(), Options{
		Interval:      time.Hour, // cycles are driven by RunCycle in tests
		SearchTimeout: 5 * time.Second,
		SubmitTimeout: 5 * time.Second,
	})
}

func TestRunCycle_Found(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "Lapidus", "Grande finale")

	searcher := &fakeSearcher{candidates: []search.Candidate{{Title: "Lapidus - Grande finale", NZBURL: "http://idx/1"}}}
	submitter := &fakeSubmitter{ref: "R1"}
	w := newWorker(s, searcher, submitter)

	w.RunCycle(ctx)

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFound, got.Status)
	require.NotNil(t, got.FoundReference)
	assert.Equal(t, "R1", *got.FoundReference)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.LastSearch)
	assert.Equal(t, "Lapidus - Grande finale", submitter.name)

	// added + search started + sent to download manager
	require.Len(t, got.Logs, 3)
	assert.Equal(t, "sent to download manager", got.Logs[0].Message)
	assert.Equal(t, model.LevelInfo, got.Logs[0].Level)
}

func TestRunCycle_NoMatchFailsWithNotFoundReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "X", "Y")

	w := newWorker(s, &fakeSearcher{}, &fakeSubmitter{})
	w.RunCycle(ctx)

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "not found in index", *got.ErrorMessage)
}

func TestRunCycle_SearchErrorIsDistinguishable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "X", "Y")

	w := newWorker(s, &fakeSearcher{err: errors.New("connection refused")}, &fakeSubmitter{})
	w.RunCycle(ctx)

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "indexer error")
	assert.NotEqual(t, "not found in index", *got.ErrorMessage)
}

func TestRunCycle_SubmitRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "X", "Y")

	searcher := &fakeSearcher{candidates: []search.Candidate{{Title: "X - Y", NZBURL: "http://idx/1"}}}
	w := newWorker(s, searcher, &fakeSubmitter{err: errors.New("disk full")})
	w.RunCycle(ctx)

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "download manager rejected")
	assert.Nil(t, got.FoundReference)
}

func TestRunCycle_ItemFailureDoesNotAbortBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "A", "One")
	addItem(t, s, "item-2", "B", "Two")

	// The search fails for every item; both must still be processed.
	w := newWorker(s, &fakeSearcher{err: errors.New("boom")}, &fakeSubmitter{})
	w.RunCycle(ctx)

	for _, id := range []string{"item-1", "item-2"} {
		got, err := s.GetItem(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFailed, got.Status, "item %s", id)
	}
}

func TestRunCycle_FailedItemsAreNotRetriedByTimer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "X", "Y")

	searcher := &fakeSearcher{}
	w := newWorker(s, searcher, &fakeSubmitter{})

	w.RunCycle(ctx)
	callsAfterFirst := searcher.calls
	w.RunCycle(ctx)

	assert.Equal(t, callsAfterFirst, searcher.calls,
		"a failed item must not be searched again without a manual retry")

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
}

func TestRunCycle_RetryThenFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	addItem(t, s, "item-1", "X", "Y")

	searcher := &fakeSearcher{}
	submitter := &fakeSubmitter{ref: "R2"}
	w := newWorker(s, searcher, submitter)

	w.RunCycle(ctx)
	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)

	// Manual retry puts it back in the queue.
	rd, err := lifecycle.Retry(got.Item)
	require.NoError(t, err)
	_, err = s.ApplyDecision(ctx, "item-1", model.StatusFailed, rd)
	require.NoError(t, err)

	// The index now has a candidate.
	searcher.mu.Lock()
	searcher.candidates = []search.Candidate{{Title: "X - Y", NZBURL: "http://idx/1"}}
	searcher.mu.Unlock()

	w.RunCycle(ctx)
	got, err = s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFound, got.Status)
	require.NotNil(t, got.FoundReference)
	assert.Equal(t, "R2", *got.FoundReference)
}

func TestTriggerNow_BusyWhileCycleRuns(t *testing.T) {
	s := newTestStore(t)
	addItem(t, s, "item-1", "X", "Y")

	block := make(chan struct{})
	searcher := &fakeSearcher{block: block}
	w := newWorker(s, searcher, &fakeSubmitter{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.RunCycle(context.Background())
	}()

	// Wait until the cycle is inside the blocked search.
	require.Eventually(t, func() bool { return w.busy.Load() }, time.Second, 5*time.Millisecond)

	err := w.TriggerNow()
	assert.ErrorIs(t, err, model.ErrBusy)

	close(block)
	<-done

	// Idle again: the trigger is accepted.
	assert.NoError(t, w.TriggerNow())
}

func TestRunCycle_BatchSizeBounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"item-1", "item-2", "item-3"} {
		addItem(t, s, id, "A "+id, "T "+id)
	}

	searcher := &fakeSearcher{}
	w := New(s, searcher, &fakeSubmitter{}, logger.NewNop(), Options{
		Interval:  time.Hour,
		BatchSize: 2,
	})
	w.RunCycle(ctx)

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Pending, "one item stays pending for the next cycle")
	assert.Equal(t, 2, counts.Failed)
}

func TestRunCycle_TrimsLogs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendLog(ctx, model.NewLogEntry(nil, model.LevelInfo, "old entry")))
	}
	addItem(t, s, "item-1", "X", "Y")

	w := New(s, &fakeSearcher{}, &fakeSubmitter{}, logger.NewNop(), Options{
		Interval:     time.Hour,
		LogRetention: 3,
	})
	w.RunCycle(ctx)

	logs, err := s.ListLogs(ctx, nil, 100)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
