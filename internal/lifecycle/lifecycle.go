// Package lifecycle holds the decision logic for wishlist item status
// transitions. It is pure: given an item and the outcome of a search or
// submit attempt it computes the next status, the field changes, and the
// activity log entry. All persistence happens elsewhere.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/mvdbosch/bookwish/internal/model"
)

// Outcome kinds fed into Decide.
const (
	// OutcomeNotAttempted claims an item: pending → searching, no search run yet.
	OutcomeNotAttempted = "not_attempted"
	// OutcomeCandidates means the indexer returned one or more candidates;
	// the item stays in searching until the submit outcome arrives.
	OutcomeCandidates = "candidates"
	// OutcomeNoMatch means the indexer answered with zero candidates. Not an error.
	OutcomeNoMatch = "no_match"
	// OutcomeSearchError means the indexer call itself failed.
	OutcomeSearchError = "search_error"
	// OutcomeSubmitAccepted means the download manager accepted the candidate.
	OutcomeSubmitAccepted = "submit_accepted"
	// OutcomeSubmitRejected means the download manager refused the candidate.
	OutcomeSubmitRejected = "submit_rejected"
)

// NotFoundMessage is the user-visible reason for a NoMatch failure. It is
// deliberately distinct from the indexer/download-manager error messages:
// "not found" tells the user a retry is unlikely to help until the index
// changes, an error tells them it might.
const NotFoundMessage = "not found in index"

// Outcome describes the result of one attempt against the external services.
type Outcome struct {
	Kind      string
	Reference string // set for OutcomeSubmitAccepted
	Reason    string // set for OutcomeSearchError / OutcomeSubmitRejected
}

// NotAttempted returns the claim outcome.
func NotAttempted() Outcome { return Outcome{Kind: OutcomeNotAttempted} }

// Candidates returns the outcome for a non-empty indexer result.
func Candidates() Outcome { return Outcome{Kind: OutcomeCandidates} }

// NoMatch returns the outcome for an empty indexer result.
func NoMatch() Outcome { return Outcome{Kind: OutcomeNoMatch} }

// SearchError returns the outcome for a failed indexer call.
func SearchError(reason string) Outcome {
	return Outcome{Kind: OutcomeSearchError, Reason: reason}
}

// SubmitAccepted returns the outcome for an accepted submission.
func SubmitAccepted(reference string) Outcome {
	return Outcome{Kind: OutcomeSubmitAccepted, Reference: reference}
}

// SubmitRejected returns the outcome for a refused submission.
func SubmitRejected(reason string) Outcome {
	return Outcome{Kind: OutcomeSubmitRejected, Reason: reason}
}

// Decision is the computed effect of an outcome on an item. The store applies
// it in a single transaction so no partial update is ever observable.
type Decision struct {
	NextStatus     string
	SetLastSearch  bool
	ErrorMessage   *string // nil clears the error
	FoundReference *string
	Log            *model.LogEntry
}

// Decide computes the transition for the given item and attempt outcome.
// The item must be pending (claim only) or searching; any other status is a
// precondition violation reported as ErrConflict.
func Decide(item model.Item, out Outcome) (Decision, error) {
	switch item.Status {
	case model.StatusPending:
		if out.Kind != OutcomeNotAttempted {
			return Decision{}, fmt.Errorf("outcome %s on pending item: %w", out.Kind, model.ErrConflict)
		}
		d := Decision{
			NextStatus:    model.StatusSearching,
			SetLastSearch: true,
		}
		d.Log = logFor(item, model.LevelInfo, "search started")
		return d, nil

	case model.StatusSearching:
		return decideSearching(item, out)

	default:
		return Decision{}, fmt.Errorf("item %s is %s: %w", item.ID, item.Status, model.ErrConflict)
	}
}

func decideSearching(item model.Item, out Outcome) (Decision, error) {
	switch out.Kind {
	case OutcomeCandidates:
		// Intermediate: the submit outcome decides the final state.
		return Decision{NextStatus: model.StatusSearching}, nil

	case OutcomeNoMatch:
		msg := NotFoundMessage
		return Decision{
			NextStatus:   model.StatusFailed,
			ErrorMessage: &msg,
			Log:          logFor(item, model.LevelWarn, msg),
		}, nil

	case OutcomeSearchError:
		msg := "indexer error: " + out.Reason
		return Decision{
			NextStatus:   model.StatusFailed,
			ErrorMessage: &msg,
			Log:          logFor(item, model.LevelError, msg),
		}, nil

	case OutcomeSubmitRejected:
		msg := "download manager rejected: " + out.Reason
		return Decision{
			NextStatus:   model.StatusFailed,
			ErrorMessage: &msg,
			Log:          logFor(item, model.LevelError, msg),
		}, nil

	case OutcomeSubmitAccepted:
		ref := out.Reference
		return Decision{
			NextStatus:     model.StatusFound,
			FoundReference: &ref,
			Log:            logFor(item, model.LevelInfo, "sent to download manager"),
		}, nil

	default:
		return Decision{}, fmt.Errorf("outcome %s on searching item: %w", out.Kind, model.ErrConflict)
	}
}

// Retry computes the manual retry transition. Only failed items can be
// retried; they go back to pending so the next worker cycle claims them
// normally. The timer never retries failed items on its own.
func Retry(item model.Item) (Decision, error) {
	if item.Status != model.StatusFailed {
		return Decision{}, fmt.Errorf("retry on %s item: %w", item.Status, model.ErrConflict)
	}
	return Decision{
		NextStatus: model.StatusPending,
		Log:        logFor(item, model.LevelInfo, "manual retry, back in queue"),
	}, nil
}

func logFor(item model.Item, level, message string) *model.LogEntry {
	e := model.NewLogEntry(&item, level, message)
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return &e
}
