package model

import "time"

// Item status constants
const (
	StatusPending   = "pending"
	StatusSearching = "searching"
	StatusFound     = "found"
	StatusFailed    = "failed"
)

// Provenance constants for AddedVia
const (
	ViaWeb       = "web"
	ViaEmail     = "email"
	ViaMigration = "migration"
)

// Statuses lists all valid item statuses.
var Statuses = []string{StatusPending, StatusSearching, StatusFound, StatusFailed}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Item represents a single wishlist entry.
type Item struct {
	ID             string  `json:"id"`
	Author         string  `json:"author"`
	Title          string  `json:"title"`
	Status         string  `json:"status"`
	AddedVia       string  `json:"added_via"`
	AddedAt        string  `json:"added_at"`
	LastSearch     *string `json:"last_search,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	FoundReference *string `json:"found_reference,omitempty"`
}

// ItemWithLogs is an Item together with its activity log entries.
type ItemWithLogs struct {
	Item
	Logs []LogEntry `json:"logs"`
}

// ItemFilter holds query parameters for listing items.
type ItemFilter struct {
	Status []string
}

// StatusCounts holds the number of items per status plus the total.
type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Searching int `json:"searching"`
	Found     int `json:"found"`
	Failed    int `json:"failed"`
}

// RawLine renders the item in the legacy wishlist.txt format.
func (i Item) RawLine() string {
	return i.Author + ` - "` + i.Title + `"`
}

// NewItem creates a new pending Item. Author and title must be non-empty.
func NewItem(id, author, title, via string) (Item, error) {
	if author == "" || title == "" {
		return Item{}, ErrValidation
	}
	if via == "" {
		via = ViaWeb
	}
	return Item{
		ID:       id,
		Author:   author,
		Title:    title,
		Status:   StatusPending,
		AddedVia: via,
		AddedAt:  time.Now().UTC().Format(time.RFC3339),
	}, nil
}
