package model

import "time"

// Log level constants
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogEntry is a single activity log line. Entries are append-only: they are
// never mutated, and they carry an author/title snapshot so they stay
// meaningful after the referenced item is deleted.
type LogEntry struct {
	ID        int64   `json:"id"`
	ItemID    *string `json:"item_id,omitempty"`
	Timestamp string  `json:"timestamp"`
	Level     string  `json:"level"`
	Message   string  `json:"message"`
	Author    string  `json:"author,omitempty"`
	Title     string  `json:"title,omitempty"`
}

// NewLogEntry creates a log entry snapshotting the given item's author/title.
// item may be nil for system-level entries.
func NewLogEntry(item *Item, level, message string) LogEntry {
	e := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Message:   message,
	}
	if item != nil {
		id := item.ID
		e.ItemID = &id
		e.Author = item.Author
		e.Title = item.Title
	}
	return e
}
