package model

import (
	"errors"
	"testing"
)

func TestNewItem(t *testing.T) {
	item, err := NewItem("id-1", "Jens Lapidus", "Grande finale", ViaWeb)
	if err != nil {
		t.Fatalf("NewItem returned error: %v", err)
	}

	if item.ID != "id-1" {
		t.Errorf("ID = %q, want %q", item.ID, "id-1")
	}
	if item.Status != StatusPending {
		t.Errorf("Status = %q, want %q", item.Status, StatusPending)
	}
	if item.AddedVia != ViaWeb {
		t.Errorf("AddedVia = %q, want %q", item.AddedVia, ViaWeb)
	}
	if item.AddedAt == "" {
		t.Error("AddedAt should not be empty")
	}
	if item.LastSearch != nil {
		t.Error("LastSearch should be nil for new items")
	}
	if item.ErrorMessage != nil {
		t.Error("ErrorMessage should be nil for new items")
	}
}

func TestNewItem_Validation(t *testing.T) {
	if _, err := NewItem("id-1", "", "Grande finale", ViaWeb); !errors.Is(err, ErrValidation) {
		t.Errorf("empty author: err = %v, want ErrValidation", err)
	}
	if _, err := NewItem("id-1", "Jens Lapidus", "", ViaWeb); !errors.Is(err, ErrValidation) {
		t.Errorf("empty title: err = %v, want ErrValidation", err)
	}
}

func TestNewItem_DefaultVia(t *testing.T) {
	item, err := NewItem("id-1", "Jens Lapidus", "Grande finale", "")
	if err != nil {
		t.Fatalf("NewItem returned error: %v", err)
	}
	if item.AddedVia != ViaWeb {
		t.Errorf("AddedVia = %q, want %q", item.AddedVia, ViaWeb)
	}
}

func TestRawLine(t *testing.T) {
	item := Item{Author: "Jens Lapidus", Title: "Grande finale"}
	want := `Jens Lapidus - "Grande finale"`
	if got := item.RawLine(); got != want {
		t.Errorf("RawLine() = %q, want %q", got, want)
	}
}

func TestValidStatus(t *testing.T) {
	for _, st := range Statuses {
		if !ValidStatus(st) {
			t.Errorf("ValidStatus(%q) = false, want true", st)
		}
	}
	if ValidStatus("archived") {
		t.Error(`ValidStatus("archived") = true, want false`)
	}
}

func TestNewLogEntry(t *testing.T) {
	item := Item{ID: "id-1", Author: "Jens Lapidus", Title: "Grande finale"}
	e := NewLogEntry(&item, LevelInfo, "search started")

	if e.ItemID == nil || *e.ItemID != "id-1" {
		t.Errorf("ItemID = %v, want id-1", e.ItemID)
	}
	if e.Author != "Jens Lapidus" || e.Title != "Grande finale" {
		t.Errorf("snapshot = %q / %q, want item's author and title", e.Author, e.Title)
	}
	if e.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}

	system := NewLogEntry(nil, LevelWarn, "boot")
	if system.ItemID != nil {
		t.Error("ItemID should be nil for system entries")
	}
}
