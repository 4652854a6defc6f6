package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mvdbosch/bookwish/internal/lifecycle"
	"github.com/mvdbosch/bookwish/internal/model"
)

// ---------------------------------------------------------------------------
// POST /api/wishlist
// ---------------------------------------------------------------------------

type createRequest struct {
	Author string `json:"author"`
	Title  string `json:"title"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := model.NewItem(
		uuid.New().String(),
		strings.TrimSpace(req.Author),
		strings.TrimSpace(req.Title),
		model.ViaWeb,
	)
	if errors.Is(err, model.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateItem(r.Context(), item); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// ---------------------------------------------------------------------------
// GET /api/wishlist
// ---------------------------------------------------------------------------

type listResponse struct {
	Items []model.Item       `json:"items"`
	Stats model.StatusCounts `json:"stats"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var filter model.ItemFilter
	for _, st := range splitComma(r.URL.Query().Get("status")) {
		if !model.ValidStatus(st) {
			writeError(w, http.StatusBadRequest, "unknown status: "+st)
			return
		}
		filter.Status = append(filter.Status, st)
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	stats, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count items")
		return
	}

	writeJSON(w, http.StatusOK, listResponse{Items: items, Stats: stats})
}

// ---------------------------------------------------------------------------
// GET /api/wishlist/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// ---------------------------------------------------------------------------
// DELETE /api/wishlist/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteItem(r.Context(), id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": "item deleted"})
}

// ---------------------------------------------------------------------------
// POST /api/wishlist/{id}/retry
// ---------------------------------------------------------------------------

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	decision, err := lifecycle.Retry(item.Item)
	if errors.Is(err, model.ErrConflict) {
		writeError(w, http.StatusConflict, "only failed items can be retried")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retry item")
		return
	}

	updated, err := s.store.ApplyDecision(r.Context(), id, model.StatusFailed, decision)
	if errors.Is(err, model.ErrConflict) {
		// The worker changed the status between the read and the update.
		writeError(w, http.StatusConflict, "only failed items can be retried")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retry item")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// ---------------------------------------------------------------------------
// POST /api/wishlist/bulk-delete
// ---------------------------------------------------------------------------

type bulkDeleteRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !model.ValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	n, err := s.store.BulkDeleteByStatus(r.Context(), req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete items")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": req.Status, "deleted": n})
}

// ---------------------------------------------------------------------------
// POST /api/search/trigger
// ---------------------------------------------------------------------------

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if err := s.trigger.TriggerNow(); err != nil {
		if errors.Is(err, model.ErrBusy) {
			writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to trigger search")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// ---------------------------------------------------------------------------
// GET /api/logs
// ---------------------------------------------------------------------------

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var itemID *string
	if v := r.URL.Query().Get("item_id"); v != "" {
		itemID = &v
	}

	logs, err := s.store.ListLogs(r.Context(), itemID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": logs})
}

// ---------------------------------------------------------------------------
// GET /api/stats
// ---------------------------------------------------------------------------

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count items")
		return
	}

	logs, err := s.store.ListLogs(r.Context(), nil, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":       stats,
		"recent_logs": logs,
	})
}

// ---------------------------------------------------------------------------
// GET /api/health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "bookwish"})
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
