package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/repository"
)

// AdminHandler serves the operator surface: health probes and dead-letter
// inspection for replay tooling.
type AdminHandler struct {
	store repository.Store
}

func NewAdminHandler(store repository.Store) *AdminHandler {
	return &AdminHandler{store: store}
}

func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func (h *AdminHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "store unavailable",
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
	})
}

// ListDeadLetters serves GET /admin/dlq?limit=N.
func (h *AdminHandler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.store.ListDeadLetters(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to list dead letters", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.DeadLetter{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"entries": entries,
	})
}

// DeadLetterStats serves GET /admin/dlq/stats.
func (h *AdminHandler) DeadLetterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.DeadLetterStats(r.Context())
	if err != nil {
		http.Error(w, "failed to count dead letters", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
