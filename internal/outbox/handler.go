// internal/outbox/handler.go
package outbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the outbox sub-router used by delivery workers.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/claim", h.handleClaim)
	r.Post("/{id}/sent", h.handleMarkSent)
	r.Post("/{id}/failed", h.handleMarkFailed)
	r.Get("/member/{memberID}", h.handlePendingForMember)
	return r
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
		Limit   int    `json:"limit,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Channel == "" {
		req.Channel = r.URL.Query().Get("channel")
	}
	if req.Limit == 0 {
		req.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	}

	entries, err := h.service.ClaimPending(r.Context(), req.Channel, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func (h *Handler) handleMarkSent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}

	entry, err := h.service.MarkSent(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handleMarkFailed(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid entry ID", http.StatusBadRequest)
		return
	}

	entry, err := h.service.MarkFailed(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) handlePendingForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		http.Error(w, "invalid member ID", http.StatusBadRequest)
		return
	}

	entries, err := h.service.PendingForMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(entries)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
