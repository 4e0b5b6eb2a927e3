// internal/fines/handler.go
package fines

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the fine ledger sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleAssess)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/pay", h.handleMarkPaid)
	r.Post("/{id}/waive", h.handleWaive)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	fines, err := h.service.ListByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fines)
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LoanID   uuid.UUID `json:"loan_id"`
		MemberID uuid.UUID `json:"member_id"`
		Amount   float64   `json:"amount"`
		Reason   string    `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fine, err := h.service.Assess(r.Context(), req.LoanID, req.MemberID, req.Amount, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(fine)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid fine ID", http.StatusBadRequest)
		return
	}

	fine, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fine)
}

func (h *Handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid fine ID", http.StatusBadRequest)
		return
	}

	var req struct {
		SettledOn string `json:"settled_on,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	var settledOn time.Time
	if req.SettledOn != "" {
		settledOn, err = time.Parse(time.RFC3339, req.SettledOn)
		if err != nil {
			http.Error(w, "invalid settled_on timestamp", http.StatusBadRequest)
			return
		}
	}

	fine, err := h.service.MarkPaid(r.Context(), id, settledOn)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fine)
}

func (h *Handler) handleWaive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid fine ID", http.StatusBadRequest)
		return
	}

	fine, err := h.service.Waive(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(fine)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFineNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
