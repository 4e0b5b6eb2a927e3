// internal/reservations/handler.go
package reservations

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

// Routes returns the reservation queue sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Post("/", h.handleEnqueue)
	r.Post("/expire-ready", h.handleExpireReady)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}/status", h.handleForceStatus)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ListByStatus(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(reservations)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID   uuid.UUID `json:"book_id"`
		MemberID uuid.UUID `json:"member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reservation, err := h.service.Enqueue(r.Context(), req.BookID, req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reservation)
}

func (h *Handler) handleExpireReady(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.ExpireReadyHolds(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]int64{"expired": count})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid reservation ID", http.StatusBadRequest)
		return
	}

	reservation, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(reservation)
}

// handleForceStatus is the admin override endpoint; it maps directly onto
// Service.ForceStatus and shares none of the lifecycle guarantees.
func (h *Handler) handleForceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid reservation ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reservation, err := h.service.ForceStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(reservation)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrReservationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrDuplicateReservation):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrUnknownStatus):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
