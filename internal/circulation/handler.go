// internal/circulation/handler.go
package circulation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libracore/internal/catalog"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the circulation sub-router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleListLoans)
	r.Post("/", h.handleIssue)
	r.Get("/overdue", h.handleListOverdue)
	r.Get("/{id}", h.handleGetLoan)
	r.Post("/{id}/renew", h.handleRenew)
	r.Post("/{id}/return", h.handleReturn)
	r.Post("/{id}/mark-overdue", h.handleMarkOverdue)
	return r
}

// dateFormat is the wire format for loan dates.
const dateFormat = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateFormat, s)
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID      uuid.UUID `json:"book_id"`
		MemberID    uuid.UUID `json:"member_id"`
		BorrowedOn  string    `json:"borrowed_on,omitempty"`
		DueOn       string    `json:"due_on,omitempty"`
		SelfService bool      `json:"self_service,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	borrowedOn, err := parseDate(req.BorrowedOn)
	if err != nil {
		http.Error(w, "invalid borrowed_on date", http.StatusBadRequest)
		return
	}
	dueOn, err := parseDate(req.DueOn)
	if err != nil {
		http.Error(w, "invalid due_on date", http.StatusBadRequest)
		return
	}

	// The public self-service flow runs on the shorter loan period when no
	// due date is supplied.
	if req.SelfService && dueOn.IsZero() {
		base := borrowedOn
		if base.IsZero() {
			base = time.Now()
		}
		dueOn = base.AddDate(0, 0, SelfServiceLoanDays)
	}

	loan, err := h.service.IssueLoan(r.Context(), req.BookID, req.MemberID, borrowedOn, dueOn)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		NewDueOn string `json:"new_due_on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	newDueOn, err := parseDate(req.NewDueOn)
	if err != nil || newDueOn.IsZero() {
		http.Error(w, "invalid new_due_on date", http.StatusBadRequest)
		return
	}

	loan, err := h.service.RenewLoan(r.Context(), id, newDueOn)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		ReturnedOn string `json:"returned_on,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	returnedOn, err := parseDate(req.ReturnedOn)
	if err != nil {
		http.Error(w, "invalid returned_on date", http.StatusBadRequest)
		return
	}

	loan, err := h.service.ReturnLoan(r.Context(), id, returnedOn)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleMarkOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := h.service.MarkOverdue(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loan)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func (h *Handler) handleListOverdue(w http.ResponseWriter, r *http.Request) {
	reference := time.Now()
	if s := r.URL.Query().Get("reference"); s != "" {
		parsed, err := time.Parse(dateFormat, s)
		if err != nil {
			http.Error(w, "invalid reference date", http.StatusBadRequest)
			return
		}
		reference = parsed
	}

	loans, err := h.service.ListOverdue(r.Context(), reference)
	if err != nil {
		writeError(w, err)
		return
	}
	json.NewEncoder(w).Encode(loans)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLoanNotFound), errors.Is(err, catalog.ErrBookNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBookUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidDueDate):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
