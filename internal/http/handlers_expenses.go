package http

import (
	"net/http"
	"time"

	"sahod/internal/core"
)

type expenseRequest struct {
	AccountID   *int64 `json:"account_id,omitempty"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

type expenseResponse struct {
	ID          int64  `json:"id"`
	AccountID   *int64 `json:"account_id,omitempty"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Date        string `json:"date"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Category:    e.Category,
		Date:        e.Date.Format("2006-01-02"),
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid amount")
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	expense := &core.Expense{
		UserID:      authedUserID(r),
		AccountID:   req.AccountID,
		Description: req.Description,
		Amount:      amount,
		Category:    req.Category,
		Date:        date,
	}
	if err := s.expenses.Create(r.Context(), expense); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(*expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	year := queryInt(r, "year", now.Year())
	month := queryInt(r, "month", int(now.Month()))
	if month < 1 || month > 12 {
		writeError(w, r, http.StatusBadRequest, "invalid month")
		return
	}

	expenses, err := s.expenses.ListMonth(r.Context(), authedUserID(r), year, month)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid expense id")
		return
	}
	if err := s.expenses.Delete(r.Context(), authedUserID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
