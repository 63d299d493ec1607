package http

import (
	"net/http"
	"time"

	"sahod/internal/core"
)

type transactionRequest struct {
	AccountID   int64  `json:"account_id"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

type transactionResponse struct {
	ID          int64  `json:"id"`
	AccountID   int64  `json:"account_id"`
	CycleID     *int64 `json:"cycle_id,omitempty"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		AccountID:   t.AccountID,
		CycleID:     t.CycleID,
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
		Category:    string(t.Category),
		Description: t.Description,
		Date:        t.Date.Format("2006-01-02"),
	}
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
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

	category := core.TransactionCategory(req.Category)
	if category == "" {
		category = core.CategoryOther
	}
	t := &core.Transaction{
		AccountID:   req.AccountID,
		Amount:      amount,
		Type:        core.TransactionType(req.Type),
		Category:    category,
		Description: req.Description,
		Date:        date,
	}
	if err := s.transactions.Record(r.Context(), authedUserID(r), t); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(*t))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.transactions.ListRecent(r.Context(), authedUserID(r), queryInt(r, "limit", 50))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}
