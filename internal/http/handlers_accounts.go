package http

import (
	"net/http"

	"sahod/internal/core"
)

type accountRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type accountResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance string `json:"balance"`
}

func toAccountResponse(a core.Account) accountResponse {
	return accountResponse{
		ID:      a.ID,
		Name:    a.Name,
		Type:    string(a.Type),
		Balance: a.Balance.String(),
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	account := &core.Account{
		UserID: authedUserID(r),
		Name:   req.Name,
		Type:   core.AccountType(req.Type),
	}
	if err := s.accounts.Create(r.Context(), account); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(*account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounts.List(r.Context(), authedUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return
	}
	account, err := s.accounts.Get(r.Context(), authedUserID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(*account))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return
	}
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.accounts.Update(r.Context(), authedUserID(r), id, req.Name, core.AccountType(req.Type)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return
	}
	if err := s.accounts.Delete(r.Context(), authedUserID(r), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListAccountTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid account id")
		return
	}
	txs, err := s.transactions.ListForAccount(r.Context(), authedUserID(r), id, queryInt(r, "limit", 50))
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
