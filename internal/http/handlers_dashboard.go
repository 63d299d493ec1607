package http

import (
	"net/http"
	"time"
)

type dashboardResponse struct {
	TotalBalance   string                `json:"total_balance"`
	MonthDeposits  string                `json:"month_deposits"`
	MonthExpenses  string                `json:"month_expenses"`
	Accounts       []accountResponse     `json:"accounts"`
	RecentActivity []transactionResponse `json:"recent_activity"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.dashboard.Summary(r.Context(), authedUserID(r), time.Now())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := dashboardResponse{
		TotalBalance:   summary.TotalBalance.String(),
		MonthDeposits:  summary.MonthDeposits.String(),
		MonthExpenses:  summary.MonthExpenses.String(),
		Accounts:       make([]accountResponse, 0, len(summary.Accounts)),
		RecentActivity: make([]transactionResponse, 0, len(summary.RecentActivity)),
	}
	for _, a := range summary.Accounts {
		resp.Accounts = append(resp.Accounts, toAccountResponse(a))
	}
	for _, t := range summary.RecentActivity {
		resp.RecentActivity = append(resp.RecentActivity, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
