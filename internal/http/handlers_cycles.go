package http

import (
	"net/http"
	"time"

	"sahod/internal/core"
)

type ruleRequest struct {
	TargetAccountID int64  `json:"target_account_id"`
	Type            string `json:"type"`
	// Amount is the fixed amount for fixed rules or the percentage for
	// percentage rules; remainder rules omit it.
	Amount     string `json:"amount,omitempty"`
	OrderIndex int    `json:"order_index"`
}

type cycleRequest struct {
	PayDate string        `json:"pay_date"`
	Gross   string        `json:"gross"`
	Net     string        `json:"net"`
	Rules   []ruleRequest `json:"rules"`
}

type ruleResponse struct {
	ID              int64  `json:"id"`
	TargetAccountID int64  `json:"target_account_id"`
	Type            string `json:"type"`
	Amount          string `json:"amount,omitempty"`
	OrderIndex      int    `json:"order_index"`
	Executed        bool   `json:"executed"`
	ExecutedAt      string `json:"executed_at,omitempty"`
}

type cycleResponse struct {
	ID          int64          `json:"id"`
	PayDate     string         `json:"pay_date"`
	Gross       string         `json:"gross"`
	Net         string         `json:"net"`
	Status      string         `json:"status"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Rules       []ruleResponse `json:"rules"`
}

func toCycleResponse(c core.SalaryCycle) cycleResponse {
	resp := cycleResponse{
		ID:      c.ID,
		PayDate: c.PayDate.Format("2006-01-02"),
		Gross:   c.Gross.String(),
		Net:     c.Net.String(),
		Status:  string(c.Status),
	}
	if c.CompletedAt != nil {
		resp.CompletedAt = c.CompletedAt.Format(time.RFC3339)
	}
	for _, rule := range c.Rules {
		rr := ruleResponse{
			ID:              rule.ID,
			TargetAccountID: rule.TargetAccountID,
			Type:            string(rule.Type),
			OrderIndex:      rule.OrderIndex,
			Executed:        rule.Executed,
		}
		if rule.Type != core.Remainder {
			rr.Amount = rule.Nominal.String()
		}
		if rule.ExecutedAt != nil {
			rr.ExecutedAt = rule.ExecutedAt.Format(time.RFC3339)
		}
		resp.Rules = append(resp.Rules, rr)
	}
	return resp
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	var req cycleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	payDate, err := time.Parse("2006-01-02", req.PayDate)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid pay_date, want YYYY-MM-DD")
		return
	}
	gross, err := core.ParseMoney(req.Gross)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid gross amount")
		return
	}
	net, err := core.ParseMoney(req.Net)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "invalid net amount")
		return
	}

	cycle := &core.SalaryCycle{
		UserID:  authedUserID(r),
		PayDate: payDate,
		Gross:   gross,
		Net:     net,
		Status:  core.CyclePending,
	}
	for _, rr := range req.Rules {
		rule := core.DistributionRule{
			TargetAccountID: rr.TargetAccountID,
			Type:            core.DistributionType(rr.Type),
			OrderIndex:      rr.OrderIndex,
		}
		switch rule.Type {
		case core.Fixed:
			rule.Nominal, err = core.ParseMoney(rr.Amount)
		case core.Percentage:
			rule.Nominal, err = core.ParsePercent(rr.Amount)
		}
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, "invalid rule amount")
			return
		}
		cycle.Rules = append(cycle.Rules, rule)
	}

	if err := s.cycles.CreateCycle(r.Context(), cycle); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCycleResponse(*cycle))
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.cycles.RecentCycles(r.Context(), authedUserID(r), queryInt(r, "limit", 6))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]cycleResponse, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, toCycleResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExecuteCycle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid cycle id")
		return
	}
	cycle, err := s.cycles.Execute(r.Context(), authedUserID(r), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleResponse(*cycle))
}

type nextPayDateResponse struct {
	NextPayDate string `json:"next_pay_date,omitempty"`
}

func (s *Server) handleNextPayDate(w http.ResponseWriter, r *http.Request) {
	next, err := s.cycles.NextPayDate(r.Context(), authedUserID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := nextPayDateResponse{}
	if next != nil {
		resp.NextPayDate = next.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, resp)
}
