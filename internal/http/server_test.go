package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"sahod/internal/auth"
	"sahod/internal/services"
	"sahod/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewTokenManager("0123456789abcdef", 15*time.Minute)
	return NewServer(":0", Deps{
		Tokens:       tokens,
		Auth:         services.NewAuthService(repo, tokens),
		Accounts:     services.NewAccountService(repo),
		Transactions: services.NewTransactionService(repo),
		Expenses:     services.NewExpenseService(repo),
		Cycles:       services.NewSalaryCycleService(repo, repo, nil),
		Dashboard:    services.NewDashboardService(repo),
	})
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body: %v (body: %s)", err, rec.Body.String())
	}
}

func registerAndLogin(t *testing.T, s *Server) string {
	t.Helper()

	rec := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":        "maria@example.com",
		"password":     "hunter2hunter2",
		"display_name": "Maria",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "maria@example.com",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var tokens tokenResponse
	decodeBody(t, rec, &tokens)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("login returned empty tokens: %+v", tokens)
	}
	return tokens.AccessToken
}

func createTestAccount(t *testing.T, s *Server, token, name string) accountResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/accounts", token, map[string]string{
		"name": name,
		"type": "savings",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var account accountResponse
	decodeBody(t, rec, &account)
	return account
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	rec = doJSON(t, s, http.MethodGet, "/api/accounts", "bogus-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "maria@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}
}

func TestSalaryCycleFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)

	bills := createTestAccount(t, s, token, "Bills")
	savings := createTestAccount(t, s, token, "Savings")
	spending := createTestAccount(t, s, token, "Spending")

	rec := doJSON(t, s, http.MethodPost, "/api/salary-cycles", token, map[string]any{
		"pay_date": "2026-08-15",
		"gross":    "5000.00",
		"net":      "4000.00",
		"rules": []map[string]any{
			{"target_account_id": bills.ID, "type": "fixed", "amount": "1000.00", "order_index": 0},
			{"target_account_id": savings.ID, "type": "percentage", "amount": "25", "order_index": 1},
			{"target_account_id": spending.ID, "type": "remainder", "order_index": 2},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cycle status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var cycle cycleResponse
	decodeBody(t, rec, &cycle)
	if cycle.Status != "pending" || len(cycle.Rules) != 3 {
		t.Fatalf("created cycle = %+v", cycle)
	}

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/salary-cycles/%d/execute", cycle.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var executed cycleResponse
	decodeBody(t, rec, &executed)
	if executed.Status != "completed" || executed.CompletedAt == "" {
		t.Fatalf("executed cycle = %+v", executed)
	}

	wantBalances := map[int64]string{bills.ID: "1000.00", savings.ID: "1000.00", spending.ID: "2000.00"}
	rec = doJSON(t, s, http.MethodGet, "/api/accounts", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list accounts status = %d", rec.Code)
	}
	var accounts []accountResponse
	decodeBody(t, rec, &accounts)
	for _, a := range accounts {
		if a.Balance != wantBalances[a.ID] {
			t.Errorf("account %q balance = %s, want %s", a.Name, a.Balance, wantBalances[a.ID])
		}
	}

	// Executing again conflicts.
	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/salary-cycles/%d/execute", cycle.ID), token, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-execute status = %d, want 409", rec.Code)
	}

	// Unknown cycle is a 404.
	rec = doJSON(t, s, http.MethodPost, "/api/salary-cycles/99999/execute", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown cycle status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/salary-cycles/next-pay-date", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next pay date status = %d", rec.Code)
	}
	var next nextPayDateResponse
	decodeBody(t, rec, &next)
	if next.NextPayDate != "2026-08-29" {
		t.Errorf("next_pay_date = %q, want 2026-08-29", next.NextPayDate)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/dashboard", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rec.Code)
	}
	var dash dashboardResponse
	decodeBody(t, rec, &dash)
	if dash.TotalBalance != "4000.00" {
		t.Errorf("total_balance = %s, want 4000.00", dash.TotalBalance)
	}
	if len(dash.RecentActivity) != 3 {
		t.Errorf("recent activity has %d entries, want 3", len(dash.RecentActivity))
	}
}

func TestCycleIsolationAcrossUsers(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)
	account := createTestAccount(t, s, token, "Savings")

	rec := doJSON(t, s, http.MethodPost, "/api/salary-cycles", token, map[string]any{
		"pay_date": "2026-08-15",
		"gross":    "5000.00",
		"net":      "4000.00",
		"rules": []map[string]any{
			{"target_account_id": account.ID, "type": "remainder", "order_index": 0},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create cycle status = %d", rec.Code)
	}
	var cycle cycleResponse
	decodeBody(t, rec, &cycle)

	// A second user cannot see or execute the first user's cycle.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "intruder@example.com",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	rec = doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "intruder@example.com",
		"password": "hunter2hunter2",
	})
	var tokens tokenResponse
	decodeBody(t, rec, &tokens)

	rec = doJSON(t, s, http.MethodPost, fmt.Sprintf("/api/salary-cycles/%d/execute", cycle.ID), tokens.AccessToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign execute status = %d, want 404", rec.Code)
	}
}

func TestTransactionAndExpenseFlow(t *testing.T) {
	s := newTestServer(t)
	token := registerAndLogin(t, s)
	account := createTestAccount(t, s, token, "Wallet")

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", token, map[string]any{
		"account_id":  account.ID,
		"amount":      "150.00",
		"type":        "deposit",
		"category":    "salary",
		"description": "Side gig",
		"date":        "2026-08-10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record transaction status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/expenses", token, map[string]any{
		"account_id":  account.ID,
		"description": "Groceries",
		"amount":      "40.00",
		"category":    "food",
		"date":        "2026-08-11",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense status = %d, body: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/accounts/%d", account.ID), token, nil)
	var got accountResponse
	decodeBody(t, rec, &got)
	if got.Balance != "110.00" {
		t.Errorf("balance = %s, want 110.00", got.Balance)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/expenses?year=2026&month=8", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list expenses status = %d", rec.Code)
	}
	var expenses []expenseResponse
	decodeBody(t, rec, &expenses)
	if len(expenses) != 1 || expenses[0].Description != "Groceries" {
		t.Fatalf("expenses = %+v", expenses)
	}

	// Garbage amount is rejected before touching storage.
	rec = doJSON(t, s, http.MethodPost, "/api/transactions", token, map[string]any{
		"account_id":  account.ID,
		"amount":      "-5.00",
		"type":        "deposit",
		"description": "Nope",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("negative amount status = %d, want 422", rec.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	s := newTestServer(t)
	registerAndLogin(t, s)

	rec := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "maria@example.com",
		"password": "hunter2hunter2",
	})
	var first tokenResponse
	decodeBody(t, rec, &first)

	rec = doJSON(t, s, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body: %s", rec.Code, rec.Body.String())
	}
	var second tokenResponse
	decodeBody(t, rec, &second)
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh did not rotate the token")
	}

	// The consumed token is dead.
	rec = doJSON(t, s, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refresh_token": first.RefreshToken,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token status = %d, want 401", rec.Code)
	}
}
