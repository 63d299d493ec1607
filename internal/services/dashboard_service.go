package services

import (
	"context"
	"fmt"
	"time"

	"sahod/internal/core"
	"sahod/internal/storage"
)

// DashboardSummary is the landing-page aggregate: everything the frontend
// shows above the fold.
type DashboardSummary struct {
	TotalBalance   core.Money
	MonthDeposits  core.Money
	MonthExpenses  core.Money
	Accounts       []core.Account
	RecentActivity []core.Transaction
}

type DashboardService struct {
	repo *storage.Repository
}

func NewDashboardService(repo *storage.Repository) *DashboardService {
	return &DashboardService{repo: repo}
}

// Summary builds the dashboard for the current calendar month.
func (s *DashboardService) Summary(ctx context.Context, userID int64, now time.Time) (*DashboardSummary, error) {
	year, month := now.Year(), int(now.Month())

	total, err := s.repo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard total balance: %w", err)
	}
	deposits, err := s.repo.MonthDeposits(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("dashboard deposits: %w", err)
	}
	expenses, err := s.repo.MonthExpenses(ctx, userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("dashboard expenses: %w", err)
	}
	accounts, err := s.repo.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dashboard accounts: %w", err)
	}
	recent, err := s.repo.ListUserTransactions(ctx, userID, 10)
	if err != nil {
		return nil, fmt.Errorf("dashboard recent transactions: %w", err)
	}

	return &DashboardSummary{
		TotalBalance:   total,
		MonthDeposits:  deposits,
		MonthExpenses:  expenses,
		Accounts:       accounts,
		RecentActivity: recent,
	}, nil
}
