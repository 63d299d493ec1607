package services

import (
	"context"
	"fmt"
	"log/slog"

	"sahod/internal/core"
	"sahod/internal/storage"
)

// ExpenseService tracks spending. An expense may reference an account, in
// which case it also writes a withdrawal ledger entry against it.
type ExpenseService struct {
	repo *storage.Repository
}

func NewExpenseService(repo *storage.Repository) *ExpenseService {
	return &ExpenseService{repo: repo}
}

func (s *ExpenseService) Create(ctx context.Context, e *core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.AccountID == nil {
		if err := s.repo.CreateExpense(ctx, e); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
	} else {
		if _, err := s.repo.UserAccount(ctx, e.UserID, *e.AccountID); err != nil {
			return err
		}
		entry := &core.Transaction{
			AccountID:   *e.AccountID,
			Amount:      e.Amount,
			Type:        core.Withdrawal,
			Category:    core.CategoryExpense,
			Description: e.Description,
			Date:        e.Date,
		}
		if err := s.repo.CreateExpenseWithLedger(ctx, e, entry); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
	}

	slog.InfoContext(ctx, "Created expense",
		"expense_id", e.ID,
		"user_id", e.UserID,
		"amount", e.Amount.String(),
		"category", e.Category)
	return nil
}

func (s *ExpenseService) ListMonth(ctx context.Context, userID int64, year, month int) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, userID, year, month)
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteExpense(ctx, userID, id)
}
