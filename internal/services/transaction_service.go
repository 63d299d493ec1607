package services

import (
	"context"
	"fmt"
	"log/slog"

	"sahod/internal/core"
	"sahod/internal/storage"
)

// TransactionService records manual ledger entries (deposits and
// withdrawals) and keeps the owning account's balance in step.
type TransactionService struct {
	repo *storage.Repository
}

func NewTransactionService(repo *storage.Repository) *TransactionService {
	return &TransactionService{repo: repo}
}

// Record appends a ledger entry for one of the caller's accounts and adjusts
// that account's balance by the signed amount.
func (s *TransactionService) Record(ctx context.Context, userID int64, t *core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	// Ownership check before touching the ledger.
	if _, err := s.repo.UserAccount(ctx, userID, t.AccountID); err != nil {
		return err
	}

	if err := s.repo.AppendTransaction(ctx, t); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	delta := t.Amount
	if t.Type == core.Withdrawal {
		delta = core.Money{Cents: -t.Amount.Cents}
	}
	if err := s.repo.AdjustAccountBalance(ctx, t.AccountID, delta); err != nil {
		return fmt.Errorf("adjust balance: %w", err)
	}

	slog.InfoContext(ctx, "Recorded transaction",
		"transaction_id", t.ID,
		"account_id", t.AccountID,
		"amount", t.Amount.String(),
		"type", t.Type)
	return nil
}

func (s *TransactionService) ListForAccount(ctx context.Context, userID, accountID int64, limit int) ([]core.Transaction, error) {
	if _, err := s.repo.UserAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListAccountTransactions(ctx, accountID, limit)
}

func (s *TransactionService) ListRecent(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListUserTransactions(ctx, userID, limit)
}
