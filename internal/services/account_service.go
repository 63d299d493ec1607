package services

import (
	"context"
	"fmt"

	"sahod/internal/core"
	"sahod/internal/storage"
)

// AccountService is the CRUD layer for monetary accounts. Balances are never
// set directly through it; they change only via ledger operations.
type AccountService struct {
	repo *storage.Repository
}

func NewAccountService(repo *storage.Repository) *AccountService {
	return &AccountService{repo: repo}
}

func (s *AccountService) Create(ctx context.Context, account *core.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (s *AccountService) Get(ctx context.Context, userID, id int64) (*core.Account, error) {
	return s.repo.UserAccount(ctx, userID, id)
}

func (s *AccountService) List(ctx context.Context, userID int64) ([]core.Account, error) {
	return s.repo.ListAccounts(ctx, userID)
}

func (s *AccountService) Update(ctx context.Context, userID, id int64, name string, accountType core.AccountType) error {
	probe := core.Account{Name: name, Type: accountType}
	if err := probe.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateAccount(ctx, userID, id, name, accountType)
}

func (s *AccountService) Delete(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteAccount(ctx, userID, id)
}
