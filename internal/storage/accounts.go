package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sahod/internal/core"
)

const accountColumns = `id, user_id, name, account_type, balance_cents, created_at, updated_at`

func scanAccount(row *sql.Row) (*core.Account, error) {
	a := core.Account{}
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance.Cents, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

func (r *Repository) CreateAccount(ctx context.Context, a *core.Account) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (user_id, name, account_type, balance_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		a.UserID, a.Name, a.Type, a.Balance.Cents, a.CreatedAt, a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (r *Repository) AccountByID(ctx context.Context, id int64) (*core.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

// UserAccount looks an account up by id scoped to its owner, so a caller can
// never read another user's account.
func (r *Repository) UserAccount(ctx context.Context, userID, id int64) (*core.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *Repository) ListAccounts(ctx context.Context, userID int64) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a := core.Account{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance.Cents, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, userID, id int64, name string, accountType core.AccountType) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, account_type = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, accountType, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

func (r *Repository) DeleteAccount(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}
