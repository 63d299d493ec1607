package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sahod/internal/core"
)

func (r *Repository) CreateExpense(ctx context.Context, e *core.Expense) error {
	e.CreatedAt = time.Now().UTC()
	var accountID any
	if e.AccountID != nil {
		accountID = *e.AccountID
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO expenses (user_id, account_id, description, amount_cents, category, expense_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.UserID, accountID, e.Description, e.Amount.Cents, e.Category, e.Date.UTC(), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// CreateExpenseWithLedger writes an account-backed expense, its withdrawal
// ledger entry and the balance change in one transaction. A failure at any
// step leaves no expense row behind.
func (r *Repository) CreateExpenseWithLedger(ctx context.Context, e *core.Expense, entry *core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin expense create: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	entry.CreatedAt = now
	err = tx.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, cycle_id, amount_cents, tx_type, category, description, tx_date, created_at)
		 VALUES (?, NULL, ?, ?, ?, ?, ?, ?) RETURNING id`,
		entry.AccountID, entry.Amount.Cents, entry.Type, entry.Category, entry.Description, entry.Date.UTC(), entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append expense transaction: %w", err)
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id = ?`, entry.AccountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return core.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	e.CreatedAt = now
	err = tx.QueryRowContext(ctx,
		`INSERT INTO expenses (user_id, account_id, description, amount_cents, category, expense_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		e.UserID, entry.AccountID, e.Description, e.Amount.Cents, e.Category, e.Date.UTC(), e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ?, updated_at = ? WHERE id = ?`,
		balance-e.Amount.Cents, now, entry.AccountID)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit expense create: %w", err)
	}
	return nil
}

// ListExpenses returns the user's expenses for one calendar month.
func (r *Repository) ListExpenses(ctx context.Context, userID int64, year int, month int) ([]core.Expense, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, account_id, description, amount_cents, category, expense_date, created_at
		 FROM expenses WHERE user_id = ? AND expense_date >= ? AND expense_date < ?
		 ORDER BY expense_date DESC, id DESC`, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e := core.Expense{}
		var accountID *int64
		if err := rows.Scan(&e.ID, &e.UserID, &accountID, &e.Description, &e.Amount.Cents,
			&e.Category, &e.Date, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.AccountID = accountID
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// TotalBalance sums the current balances of all the user's accounts.
func (r *Repository) TotalBalance(ctx context.Context, userID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance_cents), 0) FROM accounts WHERE user_id = ?`, userID,
	).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total balance: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// MonthDeposits sums the user's deposit ledger entries for one month.
func (r *Repository) MonthDeposits(ctx context.Context, userID int64, year, month int) (core.Money, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(t.amount_cents), 0)
		 FROM transactions t JOIN accounts a ON a.id = t.account_id
		 WHERE a.user_id = ? AND t.tx_type = ? AND t.tx_date >= ? AND t.tx_date < ?`,
		userID, core.Deposit, start, end,
	).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month deposits: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// MonthExpenses sums the user's expenses for one month.
func (r *Repository) MonthExpenses(ctx context.Context, userID int64, year, month int) (core.Money, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM expenses WHERE user_id = ? AND expense_date >= ? AND expense_date < ?`,
		userID, start, end,
	).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
