package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sahod/internal/core"
)

const transactionColumns = `id, account_id, cycle_id, amount_cents, tx_type, category, description, tx_date, created_at`

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t := core.Transaction{}
		var cycleID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.AccountID, &cycleID, &t.Amount.Cents, &t.Type,
			&t.Category, &t.Description, &t.Date, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if cycleID.Valid {
			id := cycleID.Int64
			t.CycleID = &id
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// AppendTransaction writes a ledger entry outside any distribution unit of
// work (manual deposits/withdrawals from the transactions API).
func (r *Repository) AppendTransaction(ctx context.Context, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	var cycleID any
	if t.CycleID != nil {
		cycleID = *t.CycleID
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, cycle_id, amount_cents, tx_type, category, description, tx_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.AccountID, cycleID, t.Amount.Cents, t.Type, t.Category, t.Description, t.Date.UTC(), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// AdjustAccountBalance applies a signed delta to an account's balance inside
// its own transaction, reading the current balance first. Used by the manual
// transaction and expense services, never by the distribution engine.
func (r *Repository) AdjustAccountBalance(ctx context.Context, accountID int64, delta core.Money) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin balance adjust: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE id = ?`, accountID).Scan(&balance)
	if err == sql.ErrNoRows {
		return core.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ?, updated_at = ? WHERE id = ?`,
		balance+delta.Cents, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit balance adjust: %w", err)
	}
	return nil
}

func (r *Repository) ListAccountTransactions(ctx context.Context, accountID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListUserTransactions returns the most recent ledger entries across all of
// the user's accounts.
func (r *Repository) ListUserTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.account_id, t.cycle_id, t.amount_cents, t.tx_type, t.category, t.description, t.tx_date, t.created_at
		 FROM transactions t JOIN accounts a ON a.id = t.account_id
		 WHERE a.user_id = ? ORDER BY t.created_at DESC, t.id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListCycleTransactions returns the ledger entries one cycle execution wrote
// that have not been exported yet, so an event retry cannot duplicate rows
// already handled by the sweep.
func (r *Repository) ListCycleTransactions(ctx context.Context, cycleID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE cycle_id = ? AND exported = 0 ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("list cycle transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListUnexportedTransactions feeds the export worker's backup sweep.
func (r *Repository) ListUnexportedTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE exported = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (r *Repository) MarkTransactionExported(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET exported = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction exported: %w", err)
	}
	return nil
}
