package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sahod/internal/core"
)

// Atomic runs fn inside one SQLite transaction. fn's error (or a commit
// failure) rolls everything back; no partial balances, ledger rows or cycle
// state survive a failed execution.
func (r *Repository) Atomic(ctx context.Context, fn func(store core.DistributionStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&distTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// distTx implements core.DistributionStore over an open transaction.
type distTx struct {
	tx *sql.Tx
}

var _ core.DistributionStore = (*distTx)(nil)

func (d *distTx) CycleWithRules(ctx context.Context, cycleID int64) (*core.SalaryCycle, error) {
	row := d.tx.QueryRowContext(ctx,
		`SELECT id, user_id, pay_date, gross_cents, net_cents, status, version, created_at, completed_at
		 FROM salary_cycles WHERE id = ?`, cycleID)
	c := core.SalaryCycle{}
	var completedAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.PayDate, &c.Gross.Cents, &c.Net.Cents,
		&c.Status, &c.Version, &c.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrCycleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cycle: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}

	rules, err := queryRules(ctx, d.tx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Rules = rules
	return &c, nil
}

func (d *distTx) Account(ctx context.Context, accountID int64) (*core.Account, error) {
	a := core.Account{}
	err := d.tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, accountID,
	).Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Balance.Cents, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, core.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return &a, nil
}

func (d *distTx) SaveAccountBalance(ctx context.Context, accountID int64, balance core.Money) error {
	_, err := d.tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = ?, updated_at = ? WHERE id = ?`,
		balance.Cents, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("save account balance: %w", err)
	}
	return nil
}

func (d *distTx) AppendTransaction(ctx context.Context, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	var cycleID any
	if t.CycleID != nil {
		cycleID = *t.CycleID
	}
	err := d.tx.QueryRowContext(ctx,
		`INSERT INTO transactions (account_id, cycle_id, amount_cents, tx_type, category, description, tx_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.AccountID, cycleID, t.Amount.Cents, t.Type, t.Category, t.Description, t.Date.UTC(), t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// SaveCycleAndRules persists the cycle's final status and every rule's
// executed state. The UPDATE is fenced by the version token read at load
// time: if another execution committed in between, zero rows match and the
// whole unit of work fails with ErrCycleConflict.
func (d *distTx) SaveCycleAndRules(ctx context.Context, c *core.SalaryCycle) error {
	var completedAt any
	if c.CompletedAt != nil {
		completedAt = c.CompletedAt.UTC()
	}
	res, err := d.tx.ExecContext(ctx,
		`UPDATE salary_cycles SET status = ?, completed_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		c.Status, completedAt, c.ID, c.Version)
	if err != nil {
		return fmt.Errorf("save cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save cycle rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrCycleConflict
	}
	c.Version++

	for _, rule := range c.Rules {
		var executedAt any
		if rule.ExecutedAt != nil {
			executedAt = rule.ExecutedAt.UTC()
		}
		_, err := d.tx.ExecContext(ctx,
			`UPDATE salary_distributions SET executed = ?, executed_at = ? WHERE id = ?`,
			rule.Executed, executedAt, rule.ID)
		if err != nil {
			return fmt.Errorf("save distribution rule %d: %w", rule.ID, err)
		}
	}
	return nil
}
