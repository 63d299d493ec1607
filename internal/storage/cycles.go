package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sahod/internal/core"
)

// CreateCycleWithRules inserts a cycle and all of its distribution rules in
// one transaction. The cycle starts pending with version 0.
func (r *Repository) CreateCycleWithRules(ctx context.Context, c *core.SalaryCycle) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create cycle: %w", err)
	}
	defer tx.Rollback()

	c.Status = core.CyclePending
	c.Version = 0
	c.CreatedAt = time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO salary_cycles (user_id, pay_date, gross_cents, net_cents, status, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.UserID, c.PayDate.UTC(), c.Gross.Cents, c.Net.Cents, c.Status, c.Version, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}

	for i := range c.Rules {
		rule := &c.Rules[i]
		rule.CycleID = c.ID
		rule.Executed = false
		err = tx.QueryRowContext(ctx,
			`INSERT INTO salary_distributions (cycle_id, target_account_id, nominal_cents, distribution_type, order_index, executed)
			 VALUES (?, ?, ?, ?, ?, 0) RETURNING id`,
			rule.CycleID, rule.TargetAccountID, rule.Nominal.Cents, rule.Type, rule.OrderIndex,
		).Scan(&rule.ID)
		if err != nil {
			return fmt.Errorf("insert distribution rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create cycle: %w", err)
	}
	return nil
}

// ListRecentCycles returns the user's cycles by most recent pay date, rules
// included.
func (r *Repository) ListRecentCycles(ctx context.Context, userID int64, limit int) ([]core.SalaryCycle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, pay_date, gross_cents, net_cents, status, version, created_at, completed_at
		 FROM salary_cycles WHERE user_id = ? ORDER BY pay_date DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var cycles []core.SalaryCycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}

	for i := range cycles {
		rules, err := queryRules(ctx, r.db, cycles[i].ID)
		if err != nil {
			return nil, err
		}
		cycles[i].Rules = rules
	}
	return cycles, nil
}

// LatestCycle returns the user's most recent cycle by pay date, or
// core.ErrCycleNotFound when the user has none.
func (r *Repository) LatestCycle(ctx context.Context, userID int64) (*core.SalaryCycle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, pay_date, gross_cents, net_cents, status, version, created_at, completed_at
		 FROM salary_cycles WHERE user_id = ? ORDER BY pay_date DESC, id DESC LIMIT 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("latest cycle: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("latest cycle: %w", err)
		}
		return nil, core.ErrCycleNotFound
	}
	return scanCycle(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*core.SalaryCycle, error) {
	c := core.SalaryCycle{}
	var completedAt sql.NullTime
	err := row.Scan(&c.ID, &c.UserID, &c.PayDate, &c.Gross.Cents, &c.Net.Cents,
		&c.Status, &c.Version, &c.CreatedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return &c, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryRules loads a cycle's rules in snapshot order (insertion order), not
// execution order; the engine sorts by order index itself.
func queryRules(ctx context.Context, q querier, cycleID int64) ([]core.DistributionRule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, cycle_id, target_account_id, nominal_cents, distribution_type, order_index, executed, executed_at
		 FROM salary_distributions WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []core.DistributionRule
	for rows.Next() {
		rule := core.DistributionRule{}
		var executedAt sql.NullTime
		if err := rows.Scan(&rule.ID, &rule.CycleID, &rule.TargetAccountID, &rule.Nominal.Cents,
			&rule.Type, &rule.OrderIndex, &rule.Executed, &executedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if executedAt.Valid {
			t := executedAt.Time
			rule.ExecutedAt = &t
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}
