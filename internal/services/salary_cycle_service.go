// Package services orchestrates domain operations across storage, the event
// queue and the export pipeline.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sahod/internal/amqp"
	"sahod/internal/core"
	"sahod/internal/storage"
)

// SalaryCycleService owns the lifecycle of salary cycles: declaring them,
// listing them, and executing their distributions atomically.
type SalaryCycleService struct {
	repo *storage.Repository
	uow  core.UnitOfWork
	amqp *amqp.Client

	// Now supplies timestamps for executedAt/completedAt; tests override it
	// for deterministic output.
	Now func() time.Time
}

func NewSalaryCycleService(repo *storage.Repository, uow core.UnitOfWork, amqpClient *amqp.Client) *SalaryCycleService {
	return &SalaryCycleService{
		repo: repo,
		uow:  uow,
		amqp: amqpClient,
		Now:  time.Now,
	}
}

// CreateCycle declares a new pending cycle with its distribution rules.
func (s *SalaryCycleService) CreateCycle(ctx context.Context, cycle *core.SalaryCycle) error {
	if err := cycle.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateCycleWithRules(ctx, cycle); err != nil {
		return fmt.Errorf("create salary cycle: %w", err)
	}
	slog.InfoContext(ctx, "Created salary cycle",
		"cycle_id", cycle.ID,
		"user_id", cycle.UserID,
		"pay_date", cycle.PayDate.Format("2006-01-02"),
		"net", cycle.Net.String(),
		"rules", len(cycle.Rules))
	return nil
}

// RecentCycles returns the user's latest cycles, most recent pay date first.
func (s *SalaryCycleService) RecentCycles(ctx context.Context, userID int64, count int) ([]core.SalaryCycle, error) {
	if count <= 0 {
		count = 6
	}
	cycles, err := s.repo.ListRecentCycles(ctx, userID, count)
	if err != nil {
		return nil, fmt.Errorf("recent cycles: %w", err)
	}
	return cycles, nil
}

// NextPayDate predicts the user's next payday: the latest cycle's pay date
// plus two weeks (bi-weekly payroll). Returns nil when no cycle exists yet.
func (s *SalaryCycleService) NextPayDate(ctx context.Context, userID int64) (*time.Time, error) {
	latest, err := s.repo.LatestCycle(ctx, userID)
	if errors.Is(err, core.ErrCycleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pay date: %w", err)
	}
	next := latest.PayDate.AddDate(0, 0, 14)
	return &next, nil
}

// Execute runs the salary distribution for one cycle inside a single unit of
// work. Rules are processed in order-index order; each transfers its computed
// amount into its target account and appends one ledger entry. Any failure
// rolls the whole execution back and no partial state survives.
//
// A cycle that is already completed fails with core.ErrCycleCompleted. A
// cycle that does not exist, or belongs to another user, fails with
// core.ErrCycleNotFound; the two cases are indistinguishable on purpose.
func (s *SalaryCycleService) Execute(ctx context.Context, userID, cycleID int64) (*core.SalaryCycle, error) {
	slog.InfoContext(ctx, "Starting distribution execution", "cycle_id", cycleID, "user_id", userID)

	var executed *core.SalaryCycle
	err := s.uow.Atomic(ctx, func(store core.DistributionStore) error {
		cycle, err := store.CycleWithRules(ctx, cycleID)
		if err != nil {
			return err
		}
		if cycle.UserID != userID {
			return core.ErrCycleNotFound
		}
		if cycle.Status == core.CycleCompleted {
			return core.ErrCycleCompleted
		}

		cycle.Status = core.CycleInProgress
		if err := s.runDistributions(ctx, store, cycle); err != nil {
			return err
		}

		now := s.Now().UTC()
		cycle.Status = core.CycleCompleted
		cycle.CompletedAt = &now
		if err := store.SaveCycleAndRules(ctx, cycle); err != nil {
			return err
		}
		executed = cycle
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Distribution execution failed, rolled back",
			"cycle_id", cycleID, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "Completed distribution execution", "cycle_id", cycleID)
	s.publishCycleExecuted(ctx, executed)
	return executed, nil
}

// runDistributions applies the cycle's rules in order against the open unit
// of work. A rule whose target account no longer exists is skipped rather
// than failing the cycle; a zero computed amount leaves the rule unexecuted.
func (s *SalaryCycleService) runDistributions(ctx context.Context, store core.DistributionStore, cycle *core.SalaryCycle) error {
	remaining := cycle.Net
	rules := core.SortRules(cycle.Rules)

	for i := range rules {
		rule := &rules[i]

		account, err := store.Account(ctx, rule.TargetAccountID)
		if errors.Is(err, core.ErrAccountNotFound) {
			slog.WarnContext(ctx, "Skipping rule with missing target account",
				"cycle_id", cycle.ID, "rule_id", rule.ID, "account_id", rule.TargetAccountID)
			continue
		}
		if err != nil {
			return err
		}

		amount := core.TransferAmount(*rule, cycle.Net, remaining)
		if !amount.IsPositive() {
			continue
		}

		if err := store.SaveAccountBalance(ctx, account.ID, account.Balance.Add(amount)); err != nil {
			return err
		}

		entry := &core.Transaction{
			AccountID:   account.ID,
			CycleID:     &cycle.ID,
			Amount:      amount,
			Type:        core.Deposit,
			Category:    core.CategoryDistribution,
			Description: fmt.Sprintf("Salary distribution - %s", cycle.PayDate.Format("2006-01-02")),
			Date:        s.Now().UTC(),
		}
		if err := store.AppendTransaction(ctx, entry); err != nil {
			return err
		}

		now := s.Now().UTC()
		rule.Executed = true
		rule.ExecutedAt = &now
		remaining = remaining.Sub(amount)

		slog.InfoContext(ctx, "Distributed to account",
			"cycle_id", cycle.ID,
			"account_id", account.ID,
			"amount", amount.String(),
			"type", rule.Type)
	}

	cycle.Rules = rules
	return nil
}

// publishCycleExecuted emits a cycle.executed event for the export worker.
// Publishing is best-effort: the distribution already committed, so a broker
// hiccup must not fail the request (the worker's sweep picks the rows up).
func (s *SalaryCycleService) publishCycleExecuted(ctx context.Context, cycle *core.SalaryCycle) {
	if s.amqp == nil {
		return
	}
	if err := s.amqp.PublishCycleExecuted(ctx, cycle.ID, cycle.UserID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish cycle executed event",
			"cycle_id", cycle.ID, "error", err)
	}
}
