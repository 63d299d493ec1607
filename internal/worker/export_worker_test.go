package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sahod/internal/amqp"
	"sahod/internal/core"
	"sahod/internal/export/memory"
	"sahod/internal/storage"
)

type fixture struct {
	repo     *storage.Repository
	exporter *memory.Exporter
	worker   *ExportWorker
	cycleID  int64
	userID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	user := &core.User{Email: "w@example.com", PasswordHash: "x", DisplayName: "W"}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	account := &core.Account{UserID: user.ID, Name: "Savings", Type: core.Savings}
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	cycle := &core.SalaryCycle{
		UserID:  user.ID,
		PayDate: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Gross:   core.Money{Cents: 500000},
		Net:     core.Money{Cents: 400000},
		Rules: []core.DistributionRule{
			{TargetAccountID: account.ID, Type: core.Remainder, OrderIndex: 0},
		},
	}
	if err := repo.CreateCycleWithRules(ctx, cycle); err != nil {
		t.Fatalf("CreateCycleWithRules failed: %v", err)
	}

	entry := &core.Transaction{
		AccountID:   account.ID,
		CycleID:     &cycle.ID,
		Amount:      core.Money{Cents: 400000},
		Type:        core.Deposit,
		Category:    core.CategoryDistribution,
		Description: "Salary distribution - 2026-08-15",
		Date:        time.Now().UTC(),
	}
	err = repo.Atomic(ctx, func(store core.DistributionStore) error {
		return store.AppendTransaction(ctx, entry)
	})
	if err != nil {
		t.Fatalf("append entry failed: %v", err)
	}

	exporter := memory.New()
	return &fixture{
		repo:     repo,
		exporter: exporter,
		worker:   NewExportWorker(repo, exporter, 10),
		cycleID:  cycle.ID,
		userID:   user.ID,
	}
}

func TestHandleCycleExecuted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	msg := amqp.NewCycleExecutedMessage(f.cycleID, f.userID)
	if err := f.worker.HandleCycleExecuted(ctx, msg); err != nil {
		t.Fatalf("HandleCycleExecuted failed: %v", err)
	}

	rows := f.exporter.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported %d rows, want 1", len(rows))
	}
	if rows[0].AccountName != "Savings" || rows[0].Amount.Cents != 400000 {
		t.Fatalf("exported row = %+v", rows[0])
	}

	// Redelivery must not duplicate: the rows are marked exported.
	if err := f.worker.HandleCycleExecuted(ctx, msg); err != nil {
		t.Fatalf("redelivered HandleCycleExecuted failed: %v", err)
	}
	if got := len(f.exporter.Rows()); got != 1 {
		t.Fatalf("exported %d rows after redelivery, want 1", got)
	}
}

func TestSweepUnexported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.worker.SweepUnexported(ctx); err != nil {
		t.Fatalf("SweepUnexported failed: %v", err)
	}
	if got := len(f.exporter.Rows()); got != 1 {
		t.Fatalf("sweep exported %d rows, want 1", got)
	}

	// Nothing left to do on the next tick.
	if err := f.worker.SweepUnexported(ctx); err != nil {
		t.Fatalf("second SweepUnexported failed: %v", err)
	}
	if got := len(f.exporter.Rows()); got != 1 {
		t.Fatalf("second sweep exported %d rows, want 1", got)
	}
}

func TestExportWithDeletedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Account vanished between execution and export; the row still exports
	// with a placeholder name.
	if err := f.repo.DeleteAccount(ctx, f.userID, mustAccountID(t, f)); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}

	if err := f.worker.SweepUnexported(ctx); err != nil {
		t.Fatalf("SweepUnexported failed: %v", err)
	}
	rows := f.exporter.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported %d rows, want 1", len(rows))
	}
	if rows[0].AccountName == "Savings" {
		t.Fatalf("expected placeholder account name, got %q", rows[0].AccountName)
	}
}

func mustAccountID(t *testing.T, f *fixture) int64 {
	t.Helper()
	accounts, err := f.repo.ListAccounts(context.Background(), f.userID)
	if err != nil || len(accounts) != 1 {
		t.Fatalf("ListAccounts = %+v, err=%v", accounts, err)
	}
	return accounts[0].ID
}
