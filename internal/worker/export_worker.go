// Package worker mirrors committed ledger entries to the external export
// backend. Events drive the common path; a periodic sweep of unexported rows
// covers lost messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"sahod/internal/amqp"
	"sahod/internal/core"
	"sahod/internal/export"
	"sahod/internal/storage"
)

type ExportWorker struct {
	repo      *storage.Repository
	exporter  export.LedgerExporter
	batchSize int
}

func NewExportWorker(repo *storage.Repository, exporter export.LedgerExporter, batchSize int) *ExportWorker {
	return &ExportWorker{
		repo:      repo,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleCycleExecuted exports the ledger entries one cycle execution wrote.
func (w *ExportWorker) HandleCycleExecuted(ctx context.Context, msg *amqp.CycleExecutedMessage) error {
	slog.InfoContext(ctx, "Exporting cycle ledger entries",
		"cycle_id", msg.CycleID, "user_id", msg.UserID)

	txs, err := w.repo.ListCycleTransactions(ctx, msg.CycleID)
	if err != nil {
		return fmt.Errorf("load cycle transactions: %w", err)
	}
	if len(txs) == 0 {
		slog.DebugContext(ctx, "No unexported entries for cycle", "cycle_id", msg.CycleID)
		return nil
	}
	return w.exportBatch(ctx, txs)
}

// SweepUnexported exports any rows the event path missed. It runs on a timer
// and at worker startup.
func (w *ExportWorker) SweepUnexported(ctx context.Context) error {
	txs, err := w.repo.ListUnexportedTransactions(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unexported transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping unexported transactions", "count", len(txs))
	return w.exportBatch(ctx, txs)
}

// exportBatch appends the rows to the exporter, then marks them exported.
func (w *ExportWorker) exportBatch(ctx context.Context, txs []core.Transaction) error {
	rows := make([]export.LedgerRow, 0, len(txs))
	ids := make([]int64, 0, len(txs))
	for _, t := range txs {
		accountName, err := w.accountName(ctx, t.AccountID)
		if err != nil {
			return err
		}
		rows = append(rows, export.LedgerRow{
			TransactionID: t.ID,
			AccountName:   accountName,
			Amount:        t.Amount,
			Type:          t.Type,
			Category:      t.Category,
			Description:   t.Description,
			Date:          t.Date,
		})
		ids = append(ids, t.ID)
	}

	if err := w.exporter.AppendRows(ctx, rows); err != nil {
		return fmt.Errorf("append rows to exporter: %w", err)
	}

	for _, id := range ids {
		if err := w.repo.MarkTransactionExported(ctx, id); err != nil {
			// The row landed in the export; log and keep marking the rest.
			// The sweep will retry this one and the exporter may duplicate
			// it, which reporting tolerates.
			slog.ErrorContext(ctx, "Failed to mark transaction exported",
				"transaction_id", id, "error", err)
		}
	}

	slog.InfoContext(ctx, "Exported ledger batch", "count", len(rows))
	return nil
}

func (w *ExportWorker) accountName(ctx context.Context, accountID int64) (string, error) {
	account, err := w.repo.AccountByID(ctx, accountID)
	if errors.Is(err, core.ErrAccountNotFound) {
		// Account deleted after the entry was written; export with a
		// placeholder rather than wedging the queue.
		return fmt.Sprintf("account %d", accountID), nil
	}
	if err != nil {
		return "", fmt.Errorf("load account %d: %w", accountID, err)
	}
	return account.Name, nil
}
