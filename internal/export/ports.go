// Package export defines where executed ledger entries get mirrored to. The
// tracker's database stays the source of truth; exports are an append-only
// copy for spreadsheet-based reporting.
package export

import (
	"context"
	"time"

	"sahod/internal/core"
)

// LedgerRow is one exported ledger line, denormalized for a spreadsheet.
type LedgerRow struct {
	TransactionID int64
	AccountName   string
	Amount        core.Money
	Type          core.TransactionType
	Category      core.TransactionCategory
	Description   string
	Date          time.Time
}

// LedgerExporter appends rows to the external ledger copy.
type LedgerExporter interface {
	AppendRows(ctx context.Context, rows []LedgerRow) error
}
