// Package memory is an in-process LedgerExporter for tests and for running
// the worker without Google credentials.
package memory

import (
	"context"
	"sync"

	"sahod/internal/export"
)

type Exporter struct {
	mu   sync.Mutex
	rows []export.LedgerRow
}

var _ export.LedgerExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) AppendRows(ctx context.Context, rows []export.LedgerRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = append(e.rows, rows...)
	return nil
}

// Rows returns a copy of everything exported so far.
func (e *Exporter) Rows() []export.LedgerRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]export.LedgerRow, len(e.rows))
	copy(out, e.rows)
	return out
}
