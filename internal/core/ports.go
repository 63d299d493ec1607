package core

import "context"

// DistributionStore is the narrow storage contract the salary distribution
// engine runs against. Every method call between Atomic's begin and
// commit/rollback is part of one unit of work: either all writes land or none
// do.
type DistributionStore interface {
	// CycleWithRules returns a consistent snapshot of the cycle and its full
	// rule set, or ErrCycleNotFound.
	CycleWithRules(ctx context.Context, cycleID int64) (*SalaryCycle, error)
	// Account returns the current state of an account, or ErrAccountNotFound.
	Account(ctx context.Context, accountID int64) (*Account, error)
	// SaveAccountBalance persists an updated balance.
	SaveAccountBalance(ctx context.Context, accountID int64, balance Money) error
	// AppendTransaction appends one immutable ledger entry.
	AppendTransaction(ctx context.Context, tx *Transaction) error
	// SaveCycleAndRules persists cycle status, timestamps and the executed
	// flags of all rules. The write is guarded by the cycle's version token
	// and returns ErrCycleConflict when the token is stale.
	SaveCycleAndRules(ctx context.Context, cycle *SalaryCycle) error
}

// UnitOfWork brackets a function in one atomic transaction. If fn returns an
// error the transaction rolls back and the error is returned unchanged.
type UnitOfWork interface {
	Atomic(ctx context.Context, fn func(store DistributionStore) error) error
}
