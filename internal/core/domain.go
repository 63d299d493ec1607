package core

import (
	"errors"
	"strings"
	"time"
)

// CycleStatus is the lifecycle state of a salary cycle. Failed is part of the
// model but is never assigned by the execution engine: failures roll the unit
// of work back and leave the stored status untouched, so a failed attempt can
// simply be retried.
type CycleStatus string

const (
	CyclePending    CycleStatus = "pending"
	CycleInProgress CycleStatus = "in_progress"
	CycleCompleted  CycleStatus = "completed"
	CycleFailed     CycleStatus = "failed"
)

// DistributionType selects how a rule's transfer amount is computed. The set
// is closed; amount computation switches exhaustively over it and treats
// anything else as a zero transfer.
type DistributionType string

const (
	Fixed      DistributionType = "fixed"
	Percentage DistributionType = "percentage"
	Remainder  DistributionType = "remainder"
)

type AccountType string

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	EWallet    AccountType = "ewallet"
	Cash       AccountType = "cash"
	Investment AccountType = "investment"
)

type TransactionType string

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
)

type TransactionCategory string

const (
	CategorySalary       TransactionCategory = "salary"
	CategoryDistribution TransactionCategory = "distribution"
	CategoryTransfer     TransactionCategory = "transfer"
	CategoryExpense      TransactionCategory = "expense"
	CategoryOther        TransactionCategory = "other"
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidType      = errors.New("invalid type")
	ErrNoRules          = errors.New("cycle needs at least one distribution rule")

	// ErrCycleNotFound covers both a nonexistent cycle and a cycle owned by
	// another user; callers cannot tell the two apart.
	ErrCycleNotFound = errors.New("salary cycle not found")
	// ErrCycleCompleted guards against re-executing a finished cycle.
	ErrCycleCompleted = errors.New("salary cycle already completed")
	// ErrCycleConflict reports a stale version token: another execution
	// committed between our snapshot and our write.
	ErrCycleConflict = errors.New("salary cycle modified concurrently")

	ErrAccountNotFound = errors.New("account not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotFound        = errors.New("not found")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

type Account struct {
	ID        int64
	UserID    int64
	Name      string
	Type      AccountType
	Balance   Money
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	switch a.Type {
	case Checking, Savings, EWallet, Cash, Investment:
	default:
		return ErrInvalidType
	}
	return nil
}

// SalaryCycle is one paycheck-distribution event. Version is an optimistic
// concurrency token bumped on every engine write; a stale token fails the
// whole unit of work.
type SalaryCycle struct {
	ID          int64
	UserID      int64
	PayDate     time.Time
	Gross       Money
	Net         Money
	Status      CycleStatus
	Version     int64
	CreatedAt   time.Time
	CompletedAt *time.Time
	Rules       []DistributionRule
}

func (c SalaryCycle) Validate() error {
	if err := c.Gross.Validate(); err != nil {
		return err
	}
	if err := c.Net.Validate(); err != nil {
		return err
	}
	if c.Net.Cents > c.Gross.Cents {
		return errors.New("net salary exceeds gross salary")
	}
	if c.PayDate.IsZero() {
		return errors.New("pay date cannot be zero")
	}
	if len(c.Rules) == 0 {
		return ErrNoRules
	}
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DistributionRule is one ordered instruction within a cycle. Nominal is in
// cents for fixed rules and in hundredths of a percent for percentage rules
// (2500 means 25.00%); remainder rules ignore it.
type DistributionRule struct {
	ID              int64
	CycleID         int64
	TargetAccountID int64
	Nominal         Money
	Type            DistributionType
	OrderIndex      int
	Executed        bool
	ExecutedAt      *time.Time
}

func (r DistributionRule) Validate() error {
	switch r.Type {
	case Fixed:
		return r.Nominal.Validate()
	case Percentage:
		if r.Nominal.Cents <= 0 || r.Nominal.Cents > 10000 {
			return ErrInvalidAmount
		}
		return nil
	case Remainder:
		return nil
	default:
		return ErrInvalidType
	}
}

// Transaction is one immutable ledger entry. Rows are only ever appended.
// CycleID is set on distribution entries so the cycle's ledger rows can be
// collected later; it is nil for everything else.
type Transaction struct {
	ID          int64
	AccountID   int64
	CycleID     *int64
	Amount      Money
	Type        TransactionType
	Category    TransactionCategory
	Description string
	Date        time.Time
	CreatedAt   time.Time
}

func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case Deposit, Withdrawal:
	default:
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	return nil
}

type Expense struct {
	ID          int64
	UserID      int64
	AccountID   *int64
	Description string
	Amount      Money
	Category    string
	Date        time.Time
	CreatedAt   time.Time
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return errors.New("empty category")
	}
	if e.Date.IsZero() {
		return errors.New("expense date cannot be zero")
	}
	return nil
}
