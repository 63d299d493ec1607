package core

import "sort"

// StepOutcome classifies what the plan decided for a single rule.
type StepOutcome string

const (
	// StepApplied means the rule produces a strictly positive transfer.
	StepApplied StepOutcome = "applied"
	// StepZero means the rule computes to nothing: exhausted remainder or an
	// unrecognized distribution type. No ledger entry is written for it.
	StepZero StepOutcome = "zero"
)

// PlanStep is the planned result for one rule, in processing order.
type PlanStep struct {
	Rule     DistributionRule
	Transfer Money
	Outcome  StepOutcome
}

// SortRules orders rules by ascending order index. The sort is stable, so
// rules sharing an index keep the order they were loaded in.
func SortRules(rules []DistributionRule) []DistributionRule {
	sorted := make([]DistributionRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrderIndex < sorted[j].OrderIndex
	})
	return sorted
}

// TransferAmount computes how much a single rule moves given the cycle's
// original net amount and the running unallocated remainder.
//
// Fixed rules transfer their nominal, capped by the remainder. Percentage
// rules take their share of the ORIGINAL net amount, not of the remainder,
// then cap by the remainder. Remainder rules sweep whatever is left and
// ignore their nominal. Anything else transfers zero.
func TransferAmount(rule DistributionRule, net, remaining Money) Money {
	switch rule.Type {
	case Fixed:
		return MinMoney(rule.Nominal, remaining)
	case Percentage:
		return MinMoney(percentOf(net, rule.Nominal), remaining)
	case Remainder:
		return remaining
	default:
		return Money{}
	}
}

// percentOf applies a fixed-point percentage (hundredths of a percent) to an
// amount, rounding half-up on the half-cent. The amount is split around the
// divisor before multiplying so the intermediate products fit in int64 for
// any representable amount.
func percentOf(amount, hundredths Money) Money {
	q := amount.Cents / 10000
	r := amount.Cents % 10000
	return Money{Cents: q*hundredths.Cents + (r*hundredths.Cents+5000)/10000}
}

// PlanDistribution folds a cycle's rules into the sequence of transfers the
// engine would perform, plus the final unallocated remainder. It is pure: no
// account lookups, no persistence. The engine re-runs the same computation
// per rule so that a rule with a dangling account reference can be skipped
// without disturbing the amounts of the rules after it.
//
// The sum of planned transfers never exceeds net: every step is capped by the
// running remainder and the remainder never goes negative.
func PlanDistribution(rules []DistributionRule, net Money) ([]PlanStep, Money) {
	remaining := net
	steps := make([]PlanStep, 0, len(rules))
	for _, rule := range SortRules(rules) {
		transfer := TransferAmount(rule, net, remaining)
		outcome := StepZero
		if transfer.IsPositive() {
			outcome = StepApplied
			remaining = remaining.Sub(transfer)
		}
		steps = append(steps, PlanStep{Rule: rule, Transfer: transfer, Outcome: outcome})
	}
	return steps, remaining
}
