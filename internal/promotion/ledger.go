package promotion

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Step is one entry of the evaluation trace: a discount landing on a line.
type Step struct {
	Sequence      int
	PromotionID   uuid.UUID
	PromotionName string
	RuleType      RuleType
	LineIndex     int
	Before        decimal.Decimal
	After         decimal.Decimal
}

// Ledger is an immutable snapshot of the cart lines plus the trace of
// discounts that produced it. Every mutation returns a new Ledger, so a
// snapshot can be kept and restored freely.
type Ledger struct {
	lines []CartLine
	steps []Step
}

// NewLedger builds the starting ledger for a validated cart.
func NewLedger(items []CartItem) Ledger {
	lines := make([]CartLine, len(items))
	for i, item := range items {
		lines[i] = newCartLine(i, item)
	}
	return Ledger{lines: lines}
}

// Lines returns a copy of the current lines.
func (l Ledger) Lines() []CartLine { return slices.Clone(l.lines) }

// Steps returns a copy of the trace.
func (l Ledger) Steps() []Step { return slices.Clone(l.steps) }

// Len reports the number of lines.
func (l Ledger) Len() int { return len(l.lines) }

// RunningTotal sums the current line totals.
func (l Ledger) RunningTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range l.lines {
		total = total.Add(line.RunningTotal)
	}
	return total
}

func (l Ledger) hasLocked() bool {
	return slices.ContainsFunc(l.lines, func(line CartLine) bool { return line.Locked })
}

// unlocked returns the lines still open to discounts, in cart order.
func (l Ledger) unlocked() []CartLine {
	out := make([]CartLine, 0, len(l.lines))
	for _, line := range l.lines {
		if !line.Locked {
			out = append(out, line)
		}
	}
	return out
}

// apply lowers each allocated line, skipping locked ones, and returns the
// new ledger with the indices that actually moved.
func (l Ledger) apply(p Promotion, ruleType RuleType, pct decimal.NullDecimal, allocations []lineBasis) (Ledger, []int) {
	lines := slices.Clone(l.lines)
	steps := slices.Clip(l.steps)
	var touched []int
	for _, alloc := range allocations {
		current := lines[alloc.line]
		next, taken := current.withDiscount(alloc.amount, AppliedPromotion{
			PromotionID:        p.ID,
			PromotionName:      p.Name,
			RuleType:           ruleType,
			DiscountPercentage: pct,
		})
		if taken.Sign() <= 0 {
			continue
		}
		lines[alloc.line] = next
		steps = append(steps, Step{
			Sequence:      len(steps) + 1,
			PromotionID:   p.ID,
			PromotionName: p.Name,
			RuleType:      ruleType,
			LineIndex:     alloc.line,
			Before:        current.RunningTotal,
			After:         next.RunningTotal,
		})
		touched = append(touched, alloc.line)
	}
	return Ledger{lines: lines, steps: steps}, touched
}

// lock marks the given lines as closed to any later promotion.
func (l Ledger) lock(indices []int) Ledger {
	if len(indices) == 0 {
		return l
	}
	lines := slices.Clone(l.lines)
	for _, idx := range indices {
		lines[idx].Locked = true
	}
	return Ledger{lines: lines, steps: l.steps}
}
