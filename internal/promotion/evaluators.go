package promotion

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/pricing"
)

type evalInput struct {
	ledger Ledger
	at     time.Time
	scale  int32
}

// lineBasis pairs a line index with an amount: either a weight for
// allocate or the line's own discount.
type lineBasis struct {
	line   int
	amount decimal.Decimal
}

// outcome is an evaluator's verdict. When exact is set, basis already holds
// the per-line discounts; otherwise discount is spread over basis by weight.
type outcome struct {
	applied    bool
	exact      bool
	discount   decimal.Decimal
	basis      []lineBasis
	percentage decimal.NullDecimal
	reason     string
}

// allocations resolves the per-line discounts of an applied outcome.
func (o outcome) allocations(scale int32) []lineBasis {
	if o.exact {
		return o.basis
	}
	return allocate(o.discount, o.basis, scale)
}

func notApplied(format string, args ...any) outcome {
	return outcome{reason: fmt.Sprintf(format, args...)}
}

func (r DiscountRule) evaluate(in evalInput) outcome {
	return percentOff(in.ledger.unlocked(), r.Percentage)
}

func (r CategoryDiscountRule) evaluate(in evalInput) outcome {
	var scoped []CartLine
	for _, line := range in.ledger.unlocked() {
		if line.inCategories(r.CategoryIDs) {
			scoped = append(scoped, line)
		}
	}
	if len(scoped) == 0 {
		return notApplied("no unlocked lines in the promotion categories")
	}
	return percentOff(scoped, r.Percentage)
}

func (r CartAmountDiscountRule) evaluate(in evalInput) outcome {
	lines := in.ledger.unlocked()
	subtotal := sumRunning(lines)
	if subtotal.LessThan(r.MinOrderAmount) {
		return notApplied("cart subtotal %s is below the minimum order amount %s", subtotal, r.MinOrderAmount)
	}
	return amountOff(lines, r.Amount)
}

func (r BuyXGetYRule) evaluate(in evalInput) outcome {
	required := decimal.NewFromInt(int64(r.RequiredQuantity))
	perGroup := decimal.NewFromInt(int64(r.FreeQuantity))
	var out outcome
	for _, line := range in.ledger.unlocked() {
		if len(r.ProductIDs) > 0 && !line.isProduct(r.ProductIDs) {
			continue
		}
		free := line.Quantity.Div(required).Floor().Mul(perGroup)
		if free.GreaterThan(line.Quantity) {
			free = line.Quantity
		}
		value := free.Mul(line.UnitPrice)
		if value.GreaterThan(line.RunningTotal) {
			value = line.RunningTotal
		}
		if value.Sign() <= 0 {
			continue
		}
		out.basis = append(out.basis, lineBasis{line: line.Index, amount: value})
		out.discount = out.discount.Add(value)
	}
	if len(out.basis) == 0 {
		return notApplied("no line reaches the required quantity of %d", r.RequiredQuantity)
	}
	out.applied = true
	out.exact = true
	return out
}

func (r FixedPriceRule) evaluate(in evalInput) outcome {
	var out outcome
	scoped := 0
	for _, line := range in.ledger.unlocked() {
		if !r.covers(line) {
			continue
		}
		scoped++
		target := r.FixedPrice.Mul(line.Quantity)
		if !target.LessThan(line.RunningTotal) {
			continue
		}
		saving := line.RunningTotal.Sub(target)
		out.basis = append(out.basis, lineBasis{line: line.Index, amount: saving})
		out.discount = out.discount.Add(saving)
	}
	switch {
	case scoped == 0:
		return notApplied("no unlocked lines match the fixed price scope")
	case len(out.basis) == 0:
		return notApplied("fixed price %s is not lower than the current line prices", r.FixedPrice)
	}
	out.applied = true
	out.exact = true
	return out
}

func (r FixedPriceRule) covers(line CartLine) bool {
	if len(r.ProductIDs) == 0 && len(r.CategoryIDs) == 0 {
		return true
	}
	return line.isProduct(r.ProductIDs) || line.inCategories(r.CategoryIDs)
}

func (r BundleRule) evaluate(in evalInput) outcome {
	lines := in.ledger.lines
	members := make([]CartLine, 0, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		idx := slices.IndexFunc(lines, func(l CartLine) bool { return l.ProductID == id })
		if idx < 0 {
			return notApplied("bundle product %s is not in the cart", id)
		}
		if lines[idx].Locked {
			return notApplied("bundle product %s is locked by a non-combinable promotion", id)
		}
		members = append(members, lines[idx])
	}
	memberTotal := sumRunning(members)
	if !r.FixedPrice.LessThan(memberTotal) {
		return notApplied("bundle price %s is not lower than the member total %s", r.FixedPrice, memberTotal)
	}
	// Split the bundle price itself so the members add up to it exactly.
	weights := make([]lineBasis, len(members))
	for i, m := range members {
		weights[i] = lineBasis{line: m.Index, amount: m.RunningTotal}
	}
	out := outcome{applied: true, exact: true, discount: memberTotal.Sub(r.FixedPrice)}
	shares := allocate(r.FixedPrice, weights, in.scale)
	for i, m := range members {
		paid := decimal.Zero
		if shares != nil {
			paid = shares[i].amount
		}
		out.basis = append(out.basis, lineBasis{line: m.Index, amount: pricing.ClampNonNegative(m.RunningTotal.Sub(paid))})
	}
	return out
}

func (r CouponRule) evaluate(in evalInput) outcome {
	return r.Adjustment.apply(in.ledger.unlocked())
}

func (r TimeLimitedRule) evaluate(in evalInput) outcome {
	if !slices.Contains(r.ValidDays, in.at.Weekday()) {
		return notApplied("only valid on %s", weekdayList(r.ValidDays))
	}
	return r.Adjustment.apply(in.ledger.unlocked())
}

func (r ExclusiveRule) evaluate(in evalInput) outcome {
	return r.Adjustment.apply(in.ledger.unlocked())
}

func (a Adjustment) apply(lines []CartLine) outcome {
	if a.Percentage.Valid {
		return percentOff(lines, a.Percentage.Decimal)
	}
	return amountOff(lines, a.Amount.Decimal)
}

func percentOff(lines []CartLine, pct decimal.Decimal) outcome {
	out := outcome{exact: true, percentage: decimal.NewNullDecimal(pct)}
	for _, line := range lines {
		if line.RunningTotal.Sign() <= 0 {
			continue
		}
		saving := pricing.Percent(line.RunningTotal, pct)
		out.basis = append(out.basis, lineBasis{line: line.Index, amount: saving})
		out.discount = out.discount.Add(saving)
	}
	if out.discount.Sign() <= 0 {
		return notApplied("nothing left to discount")
	}
	out.applied = true
	return out
}

func amountOff(lines []CartLine, amount decimal.Decimal) outcome {
	subtotal := sumRunning(lines)
	if subtotal.Sign() <= 0 || amount.Sign() <= 0 {
		return notApplied("nothing left to discount")
	}
	out := outcome{applied: true, discount: decimal.Min(amount, subtotal)}
	for _, line := range lines {
		if line.RunningTotal.Sign() > 0 {
			out.basis = append(out.basis, lineBasis{line: line.Index, amount: line.RunningTotal})
		}
	}
	return out
}

// allocate spreads total across the basis lines in proportion to their
// weights, in whole minor units of scale. Units left after flooring go to
// the largest remainders, earlier lines first on ties; a residue smaller
// than one unit lands on the last line. The shares sum to total exactly.
func allocate(total decimal.Decimal, basis []lineBasis, scale int32) []lineBasis {
	if len(basis) == 0 || total.Sign() <= 0 {
		return nil
	}
	weight := decimal.Zero
	for _, b := range basis {
		weight = weight.Add(b.amount)
	}
	if weight.Sign() <= 0 {
		return nil
	}

	out := make([]lineBasis, len(basis))
	remainders := make([]decimal.Decimal, len(basis))
	left := total
	for i, b := range basis {
		exact := total.Mul(b.amount).Div(weight)
		share := exact.RoundFloor(scale)
		out[i] = lineBasis{line: b.line, amount: share}
		remainders[i] = exact.Sub(share)
		left = left.Sub(share)
	}

	order := make([]int, len(basis))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return remainders[b].Cmp(remainders[a]) })
	unit := decimal.New(1, -scale)
	for _, i := range order {
		if left.LessThan(unit) {
			break
		}
		out[i].amount = out[i].amount.Add(unit)
		left = left.Sub(unit)
	}
	if left.Sign() > 0 {
		out[len(out)-1].amount = out[len(out)-1].amount.Add(left)
	}
	return out
}

func sumRunning(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.RunningTotal)
	}
	return total
}

func weekdayList(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()
	}
	return strings.Join(names, ", ")
}
