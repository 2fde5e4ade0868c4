package promotion

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/pricing"
)

// AppliedPromotion records a discount a promotion placed on one line.
type AppliedPromotion struct {
	PromotionID        uuid.UUID
	PromotionName      string
	RuleType           RuleType
	DiscountAmount     decimal.Decimal
	DiscountPercentage decimal.NullDecimal
}

// CartLine is the engine's working view of a cart item. Values are never
// mutated in place; the ledger swaps in copies.
type CartLine struct {
	Index                   int
	ProductID               uuid.UUID
	ProductName             string
	UnitPrice               decimal.Decimal
	Quantity                decimal.Decimal
	CategoryIDs             []uuid.UUID
	ExistingDiscountPercent decimal.Decimal

	// OriginalTotal is unit price times quantity. StartingTotal is OriginalTotal
	// after the pre-existing line discount; promotions only ever lower RunningTotal.
	OriginalTotal decimal.Decimal
	StartingTotal decimal.Decimal
	RunningTotal  decimal.Decimal
	Locked        bool
	Applied       []AppliedPromotion
}

func newCartLine(index int, item CartItem) CartLine {
	original := item.UnitPrice.Mul(item.Quantity)
	starting := original
	if item.ExistingLineDiscount.Sign() > 0 {
		starting = pricing.ClampNonNegative(original.Sub(pricing.Percent(original, item.ExistingLineDiscount)))
	}
	return CartLine{
		Index:                   index,
		ProductID:               item.ProductID,
		ProductName:             item.ProductName,
		UnitPrice:               item.UnitPrice,
		Quantity:                item.Quantity,
		CategoryIDs:             item.CategoryIDs,
		ExistingDiscountPercent: item.ExistingLineDiscount,
		OriginalTotal:           original,
		StartingTotal:           starting,
		RunningTotal:            starting,
	}
}

// PromotionDiscount is how far promotions moved the line below its starting total.
func (l CartLine) PromotionDiscount() decimal.Decimal {
	return l.StartingTotal.Sub(l.RunningTotal)
}

func (l CartLine) inCategories(ids []uuid.UUID) bool {
	for _, id := range ids {
		if slices.Contains(l.CategoryIDs, id) {
			return true
		}
	}
	return false
}

func (l CartLine) isProduct(ids []uuid.UUID) bool {
	return slices.Contains(ids, l.ProductID)
}

// withDiscount returns a copy of the line lowered by at most amount. The
// returned amount is what was actually taken off.
func (l CartLine) withDiscount(amount decimal.Decimal, rec AppliedPromotion) (CartLine, decimal.Decimal) {
	if l.Locked || amount.Sign() <= 0 {
		return l, decimal.Zero
	}
	if amount.GreaterThan(l.RunningTotal) {
		amount = l.RunningTotal
	}
	rec.DiscountAmount = amount
	next := l
	next.RunningTotal = l.RunningTotal.Sub(amount)
	next.Applied = append(slices.Clip(l.Applied), rec)
	return next, amount
}
