package promotion

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/pricing"
)

// Result is the priced cart. Monetary amounts are rounded to the currency's
// minor unit; totals are sums of the rounded line amounts.
type Result struct {
	Success             bool
	Outcome             string
	Messages            []string
	Currency            string
	OriginalTotal       decimal.Decimal
	FinalTotal          decimal.Decimal
	TotalDiscountAmount decimal.Decimal
	CartItems           []LineResult
	AppliedPromotions   []PromotionSummary
	State               RunState
	HaltedBy            uuid.UUID
	Trace               []Step
}

// LineResult is the priced view of one cart line.
type LineResult struct {
	ProductID                   uuid.UUID
	ProductName                 string
	Quantity                    decimal.Decimal
	OriginalLineTotal           decimal.Decimal
	FinalLineTotal              decimal.Decimal
	PromotionDiscount           decimal.Decimal
	EffectiveDiscountPercentage decimal.Decimal
	AppliedPromotions           []AppliedPromotion
}

// PromotionSummary is the cart-wide discount attributed to one promotion.
type PromotionSummary struct {
	PromotionID         uuid.UUID
	PromotionName       string
	TotalDiscountAmount decimal.Decimal
}

func assemble(run runResult, currency string, messages []string) Result {
	res := Result{
		Success:       true,
		Messages:      messages,
		Currency:      currency,
		OriginalTotal: decimal.Zero,
		FinalTotal:    decimal.Zero,
		State:         run.state,
		HaltedBy:      run.haltedBy,
		Trace:         run.ledger.Steps(),
	}

	var order []uuid.UUID
	summaries := make(map[uuid.UUID]*PromotionSummary)
	for _, line := range run.ledger.lines {
		original := pricing.Round(line.OriginalTotal, currency)
		final := pricing.Round(line.RunningTotal, currency)
		applied := make([]AppliedPromotion, len(line.Applied))
		for i, rec := range line.Applied {
			rec.DiscountAmount = pricing.Round(rec.DiscountAmount, currency)
			applied[i] = rec

			summary, ok := summaries[rec.PromotionID]
			if !ok {
				summary = &PromotionSummary{PromotionID: rec.PromotionID, PromotionName: rec.PromotionName, TotalDiscountAmount: decimal.Zero}
				summaries[rec.PromotionID] = summary
				order = append(order, rec.PromotionID)
			}
			summary.TotalDiscountAmount = summary.TotalDiscountAmount.Add(rec.DiscountAmount)
		}

		res.CartItems = append(res.CartItems, LineResult{
			ProductID:                   line.ProductID,
			ProductName:                 line.ProductName,
			Quantity:                    line.Quantity,
			OriginalLineTotal:           original,
			FinalLineTotal:              final,
			PromotionDiscount:           pricing.Round(line.PromotionDiscount(), currency),
			EffectiveDiscountPercentage: pricing.Ratio(line.OriginalTotal.Sub(line.RunningTotal), line.OriginalTotal).Round(2),
			AppliedPromotions:           applied,
		})
		res.OriginalTotal = res.OriginalTotal.Add(original)
		res.FinalTotal = res.FinalTotal.Add(final)
	}
	res.TotalDiscountAmount = res.OriginalTotal.Sub(res.FinalTotal)

	// Summaries follow first-applied order across the trace, not cart order.
	res.AppliedPromotions = make([]PromotionSummary, 0, len(order))
	for _, step := range res.Trace {
		if s, ok := summaries[step.PromotionID]; ok {
			res.AppliedPromotions = append(res.AppliedPromotions, *s)
			delete(summaries, step.PromotionID)
		}
	}
	return res
}

func failed(currency, outcome string, messages ...string) Result {
	return Result{
		Success:             false,
		Outcome:             outcome,
		Messages:            messages,
		Currency:            currency,
		OriginalTotal:       decimal.Zero,
		FinalTotal:          decimal.Zero,
		TotalDiscountAmount: decimal.Zero,
	}
}
