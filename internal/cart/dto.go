package cart

import (
	"github.com/google/uuid"

	"github.com/noah-isme/toko-promo/internal/pricing"
	"github.com/noah-isme/toko-promo/internal/promotion"
)

// PriceResponse is the wire form of a priced cart. Amounts are strings fixed
// to the currency's minor unit.
type PriceResponse struct {
	Success             bool                       `json:"success"`
	Outcome             string                     `json:"outcome"`
	Messages            []string                   `json:"messages"`
	Currency            string                     `json:"currency"`
	OriginalTotal       string                     `json:"originalTotal"`
	FinalTotal          string                     `json:"finalTotal"`
	TotalDiscountAmount string                     `json:"totalDiscountAmount"`
	CartItems           []LineResponse             `json:"cartItems"`
	AppliedPromotions   []PromotionSummaryResponse `json:"appliedPromotions"`
	State               string                     `json:"state,omitempty"`
	HaltedBy            *uuid.UUID                 `json:"haltedBy,omitempty"`
	Trace               []StepResponse             `json:"trace,omitempty"`
}

type LineResponse struct {
	ProductID                   uuid.UUID                  `json:"productId"`
	ProductName                 string                     `json:"productName"`
	Quantity                    string                     `json:"quantity"`
	OriginalLineTotal           string                     `json:"originalLineTotal"`
	FinalLineTotal              string                     `json:"finalLineTotal"`
	PromotionDiscount           string                     `json:"promotionDiscount"`
	EffectiveDiscountPercentage string                     `json:"effectiveDiscountPercentage"`
	AppliedPromotions           []AppliedPromotionResponse `json:"appliedPromotions"`
}

type AppliedPromotionResponse struct {
	PromotionID        uuid.UUID `json:"promotionId"`
	PromotionName      string    `json:"promotionName"`
	RuleType           string    `json:"ruleType"`
	DiscountAmount     string    `json:"discountAmount"`
	DiscountPercentage *string   `json:"discountPercentage"`
}

type PromotionSummaryResponse struct {
	PromotionID         uuid.UUID `json:"promotionId"`
	PromotionName       string    `json:"promotionName"`
	TotalDiscountAmount string    `json:"totalDiscountAmount"`
}

type StepResponse struct {
	Sequence    int       `json:"sequence"`
	PromotionID uuid.UUID `json:"promotionId"`
	RuleType    string    `json:"ruleType"`
	LineIndex   int       `json:"lineIndex"`
	Before      string    `json:"before"`
	After       string    `json:"after"`
}

// NewPriceResponse renders res; the trace is only carried when asked for.
func NewPriceResponse(res promotion.Result, withTrace bool) PriceResponse {
	cur := res.Currency
	out := PriceResponse{
		Success:             res.Success,
		Outcome:             res.Outcome,
		Messages:            append([]string{}, res.Messages...),
		Currency:            cur,
		OriginalTotal:       pricing.Format(res.OriginalTotal, cur),
		FinalTotal:          pricing.Format(res.FinalTotal, cur),
		TotalDiscountAmount: pricing.Format(res.TotalDiscountAmount, cur),
		CartItems:           make([]LineResponse, 0, len(res.CartItems)),
		AppliedPromotions:   make([]PromotionSummaryResponse, 0, len(res.AppliedPromotions)),
		State:               string(res.State),
	}
	if res.HaltedBy != uuid.Nil {
		id := res.HaltedBy
		out.HaltedBy = &id
	}
	for _, line := range res.CartItems {
		applied := make([]AppliedPromotionResponse, 0, len(line.AppliedPromotions))
		for _, a := range line.AppliedPromotions {
			rec := AppliedPromotionResponse{
				PromotionID:    a.PromotionID,
				PromotionName:  a.PromotionName,
				RuleType:       string(a.RuleType),
				DiscountAmount: pricing.Format(a.DiscountAmount, cur),
			}
			if a.DiscountPercentage.Valid {
				pct := a.DiscountPercentage.Decimal.StringFixed(2)
				rec.DiscountPercentage = &pct
			}
			applied = append(applied, rec)
		}
		out.CartItems = append(out.CartItems, LineResponse{
			ProductID:                   line.ProductID,
			ProductName:                 line.ProductName,
			Quantity:                    line.Quantity.String(),
			OriginalLineTotal:           pricing.Format(line.OriginalLineTotal, cur),
			FinalLineTotal:              pricing.Format(line.FinalLineTotal, cur),
			PromotionDiscount:           pricing.Format(line.PromotionDiscount, cur),
			EffectiveDiscountPercentage: line.EffectiveDiscountPercentage.StringFixed(2),
			AppliedPromotions:           applied,
		})
	}
	for _, s := range res.AppliedPromotions {
		out.AppliedPromotions = append(out.AppliedPromotions, PromotionSummaryResponse{
			PromotionID:         s.PromotionID,
			PromotionName:       s.PromotionName,
			TotalDiscountAmount: pricing.Format(s.TotalDiscountAmount, cur),
		})
	}
	if withTrace {
		for _, step := range res.Trace {
			out.Trace = append(out.Trace, StepResponse{
				Sequence:    step.Sequence,
				PromotionID: step.PromotionID,
				RuleType:    string(step.RuleType),
				LineIndex:   step.LineIndex,
				Before:      step.Before.String(),
				After:       step.After.String(),
			})
		}
	}
	return out
}
