package promotion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleParams is the flat, column-per-parameter form of a rule as the catalog
// stores it. Only the parameters of the given rule type are read.
type RuleParams struct {
	DiscountPercentage decimal.NullDecimal
	DiscountAmount     decimal.NullDecimal
	MinOrderAmount     decimal.NullDecimal
	FixedPrice         decimal.NullDecimal
	RequiredQuantity   int
	FreeQuantity       int
	CategoryIDs        []uuid.UUID
	ProductIDs         []uuid.UUID
	ValidDays          []time.Weekday
}

// NewRule builds the variant for ruleType from flat parameters. A parameter
// the variant cannot do without is reported as ErrMalformedRule.
func NewRule(ruleType RuleType, p RuleParams) (Rule, error) {
	switch ruleType {
	case RuleDiscount:
		pct, err := p.require("discount percentage", p.DiscountPercentage)
		if err != nil {
			return nil, err
		}
		return DiscountRule{Percentage: pct}, nil
	case RuleCategoryDiscount:
		pct, err := p.require("discount percentage", p.DiscountPercentage)
		if err != nil {
			return nil, err
		}
		return CategoryDiscountRule{Percentage: pct, CategoryIDs: p.CategoryIDs}, nil
	case RuleCartAmountDiscount:
		amount, err := p.require("discount amount", p.DiscountAmount)
		if err != nil {
			return nil, err
		}
		return CartAmountDiscountRule{Amount: amount, MinOrderAmount: p.MinOrderAmount.Decimal}, nil
	case RuleBuyXGetY:
		return BuyXGetYRule{ProductIDs: p.ProductIDs, RequiredQuantity: p.RequiredQuantity, FreeQuantity: p.FreeQuantity}, nil
	case RuleFixedPrice:
		price, err := p.require("fixed price", p.FixedPrice)
		if err != nil {
			return nil, err
		}
		return FixedPriceRule{FixedPrice: price, ProductIDs: p.ProductIDs, CategoryIDs: p.CategoryIDs}, nil
	case RuleBundle:
		price, err := p.require("fixed price", p.FixedPrice)
		if err != nil {
			return nil, err
		}
		return BundleRule{ProductIDs: p.ProductIDs, FixedPrice: price}, nil
	case RuleCoupon:
		return CouponRule{Adjustment: p.adjustment()}, nil
	case RuleTimeLimited:
		return TimeLimitedRule{Adjustment: p.adjustment(), ValidDays: p.ValidDays}, nil
	case RuleExclusive:
		return ExclusiveRule{Adjustment: p.adjustment()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
}

func (p RuleParams) require(name string, v decimal.NullDecimal) (decimal.Decimal, error) {
	if !v.Valid {
		return decimal.Decimal{}, fmt.Errorf("%w: %s missing", ErrMalformedRule, name)
	}
	return v.Decimal, nil
}

func (p RuleParams) adjustment() Adjustment {
	return Adjustment{Percentage: p.DiscountPercentage, Amount: p.DiscountAmount}
}

// ParamsOf flattens rule into its catalog columns. It is the inverse of NewRule.
func ParamsOf(rule Rule) (RuleParams, error) {
	nd := decimal.NewNullDecimal
	switch r := rule.(type) {
	case DiscountRule:
		return RuleParams{DiscountPercentage: nd(r.Percentage)}, nil
	case CategoryDiscountRule:
		return RuleParams{DiscountPercentage: nd(r.Percentage), CategoryIDs: r.CategoryIDs}, nil
	case CartAmountDiscountRule:
		return RuleParams{DiscountAmount: nd(r.Amount), MinOrderAmount: nd(r.MinOrderAmount)}, nil
	case BuyXGetYRule:
		return RuleParams{ProductIDs: r.ProductIDs, RequiredQuantity: r.RequiredQuantity, FreeQuantity: r.FreeQuantity}, nil
	case FixedPriceRule:
		return RuleParams{FixedPrice: nd(r.FixedPrice), ProductIDs: r.ProductIDs, CategoryIDs: r.CategoryIDs}, nil
	case BundleRule:
		return RuleParams{FixedPrice: nd(r.FixedPrice), ProductIDs: r.ProductIDs}, nil
	case CouponRule:
		return RuleParams{DiscountPercentage: r.Percentage, DiscountAmount: r.Amount}, nil
	case TimeLimitedRule:
		return RuleParams{DiscountPercentage: r.Percentage, DiscountAmount: r.Amount, ValidDays: r.ValidDays}, nil
	case ExclusiveRule:
		return RuleParams{DiscountPercentage: r.Percentage, DiscountAmount: r.Amount}, nil
	case nil:
		return RuleParams{}, fmt.Errorf("%w: nil rule", ErrMalformedRule)
	default:
		return RuleParams{}, fmt.Errorf("%w: %T", ErrUnknownRuleType, rule)
	}
}
