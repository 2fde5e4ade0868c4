package promotion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType tags the variant of a promotion rule.
type RuleType string

const (
	RuleDiscount           RuleType = "Discount"
	RuleCategoryDiscount   RuleType = "CategoryDiscount"
	RuleCartAmountDiscount RuleType = "CartAmountDiscount"
	RuleBuyXGetY           RuleType = "BuyXGetY"
	RuleFixedPrice         RuleType = "FixedPrice"
	RuleBundle             RuleType = "Bundle"
	RuleCoupon             RuleType = "Coupon"
	RuleTimeLimited        RuleType = "TimeLimited"
	RuleExclusive          RuleType = "Exclusive"
)

// Rule is implemented by every rule variant. The unexported evaluate method keeps
// the set of variants closed to this package.
type Rule interface {
	Type() RuleType
	Validate() error
	evaluate(in evalInput) outcome
}

// DiscountRule takes a percentage off every unlocked line.
type DiscountRule struct {
	Percentage decimal.Decimal `json:"discountPercentage"`
}

// CategoryDiscountRule takes a percentage off unlocked lines in any of the categories.
type CategoryDiscountRule struct {
	Percentage  decimal.Decimal `json:"discountPercentage"`
	CategoryIDs []uuid.UUID     `json:"categoryIds"`
}

// CartAmountDiscountRule subtracts a fixed amount once the unlocked subtotal reaches MinOrderAmount.
type CartAmountDiscountRule struct {
	Amount         decimal.Decimal `json:"discountAmount"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
}

// BuyXGetYRule gives FreeQuantity units for every RequiredQuantity units of a trigger product.
// An empty ProductIDs list makes every line a trigger.
type BuyXGetYRule struct {
	ProductIDs       []uuid.UUID `json:"productIds"`
	RequiredQuantity int         `json:"requiredQuantity"`
	FreeQuantity     int         `json:"freeQuantity"`
}

// FixedPriceRule reprices scoped lines at FixedPrice per unit when that is cheaper.
type FixedPriceRule struct {
	FixedPrice  decimal.Decimal `json:"fixedPrice"`
	ProductIDs  []uuid.UUID     `json:"productIds"`
	CategoryIDs []uuid.UUID     `json:"categoryIds"`
}

// BundleRule prices a set of products together at FixedPrice.
type BundleRule struct {
	ProductIDs []uuid.UUID     `json:"productIds"`
	FixedPrice decimal.Decimal `json:"fixedPrice"`
}

// CouponRule discounts the cart for promotions unlocked by a coupon code.
type CouponRule struct {
	Adjustment
}

// TimeLimitedRule discounts the cart only on the listed weekdays.
type TimeLimitedRule struct {
	Adjustment
	ValidDays []time.Weekday `json:"validDays"`
}

// ExclusiveRule discounts the cart and stops every other promotion from applying.
type ExclusiveRule struct {
	Adjustment
}

// Adjustment is either a percentage or a fixed amount off the unlocked lines.
// Percentage wins when both are set.
type Adjustment struct {
	Percentage decimal.NullDecimal `json:"discountPercentage"`
	Amount     decimal.NullDecimal `json:"discountAmount"`
}

func (DiscountRule) Type() RuleType           { return RuleDiscount }
func (CategoryDiscountRule) Type() RuleType   { return RuleCategoryDiscount }
func (CartAmountDiscountRule) Type() RuleType { return RuleCartAmountDiscount }
func (BuyXGetYRule) Type() RuleType           { return RuleBuyXGetY }
func (FixedPriceRule) Type() RuleType         { return RuleFixedPrice }
func (BundleRule) Type() RuleType             { return RuleBundle }
func (CouponRule) Type() RuleType             { return RuleCoupon }
func (TimeLimitedRule) Type() RuleType        { return RuleTimeLimited }
func (ExclusiveRule) Type() RuleType          { return RuleExclusive }

// Validate reports malformed parameters.
func (r DiscountRule) Validate() error {
	return validPercentage(r.Percentage)
}

// Validate reports malformed parameters.
func (r CategoryDiscountRule) Validate() error {
	if len(r.CategoryIDs) == 0 {
		return fmt.Errorf("%w: category discount without categories", ErrMalformedRule)
	}
	return validPercentage(r.Percentage)
}

// Validate reports malformed parameters.
func (r CartAmountDiscountRule) Validate() error {
	if err := nonNegative("discount amount", r.Amount); err != nil {
		return err
	}
	return nonNegative("minimum order amount", r.MinOrderAmount)
}

// Validate reports malformed parameters.
func (r BuyXGetYRule) Validate() error {
	if r.RequiredQuantity <= 0 {
		return fmt.Errorf("%w: required quantity must be positive, got %d", ErrMalformedRule, r.RequiredQuantity)
	}
	if r.FreeQuantity < 0 {
		return fmt.Errorf("%w: free quantity must not be negative, got %d", ErrMalformedRule, r.FreeQuantity)
	}
	return nil
}

// Validate reports malformed parameters.
func (r FixedPriceRule) Validate() error {
	return nonNegative("fixed price", r.FixedPrice)
}

// Validate reports malformed parameters.
func (r BundleRule) Validate() error {
	if len(r.ProductIDs) == 0 {
		return fmt.Errorf("%w: bundle without products", ErrMalformedRule)
	}
	seen := make(map[uuid.UUID]struct{}, len(r.ProductIDs))
	for _, id := range r.ProductIDs {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: bundle lists product %s twice", ErrMalformedRule, id)
		}
		seen[id] = struct{}{}
	}
	return nonNegative("fixed price", r.FixedPrice)
}

// Validate reports malformed parameters.
func (r CouponRule) Validate() error { return r.Adjustment.validate() }

// Validate reports malformed parameters.
func (r TimeLimitedRule) Validate() error {
	if len(r.ValidDays) == 0 {
		return fmt.Errorf("%w: time limited rule without valid days", ErrMalformedRule)
	}
	for _, day := range r.ValidDays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: invalid weekday %d", ErrMalformedRule, day)
		}
	}
	return r.Adjustment.validate()
}

// Validate reports malformed parameters.
func (r ExclusiveRule) Validate() error { return r.Adjustment.validate() }

func (a Adjustment) validate() error {
	switch {
	case a.Percentage.Valid:
		return validPercentage(a.Percentage.Decimal)
	case a.Amount.Valid:
		return nonNegative("discount amount", a.Amount.Decimal)
	default:
		return fmt.Errorf("%w: neither discount percentage nor amount set", ErrMalformedRule)
	}
}

func validPercentage(pct decimal.Decimal) error {
	if pct.Sign() < 0 || pct.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: discount percentage %s outside 0-100", ErrMalformedRule, pct)
	}
	return nil
}

func nonNegative(field string, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrMalformedRule, field, amount)
	}
	return nil
}
