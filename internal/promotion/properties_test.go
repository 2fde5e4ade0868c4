package promotion_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/promotion"
)

var propertyCategory = uuid.MustParse("6f1c7c1e-4b1a-4c55-9d42-3f6f3f0a2b10")

// buildCart turns generated cents and quantities into cart items; even lines
// carry propertyCategory.
func buildCart(cents, quantities []int) []promotion.CartItem {
	n := min(len(cents), len(quantities))
	items := make([]promotion.CartItem, 0, n)
	for i := 0; i < n; i++ {
		it := promotion.CartItem{
			ProductID:   uuid.NewSHA1(propertyCategory, []byte{byte(i)}),
			ProductName: "item",
			UnitPrice:   decimal.New(int64(cents[i]), -2),
			Quantity:    decimal.NewFromInt(int64(quantities[i])),
		}
		if i%2 == 0 {
			it.CategoryIDs = []uuid.UUID{propertyCategory}
		}
		items = append(items, it)
	}
	return items
}

// buildCatalog mixes rule variants; combinable[i] decides the stacking policy.
func buildCatalog(percents []int, combinable []bool) []promotion.Promotion {
	out := make([]promotion.Promotion, 0, len(percents))
	for i, p := range percents {
		amount := decimal.NewFromInt(int64(p))
		var rule promotion.Rule
		switch i % 4 {
		case 0:
			rule = promotion.DiscountRule{Percentage: amount}
		case 1:
			rule = promotion.CartAmountDiscountRule{Amount: amount, MinOrderAmount: decimal.NewFromInt(20)}
		case 2:
			rule = promotion.CategoryDiscountRule{Percentage: amount, CategoryIDs: []uuid.UUID{propertyCategory}}
		default:
			rule = promotion.FixedPriceRule{FixedPrice: amount, CategoryIDs: []uuid.UUID{propertyCategory}}
		}
		out = append(out, promotion.Promotion{
			ID:           uuid.NewSHA1(propertyCategory, []byte{0xff, byte(i)}),
			Name:         "generated",
			IsActive:     true,
			Priority:     (p * 7) % 5,
			IsCombinable: i >= len(combinable) || combinable[i],
			Rules:        []promotion.Rule{rule},
		})
	}
	return out
}

func evaluate(items []promotion.CartItem, catalog []promotion.Promotion) promotion.Result {
	return newEngine().ApplyPromotionRules(context.Background(), promotion.Request{
		CartItems: items,
		Currency:  "USD",
	}, catalog)
}

func cartGens() []gopter.Gen {
	return []gopter.Gen{
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.SliceOfN(5, gen.IntRange(1, 90)),
		gen.SliceOfN(5, gen.Bool()),
	}
}

func TestPricingInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("line totals stay within bounds", prop.ForAll(
		func(cents, quantities, percents []int, combinable []bool) bool {
			res := evaluate(buildCart(cents, quantities), buildCatalog(percents, combinable))
			if !res.Success {
				return false
			}
			for _, line := range res.CartItems {
				if line.FinalLineTotal.Sign() < 0 || line.FinalLineTotal.GreaterThan(line.OriginalLineTotal) {
					return false
				}
			}
			return true
		},
		cartGens()...,
	))

	properties.Property("totals equal the sum of rounded lines", prop.ForAll(
		func(cents, quantities, percents []int, combinable []bool) bool {
			res := evaluate(buildCart(cents, quantities), buildCatalog(percents, combinable))
			original, final := decimal.Zero, decimal.Zero
			for _, line := range res.CartItems {
				original = original.Add(line.OriginalLineTotal)
				final = final.Add(line.FinalLineTotal)
			}
			return original.Equal(res.OriginalTotal) &&
				final.Equal(res.FinalTotal) &&
				res.TotalDiscountAmount.Equal(original.Sub(final))
		},
		cartGens()...,
	))

	properties.Property("evaluation is idempotent", prop.ForAll(
		func(cents, quantities, percents []int, combinable []bool) bool {
			items := buildCart(cents, quantities)
			catalog := buildCatalog(percents, combinable)
			return reflect.DeepEqual(evaluate(items, catalog), evaluate(items, catalog))
		},
		cartGens()...,
	))

	properties.TestingRun(t)
}

func TestPercentageStackingIsMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("an extra combinable promotion never raises the total", prop.ForAll(
		func(cents, quantities, percents []int, extra int) bool {
			items := buildCart(cents, quantities)
			var catalog []promotion.Promotion
			for i, p := range percents {
				catalog = append(catalog, promo("stack", i, true, promotion.DiscountRule{Percentage: decimal.NewFromInt(int64(p))}))
			}
			without := evaluate(items, catalog)
			with := evaluate(items, append(catalog, promo("extra", extra, true, promotion.DiscountRule{Percentage: decimal.NewFromInt(int64(extra))})))
			return with.FinalTotal.LessThanOrEqual(without.FinalTotal)
		},
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.SliceOfN(3, gen.IntRange(0, 60)),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}

func TestLockAndExclusiveProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("lines locked first keep their locked total", prop.ForAll(
		func(cents, quantities, percents []int, combinable []bool, lockPct, exclusivePct, exclusivePriority int) bool {
			items := buildCart(cents, quantities)
			locker := promo("locker", 100, false, promotion.CategoryDiscountRule{
				Percentage:  decimal.NewFromInt(int64(lockPct)),
				CategoryIDs: []uuid.UUID{propertyCategory},
			})
			exclusive := promo("exclusive", exclusivePriority, true, promotion.ExclusiveRule{
				Adjustment: promotion.Adjustment{Percentage: decimal.NewNullDecimal(decimal.NewFromInt(int64(exclusivePct)))},
			})
			alone := evaluate(items, []promotion.Promotion{locker})
			full := evaluate(items, append(buildCatalog(percents, combinable), locker, exclusive))
			for i, line := range alone.CartItems {
				if len(line.AppliedPromotions) == 0 {
					continue
				}
				if !full.CartItems[i].FinalLineTotal.Equal(line.FinalLineTotal) || len(full.CartItems[i].AppliedPromotions) != 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.SliceOfN(5, gen.IntRange(1, 90)),
		gen.SliceOfN(5, gen.Bool()),
		gen.IntRange(1, 100),
		gen.IntRange(1, 100),
		gen.IntRange(0, 99),
	))

	properties.Property("an applied exclusive promotion is the only record", prop.ForAll(
		func(cents, quantities, percents []int, combinable []bool, exclusivePct, priority int) bool {
			exclusive := promo("exclusive", priority, true, promotion.ExclusiveRule{
				Adjustment: promotion.Adjustment{Percentage: decimal.NewNullDecimal(decimal.NewFromInt(int64(exclusivePct)))},
			})
			res := evaluate(buildCart(cents, quantities), append(buildCatalog(percents, combinable), exclusive))
			if res.State != promotion.StateHalted {
				return true
			}
			for _, line := range res.CartItems {
				for _, rec := range line.AppliedPromotions {
					if rec.PromotionID != exclusive.ID {
						return false
					}
				}
			}
			return len(res.AppliedPromotions) == 1 && res.AppliedPromotions[0].PromotionID == exclusive.ID
		},
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.SliceOfN(5, gen.IntRange(1, 90)),
		gen.SliceOfN(5, gen.Bool()),
		gen.IntRange(1, 100),
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}

func TestFixedAmountsLandExactly(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a cart amount discount comes off the subtotal once", prop.ForAll(
		func(cents, quantities []int, amount int) bool {
			items := buildCart(cents, quantities)
			off := decimal.NewFromInt(int64(amount))
			res := evaluate(items, []promotion.Promotion{promo("amount", 1, true, promotion.CartAmountDiscountRule{Amount: off})})
			return res.TotalDiscountAmount.Equal(decimal.Min(off, res.OriginalTotal))
		},
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.IntRange(1, 500),
	))

	properties.Property("a bundle of every line costs its fixed price", prop.ForAll(
		func(cents, quantities []int, share int) bool {
			items := buildCart(cents, quantities)
			ids := make([]uuid.UUID, len(items))
			subtotal := decimal.Zero
			for i, it := range items {
				ids[i] = it.ProductID
				subtotal = subtotal.Add(it.UnitPrice.Mul(it.Quantity))
			}
			fixed := subtotal.Mul(decimal.NewFromInt(int64(share))).Div(decimal.NewFromInt(100)).RoundFloor(2)
			res := evaluate(items, []promotion.Promotion{promo("bundle", 1, true, promotion.BundleRule{ProductIDs: ids, FixedPrice: fixed})})
			if !fixed.LessThan(subtotal) {
				return res.FinalTotal.Equal(subtotal)
			}
			return res.FinalTotal.Equal(fixed)
		},
		gen.SliceOfN(4, gen.IntRange(0, 50000)),
		gen.SliceOfN(4, gen.IntRange(1, 6)),
		gen.IntRange(1, 99),
	))

	properties.TestingRun(t)
}
