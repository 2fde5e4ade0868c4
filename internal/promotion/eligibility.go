package promotion

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Eligibility is the outcome of filtering a catalog against a cart context.
type Eligibility struct {
	Promotions []Promotion
	Messages   []string
}

type couponSet map[string]struct{}

func newCouponSet(codes []string) couponSet {
	set := make(couponSet, len(codes))
	for _, code := range codes {
		if normalized := normalizeCoupon(code); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func (s couponSet) matches(code string) bool {
	normalized := normalizeCoupon(code)
	if normalized == "" {
		return false
	}
	_, ok := s[normalized]
	return ok
}

func normalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckEligible reports why the promotion cannot take part in an evaluation
// at the given time with the given coupon codes. Date bounds are inclusive and
// a zero bound is open.
func (p Promotion) CheckEligible(at time.Time, couponCodes []string) error {
	return p.checkEligible(at, newCouponSet(couponCodes))
}

func (p Promotion) checkEligible(at time.Time, coupons couponSet) error {
	if !p.IsActive {
		return ErrPromotionInactive
	}
	if !p.StartDate.IsZero() && at.Before(p.StartDate) {
		return ErrPromotionNotStarted
	}
	if !p.EndDate.IsZero() && at.After(p.EndDate) {
		return ErrPromotionExpired
	}
	if p.RequiresCoupon() {
		if len(coupons) == 0 {
			return ErrCouponRequired
		}
		if !coupons.matches(p.CouponCode) {
			return ErrCouponMismatch
		}
	}
	return nil
}

// FilterEligible keeps the promotions that may take part in the evaluation and
// explains every exclusion. The result is ordered by priority, highest first;
// equal priorities keep their catalog order.
func FilterEligible(promotions []Promotion, at time.Time, couponCodes []string) Eligibility {
	coupons := newCouponSet(couponCodes)
	out := Eligibility{Promotions: make([]Promotion, 0, len(promotions))}
	for _, p := range promotions {
		if err := p.checkEligible(at, coupons); err != nil {
			out.Messages = append(out.Messages, fmt.Sprintf("promotion %q skipped: %v", p.Name, err))
			continue
		}
		out.Promotions = append(out.Promotions, p)
	}
	slices.SortStableFunc(out.Promotions, func(a, b Promotion) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return out
}
