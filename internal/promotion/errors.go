package promotion

import "errors"

var (
	// ErrPromotionInactive is returned when the promotion has been switched off.
	ErrPromotionInactive = errors.New("promotion inactive")
	// ErrPromotionNotStarted is returned before the promotion's start date.
	ErrPromotionNotStarted = errors.New("promotion not started")
	// ErrPromotionExpired is returned after the promotion's end date.
	ErrPromotionExpired = errors.New("promotion expired")
	// ErrCouponRequired indicates the promotion is gated by a coupon and none was supplied.
	ErrCouponRequired = errors.New("promotion requires a coupon")
	// ErrCouponMismatch indicates coupons were supplied but none matched the promotion.
	ErrCouponMismatch = errors.New("coupon code does not match")
	// ErrMalformedRule flags rule parameters the engine refuses to evaluate.
	ErrMalformedRule = errors.New("malformed promotion rule")
	// ErrUnknownRuleType is returned when decoding a rule tag the engine does not know.
	ErrUnknownRuleType = errors.New("unknown promotion rule type")
	// ErrEvaluationPanic wraps a recovered panic raised while evaluating promotions.
	ErrEvaluationPanic = errors.New("promotion evaluation panicked")
)
