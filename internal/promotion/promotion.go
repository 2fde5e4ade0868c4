package promotion

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Promotion is a named, prioritised bundle of rules from the catalog.
type Promotion struct {
	ID           uuid.UUID
	Name         string
	Description  string
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	Priority     int
	IsCombinable bool
	CouponCode   string
	Rules        []Rule
}

// RequiresCoupon reports whether the promotion is gated by a coupon code.
func (p Promotion) RequiresCoupon() bool {
	return normalizeCoupon(p.CouponCode) != ""
}

func (p Promotion) isExclusive() bool {
	for _, rule := range p.Rules {
		if rule.Type() == RuleExclusive {
			return true
		}
	}
	return false
}

// withoutExclusive returns a copy of p minus its Exclusive rules.
func (p Promotion) withoutExclusive() Promotion {
	p.Rules = slices.DeleteFunc(slices.Clone(p.Rules), func(r Rule) bool { return r.Type() == RuleExclusive })
	return p
}

func (p Promotion) validateRules() error {
	for _, rule := range p.Rules {
		if rule == nil {
			return fmt.Errorf("promotion %s (%s): %w: nil rule", p.ID, p.Name, ErrMalformedRule)
		}
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("promotion %s (%s): %w", p.ID, p.Name, err)
		}
	}
	return nil
}

type promotionJSON struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	StartDate    *time.Time     `json:"startDate,omitempty"`
	EndDate      *time.Time     `json:"endDate,omitempty"`
	IsActive     bool           `json:"isActive"`
	Priority     int            `json:"priority"`
	IsCombinable bool           `json:"isCombinable"`
	CouponCode   string         `json:"couponCode,omitempty"`
	Rules        []RuleEnvelope `json:"rules"`
}

// RuleEnvelope is the persisted form of a rule: its type tag plus JSON parameters.
type RuleEnvelope struct {
	Type   RuleType        `json:"type"`
	Params json.RawMessage `json:"params"`
}

// MarshalJSON encodes rules as {"type": ..., "params": {...}} envelopes.
func (p Promotion) MarshalJSON() ([]byte, error) {
	rules, err := MarshalRules(p.Rules)
	if err != nil {
		return nil, err
	}
	out := promotionJSON{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		IsActive:     p.IsActive,
		Priority:     p.Priority,
		IsCombinable: p.IsCombinable,
		CouponCode:   p.CouponCode,
		Rules:        rules,
	}
	if !p.StartDate.IsZero() {
		start := p.StartDate
		out.StartDate = &start
	}
	if !p.EndDate.IsZero() {
		end := p.EndDate
		out.EndDate = &end
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the envelope form written by MarshalJSON.
func (p *Promotion) UnmarshalJSON(data []byte) error {
	var in promotionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	rules, err := UnmarshalRules(in.Rules)
	if err != nil {
		return fmt.Errorf("promotion %s: %w", in.ID, err)
	}
	*p = Promotion{
		ID:           in.ID,
		Name:         in.Name,
		Description:  in.Description,
		IsActive:     in.IsActive,
		Priority:     in.Priority,
		IsCombinable: in.IsCombinable,
		CouponCode:   in.CouponCode,
		Rules:        rules,
	}
	if in.StartDate != nil {
		p.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		p.EndDate = *in.EndDate
	}
	return nil
}

var ruleDecoders = map[RuleType]func(json.RawMessage) (Rule, error){
	RuleDiscount:           decodeRule[DiscountRule],
	RuleCategoryDiscount:   decodeRule[CategoryDiscountRule],
	RuleCartAmountDiscount: decodeRule[CartAmountDiscountRule],
	RuleBuyXGetY:           decodeRule[BuyXGetYRule],
	RuleFixedPrice:         decodeRule[FixedPriceRule],
	RuleBundle:             decodeRule[BundleRule],
	RuleCoupon:             decodeRule[CouponRule],
	RuleTimeLimited:        decodeRule[TimeLimitedRule],
	RuleExclusive:          decodeRule[ExclusiveRule],
}

func decodeRule[T Rule](raw json.RawMessage) (Rule, error) {
	var rule T
	if len(raw) == 0 {
		return rule, nil
	}
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DecodeRule builds the rule variant registered for the type tag.
func DecodeRule(ruleType RuleType, params json.RawMessage) (Rule, error) {
	decode, ok := ruleDecoders[ruleType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, ruleType)
	}
	rule, err := decode(params)
	if err != nil {
		return nil, fmt.Errorf("decode %s rule: %w", ruleType, err)
	}
	return rule, nil
}

// MarshalRules wraps each rule in a type-tagged envelope.
func MarshalRules(rules []Rule) ([]RuleEnvelope, error) {
	out := make([]RuleEnvelope, 0, len(rules))
	for _, rule := range rules {
		if rule == nil {
			return nil, fmt.Errorf("%w: nil rule", ErrMalformedRule)
		}
		params, err := json.Marshal(rule)
		if err != nil {
			return nil, fmt.Errorf("encode %s rule: %w", rule.Type(), err)
		}
		out = append(out, RuleEnvelope{Type: rule.Type(), Params: params})
	}
	return out, nil
}

// UnmarshalRules reverses MarshalRules.
func UnmarshalRules(envelopes []RuleEnvelope) ([]Rule, error) {
	rules := make([]Rule, 0, len(envelopes))
	for _, env := range envelopes {
		rule, err := DecodeRule(env.Type, env.Params)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
