package promotion

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunState is the coordinator's position in an evaluation run.
type RunState string

const (
	StateEvaluating RunState = "evaluating"
	StateApplying   RunState = "applying"
	StateHalted     RunState = "halted"
	StateCompleted  RunState = "completed"
)

type runResult struct {
	ledger   Ledger
	state    RunState
	haltedBy uuid.UUID
	messages []string
}

type promotionRun struct {
	ledger    Ledger
	applied   bool
	exclusive bool
	ruleTypes []RuleType
	messages  []string

	// exclusiveMisses repeats the messages of exclusive rules that did not apply.
	exclusiveMisses []string
}

type coordinator struct {
	at        time.Time
	scale     int32
	coupons   couponSet
	onApplied func(RuleType)
}

// run walks the priority-ordered queue. A line locked by a non-combinable
// promotion is never touched again, whatever the later promotion's own
// combinability.
//
// A promotion carrying an Exclusive rule is tried against the initial ledger
// as long as no line is locked yet. If its exclusive rule applies, that trial
// replaces the combinable discounts applied so far and the run halts.
// Otherwise the promotion's remaining rules apply like any other promotion.
func (c coordinator) run(initial Ledger, queue []Promotion) (runResult, error) {
	for _, p := range queue {
		if err := p.validateRules(); err != nil {
			return runResult{}, err
		}
	}

	res := runResult{ledger: initial, state: StateEvaluating}
	for _, p := range queue {
		res.state = StateApplying
		if p.isExclusive() {
			if res.ledger.hasLocked() {
				res.messages = append(res.messages, fmt.Sprintf("promotion %q not applied: exclusive rule blocked by locked lines", p.Name))
			} else {
				trial := c.applyPromotion(initial, p)
				if trial.exclusive {
					res.messages = append(res.messages, trial.messages...)
					if len(res.ledger.steps) > 0 {
						res.messages = append(res.messages, fmt.Sprintf("promotion %q is exclusive; earlier discounts were withdrawn", p.Name))
					}
					c.record(trial)
					res.ledger = trial.ledger
					res.state = StateHalted
					res.haltedBy = p.ID
					return res, nil
				}
				res.messages = append(res.messages, trial.exclusiveMisses...)
			}
			p = p.withoutExclusive()
			if len(p.Rules) == 0 {
				res.state = StateEvaluating
				continue
			}
		}

		step := c.applyPromotion(res.ledger, p)
		c.record(step)
		res.ledger = step.ledger
		res.messages = append(res.messages, step.messages...)
		res.state = StateEvaluating
	}
	res.state = StateCompleted
	return res, nil
}

func (c coordinator) record(run promotionRun) {
	if c.onApplied == nil {
		return
	}
	for _, rt := range run.ruleTypes {
		c.onApplied(rt)
	}
}

func (c coordinator) applyPromotion(ledger Ledger, p Promotion) promotionRun {
	out := promotionRun{ledger: ledger}
	var touched []int
	for _, rule := range p.Rules {
		if rule.Type() == RuleCoupon && !c.coupons.matches(p.CouponCode) {
			out.messages = append(out.messages, fmt.Sprintf("promotion %q not applied: coupon rule needs a matching coupon code", p.Name))
			continue
		}
		result := rule.evaluate(evalInput{ledger: out.ledger, at: c.at, scale: c.scale})
		if !result.applied {
			out.miss(rule, fmt.Sprintf("promotion %q not applied: %s", p.Name, result.reason))
			continue
		}
		next, lines := out.ledger.apply(p, rule.Type(), result.percentage, result.allocations(c.scale))
		if len(lines) == 0 {
			out.miss(rule, fmt.Sprintf("promotion %q not applied: nothing left to discount", p.Name))
			continue
		}
		out.ledger = next
		out.applied = true
		touched = append(touched, lines...)
		out.ruleTypes = append(out.ruleTypes, rule.Type())
		if rule.Type() == RuleExclusive {
			out.exclusive = true
		}
	}
	if out.applied && !p.IsCombinable {
		out.ledger = out.ledger.lock(touched)
	}
	return out
}

func (r *promotionRun) miss(rule Rule, msg string) {
	r.messages = append(r.messages, msg)
	if rule.Type() == RuleExclusive {
		r.exclusiveMisses = append(r.exclusiveMisses, msg)
	}
}
