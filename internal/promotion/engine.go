// Package promotion prices a cart against a catalog of prioritised,
// combinable or exclusive promotion rules.
package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/toko-promo/internal/pricing"
)

// Evaluation outcomes reported to the Recorder.
const (
	OutcomeApplied = "applied"
	OutcomeNoop    = "noop"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

const (
	genericFailure = "promotion evaluation failed"
	tracerName     = "github.com/noah-isme/toko-promo/internal/promotion"
)

// Recorder receives evaluation telemetry.
type Recorder interface {
	ObserveEvaluation(outcome string, elapsed time.Duration)
	RuleApplied(ruleType string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvaluation(string, time.Duration) {}
func (nopRecorder) RuleApplied(string)                      {}

// Engine evaluates promotions for a cart. It holds no per-call state and is
// safe for concurrent use.
type Engine struct {
	logger   zerolog.Logger
	now      func() time.Time
	validate *validator.Validate
	tracer   trace.Tracer
	recorder Recorder
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for internal failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the clock used when a request carries no order time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRecorder wires evaluation metrics.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   zerolog.Nop(),
		now:      time.Now,
		validate: NewValidator(),
		tracer:   otel.Tracer(tracerName),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyPromotionRules prices the cart. Validation problems and internal
// failures come back as Success=false with messages; skipped promotions are
// reported in Messages of a successful result.
func (e *Engine) ApplyPromotionRules(ctx context.Context, req Request, promotions []Promotion) Result {
	start := time.Now()
	_, span := e.tracer.Start(ctx, "promotion.apply", trace.WithAttributes(
		attribute.Int("promotion.cart_lines", len(req.CartItems)),
		attribute.Int("promotion.catalog_size", len(promotions)),
		attribute.String("promotion.currency", req.Currency),
	))
	defer span.End()

	if messages := ValidateRequest(e.validate, req); len(messages) > 0 {
		span.SetStatus(codes.Error, "invalid request")
		e.recorder.ObserveEvaluation(OutcomeInvalid, time.Since(start))
		return failed(req.Currency, OutcomeInvalid, messages...)
	}

	at := e.now()
	if req.OrderDateTime != nil && !req.OrderDateTime.IsZero() {
		at = *req.OrderDateTime
	}

	result, err := e.evaluate(req, promotions, at)
	if err != nil {
		e.logger.Error().Err(err).
			Str("currency", req.Currency).
			Int("lines", len(req.CartItems)).
			Int("promotions", len(promotions)).
			Msg("promotion evaluation failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, genericFailure)
		e.recorder.ObserveEvaluation(OutcomeFailed, time.Since(start))
		return failed(req.Currency, OutcomeFailed, genericFailure)
	}

	status := OutcomeNoop
	if len(result.AppliedPromotions) > 0 {
		status = OutcomeApplied
	}
	result.Outcome = status
	span.SetAttributes(
		attribute.String("promotion.state", string(result.State)),
		attribute.Int("promotion.applied", len(result.AppliedPromotions)),
		attribute.String("promotion.final_total", result.FinalTotal.String()),
	)
	e.recorder.ObserveEvaluation(status, time.Since(start))
	return result
}

func (e *Engine) evaluate(req Request, promotions []Promotion, at time.Time) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEvaluationPanic, r)
		}
	}()

	eligible := FilterEligible(promotions, at, req.CouponCodes)
	coord := coordinator{
		at:      at,
		scale:   pricing.Scale(req.Currency),
		coupons: newCouponSet(req.CouponCodes),
		onApplied: func(rt RuleType) {
			e.recorder.RuleApplied(string(rt))
		},
	}
	run, err := coord.run(NewLedger(req.CartItems), eligible.Promotions)
	if err != nil {
		return Result{}, err
	}
	messages := append(eligible.Messages, run.messages...)
	return assemble(run, req.Currency, messages), nil
}
