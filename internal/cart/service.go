package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/promotion/catalog"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

var (
	ErrTenantRequired     = errors.New("tenant is required")
	ErrCatalogUnavailable = errors.New("promotion catalog unavailable")
	ErrEvaluationTimeout  = errors.New("promotion evaluation timed out")
)

// Catalog returns the promotions live for the tenant in ctx at an instant.
type Catalog interface {
	Promotions(ctx context.Context, at time.Time) ([]promotion.Promotion, error)
}

// Evaluator prices a cart against a promotion list.
type Evaluator interface {
	ApplyPromotionRules(ctx context.Context, req promotion.Request, promotions []promotion.Promotion) promotion.Result
}

// Service prices carts for the tenant in context.
type Service struct {
	Catalog Catalog
	Engine  Evaluator
	// Timeout bounds a single evaluation; zero leaves it to the caller's context.
	Timeout time.Duration
	Now     func() time.Time

	validate *validator.Validate
}

// NewService wires a pricing service.
func NewService(catalog Catalog, engine Evaluator, timeout time.Duration) *Service {
	return &Service{
		Catalog:  catalog,
		Engine:   engine,
		Timeout:  timeout,
		Now:      time.Now,
		validate: promotion.NewValidator(),
	}
}

// Price loads the tenant's catalog at the order instant and evaluates the
// cart against it. Invalid carts are answered by the engine without touching
// the catalog.
func (s *Service) Price(ctx context.Context, req promotion.Request) (promotion.Result, error) {
	if _, ok := tenant.From(ctx); !ok {
		return promotion.Result{}, ErrTenantRequired
	}
	if s.validate == nil {
		s.validate = promotion.NewValidator()
	}
	if len(promotion.ValidateRequest(s.validate, req)) > 0 {
		return s.Evaluate(ctx, req, nil)
	}

	// Pin the instant so the catalog snapshot and the engine agree on it.
	at := s.now()
	if req.OrderDateTime != nil && !req.OrderDateTime.IsZero() {
		at = *req.OrderDateTime
	} else {
		req.OrderDateTime = &at
	}

	promos, err := s.Catalog.Promotions(ctx, at)
	if err != nil {
		if errors.Is(err, catalog.ErrTenantRequired) {
			return promotion.Result{}, ErrTenantRequired
		}
		return promotion.Result{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return s.Evaluate(ctx, req, promos)
}

// Evaluate runs the engine against caller-supplied promotions, bounded by Timeout.
func (s *Service) Evaluate(ctx context.Context, req promotion.Request, promos []promotion.Promotion) (promotion.Result, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	done := make(chan promotion.Result, 1)
	go func() {
		done <- s.Engine.ApplyPromotionRules(ctx, req, promos)
	}()
	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return promotion.Result{}, fmt.Errorf("%w: %w", ErrEvaluationTimeout, ctx.Err())
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
