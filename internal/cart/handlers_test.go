package cart_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-promo/internal/cart"
	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

var (
	orderTime = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	productA  = uuid.MustParse("0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0001")
	productB  = uuid.MustParse("0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0002")
)

type catalogStub struct {
	promos []promotion.Promotion
	err    error
	calls  int
	at     time.Time
}

func (c *catalogStub) Promotions(_ context.Context, at time.Time) ([]promotion.Promotion, error) {
	c.calls++
	c.at = at
	return c.promos, c.err
}

type blockingEngine struct{ release chan struct{} }

func (b blockingEngine) ApplyPromotionRules(context.Context, promotion.Request, []promotion.Promotion) promotion.Result {
	<-b.release
	return promotion.Result{}
}

type envelope struct {
	Data  cart.PriceResponse `json:"data"`
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func tenPercent() promotion.Promotion {
	return promotion.Promotion{
		ID:           uuid.MustParse("7d1f9e0a-2f5b-4c3e-8d6a-000000000010"),
		Name:         "Ten off",
		IsActive:     true,
		Priority:     1,
		IsCombinable: true,
		Rules:        []promotion.Rule{promotion.DiscountRule{Percentage: decimal.NewFromInt(10)}},
	}
}

func newHandler(c cart.Catalog) *cart.Handler {
	engine := promotion.NewEngine(promotion.WithClock(func() time.Time { return orderTime }))
	svc := cart.NewService(c, engine, time.Second)
	svc.Now = func() time.Time { return orderTime }
	return &cart.Handler{Svc: svc, MaxBodyBytes: 1 << 16}
}

func do(t *testing.T, h http.HandlerFunc, tenantID, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if tenantID != "" {
		req = req.WithContext(tenant.WithTenant(req.Context(), tenantID))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr, env
}

const priceBody = `{
	"currency": "USD",
	"cartItems": [
		{"productId": "0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0001", "productName": "A", "unitPrice": "50", "quantity": 2},
		{"productId": "0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0002", "productName": "B", "unitPrice": 20.5, "quantity": "1"}
	]
}`

func TestPriceAppliesTenantCatalog(t *testing.T) {
	catalog := &catalogStub{promos: []promotion.Promotion{tenPercent()}}
	h := newHandler(catalog)

	rr, env := do(t, h.Price, "acme", "/api/v1/carts/price?trace=true", priceBody)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, catalog.calls)
	require.Equal(t, orderTime, catalog.at)

	res := env.Data
	require.True(t, res.Success)
	require.Equal(t, promotion.OutcomeApplied, res.Outcome)
	require.Equal(t, "120.50", res.OriginalTotal)
	require.Equal(t, "108.45", res.FinalTotal)
	require.Equal(t, "12.05", res.TotalDiscountAmount)
	require.Len(t, res.CartItems, 2)
	require.Equal(t, productA, res.CartItems[0].ProductID)
	require.Equal(t, "90.00", res.CartItems[0].FinalLineTotal)
	require.Equal(t, "10.00", res.CartItems[0].EffectiveDiscountPercentage)
	require.Equal(t, "10.00", *res.CartItems[0].AppliedPromotions[0].DiscountPercentage)
	require.Equal(t, productB, res.CartItems[1].ProductID)
	require.Equal(t, "18.45", res.CartItems[1].FinalLineTotal)
	require.Len(t, res.AppliedPromotions, 1)
	require.Equal(t, "12.05", res.AppliedPromotions[0].TotalDiscountAmount)
	require.Len(t, res.Trace, 2)
}

func TestPriceOmitsTraceByDefault(t *testing.T) {
	_, env := do(t, newHandler(&catalogStub{promos: []promotion.Promotion{tenPercent()}}).Price, "acme", "/api/v1/carts/price", priceBody)
	require.Empty(t, env.Data.Trace)
}

func TestPriceValidationFailure(t *testing.T) {
	catalog := &catalogStub{}
	rr, env := do(t, newHandler(catalog).Price, "acme", "/api/v1/carts/price", `{"currency":"USD","cartItems":[]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.False(t, env.Data.Success)
	require.Equal(t, promotion.OutcomeInvalid, env.Data.Outcome)
	require.Contains(t, env.Data.Messages, "cartItems must contain at least 1 item(s)")
	require.Zero(t, catalog.calls)
}

func TestPriceRequiresTenant(t *testing.T) {
	rr, env := do(t, newHandler(&catalogStub{}).Price, "", "/api/v1/carts/price", priceBody)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "TENANT_REQUIRED", env.Error.Code)
}

func TestPriceCatalogUnavailable(t *testing.T) {
	rr, env := do(t, newHandler(&catalogStub{err: errors.New("db down")}).Price, "acme", "/api/v1/carts/price", priceBody)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "CATALOG_UNAVAILABLE", env.Error.Code)
}

func TestPriceFailsClosedOnMalformedCatalog(t *testing.T) {
	broken := tenPercent()
	broken.Rules = []promotion.Rule{promotion.DiscountRule{Percentage: decimal.NewFromInt(150)}}
	rr, env := do(t, newHandler(&catalogStub{promos: []promotion.Promotion{broken}}).Price, "acme", "/api/v1/carts/price", priceBody)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.False(t, env.Data.Success)
	require.Equal(t, []string{"promotion evaluation failed"}, env.Data.Messages)
	require.Empty(t, env.Data.CartItems)
}

func TestPriceRejectsMalformedJSON(t *testing.T) {
	rr, env := do(t, newHandler(&catalogStub{}).Price, "acme", "/api/v1/carts/price", `{"cartItems":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestEvaluateUsesSuppliedPromotions(t *testing.T) {
	catalog := &catalogStub{}
	body := `{
		"currency": "USD",
		"cartItems": [
			{"productId": "0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0001", "productName": "A", "unitPrice": "30", "quantity": 1},
			{"productId": "0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0002", "productName": "B", "unitPrice": "40", "quantity": 1}
		],
		"promotions": [{
			"id": "7d1f9e0a-2f5b-4c3e-8d6a-000000000020",
			"name": "Bundle",
			"isActive": true,
			"priority": 5,
			"isCombinable": true,
			"rules": [{"type": "Bundle", "params": {"productIds": [
				"0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0001",
				"0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0002"
			], "fixedPrice": "60"}}]
		}]
	}`
	rr, env := do(t, newHandler(catalog).Evaluate, "", "/api/v1/promotions/evaluate", body)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Zero(t, catalog.calls)
	require.Equal(t, "60.00", env.Data.FinalTotal)
	require.Equal(t, "25.71", env.Data.CartItems[0].FinalLineTotal)
	require.Equal(t, "34.29", env.Data.CartItems[1].FinalLineTotal)
}

func TestEvaluateRejectsInvalidRules(t *testing.T) {
	body := `{
		"currency": "USD",
		"cartItems": [{"productId": "0b9c3a52-6a43-4d8e-9a55-1d5c2b7a0001", "unitPrice": "30", "quantity": 1}],
		"promotions": [{"id": "7d1f9e0a-2f5b-4c3e-8d6a-000000000030", "name": "Broken", "isActive": true,
			"rules": [{"type": "Discount", "params": {"discountPercentage": 101}}]}]
	}`
	rr, env := do(t, newHandler(&catalogStub{}).Evaluate, "", "/api/v1/promotions/evaluate", body)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Len(t, env.Data.Messages, 1)
	require.Contains(t, env.Data.Messages[0], `promotion "Broken" rule 0`)

	body = strings.Replace(body, `"Discount"`, `"Mystery"`, 1)
	rr, _ = do(t, newHandler(&catalogStub{}).Evaluate, "", "/api/v1/promotions/evaluate", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestEvaluateTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	svc := cart.NewService(&catalogStub{}, blockingEngine{release: release}, 20*time.Millisecond)
	h := &cart.Handler{Svc: svc}

	rr, env := do(t, h.Evaluate, "", "/api/v1/promotions/evaluate", `{"currency":"USD","cartItems":[]}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "EVALUATION_TIMEOUT", env.Error.Code)
}
