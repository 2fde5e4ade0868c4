package repo_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/repo"
	"github.com/noah-isme/toko-promo/internal/resilience"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

var (
	promotionColumns = []string{"id", "name", "description", "start_date", "end_date", "is_active", "priority", "is_combinable", "coupon_code"}
	ruleColumns      = []string{"promotion_id", "rule_type", "discount_percentage", "discount_amount", "min_order_amount", "fixed_price",
		"required_quantity", "free_quantity", "category_ids", "product_ids", "valid_days"}
)

func pgID(id uuid.UUID) pgtype.UUID { return pgtype.UUID{Bytes: id, Valid: true} }

func numeric(unscaled int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(unscaled), Exp: exp, Valid: true}
}

func TestPromotionsTenantRepoRequiresTenant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := repo.PromotionsTenantRepo{DB: mock}
	_, err = r.ActivePromotions(context.Background(), time.Now(), time.Now())
	require.ErrorIs(t, err, repo.ErrTenantMissing)

	_, err = r.ActivePromotions(tenant.WithTenant(context.Background(), "acme"), time.Now(), time.Now())
	require.ErrorIs(t, err, repo.ErrTenantInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionsTenantRepoLoadsRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	bundleID, couponID := uuid.New(), uuid.New()
	productA, productB, category := uuid.New(), uuid.New(), uuid.New()
	from := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	to := from.Add(time.Minute)
	end := from.Add(24 * time.Hour)

	mock.ExpectQuery("FROM promotions").
		WithArgs(pgID(tenantID), from, to).
		WillReturnRows(mock.NewRows(promotionColumns).
			AddRow(pgID(bundleID), "Bundle", pgtype.Text{String: "A and B", Valid: true}, pgtype.Timestamptz{}, pgtype.Timestamptz{Time: end, Valid: true},
				true, int32(10), false, pgtype.Text{}).
			AddRow(pgID(couponID), "Welcome", pgtype.Text{}, pgtype.Timestamptz{Time: from, Valid: true}, pgtype.Timestamptz{},
				true, int32(1), true, pgtype.Text{String: "WELCOME", Valid: true}))
	mock.ExpectQuery("FROM promotion_rules").
		WithArgs([]pgtype.UUID{pgID(bundleID), pgID(couponID)}).
		WillReturnRows(mock.NewRows(ruleColumns).
			AddRow(pgID(bundleID), "Bundle", pgtype.Numeric{}, pgtype.Numeric{}, pgtype.Numeric{}, numeric(1250, -2),
				pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID(nil), []pgtype.UUID{pgID(productA), pgID(productB)}, []int16(nil)).
			AddRow(pgID(couponID), "Coupon", numeric(15, 0), pgtype.Numeric{}, pgtype.Numeric{}, pgtype.Numeric{},
				pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID{pgID(category)}, []pgtype.UUID(nil), []int16(nil)).
			AddRow(pgID(couponID), "TimeLimited", pgtype.Numeric{}, numeric(5, 0), pgtype.Numeric{}, pgtype.Numeric{},
				pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID(nil), []pgtype.UUID(nil), []int16{0, 6}))

	r := repo.PromotionsTenantRepo{DB: mock}
	promos, err := r.ActivePromotions(tenant.WithTenant(context.Background(), tenantID.String()), from, to)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, promos, 2)

	bundle := promos[0]
	require.Equal(t, bundleID, bundle.ID)
	require.Equal(t, "A and B", bundle.Description)
	require.True(t, bundle.StartDate.IsZero())
	require.True(t, end.Equal(bundle.EndDate))
	require.Equal(t, 10, bundle.Priority)
	require.False(t, bundle.IsCombinable)
	require.Equal(t, []promotion.Rule{promotion.BundleRule{
		ProductIDs: []uuid.UUID{productA, productB},
		FixedPrice: decimal.New(1250, -2),
	}}, bundle.Rules)

	welcome := promos[1]
	require.Equal(t, "WELCOME", welcome.CouponCode)
	require.Len(t, welcome.Rules, 2)
	coupon, ok := welcome.Rules[0].(promotion.CouponRule)
	require.True(t, ok)
	require.True(t, decimal.NewFromInt(15).Equal(coupon.Percentage.Decimal))
	limited, ok := welcome.Rules[1].(promotion.TimeLimitedRule)
	require.True(t, ok)
	require.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, limited.ValidDays)
	require.True(t, limited.Amount.Valid)
}

func TestPromotionsTenantRepoEmptyCatalogSkipsRuleQuery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("FROM promotions").
		WithArgs(pgID(tenantID), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(promotionColumns))

	promos, err := repo.PromotionsTenantRepo{DB: mock}.ActivePromotions(tenant.WithTenant(context.Background(), tenantID.String()), time.Now(), time.Now())
	require.NoError(t, err)
	require.Empty(t, promos)
	require.NotNil(t, promos)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionsTenantRepoRejectsMalformedRules(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID, promoID := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM promotions").
		WithArgs(pgID(tenantID), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(promotionColumns).
			AddRow(pgID(promoID), "Broken", pgtype.Text{}, pgtype.Timestamptz{}, pgtype.Timestamptz{}, true, int32(1), true, pgtype.Text{}))
	mock.ExpectQuery("FROM promotion_rules").
		WithArgs([]pgtype.UUID{pgID(promoID)}).
		WillReturnRows(mock.NewRows(ruleColumns).
			AddRow(pgID(promoID), "Discount", pgtype.Numeric{}, pgtype.Numeric{}, pgtype.Numeric{}, pgtype.Numeric{},
				pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID(nil), []pgtype.UUID(nil), []int16(nil)))

	r := repo.PromotionsTenantRepo{DB: mock, Policy: resilience.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}}
	_, err = r.ActivePromotions(tenant.WithTenant(context.Background(), tenantID.String()), time.Now(), time.Now())
	require.ErrorIs(t, err, promotion.ErrMalformedRule)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionsTenantRepoRetriesTransientErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("FROM promotions").WillReturnError(errors.New("connection reset"))
	mock.ExpectQuery("FROM promotions").
		WithArgs(pgID(tenantID), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows(promotionColumns))

	r := repo.PromotionsTenantRepo{
		DB:      mock,
		Breaker: resilience.NewBreaker(5, 0.9, time.Minute),
		Policy:  resilience.Policy{MaxAttempts: 2, BaseBackoff: time.Millisecond},
	}
	promos, err := r.ActivePromotions(tenant.WithTenant(context.Background(), tenantID.String()), time.Now(), time.Now())
	require.NoError(t, err)
	require.Empty(t, promos)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionsTenantRepoDoesNotRetryServerErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM promotions").WillReturnError(&pgconn.PgError{Code: "42P01", Message: "relation does not exist"})

	r := repo.PromotionsTenantRepo{DB: mock, Policy: resilience.Policy{MaxAttempts: 3, BaseBackoff: time.Millisecond}}
	_, err = r.ActivePromotions(tenant.WithTenant(context.Background(), uuid.NewString()), time.Now(), time.Now())
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.NoError(t, mock.ExpectationsWereMet())
}
