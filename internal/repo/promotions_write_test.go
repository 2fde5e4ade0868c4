package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/repo"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

func weekendPromotion(category uuid.UUID) promotion.Promotion {
	return promotion.Promotion{
		ID:           uuid.MustParse("1f0c6c4e-7d0a-4b8e-8f55-0a9d4e3b0001"),
		Name:         "Weekend shoes",
		IsActive:     true,
		Priority:     3,
		IsCombinable: true,
		EndDate:      time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC),
		Rules: []promotion.Rule{
			promotion.CategoryDiscountRule{Percentage: decimal.NewFromInt(20), CategoryIDs: []uuid.UUID{category}},
			promotion.TimeLimitedRule{
				Adjustment: promotion.Adjustment{Amount: decimal.NewNullDecimal(decimal.New(250, -2))},
				ValidDays:  []time.Weekday{time.Saturday, time.Sunday},
			},
		},
	}
}

func TestSavePromotionWritesRulesInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID, category := uuid.New(), uuid.New()
	p := weekendPromotion(category)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(pgID(p.ID), pgID(tenantID), "Weekend shoes", pgtype.Text{},
			pgtype.Timestamptz{}, pgtype.Timestamptz{Time: p.EndDate, Valid: true},
			true, int32(3), true, pgtype.Text{}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM promotion_rules").
		WithArgs(pgID(p.ID)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec("INSERT INTO promotion_rules").
		WithArgs(pgID(repo.RuleID(p.ID, 0)), pgID(p.ID), int32(0), "CategoryDiscount",
			numeric(20, 0), pgtype.Numeric{}, pgtype.Numeric{}, pgtype.Numeric{},
			pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID{pgID(category)}, []pgtype.UUID(nil), []int16(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO promotion_rules").
		WithArgs(pgID(repo.RuleID(p.ID, 1)), pgID(p.ID), int32(1), "TimeLimited",
			pgtype.Numeric{}, numeric(250, -2), pgtype.Numeric{}, pgtype.Numeric{},
			pgtype.Int4{}, pgtype.Int4{}, []pgtype.UUID(nil), []pgtype.UUID(nil), []int16{6, 0}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w := repo.PromotionsWriter{DB: mock}
	require.NoError(t, w.SavePromotion(tenant.WithTenant(context.Background(), tenantID.String()), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePromotionRejectsForeignID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := weekendPromotion(uuid.New())
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO promotions").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	w := repo.PromotionsWriter{DB: mock}
	err = w.SavePromotion(tenant.WithTenant(context.Background(), uuid.NewString()), p)
	require.ErrorIs(t, err, repo.ErrPromotionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePromotionValidatesBeforeWriting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := weekendPromotion(uuid.New())
	p.Rules = append(p.Rules, promotion.DiscountRule{Percentage: decimal.NewFromInt(120)})

	w := repo.PromotionsWriter{DB: mock}
	err = w.SavePromotion(tenant.WithTenant(context.Background(), uuid.NewString()), p)
	require.ErrorIs(t, err, promotion.ErrMalformedRule)

	err = w.SavePromotion(context.Background(), weekendPromotion(uuid.New()))
	require.ErrorIs(t, err, repo.ErrTenantMissing)
	require.NoError(t, mock.ExpectationsWereMet())
}
