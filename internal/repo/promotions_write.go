package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/promotion"
)

// ErrPromotionConflict is returned when the promotion id belongs to another tenant.
var ErrPromotionConflict = errors.New("promotion id is owned by another tenant")

const upsertPromotionSQL = `
INSERT INTO promotions (id, tenant_id, name, description, start_date, end_date, is_active, priority, is_combinable, coupon_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    start_date = EXCLUDED.start_date,
    end_date = EXCLUDED.end_date,
    is_active = EXCLUDED.is_active,
    priority = EXCLUDED.priority,
    is_combinable = EXCLUDED.is_combinable,
    coupon_code = EXCLUDED.coupon_code,
    updated_at = NOW()
WHERE promotions.tenant_id = EXCLUDED.tenant_id`

const deletePromotionRulesSQL = `DELETE FROM promotion_rules WHERE promotion_id = $1`

const insertPromotionRuleSQL = `
INSERT INTO promotion_rules (id, promotion_id, position, rule_type, discount_percentage, discount_amount,
    min_order_amount, fixed_price, required_quantity, free_quantity, category_ids, product_ids, valid_days)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// Beginner is satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PromotionsWriter stores promotions for the tenant in context.
type PromotionsWriter struct {
	DB Beginner
}

// SavePromotion inserts or replaces p and its rules in one transaction. Rule
// ids are derived from the promotion id and position so reseeding is stable.
func (w PromotionsWriter) SavePromotion(ctx context.Context, p promotion.Promotion) error {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		return errors.New("promotion id is required")
	}
	params := make([]promotion.RuleParams, len(p.Rules))
	for i, rule := range p.Rules {
		if rule == nil {
			return fmt.Errorf("promotion %s rule %d: %w: nil rule", p.ID, i, promotion.ErrMalformedRule)
		}
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("promotion %s rule %d: %w", p.ID, i, err)
		}
		if params[i], err = promotion.ParamsOf(rule); err != nil {
			return fmt.Errorf("promotion %s rule %d: %w", p.ID, i, err)
		}
	}

	return pgx.BeginFunc(ctx, w.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, upsertPromotionSQL,
			pgUUID(p.ID), tid, p.Name, optionalText(p.Description),
			optionalTime(p.StartDate), optionalTime(p.EndDate),
			p.IsActive, int32(p.Priority), p.IsCombinable, optionalText(p.CouponCode))
		if err != nil {
			return fmt.Errorf("upsert promotion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrPromotionConflict, p.ID)
		}
		if _, err := tx.Exec(ctx, deletePromotionRulesSQL, pgUUID(p.ID)); err != nil {
			return fmt.Errorf("clear promotion rules: %w", err)
		}
		for i, rule := range p.Rules {
			rp := params[i]
			_, err := tx.Exec(ctx, insertPromotionRuleSQL,
				pgUUID(RuleID(p.ID, i)), pgUUID(p.ID), int32(i), string(rule.Type()),
				numericOf(rp.DiscountPercentage), numericOf(rp.DiscountAmount),
				numericOf(rp.MinOrderAmount), numericOf(rp.FixedPrice),
				optionalInt(rp.RequiredQuantity), optionalInt(rp.FreeQuantity),
				pgUUIDs(rp.CategoryIDs), pgUUIDs(rp.ProductIDs), smallints(rp.ValidDays))
			if err != nil {
				return fmt.Errorf("insert promotion rule %d: %w", i, err)
			}
		}
		return nil
	})
}

// RuleID is the stable id of the rule at position in promotionID.
func RuleID(promotionID uuid.UUID, position int) uuid.UUID {
	return uuid.NewSHA1(promotionID, []byte(strconv.Itoa(position)))
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func optionalTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func optionalInt(n int) pgtype.Int4 {
	return pgtype.Int4{Int32: int32(n), Valid: n != 0}
}

func numericOf(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func pgUUIDs(in []uuid.UUID) []pgtype.UUID {
	if len(in) == 0 {
		return nil
	}
	out := make([]pgtype.UUID, len(in))
	for i, id := range in {
		out[i] = pgUUID(id)
	}
	return out
}

func smallints(days []time.Weekday) []int16 {
	if len(days) == 0 {
		return nil
	}
	out := make([]int16, len(days))
	for i, d := range days {
		out[i] = int16(d)
	}
	return out
}
