package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/resilience"
)

const listPromotionsSQL = `
SELECT id, name, description, start_date, end_date, is_active, priority, is_combinable, coupon_code
FROM promotions
WHERE tenant_id = $1
  AND is_active
  AND (start_date IS NULL OR start_date < $3)
  AND (end_date IS NULL OR end_date >= $2)
ORDER BY priority DESC, created_at, id`

const listPromotionRulesSQL = `
SELECT promotion_id, rule_type, discount_percentage, discount_amount, min_order_amount, fixed_price,
       required_quantity, free_quantity, category_ids, product_ids, valid_days
FROM promotion_rules
WHERE promotion_id = ANY($1)
ORDER BY promotion_id, position`

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PromotionsTenantRepo loads the promotion catalog of the tenant in context.
type PromotionsTenantRepo struct {
	DB      Querier
	Breaker *resilience.Breaker
	Policy  resilience.Policy
}

// ActivePromotions returns the tenant's active promotions whose window
// overlaps [from, to), with their rules in position order.
func (r PromotionsTenantRepo) ActivePromotions(ctx context.Context, from, to time.Time) ([]promotion.Promotion, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	policy := r.Policy
	if policy.Retryable == nil {
		policy.Retryable = retryableDBError
	}
	return resilience.Call(ctx, r.Breaker, policy, func(ctx context.Context) ([]promotion.Promotion, error) {
		return r.load(ctx, tid, from, to)
	})
}

func (r PromotionsTenantRepo) load(ctx context.Context, tid pgtype.UUID, from, to time.Time) ([]promotion.Promotion, error) {
	rows, err := r.DB.Query(ctx, listPromotionsSQL, tid, from, to)
	if err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	var (
		promos []promotion.Promotion
		ids    []pgtype.UUID
		index  = map[uuid.UUID]int{}
	)
	for rows.Next() {
		var (
			id          pgtype.UUID
			name        string
			description pgtype.Text
			start, end  pgtype.Timestamptz
			p           promotion.Promotion
			priority    int32
			coupon      pgtype.Text
		)
		if err := rows.Scan(&id, &name, &description, &start, &end, &p.IsActive, &priority, &p.IsCombinable, &coupon); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		p.ID = uuid.UUID(id.Bytes)
		p.Name = name
		p.Description = description.String
		p.Priority = int(priority)
		p.CouponCode = coupon.String
		if start.Valid {
			p.StartDate = start.Time
		}
		if end.Valid {
			p.EndDate = end.Time
		}
		index[p.ID] = len(promos)
		promos = append(promos, p)
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promotions: %w", err)
	}
	if len(promos) == 0 {
		return []promotion.Promotion{}, nil
	}

	ruleRows, err := r.DB.Query(ctx, listPromotionRulesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("list promotion rules: %w", err)
	}
	defer ruleRows.Close()
	for ruleRows.Next() {
		var (
			promotionID pgtype.UUID
			ruleType    string
			pct, amount pgtype.Numeric
			minOrder    pgtype.Numeric
			fixedPrice  pgtype.Numeric
			required    pgtype.Int4
			free        pgtype.Int4
			categoryIDs []pgtype.UUID
			productIDs  []pgtype.UUID
			validDays   []int16
		)
		if err := ruleRows.Scan(&promotionID, &ruleType, &pct, &amount, &minOrder, &fixedPrice,
			&required, &free, &categoryIDs, &productIDs, &validDays); err != nil {
			return nil, fmt.Errorf("scan promotion rule: %w", err)
		}
		pos, ok := index[uuid.UUID(promotionID.Bytes)]
		if !ok {
			continue
		}
		rule, err := promotion.NewRule(promotion.RuleType(ruleType), promotion.RuleParams{
			DiscountPercentage: nullDecimal(pct),
			DiscountAmount:     nullDecimal(amount),
			MinOrderAmount:     nullDecimal(minOrder),
			FixedPrice:         nullDecimal(fixedPrice),
			RequiredQuantity:   int(required.Int32),
			FreeQuantity:       int(free.Int32),
			CategoryIDs:        uuids(categoryIDs),
			ProductIDs:         uuids(productIDs),
			ValidDays:          weekdays(validDays),
		})
		if err != nil {
			return nil, fmt.Errorf("promotion %s: %w", uuid.UUID(promotionID.Bytes), err)
		}
		promos[pos].Rules = append(promos[pos].Rules, rule)
	}
	if err := ruleRows.Err(); err != nil {
		return nil, fmt.Errorf("list promotion rules: %w", err)
	}
	return promos, nil
}

// retryableDBError retries transport failures but not server-side errors or
// bad catalog data.
func retryableDBError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return false
	}
	if errors.Is(err, promotion.ErrMalformedRule) || errors.Is(err, promotion.ErrUnknownRuleType) {
		return false
	}
	return true
}

func nullDecimal(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(n.Int, n.Exp))
}

func uuids(in []pgtype.UUID) []uuid.UUID {
	if len(in) == 0 {
		return nil
	}
	out := make([]uuid.UUID, 0, len(in))
	for _, id := range in {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}

func weekdays(in []int16) []time.Weekday {
	if len(in) == 0 {
		return nil
	}
	out := make([]time.Weekday, len(in))
	for i, d := range in {
		out[i] = time.Weekday(d)
	}
	return out
}
