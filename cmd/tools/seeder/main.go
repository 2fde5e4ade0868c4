package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-promo/internal/app"
	"github.com/noah-isme/toko-promo/internal/config"
	"github.com/noah-isme/toko-promo/internal/obs"
	"github.com/noah-isme/toko-promo/internal/promotion"
	"github.com/noah-isme/toko-promo/internal/repo"
	"github.com/noah-isme/toko-promo/internal/tenant"
)

// Seeded ids are derived from this namespace so reruns update in place.
var seedNamespace = uuid.MustParse("9a4c1f8e-3b2d-4e61-8f0a-6c5d7e9b1a20")

func main() {
	var (
		tenantID = flag.String("tenant", "", "tenant UUID that owns the seeded promotions")
		file     = flag.String("file", "", "JSON file with a list of promotions; defaults to the demo catalog")
		dryRun   = flag.Bool("dry-run", false, "print the promotions without writing them")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	if _, err := uuid.Parse(*tenantID); err != nil {
		logger.Fatal().Err(err).Str("tenant", *tenantID).Msg("-tenant must be a UUID")
	}

	promos := demoCatalog()
	if *file != "" {
		if promos, err = readCatalog(*file); err != nil {
			logger.Fatal().Err(err).Str("file", *file).Msg("read promotions")
		}
	}

	if *dryRun {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(promos); err != nil {
			logger.Fatal().Err(err).Msg("encode promotions")
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := app.OpenPostgres(ctx, cfg, "toko-promo-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	ctx = tenant.WithTenant(ctx, *tenantID)
	writer := repo.PromotionsWriter{DB: pool}
	for _, p := range promos {
		if err := writer.SavePromotion(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("promotion", p.Name).Msg("save promotion")
		}
		logger.Info().Str("promotion_id", p.ID.String()).Str("name", p.Name).Int("rules", len(p.Rules)).Msg("promotion seeded")
	}
	logger.Info().Int("count", len(promos)).Msg("seeding completed; cached snapshots refresh on the next bucket")
}

func readCatalog(path string) ([]promotion.Promotion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var promos []promotion.Promotion
	if err := json.Unmarshal(data, &promos); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return promos, nil
}

func seedID(name string) uuid.UUID {
	return uuid.NewSHA1(seedNamespace, []byte(name))
}

func demoCatalog() []promotion.Promotion {
	shoes := seedID("category:shoes")
	socks := seedID("product:socks")
	sneaker := seedID("product:sneaker")
	laces := seedID("product:laces")
	pct := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }

	return []promotion.Promotion{
		{
			ID: seedID("promo:sitewide"), Name: "Sitewide 5%", IsActive: true, Priority: 1, IsCombinable: true,
			Rules: []promotion.Rule{promotion.DiscountRule{Percentage: decimal.NewFromInt(5)}},
		},
		{
			ID: seedID("promo:shoes"), Name: "Shoes 20%", IsActive: true, Priority: 5, IsCombinable: false,
			Rules: []promotion.Rule{promotion.CategoryDiscountRule{Percentage: decimal.NewFromInt(20), CategoryIDs: []uuid.UUID{shoes}}},
		},
		{
			ID: seedID("promo:socks"), Name: "Socks 3 for 2", IsActive: true, Priority: 4, IsCombinable: true,
			Rules: []promotion.Rule{promotion.BuyXGetYRule{ProductIDs: []uuid.UUID{socks}, RequiredQuantity: 2, FreeQuantity: 1}},
		},
		{
			ID: seedID("promo:bundle"), Name: "Sneaker and laces", IsActive: true, Priority: 6, IsCombinable: true,
			Rules: []promotion.Rule{promotion.BundleRule{ProductIDs: []uuid.UUID{sneaker, laces}, FixedPrice: decimal.NewFromInt(99)}},
		},
		{
			ID: seedID("promo:big-basket"), Name: "10 off over 100", IsActive: true, Priority: 2, IsCombinable: true,
			Rules: []promotion.Rule{promotion.CartAmountDiscountRule{Amount: decimal.NewFromInt(10), MinOrderAmount: decimal.NewFromInt(100)}},
		},
		{
			ID: seedID("promo:welcome"), Name: "Welcome coupon", IsActive: true, Priority: 3, IsCombinable: true, CouponCode: "WELCOME10",
			Rules: []promotion.Rule{promotion.CouponRule{Adjustment: promotion.Adjustment{Percentage: pct(10)}}},
		},
		{
			ID: seedID("promo:weekend"), Name: "Weekend 7%", IsActive: true, Priority: 2, IsCombinable: true,
			Rules: []promotion.Rule{promotion.TimeLimitedRule{
				Adjustment: promotion.Adjustment{Percentage: pct(7)},
				ValidDays:  []time.Weekday{time.Saturday, time.Sunday},
			}},
		},
		{
			ID: seedID("promo:vip"), Name: "VIP night", IsActive: false, Priority: 9, IsCombinable: true, CouponCode: "VIPNIGHT",
			Rules: []promotion.Rule{
				promotion.CouponRule{Adjustment: promotion.Adjustment{Percentage: pct(0)}},
				promotion.ExclusiveRule{Adjustment: promotion.Adjustment{Percentage: pct(30)}},
			},
		},
	}
}
