package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-promo/internal/pricing"
)

func TestScale(t *testing.T) {
	require.Equal(t, int32(2), pricing.Scale("USD"))
	require.Equal(t, int32(2), pricing.Scale("eur"))
	require.Equal(t, int32(0), pricing.Scale("JPY"))
	require.Equal(t, int32(3), pricing.Scale("KWD"))
	require.Equal(t, pricing.DefaultScale, pricing.Scale("not-a-code"))
	require.Equal(t, pricing.DefaultScale, pricing.Scale(""))
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"2.345":  "2.35",
		"2.344":  "2.34",
		"-2.345": "-2.35",
		"0.005":  "0.01",
		"0.9999": "1",
	}
	for in, want := range cases {
		got := pricing.Round(decimal.RequireFromString(in), "USD")
		require.True(t, got.Equal(decimal.RequireFromString(want)), "round %s: got %s want %s", in, got, want)
	}
}

func TestPercentKeepsPrecisionUntilRounding(t *testing.T) {
	discount := pricing.Percent(decimal.RequireFromString("3.00"), decimal.RequireFromString("33.333"))
	require.Equal(t, "0.99999", discount.String())
	require.Equal(t, "1.00", pricing.Format(pricing.Round(discount, "USD"), "USD"))
}

func TestRatio(t *testing.T) {
	require.True(t, pricing.Ratio(decimal.NewFromInt(15), decimal.NewFromInt(100)).Equal(decimal.NewFromInt(15)))
	require.True(t, pricing.Ratio(decimal.NewFromInt(5), decimal.Zero).IsZero())
}

func TestFormat(t *testing.T) {
	require.Equal(t, "18.00", pricing.Format(decimal.NewFromInt(18), "IDR"))
	require.Equal(t, "1800", pricing.Format(decimal.NewFromInt(1800), "JPY"))
}
