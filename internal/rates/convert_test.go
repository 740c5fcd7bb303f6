package rates

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		usd, rate string
		want      int64
	}{
		{"10", "1700", 1700000},
		{"150", "1550.5", 23257500},
		{"99.99", "1", 9999},
		// 0.333 * 3 * 100 = 99.9 -> ceil 100
		{"0.333", "3", 100},
		{"19.99", "1612.345", 3223078},
	}
	for _, tt := range tests {
		got := ToMinorUnits(decimal.RequireFromString(tt.usd), decimal.RequireFromString(tt.rate))
		if got != tt.want {
			t.Errorf("ToMinorUnits(%s, %s) = %d, want %d", tt.usd, tt.rate, got, tt.want)
		}
	}
}

func TestToMajorUnitsNeverUndercharges(t *testing.T) {
	usd := decimal.RequireFromString("19.99")
	rate := decimal.RequireFromString("1612.345")
	exact := usd.Mul(rate)
	got := ToMajorUnits(usd, rate)
	if got.LessThan(exact) {
		t.Fatalf("major %s < exact %s", got, exact)
	}
	if got.Sub(exact).GreaterThanOrEqual(decimal.RequireFromString("0.01")) {
		t.Fatalf("overcharge by more than one minor unit: %s vs %s", got, exact)
	}
}

func TestUSDToCents(t *testing.T) {
	if got := USDToCents(decimal.RequireFromString("150")); got != 15000 {
		t.Fatalf("USDToCents(150) = %d", got)
	}
}

func TestPair(t *testing.T) {
	if got := Pair("ngn"); got != "USD_NGN" {
		t.Fatalf("Pair = %q", got)
	}
}
