package orders

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubtotal(t *testing.T) {
	price := decimal.NewFromInt(150)
	if got := Subtotal(price, nil); !got.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("Subtotal without addons = %s, want 150", got)
	}
	addons := []Addon{
		{ID: "bi-weekly", Name: "Bi-weekly payouts", Price: decimal.RequireFromString("22.50")},
		{ID: "profit-split", Name: "90% profit split", Price: decimal.RequireFromString("30")},
	}
	if got := Subtotal(price, addons); !got.Equal(decimal.RequireFromString("202.50")) {
		t.Fatalf("Subtotal = %s, want 202.50", got)
	}
}

func TestComputeTotal(t *testing.T) {
	tests := []struct {
		subtotal, discount, want string
	}{
		{"150", "0", "150"},
		{"150", "15", "135"},
		{"150", "200", "0"},
		{"150", "-5", "150"},
	}
	for _, tt := range tests {
		got := ComputeTotal(decimal.RequireFromString(tt.subtotal), decimal.RequireFromString(tt.discount))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ComputeTotal(%s, %s) = %s, want %s", tt.subtotal, tt.discount, got, tt.want)
		}
	}
}
