package calc

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= epsilon
}

func TestSurplusDeficit(t *testing.T) {
	tests := []struct {
		production, consumption float64
		surplus, deficit        float64
	}{
		{120, 100, 20, 0},
		{70, 80, 0, 10},
		{100, 100, 0, 0},
		{0, 5, 0, 5},
	}
	for _, tt := range tests {
		if got := Surplus(tt.production, tt.consumption); got != tt.surplus {
			t.Errorf("Surplus(%v, %v) = %v, want %v", tt.production, tt.consumption, got, tt.surplus)
		}
		if got := Deficit(tt.production, tt.consumption); got != tt.deficit {
			t.Errorf("Deficit(%v, %v) = %v, want %v", tt.production, tt.consumption, got, tt.deficit)
		}
	}
}

func TestUnitPrices(t *testing.T) {
	if got := SellUnitPrice(300, 0.1); !almostEqual(got, 0.27) {
		t.Errorf("SellUnitPrice = %v, want 0.27", got)
	}
	if got := BuyUnitPrice(300, 0.1); !almostEqual(got, 0.33) {
		t.Errorf("BuyUnitPrice = %v, want 0.33", got)
	}
	if got := SellUnitPrice(300, 0); !almostEqual(got, 0.3) {
		t.Errorf("SellUnitPrice without discount = %v, want 0.3", got)
	}
}

func TestNetProfit(t *testing.T) {
	fixed := FixedCost(15, 0, 0.1)
	if !almostEqual(fixed, 1.5) {
		t.Errorf("FixedCost = %v, want 1.5", fixed)
	}
	if got := NetProfit(15, 0, fixed); !almostEqual(got, 13.5) {
		t.Errorf("NetProfit = %v, want 13.5", got)
	}
	if got := NetProfit(0, 9, FixedCost(0, 9, 0.1)); !almostEqual(got, -9.9) {
		t.Errorf("NetProfit = %v, want -9.9", got)
	}
}
