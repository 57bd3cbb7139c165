package transaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderFee(t *testing.T) {
	tests := []struct {
		amount float64
		fee    float64
	}{
		{0, 100},
		{1000, 115},
		{5000, 175},
		{100000, 1600},
		{126666.67, 2000},
		{200000, 2000},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.fee, ProviderFee(tt.amount), 1e-9, "amount %v", tt.amount)
	}
}

func TestProviderFee_NeverExceedsCap(t *testing.T) {
	for amount := 0.0; amount < 1_000_000; amount += 7919 {
		assert.LessOrEqual(t, ProviderFee(amount), FeeCap)
	}
}
