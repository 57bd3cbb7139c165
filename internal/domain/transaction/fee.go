package transaction

import "math"

// Provider fee schedule, in the same major units as the charged amount.
const (
	FeeRate = 0.015
	BaseFee = 100.0
	FeeCap  = 2000.0
)

// ProviderFee estimates the fee the provider takes for a charge of amount.
// Callers pass a non-negative amount.
func ProviderFee(amount float64) float64 {
	return math.Min(amount*FeeRate+BaseFee, FeeCap)
}
