package domain

import "math"

// Hours-to-credit divisors.
const (
	TheoryHoursPerCredit    = 15
	PracticalHoursPerCredit = 30
)

// RoundCredits rounds to two decimals, half away from zero, matching the
// decimal(18,2) ledger columns.
func RoundCredits(v float64) float64 {
	return math.Round(v*100) / 100
}

// CreditBreakdown is the result of converting course hours to credits.
type CreditBreakdown struct {
	TheoryCredits    float64 `json:"theory_credits"`
	PracticalCredits float64 `json:"practical_credits"`
	Total            float64 `json:"total_credits"`
}

// ComputeCredits converts hours with theory/15 + practical/30. Each part is
// rounded before summing.
func ComputeCredits(theoryHours, practicalHours float64) (CreditBreakdown, error) {
	if theoryHours < 0 || practicalHours < 0 || math.IsNaN(theoryHours) || math.IsNaN(practicalHours) {
		return CreditBreakdown{}, ErrInvalidHours
	}
	if theoryHours == 0 && practicalHours == 0 {
		return CreditBreakdown{}, ErrInvalidHours
	}
	theory := RoundCredits(theoryHours / TheoryHoursPerCredit)
	practical := RoundCredits(practicalHours / PracticalHoursPerCredit)
	total := RoundCredits(theory + practical)
	if total <= 0 {
		return CreditBreakdown{}, ErrInvalidHours
	}
	return CreditBreakdown{
		TheoryCredits:    theory,
		PracticalCredits: practical,
		Total:            total,
	}, nil
}
