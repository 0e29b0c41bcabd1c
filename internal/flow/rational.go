package flow

import (
	"fmt"

	"github.com/mlefebvre1/mxl/internal/rational"
)

// jsonRate mirrors the NMOS {"numerator": N, "denominator": D} shape.
// denominator defaults to 1 when absent, matching the original's
// Rational::Rfl::to_class default.
type jsonRate struct {
	Numerator   uint64  `json:"numerator"`
	Denominator *uint64 `json:"denominator,omitempty"`
}

func (j jsonRate) toRate() (rational.Rate, error) {
	if j.Numerator == 0 {
		return rational.Rate{}, fmt.Errorf("rate numerator must be positive")
	}
	den := uint64(1)
	if j.Denominator != nil {
		den = *j.Denominator
	}
	if den == 0 {
		return rational.Rate{}, fmt.Errorf("rate denominator must be positive")
	}
	return rational.New(j.Numerator, den), nil
}
