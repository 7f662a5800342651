package series

import (
	"math"

	"github.com/ledgerwatch/tscore/config"
)

// Round applies the per-series rounding attribute at ingest, before
// storage (§4.1). It is idempotent: rounding an already-rounded value
// yields the same value.
func Round(v float64, r config.Rounding) float64 {
	switch r.Kind {
	case config.RoundNone:
		return v
	case config.RoundDecimalDigits:
		return roundDecimal(v, r.Digits)
	case config.RoundSignificantDigits:
		return roundSignificant(v, r.Digits)
	default:
		return v
	}
}

func roundDecimal(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	factor := math.Pow(10, float64(digits))
	return math.Round(v*factor) / factor
}

func roundSignificant(v float64, digits int) float64 {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	neg := v < 0
	if neg {
		v = -v
	}
	magnitude := math.Floor(math.Log10(v)) + 1
	factor := math.Pow(10, float64(digits)-magnitude)
	rounded := math.Round(v*factor) / factor
	if neg {
		rounded = -rounded
	}
	return rounded
}
