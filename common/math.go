package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// DecimalToFixed rounds num half away from zero to the given number of decimal places.
// NaN and infinities are returned unchanged.
func DecimalToFixed(num float64, precision int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}
	f, _ := decimal.NewFromFloat(num).Round(int32(precision)).Float64()
	return f
}

// Percent renders a 0..1 ratio as a fixed-point percentage string, eg. "87.50%".
func Percent(ratio float64, precision int) string {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "NaN%"
	}
	return decimal.NewFromFloat(ratio).Shift(2).StringFixed(int32(precision)) + "%"
}

// Clamp bounds v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
