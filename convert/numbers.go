package convert

import (
	"math"
)

// Grid data arrives as daily average MW. The pipeline keeps the historical
// approximation of treating it as kWh after a plain ×1000 scale.
const kiloPerMega = 1000.0

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(decimals)) / math.Pow10(decimals)
}

func MWToKWh(mw float64) float64 {
	return mw * kiloPerMega
}

// PerMWhToPerKWh converts a price in R$/MWh to R$/kWh.
func PerMWhToPerKWh(price float64) float64 {
	return price / kiloPerMega
}

func NonNegative(v float64) float64 {
	return math.Max(0, v)
}

func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
