package calc

import "github.com/angas/solarcast/convert"

// Surplus is the energy left over after covering consumption.
func Surplus(productionKWh, consumptionKWh float64) float64 {
	return convert.NonNegative(productionKWh - consumptionKWh)
}

// Deficit is the energy that has to be bought to cover consumption.
func Deficit(productionKWh, consumptionKWh float64) float64 {
	return convert.NonNegative(consumptionKWh - productionKWh)
}

// SellUnitPrice is what a kWh sells for given a spot price in R$/MWh.
func SellUnitPrice(pricePerMWh, discount float64) float64 {
	return convert.PerMWhToPerKWh(pricePerMWh) * (1 - discount)
}

// BuyUnitPrice is what a kWh costs given a spot price in R$/MWh.
func BuyUnitPrice(pricePerMWh, premium float64) float64 {
	return convert.PerMWhToPerKWh(pricePerMWh) * (1 + premium)
}

func FixedCost(revenue, cost, costRate float64) float64 {
	return (revenue + cost) * costRate
}

func NetProfit(revenue, cost, fixedCost float64) float64 {
	return revenue - cost - fixedCost
}
