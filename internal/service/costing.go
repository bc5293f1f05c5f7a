package service

import "github.com/shopspring/decimal"

// costPlaces is the precision of unit costs
const costPlaces = 4

// MovingAverageCost blends an incoming receipt into the current unit cost:
// (oldQty*oldCost + qty*cost) / (oldQty + qty). When nothing is on hand the
// incoming cost becomes the new average.
func MovingAverageCost(oldQty, oldCost, qty, cost decimal.Decimal) decimal.Decimal {
	if !oldQty.IsPositive() {
		return cost.Round(costPlaces)
	}
	total := oldQty.Add(qty)
	if !total.IsPositive() {
		return oldCost
	}
	return oldQty.Mul(oldCost).Add(qty.Mul(cost)).Div(total).Round(costPlaces)
}

// BatchCostPerUnit spreads material and overhead cost over the batch yield. A
// zero yield has no meaningful unit cost and reports zero.
func BatchCostPerUnit(materialCost, overheadCost, yield decimal.Decimal) decimal.Decimal {
	if !yield.IsPositive() {
		return decimal.Zero
	}
	return materialCost.Add(overheadCost).Div(yield).Round(costPlaces)
}
