package service

import "github.com/shopspring/decimal"

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// LinePrice is the priced breakdown of one order line
type LinePrice struct {
	Subtotal         decimal.Decimal
	GSTAmount        decimal.Decimal
	Total            decimal.Decimal
	CommissionAmount decimal.Decimal
}

// PriceLine prices qty units at unitPrice. GST and commission are percentages
// of the subtotal. Every amount is rounded half away from zero to two places.
func PriceLine(unitPrice, gstRate, commissionRate decimal.Decimal, qty int) LinePrice {
	subtotal := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(moneyPlaces)
	gst := subtotal.Mul(gstRate).Div(hundred).Round(moneyPlaces)
	return LinePrice{
		Subtotal:         subtotal,
		GSTAmount:        gst,
		Total:            subtotal.Add(gst),
		CommissionAmount: subtotal.Mul(commissionRate).Div(hundred).Round(moneyPlaces),
	}
}

// OrderTotals sums priced lines into order level amounts
type OrderTotals struct {
	Subtotal         decimal.Decimal
	GSTAmount        decimal.Decimal
	ShippingCharges  decimal.Decimal
	PlatformFee      decimal.Decimal
	Total            decimal.Decimal
	CommissionAmount decimal.Decimal
}

// SumOrder totals the lines. Shipping charges and platform fee are added on top
// of the line totals.
func SumOrder(lines []LinePrice, shipping, platformFee decimal.Decimal) OrderTotals {
	t := OrderTotals{
		Subtotal:         decimal.Zero,
		GSTAmount:        decimal.Zero,
		CommissionAmount: decimal.Zero,
		ShippingCharges:  shipping,
		PlatformFee:      platformFee,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.GSTAmount = t.GSTAmount.Add(l.GSTAmount)
		t.CommissionAmount = t.CommissionAmount.Add(l.CommissionAmount)
	}
	t.Total = t.Subtotal.Add(t.GSTAmount).Add(t.PlatformFee).Add(t.ShippingCharges)
	return t
}
