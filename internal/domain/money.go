package domain

import "github.com/shopspring/decimal"

// TaxRate is applied to every order subtotal.
var TaxRate = decimal.RequireFromString("0.08")

func LineTotal(price float64, quantity int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

func OrderSubtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(LineTotal(it.Price, it.Quantity))
	}
	return sum
}

// WithTax returns subtotal plus tax rounded to two decimals.
func WithTax(subtotal decimal.Decimal) float64 {
	f, _ := subtotal.Add(subtotal.Mul(TaxRate)).Round(2).Float64()
	return f
}

func Round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}
