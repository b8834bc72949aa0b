package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places every money column stores.
const MoneyScale = 2

// IsWholeCents reports whether amount fits a money column without rounding.
func IsWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyScale))
}

// ValidAmount reports whether amount can be moved through the ledger:
// positive and in whole cents.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && IsWholeCents(amount)
}
