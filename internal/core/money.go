// Package core provides the spend domain: records, exact money amounts,
// day bucketing and the free-text amount parser.
//
// Amounts are handled as integer cents end to end. Parsing goes through
// shopspring decimals and conversion to cents rounds half-up on the third
// decimal place; sums are integer additions, so repeated aggregation never
// accumulates floating-point error.
package core

import "github.com/shopspring/decimal"

var centsFactor = decimal.NewFromInt(100)

// MoneyFromDecimal converts a parsed amount to cents.
//
// Examples:
//
//	MoneyFromDecimal(12.34)  -> 1234 cents
//	MoneyFromDecimal(12.345) -> 1235 cents (half-up on the third decimal)
//	MoneyFromDecimal(12.344) -> 1234 cents
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Mul(centsFactor)
	if !cents.BigInt().IsInt64() {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Decimal returns the dollar value as an exact decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.NewFromInt(m.Cents).Div(centsFactor)
}
