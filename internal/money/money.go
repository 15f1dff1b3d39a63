// Package money converts decimal store amounts into the integer minor units
// expected by the payment provider.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnits is an amount expressed in the smallest unit of a currency.
type MinorUnits = int64

var hundred = decimal.NewFromInt(100)

// zeroDecimal lists currencies that have no minor unit at the provider.
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var threeDecimal = map[string]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

// IsZeroDecimal reports whether code belongs to the fixed zero-decimal set.
func IsZeroDecimal(code string) bool {
	_, ok := zeroDecimal[normalizeCode(code)]
	return ok
}

// Formatter converts a store base-currency amount into the display currency,
// applying that currency's rounding rules.
type Formatter interface {
	Format(amount decimal.Decimal, currencyCode string, conversion decimal.Decimal) decimal.Decimal
}

// StandardFormatter multiplies by the conversion value and rounds half away
// from zero to the currency's number of decimals.
type StandardFormatter struct {
	// Decimals overrides the number of decimals per currency code.
	Decimals map[string]int32
}

// Format implements Formatter.
func (f StandardFormatter) Format(amount decimal.Decimal, currencyCode string, conversion decimal.Decimal) decimal.Decimal {
	if conversion.IsZero() {
		conversion = decimal.NewFromInt(1)
	}
	return amount.Mul(conversion).Round(f.decimals(currencyCode))
}

func (f StandardFormatter) decimals(code string) int32 {
	code = normalizeCode(code)
	if d, ok := f.Decimals[code]; ok {
		return d
	}
	if _, ok := zeroDecimal[code]; ok {
		return 0
	}
	if _, ok := threeDecimal[code]; ok {
		return 3
	}
	return 2
}

// ToMinorUnits formats amount for currencyCode and converts it to minor units.
// Zero-decimal currencies are returned as formatted; all others are scaled by 100.
func ToMinorUnits(f Formatter, amount decimal.Decimal, currencyCode string, conversion decimal.Decimal) MinorUnits {
	if f == nil {
		f = StandardFormatter{}
	}
	formatted := f.Format(amount, currencyCode, conversion)
	if IsZeroDecimal(currencyCode) {
		return formatted.Round(0).IntPart()
	}
	return formatted.Mul(hundred).Round(0).IntPart()
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
