// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency formats an amount as dollars with thousands separators.
func FormatCurrency(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	str := d.StringFixed(2)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a fraction as a percentage, e.g. 0.02 -> "2.00%".
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%.2f%%", fraction*100)
}

// FormatSignedPercent formats a fraction as a percentage with sign.
func FormatSignedPercent(fraction float64) string {
	sign := ""
	if fraction > 0 {
		sign = "+"
	}
	return sign + FormatPercent(fraction)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatCurrency(pnl)
	if pnl > 0 && formatted != "$0.00" {
		return "+" + formatted
	}
	return formatted
}

// FormatR formats a realized R multiple, e.g. "+2.00R".
func FormatR(r float64) string {
	return fmt.Sprintf("%+.2fR", r)
}

// FormatUnits formats a crypto unit size without trailing zeros.
func FormatUnits(units float64) string {
	return decimal.NewFromFloat(units).Round(8).String()
}

// FormatPrice formats a price with up to eight significant decimals.
func FormatPrice(price float64) string {
	d := decimal.NewFromFloat(price)
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.Round(2).StringFixed(2)
	}
	return d.Round(8).String()
}
