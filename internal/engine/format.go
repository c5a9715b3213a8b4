package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatCurrency renders whole US dollars with thousands separators: 1234.5 -> "$1,235".
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)
	neg := d.IsNegative()
	s := groupThousands(d.Abs().StringFixed(0))
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// FormatPercentage renders a percentage with one decimal: 12.345 -> "12.3%".
func FormatPercentage(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
