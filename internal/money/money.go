// Package money converts between NUMERIC(12,2) columns and decimal amounts.
package money

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// FromNumeric returns zero for NULL or unreadable values.
func FromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToNumeric rounds to cents.
func ToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

// String formats an amount with two decimal places, "0.00" for NULL.
func String(n pgtype.Numeric) string {
	return FromNumeric(n).StringFixed(2)
}
