package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize parses a raw monetary input and rounds it to 2 decimal places
// using round-half-up. It rejects amounts that are missing, unparseable,
// negative, or that round to exactly zero. Normalization happens once here,
// at the input boundary; amounts are never re-rounded on read.
func Normalize(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, invalidAmount("amount is required")
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalidAmount("amount is not a valid number")
	}

	// Round is half away from zero, which is exactly half-up for the
	// positive amounts accepted below.
	amount = amount.Round(2)
	if amount.Sign() <= 0 {
		return decimal.Zero, invalidAmount("amount must be greater than zero")
	}

	return amount, nil
}
