package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var digitReplacer = strings.NewReplacer(
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".", "٬", "", ",", "", "_", "",
)

// NormalizeDigits rewrites Persian and Arabic-Indic digits as ASCII and drops
// thousands separators.
func NormalizeDigits(s string) string {
	return digitReplacer.Replace(s)
}

// ParseAmount reads a whole, positive rial amount from JSON-ish input.
func ParseAmount(v any) (decimal.Decimal, error) {
	var (
		amount decimal.Decimal
		err    error
	)

	switch v := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	case decimal.Decimal:
		amount = v
	case float64:
		amount = decimal.NewFromFloat(v)
	case int:
		amount = decimal.NewFromInt(int64(v))
	case int64:
		amount = decimal.NewFromInt(v)
	case json.Number:
		amount, err = decimal.NewFromString(v.String())
	case string:
		amount, err = decimal.NewFromString(strings.TrimSpace(NormalizeDigits(v)))
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}

	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}

	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, amount)
	}

	if !amount.Equal(amount.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("%w: rial amounts are whole numbers, got %s", ErrInvalidAmount, amount)
	}

	return amount, nil
}
