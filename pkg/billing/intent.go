package billing

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Intent is a payment understood from a spoken command.
type Intent struct {
	Amount      decimal.Decimal
	Recipient   string
	Description string
}

var (
	multipliers = map[string]decimal.Decimal{
		"هزار":     decimal.NewFromInt(1_000),
		"thousand": decimal.NewFromInt(1_000),
		"میلیون":   decimal.NewFromInt(1_000_000),
		"million":  decimal.NewFromInt(1_000_000),
		"میلیارد":  decimal.NewFromInt(1_000_000_000),
		"billion":  decimal.NewFromInt(1_000_000_000),
	}

	// Amounts are rials unless spoken in tomans.
	currencies = map[string]decimal.Decimal{
		"تومان": decimal.NewFromInt(10),
		"تومن":  decimal.NewFromInt(10),
		"toman": decimal.NewFromInt(10),
		"ریال":  decimal.NewFromInt(1),
		"rial":  decimal.NewFromInt(1),
	}

	recipientMarkers   = map[string]bool{"به": true, "to": true}
	descriptionMarkers = map[string]bool{"بابت": true, "for": true}
)

// ParseIntent extracts amount, recipient and an optional description from a
// transcript such as "پرداخت ۵۰ هزار تومان به علی بابت ناهار".
func ParseIntent(transcript string) (Intent, error) {
	tokens := strings.FieldsFunc(strings.ToLower(NormalizeDigits(transcript)), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("!?؟:;،\"'", r)
	})

	for i, token := range tokens {
		tokens[i] = strings.TrimRight(token, ".")
	}

	var (
		intent     Intent
		haveAmount bool
	)

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		switch {
		case !haveAmount && isNumber(token):
			amount, consumed := spokenAmount(tokens[i:])
			intent.Amount = amount
			haveAmount = true
			i += consumed - 1
		case recipientMarkers[token] && intent.Recipient == "" && i+1 < len(tokens):
			intent.Recipient = tokens[i+1]
			i++
		case descriptionMarkers[token] && i+1 < len(tokens):
			intent.Description = strings.Join(tokens[i+1:], " ")
			i = len(tokens)
		}
	}

	if !haveAmount || !intent.Amount.IsPositive() {
		return Intent{}, fmt.Errorf("%w: no amount in %q", ErrUnparseableIntent, transcript)
	}

	if intent.Recipient == "" {
		return Intent{}, fmt.Errorf("%w: no recipient in %q", ErrUnparseableIntent, transcript)
	}

	if !intent.Amount.Equal(intent.Amount.Truncate(0)) {
		return Intent{}, fmt.Errorf("%w: fractional rial amount in %q", ErrUnparseableIntent, transcript)
	}

	return intent, nil
}

// spokenAmount reads a number followed by any multiplier and currency words,
// returning the rial amount and how many tokens it used.
func spokenAmount(tokens []string) (decimal.Decimal, int) {
	amount, err := decimal.NewFromString(tokens[0])
	if err != nil {
		return decimal.Zero, 1
	}

	consumed := 1

	for _, token := range tokens[1:] {
		if m, ok := multipliers[token]; ok {
			amount = amount.Mul(m)
			consumed++

			continue
		}

		if c, ok := currencies[token]; ok {
			amount = amount.Mul(c)
			consumed++
		}

		break
	}

	return amount, consumed
}

func isNumber(token string) bool {
	_, err := decimal.NewFromString(token)

	return err == nil
}
