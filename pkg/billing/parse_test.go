package billing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDigits(t *testing.T) {
	assert.Equal(t, "1234567890", NormalizeDigits("۱۲۳۴۵۶۷۸۹۰"))
	assert.Equal(t, "1234567890", NormalizeDigits("١٢٣٤٥٦٧٨٩٠"))
	assert.Equal(t, "1500000", NormalizeDigits("۱٬۵۰۰٬۰۰۰"))
	assert.Equal(t, "2.5", NormalizeDigits("۲٫۵"))
	assert.Equal(t, "1000000", NormalizeDigits("1,000_000"))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr bool
	}{
		{name: "int", in: 5000, want: 5000},
		{name: "int64", in: int64(5000), want: 5000},
		{name: "float", in: float64(5000), want: 5000},
		{name: "json number", in: json.Number("5000"), want: 5000},
		{name: "decimal", in: decimal.NewFromInt(5000), want: 5000},
		{name: "string", in: " 5000 ", want: 5000},
		{name: "persian string", in: "۵٬۰۰۰", want: 5000},
		{name: "nil", in: nil, wantErr: true},
		{name: "zero", in: 0, wantErr: true},
		{name: "negative", in: "-10", wantErr: true},
		{name: "fraction", in: 10.5, wantErr: true},
		{name: "garbage", in: "ten", wantErr: true},
		{name: "bool", in: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)

				return
			}

			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		transcript  string
		amount      int64
		recipient   string
		description string
	}{
		{transcript: "پرداخت ۵۰ هزار تومان به علی بابت ناهار", amount: 500_000, recipient: "علی", description: "ناهار"},
		{transcript: "۲ میلیون ریال به فروشگاه بده", amount: 2_000_000, recipient: "فروشگاه"},
		{transcript: "پرداخت ۱۲۰۰۰ تومن به رضا", amount: 120_000, recipient: "رضا"},
		{transcript: "۱٫۵ میلیون به مریم", amount: 1_500_000, recipient: "مریم"},
		{transcript: "Pay 30 thousand toman to shop-9 for coffee beans.", amount: 300_000, recipient: "shop-9", description: "coffee beans"},
		{transcript: "به سارا ۷۰۰۰ بده", amount: 7_000, recipient: "سارا"},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			intent, err := ParseIntent(tt.transcript)
			require.NoError(t, err)

			assert.True(t, decimal.NewFromInt(tt.amount).Equal(intent.Amount), "got %s", intent.Amount)
			assert.Equal(t, tt.recipient, intent.Recipient)
			assert.Equal(t, tt.description, intent.Description)
		})
	}
}

func TestParseIntent_Rejects(t *testing.T) {
	for _, transcript := range []string{
		"",
		"پرداخت به علی",
		"پرداخت ۵۰ هزار تومان",
		"۰ تومان به علی",
		"۱٫۵ ریال به علی",
	} {
		_, err := ParseIntent(transcript)
		assert.ErrorIs(t, err, ErrUnparseableIntent, transcript)
	}
}

func TestNotificationMessage(t *testing.T) {
	assert.Equal(t, "پرداخت 2500 ریال با موفقیت انجام شد", notificationMessage("payment", decimal.NewFromInt(2500)))
	assert.Equal(t, "42", notificationMessage("unknown", decimal.NewFromInt(42)))
}
