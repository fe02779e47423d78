// pkg/valueobjects/money_test.go
package valueobjects

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	tests := []struct {
		name        string
		amount      decimal.Decimal
		currency    Currency
		shouldError bool
	}{
		{
			name:        "valid money",
			amount:      decimal.New(125050, -2),
			currency:    CHF,
			shouldError: false,
		},
		{
			name:        "negative amount",
			amount:      decimal.NewFromFloat(-10.99),
			currency:    EUR,
			shouldError: true,
		},
		{
			name:        "invalid currency",
			amount:      decimal.NewFromFloat(10.99),
			currency:    "XXX",
			shouldError: true,
		},
		{
			name:        "too many decimal places",
			amount:      decimal.NewFromFloat(10.999),
			currency:    USD,
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoney(tt.amount, tt.currency)
			if tt.shouldError {
				assert.Error(t, err)
				assert.Nil(t, money)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, money)
				assert.Equal(t, tt.amount.StringFixed(2), money.Normalized())
				assert.Equal(t, tt.currency, money.Currency())
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		style   NumberStyle
		want    string
		wantErr bool
	}{
		{name: "swiss apostrophe", raw: "1'250.50", style: StyleSwiss, want: "1250.50"},
		{name: "swiss typographic apostrophe", raw: "12’000.00", style: StyleSwiss, want: "12000.00"},
		{name: "swiss no grouping", raw: "89.90", style: StyleSwiss, want: "89.90"},
		{name: "eu dot grouping", raw: "1.250,50", style: StyleEU, want: "1250.50"},
		{name: "eu space grouping", raw: "1 250,50", style: StyleEU, want: "1250.50"},
		{name: "us comma grouping", raw: "1,250.50", style: StyleUS, want: "1250.50"},
		{name: "garbage", raw: "12a.50", style: StyleUS, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.raw, tt.style)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestCurrencyFromSymbol(t *testing.T) {
	for symbol, want := range map[string]Currency{
		"CHF": CHF, "Fr.": CHF, "€": EUR, "eur": EUR, "$": USD, "£": GBP,
	} {
		got, ok := CurrencyFromSymbol(symbol)
		assert.True(t, ok, symbol)
		assert.Equal(t, want, got, symbol)
	}

	_, ok := CurrencyFromSymbol("BTC")
	assert.False(t, ok)
}

func TestNewMoneyFromString(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		style   NumberStyle
		want    string
		wantErr bool
	}{
		{name: "swiss one decimal", raw: "1'250.5", style: StyleSwiss, want: "1250.50"},
		{name: "swiss whole francs", raw: "120.-", style: StyleSwiss, want: "120.00"},
		{name: "swiss space grouping", raw: "1 250.50", style: StyleSwiss, want: "1250.50"},
		{name: "eu whole amount", raw: "980", style: StyleEU, want: "980.00"},
		{name: "three decimals", raw: "10.999", style: StyleUS, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMoneyFromString(tt.raw, tt.style, CHF)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Normalized())
			assert.Equal(t, CHF, m.Currency())
		})
	}
}
