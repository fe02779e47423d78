// pkg/valueobjects/money.go
package valueobjects

import (
	"fmt"
	"strings"

	"github.com/NomadCrew/nomad-crew-ocr/errors"
	"github.com/shopspring/decimal"
)

// Currency represents a valid ISO 4217 currency code
type Currency string

// Supported currencies
const (
	CHF Currency = "CHF"
	EUR Currency = "EUR"
	USD Currency = "USD"
	GBP Currency = "GBP"
)

var validCurrencies = map[Currency]bool{
	CHF: true,
	EUR: true,
	USD: true,
	GBP: true,
}

// currencySymbols maps the printed forms found on documents to ISO codes.
var currencySymbols = map[string]Currency{
	"CHF":  CHF,
	"FR.":  CHF,
	"SFR.": CHF,
	"EUR":  EUR,
	"€":    EUR,
	"USD":  USD,
	"$":    USD,
	"GBP":  GBP,
	"£":    GBP,
}

// NumberStyle describes how a printed amount groups thousands and marks decimals.
type NumberStyle int

const (
	// StyleSwiss is 1'250.50 (apostrophe or right single quote grouping).
	StyleSwiss NumberStyle = iota
	// StyleEU is 1.250,50 or 1 250,50.
	StyleEU
	// StyleUS is 1,250.50.
	StyleUS
)

const (
	ErrInvalidAmount   = "INVALID_AMOUNT"
	ErrInvalidCurrency = "INVALID_CURRENCY"
)

// Money represents a monetary value with a specific currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money instance with validation
func NewMoney(amount decimal.Decimal, currency Currency) (*Money, error) {
	if !isValidCurrency(currency) {
		return nil, errors.ValidationFailed(
			ErrInvalidCurrency,
			fmt.Sprintf("currency %s is not supported", currency),
		)
	}

	if amount.LessThan(decimal.Zero) {
		return nil, errors.ValidationFailed(
			ErrInvalidAmount,
			"amount cannot be negative",
		)
	}

	if amount.Exponent() < -2 {
		return nil, errors.ValidationFailed(
			ErrInvalidAmount,
			"amount cannot have more than 2 decimal places",
		)
	}

	return &Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// NewMoneyFromString parses a printed amount in the given style.
func NewMoneyFromString(amount string, style NumberStyle, currency Currency) (*Money, error) {
	d, err := ParseAmount(amount, style)
	if err != nil {
		return nil, err
	}
	return NewMoney(d, currency)
}

// ParseAmount converts a printed amount to a decimal, removing the grouping
// separators of style.
func ParseAmount(raw string, style NumberStyle) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	switch style {
	case StyleSwiss:
		// 120.- is a whole franc amount
		s = strings.TrimSuffix(strings.TrimSuffix(s, ".-"), ".\u2013")
		s = strings.NewReplacer("'", "", "\u2019", "", " ", "", "\u00a0", "").Replace(s)
	case StyleEU:
		s = strings.NewReplacer(".", "", " ", "", "\u00a0", "").Replace(s)
		s = strings.Replace(s, ",", ".", 1)
	case StyleUS:
		s = strings.ReplaceAll(s, ",", "")
	default:
		return decimal.Zero, errors.ValidationFailed(ErrInvalidAmount, "unknown number style")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.ValidationFailed(ErrInvalidAmount, err.Error())
	}
	return d, nil
}

// CurrencyFromSymbol resolves a printed currency marker such as "CHF", "Fr."
// or "€".
func CurrencyFromSymbol(symbol string) (Currency, bool) {
	c, ok := currencySymbols[strings.ToUpper(strings.TrimSpace(symbol))]
	return c, ok
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Normalized returns the amount with exactly two decimals and a dot separator.
func (m Money) Normalized() string {
	return m.amount.StringFixed(2)
}

func isValidCurrency(currency Currency) bool {
	return validCurrencies[currency]
}
