package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency is returned when no exchange rate is configured.
var ErrUnknownCurrency = errors.New("unknown currency")

// Places is the number of fractional digits kept for monetary amounts.
const Places = 2

// Converter normalizes amounts into a single base currency using fixed rates.
type Converter struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewConverter builds a converter; rates express one unit of a foreign
// currency in the base currency.
func NewConverter(base string, rates map[string]decimal.Decimal) *Converter {
	normalized := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		normalized[strings.ToUpper(code)] = rate
	}
	return &Converter{base: strings.ToUpper(base), rates: normalized}
}

// Base returns the base currency code.
func (c *Converter) Base() string {
	return c.base
}

// Supports reports whether amounts in currency can be normalized.
func (c *Converter) Supports(currency string) bool {
	currency = strings.ToUpper(currency)
	if currency == "" || currency == c.base {
		return true
	}
	_, ok := c.rates[currency]
	return ok
}

// ToBase converts amount from currency to the base currency. An empty
// currency means the amount is already in the base currency.
func (c *Converter) ToBase(amount decimal.Decimal, currency string) (decimal.Decimal, error) {
	currency = strings.ToUpper(currency)
	if currency == "" || currency == c.base {
		return amount, nil
	}
	rate, ok := c.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownCurrency, currency)
	}
	return amount.Mul(rate), nil
}

// Round rounds an amount to monetary precision (half away from zero).
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Places)
}
