package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyInvalidInput indicates an unknown or malformed currency code.
var ErrCurrencyInvalidInput = errors.New("currency service: invalid input")

// ErrCurrencyUnsupported indicates no conversion rate exists for the pair.
var ErrCurrencyUnsupported = errors.New("currency service: unsupported currency")

// CurrencyServiceDeps carries the rate table for the fixed-rate converter.
// Rates are expressed against the base currency: one unit of Base equals
// Rates[code] units of code.
type CurrencyServiceDeps struct {
	Base  string
	Rates map[string]string
}

type currencyService struct {
	base  string
	rates map[string]decimal.Decimal
}

// NewCurrencyService builds a converter from a base currency and decimal rate
// strings. Rate strings keep exact precision through config round-trips.
func NewCurrencyService(deps CurrencyServiceDeps) (CurrencyService, error) {
	base := strings.ToUpper(strings.TrimSpace(deps.Base))
	if base == "" {
		base = "EUR"
	}

	rates := make(map[string]decimal.Decimal, len(deps.Rates)+1)
	rates[base] = decimal.NewFromInt(1)
	for code, raw := range deps.Rates {
		normalised := strings.ToUpper(strings.TrimSpace(code))
		if len(normalised) != 3 {
			return nil, fmt.Errorf("%w: currency code %q", ErrCurrencyInvalidInput, code)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: rate for %s: %v", ErrCurrencyInvalidInput, normalised, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("%w: rate for %s must be positive", ErrCurrencyInvalidInput, normalised)
		}
		rates[normalised] = rate
	}

	return &currencyService{base: base, rates: rates}, nil
}

// Convert translates a minor-unit amount between two supported currencies,
// rounding half-up to whole minor units.
func (s *currencyService) Convert(amount int64, from string, to string) (int64, error) {
	if s == nil {
		return 0, ErrCurrencyUnsupported
	}

	src := strings.ToUpper(strings.TrimSpace(from))
	dst := strings.ToUpper(strings.TrimSpace(to))
	if src == "" || dst == "" {
		return 0, ErrCurrencyInvalidInput
	}
	if src == dst {
		return amount, nil
	}

	srcRate, ok := s.rates[src]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCurrencyUnsupported, src)
	}
	dstRate, ok := s.rates[dst]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCurrencyUnsupported, dst)
	}

	// amount/srcRate brings the value back to base units, dstRate takes it out.
	converted := decimal.NewFromInt(amount).Div(srcRate).Mul(dstRate)
	return converted.Round(0).IntPart(), nil
}

func (s *currencyService) Supported(code string) bool {
	if s == nil {
		return false
	}
	_, ok := s.rates[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}
