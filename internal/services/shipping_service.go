package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errShippingRepositoryRequired = errors.New("shipping service: repository is required")
	errShippingCurrencyRequired   = errors.New("shipping service: currency service is required")
)

// ErrShippingInvalidInput indicates the caller supplied invalid input.
var ErrShippingInvalidInput = errors.New("shipping service: invalid input")

// ErrShippingCountryUnsupported indicates no rates are configured for the country.
var ErrShippingCountryUnsupported = errors.New("shipping service: country not served")

// ErrShippingUnavailable indicates the rate backend cannot fulfil the request.
var ErrShippingUnavailable = errors.New("shipping service: unavailable")

// ShippingServiceDeps wires the rate store and the currency converter.
type ShippingServiceDeps struct {
	Repository repositories.ShippingRateRepository
	Currency   CurrencyService
	Logger     func(context.Context, string, map[string]any)
}

type shippingService struct {
	repo     repositories.ShippingRateRepository
	currency CurrencyService
	logger   func(context.Context, string, map[string]any)
}

// NewShippingService constructs a ShippingService enforcing dependency validation.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Repository == nil {
		return nil, errShippingRepositoryRequired
	}
	if deps.Currency == nil {
		return nil, errShippingCurrencyRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shippingService{
		repo:     deps.Repository,
		currency: deps.Currency,
		logger:   logger,
	}, nil
}

// RatesForCountry lists delivery options for a destination, converting each
// amount to the requested currency. The first rate is the default selection.
func (s *shippingService) RatesForCountry(ctx context.Context, country string, currency string) ([]ShippingRate, error) {
	if s == nil || s.repo == nil {
		return nil, ErrShippingUnavailable
	}

	code := strings.ToUpper(strings.TrimSpace(country))
	if len(code) != 2 {
		return nil, fmt.Errorf("%w: country must be a 2-letter ISO code", ErrShippingInvalidInput)
	}

	target := strings.ToUpper(strings.TrimSpace(currency))
	if target != "" && !s.currency.Supported(target) {
		return nil, fmt.Errorf("%w: currency %s", ErrShippingInvalidInput, target)
	}

	rates, err := s.repo.ListByCountry(ctx, code)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, ErrShippingCountryUnsupported
		}
		return nil, ErrShippingUnavailable
	}
	if len(rates) == 0 {
		return nil, ErrShippingCountryUnsupported
	}

	out := make([]domain.ShippingRate, 0, len(rates))
	for _, rate := range rates {
		rate.Country = code
		rate.Method = strings.TrimSpace(rate.Method)
		rate.Currency = strings.ToUpper(strings.TrimSpace(rate.Currency))
		if target != "" && rate.Currency != target {
			converted, err := s.currency.Convert(rate.Amount, rate.Currency, target)
			if err != nil {
				s.logger(ctx, "shipping.rate_conversion_failed", map[string]any{
					"country": code,
					"method":  rate.Method,
					"error":   err.Error(),
				})
				return nil, ErrShippingUnavailable
			}
			rate.Amount = converted
			rate.Currency = target
		}
		out = append(out, rate)
	}
	return out, nil
}
