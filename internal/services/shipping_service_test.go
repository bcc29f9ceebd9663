package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/maison-panier/api/internal/domain"
)

type stubShippingRateRepository struct {
	listFunc func(ctx context.Context, country string) ([]domain.ShippingRate, error)
}

func (s *stubShippingRateRepository) ListByCountry(ctx context.Context, country string) ([]domain.ShippingRate, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, country)
	}
	return nil, nil
}

func newTestShippingService(t *testing.T, repo *stubShippingRateRepository) ShippingService {
	t.Helper()
	service, err := NewShippingService(ShippingServiceDeps{
		Repository: repo,
		Currency:   newTestCurrencyService(t),
	})
	if err != nil {
		t.Fatalf("unexpected error constructing shipping service: %v", err)
	}
	return service
}

func TestShippingRatesForCountryNormalisesAndOrders(t *testing.T) {
	repo := &stubShippingRateRepository{
		listFunc: func(ctx context.Context, country string) ([]domain.ShippingRate, error) {
			if country != "FR" {
				t.Fatalf("expected uppercased country, got %q", country)
			}
			return []domain.ShippingRate{
				{Method: " standard ", Amount: 800, Currency: "eur"},
				{Method: "express", Amount: 1500, Currency: "EUR"},
			}, nil
		},
	}

	service := newTestShippingService(t, repo)

	rates, err := service.RatesForCountry(context.Background(), " fr ", "EUR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(rates))
	}
	if rates[0].Method != "standard" || rates[0].Amount != 800 {
		t.Fatalf("expected standard first as default, got %+v", rates[0])
	}
	if rates[0].Country != "FR" || rates[0].Currency != "EUR" {
		t.Fatalf("expected normalised rate, got %+v", rates[0])
	}
}

func TestShippingRatesForCountryConvertsCurrency(t *testing.T) {
	repo := &stubShippingRateRepository{
		listFunc: func(ctx context.Context, country string) ([]domain.ShippingRate, error) {
			return []domain.ShippingRate{{Method: "standard", Amount: 1000, Currency: "EUR"}}, nil
		},
	}

	service := newTestShippingService(t, repo)

	rates, err := service.RatesForCountry(context.Background(), "US", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rates[0].Amount != 1100 || rates[0].Currency != "USD" {
		t.Fatalf("expected converted rate 1100 USD, got %+v", rates[0])
	}
}

func TestShippingRatesForCountryValidation(t *testing.T) {
	service := newTestShippingService(t, &stubShippingRateRepository{})

	if _, err := service.RatesForCountry(context.Background(), "France", ""); !errors.Is(err, ErrShippingInvalidInput) {
		t.Fatalf("expected ErrShippingInvalidInput for long country, got %v", err)
	}
	if _, err := service.RatesForCountry(context.Background(), "FR", "CHF"); !errors.Is(err, ErrShippingInvalidInput) {
		t.Fatalf("expected ErrShippingInvalidInput for unsupported currency, got %v", err)
	}
}

func TestShippingRatesForCountryUnserved(t *testing.T) {
	repo := &stubShippingRateRepository{
		listFunc: func(ctx context.Context, country string) ([]domain.ShippingRate, error) {
			return nil, nil
		},
	}

	service := newTestShippingService(t, repo)

	if _, err := service.RatesForCountry(context.Background(), "AQ", "EUR"); !errors.Is(err, ErrShippingCountryUnsupported) {
		t.Fatalf("expected ErrShippingCountryUnsupported, got %v", err)
	}
}

func TestShippingRatesForCountryRepositoryNotFound(t *testing.T) {
	repo := &stubShippingRateRepository{
		listFunc: func(ctx context.Context, country string) ([]domain.ShippingRate, error) {
			return nil, &repositoryErrorStub{notFound: true}
		},
	}

	service := newTestShippingService(t, repo)

	if _, err := service.RatesForCountry(context.Background(), "AQ", "EUR"); !errors.Is(err, ErrShippingCountryUnsupported) {
		t.Fatalf("expected ErrShippingCountryUnsupported, got %v", err)
	}
}
