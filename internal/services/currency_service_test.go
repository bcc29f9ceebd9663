package services

import (
	"errors"
	"testing"
)

func newTestCurrencyService(t *testing.T) CurrencyService {
	t.Helper()
	service, err := NewCurrencyService(CurrencyServiceDeps{
		Base: "EUR",
		Rates: map[string]string{
			"USD": "1.10",
			"GBP": "0.85",
			"JPY": "161.4",
		},
	})
	if err != nil {
		t.Fatalf("unexpected error constructing currency service: %v", err)
	}
	return service
}

func TestCurrencyConvertBetweenPairs(t *testing.T) {
	service := newTestCurrencyService(t)

	cases := []struct {
		name   string
		amount int64
		from   string
		to     string
		want   int64
	}{
		{name: "identity", amount: 1000, from: "EUR", to: "EUR", want: 1000},
		{name: "base to target", amount: 10000, from: "EUR", to: "USD", want: 11000},
		{name: "target to base", amount: 11000, from: "USD", to: "EUR", want: 10000},
		{name: "cross pair via base", amount: 11000, from: "USD", to: "GBP", want: 8500},
		{name: "rounds half up", amount: 1, from: "EUR", to: "JPY", want: 161},
		{name: "case and space tolerant", amount: 1000, from: " usd ", to: "eur", want: 909},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := service.Convert(tc.amount, tc.from, tc.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Convert(%d, %s, %s) = %d, want %d", tc.amount, tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestCurrencyConvertUnknownCurrency(t *testing.T) {
	service := newTestCurrencyService(t)

	if _, err := service.Convert(1000, "EUR", "CHF"); !errors.Is(err, ErrCurrencyUnsupported) {
		t.Fatalf("expected ErrCurrencyUnsupported, got %v", err)
	}
	if _, err := service.Convert(1000, "", "USD"); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected ErrCurrencyInvalidInput, got %v", err)
	}
}

func TestCurrencySupported(t *testing.T) {
	service := newTestCurrencyService(t)

	if !service.Supported("eur") {
		t.Fatal("expected base currency to be supported")
	}
	if !service.Supported(" USD ") {
		t.Fatal("expected USD to be supported")
	}
	if service.Supported("CHF") {
		t.Fatal("expected CHF to be unsupported")
	}
}

func TestNewCurrencyServiceRejectsBadRates(t *testing.T) {
	if _, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: map[string]string{"USD": "not-a-number"},
	}); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected ErrCurrencyInvalidInput for malformed rate, got %v", err)
	}

	if _, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: map[string]string{"USD": "-1.10"},
	}); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected ErrCurrencyInvalidInput for negative rate, got %v", err)
	}

	if _, err := NewCurrencyService(CurrencyServiceDeps{
		Rates: map[string]string{"DOLLARS": "1.10"},
	}); !errors.Is(err, ErrCurrencyInvalidInput) {
		t.Fatalf("expected ErrCurrencyInvalidInput for bad code, got %v", err)
	}
}
