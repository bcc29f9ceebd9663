package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	lastOp  string
	intent  Intent
	payment PaymentDetails
	err     error
}

func (f *fakeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	f.lastOp = "create"
	return f.intent, f.err
}

func (f *fakeProvider) LookupIntent(ctx context.Context, intentID string) (PaymentDetails, error) {
	f.lastOp = "lookup"
	return f.payment, f.err
}

func (f *fakeProvider) CancelIntent(ctx context.Context, intentID string) (PaymentDetails, error) {
	f.lastOp = "cancel"
	return f.payment, f.err
}

func TestManagerCreateIntentUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	paypal := &fakeProvider{intent: Intent{ID: "pi_paypal"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"paypal": paypal,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	intent, err := mgr.CreateIntent(ctx, PaymentContext{PreferredProvider: "paypal"}, IntentRequest{Amount: 100, Currency: "EUR"})
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if intent.ID != "pi_paypal" {
		t.Fatalf("expected paypal intent, got %q", intent.ID)
	}
	if intent.Provider != "paypal" {
		t.Fatalf("expected provider annotation paypal, got %q", intent.Provider)
	}
	if paypal.lastOp != "create" {
		t.Fatalf("expected create on paypal provider, got %q", paypal.lastOp)
	}
	if stripe.lastOp != "" {
		t.Fatalf("stripe provider should not be touched, got %q", stripe.lastOp)
	}
}

func TestManagerDefaultsToStripe(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	paypal := &fakeProvider{intent: Intent{ID: "pi_paypal"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"paypal": paypal,
	})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	intent, err := mgr.CreateIntent(ctx, PaymentContext{}, IntentRequest{Amount: 100, Currency: "EUR"})
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}
	if intent.ID != "pi_stripe" {
		t.Fatalf("expected stripe intent, got %q", intent.ID)
	}
}

func TestManagerCurrencyRoutes(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{payment: PaymentDetails{IntentID: "pi_stripe"}}
	other := &fakeProvider{payment: PaymentDetails{IntentID: "pi_other"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe": stripe,
		"other":  other,
	}, WithCurrencyRoutes(map[string]string{"GBP": "other"}))
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}

	details, err := mgr.LookupIntent(ctx, PaymentContext{Currency: "gbp"}, "pi_x")
	if err != nil {
		t.Fatalf("LookupIntent returned error: %v", err)
	}
	if details.IntentID != "pi_other" {
		t.Fatalf("expected routed provider result, got %q", details.IntentID)
	}
}

func TestManagerUnknownProvider(t *testing.T) {
	mgr := &Manager{}
	if _, _, err := mgr.resolveProvider(PaymentContext{}); err == nil {
		t.Fatal("expected error for empty manager")
	}

	mgr, err := NewManager(map[string]Provider{"other": &fakeProvider{}}, WithDefaultProvider("missing"))
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	// Single registered provider still wins even with a bogus default.
	if _, provider, err := mgr.resolveProvider(PaymentContext{}); err != nil || provider == nil {
		t.Fatalf("expected single-provider fallback, got %v", err)
	}
}

func TestManagerErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("psp down")
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{err: boom}})
	if err != nil {
		t.Fatalf("NewManager returned error: %v", err)
	}
	if _, err := mgr.CancelIntent(ctx, PaymentContext{}, "pi_x"); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}
