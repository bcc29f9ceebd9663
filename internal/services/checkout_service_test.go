package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/payments"
)

type stubIntentManager struct {
	createFunc func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error)
	lookupFunc func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error)
}

func (s *stubIntentManager) CreateIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, paymentCtx, req)
	}
	return payments.Intent{}, errors.New("not implemented")
}

func (s *stubIntentManager) LookupIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error) {
	if s.lookupFunc != nil {
		return s.lookupFunc(ctx, paymentCtx, intentID)
	}
	return payments.PaymentDetails{}, errors.New("not implemented")
}

type stubShippingService struct {
	ratesFunc func(ctx context.Context, country string, currency string) ([]ShippingRate, error)
}

func (s *stubShippingService) RatesForCountry(ctx context.Context, country string, currency string) ([]ShippingRate, error) {
	if s.ratesFunc != nil {
		return s.ratesFunc(ctx, country, currency)
	}
	return []ShippingRate{{Method: "standard", Amount: 800, Currency: currency}}, nil
}

type stubConfirmationRepository struct {
	markFunc func(ctx context.Context, conf domain.OrderConfirmation) (bool, error)
	getFunc  func(ctx context.Context, paymentIntentID string) (domain.OrderConfirmation, error)
}

func (s *stubConfirmationRepository) MarkSent(ctx context.Context, conf domain.OrderConfirmation) (bool, error) {
	if s.markFunc != nil {
		return s.markFunc(ctx, conf)
	}
	return true, nil
}

func (s *stubConfirmationRepository) Get(ctx context.Context, paymentIntentID string) (domain.OrderConfirmation, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, paymentIntentID)
	}
	return domain.OrderConfirmation{}, &repositoryErrorStub{notFound: true}
}

type stubMailer struct {
	orderFunc   func(ctx context.Context, msg OrderConfirmationMail) error
	welcomeFunc func(ctx context.Context, to string) error
	orderCalls  int
}

func (s *stubMailer) SendOrderConfirmation(ctx context.Context, msg OrderConfirmationMail) error {
	s.orderCalls++
	if s.orderFunc != nil {
		return s.orderFunc(ctx, msg)
	}
	return nil
}

func (s *stubMailer) SendNewsletterWelcome(ctx context.Context, to string) error {
	if s.welcomeFunc != nil {
		return s.welcomeFunc(ctx, to)
	}
	return nil
}

type checkoutFixture struct {
	cart          *stubCartService
	manager       *stubIntentManager
	shipping      *stubShippingService
	confirmations *stubConfirmationRepository
	mailer        *stubMailer
	service       CheckoutService
}

func newCheckoutFixture(t *testing.T, now time.Time, cartItems []CartItem) *checkoutFixture {
	t.Helper()

	f := &checkoutFixture{
		cart:          &stubCartService{},
		manager:       &stubIntentManager{},
		shipping:      &stubShippingService{},
		confirmations: &stubConfirmationRepository{},
		mailer:        &stubMailer{},
	}

	baseCart := Cart{UserID: "user-1", Currency: "EUR", Items: cartItems}
	f.cart.getFunc = func(ctx context.Context, userID string) (Cart, error) {
		return baseCart, nil
	}
	f.cart.clearFunc = func(ctx context.Context, userID string) (Cart, error) {
		return Cart{UserID: userID, Currency: "EUR", Items: []CartItem{}}, nil
	}

	currency, err := NewCurrencyService(CurrencyServiceDeps{
		Base:  "EUR",
		Rates: map[string]string{"USD": "1.10", "GBP": "0.85"},
	})
	if err != nil {
		t.Fatalf("NewCurrencyService: %v", err)
	}

	service, err := NewCheckoutService(CheckoutServiceDeps{
		Cart:          f.cart,
		Payments:      f.manager,
		Shipping:      f.shipping,
		Currency:      currency,
		Confirmations: f.confirmations,
		Mailer:        f.mailer,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewCheckoutService: %v", err)
	}
	f.service = service
	return f
}

func TestCheckoutCreatePaymentIntentPricesCartPlusShipping(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, []CartItem{
		{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 2},
		{ID: "prod-2", Name: "Candle", Price: 1500, Quantity: 1},
	})

	var captured payments.IntentRequest
	f.manager.createFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
		captured = req
		return payments.Intent{
			ID:           "pi_1",
			ClientSecret: "pi_1_secret",
			Status:       payments.StatusPending,
			Amount:       req.Amount,
			Currency:     req.Currency,
			CreatedAt:    now,
		}, nil
	}

	intent, err := f.service.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		UserID:   "user-1",
		Currency: "EUR",
		Shipping: ShippingSelection{Country: "FR", Method: "standard"},
		Contact:  CheckoutContact{Email: "claire@example.com", Name: "Claire"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2*4500 + 1500 cart + 800 shipping.
	if captured.Amount != 11300 {
		t.Fatalf("expected intent amount 11300, got %d", captured.Amount)
	}
	if captured.Metadata["user_id"] != "user-1" {
		t.Fatalf("expected user metadata, got %+v", captured.Metadata)
	}
	if captured.Metadata["shipping_method"] != "standard" {
		t.Fatalf("expected shipping method metadata, got %+v", captured.Metadata)
	}
	if len(captured.Items) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(captured.Items))
	}
	if intent.ClientSecret != "pi_1_secret" {
		t.Fatalf("expected client secret passthrough, got %q", intent.ClientSecret)
	}
}

func TestCheckoutCreatePaymentIntentRejectsEmptyCart(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, []CartItem{})

	if _, err := f.service.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		UserID:   "user-1",
		Shipping: ShippingSelection{Country: "FR"},
		Contact:  CheckoutContact{Email: "claire@example.com"},
	}); !errors.Is(err, ErrCheckoutEmptyCart) {
		t.Fatalf("expected ErrCheckoutEmptyCart, got %v", err)
	}
}

func TestCheckoutCreatePaymentIntentUnknownShippingMethod(t *testing.T) {
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, []CartItem{{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1}})

	if _, err := f.service.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		UserID:   "user-1",
		Shipping: ShippingSelection{Country: "FR", Method: "teleport"},
		Contact:  CheckoutContact{Email: "claire@example.com"},
	}); !errors.Is(err, ErrCheckoutInvalidInput) {
		t.Fatalf("expected ErrCheckoutInvalidInput, got %v", err)
	}
}

func TestCheckoutCreatePaymentIntentConvertsCurrency(t *testing.T) {
	now := time.Date(2026, 5, 10, 10, 30, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, []CartItem{{ID: "prod-1", Name: "Hamper", Price: 10000, Quantity: 1}})
	f.shipping.ratesFunc = func(ctx context.Context, country string, currency string) ([]ShippingRate, error) {
		if currency != "USD" {
			t.Fatalf("expected rates requested in USD, got %q", currency)
		}
		return []ShippingRate{{Method: "standard", Amount: 1100, Currency: "USD"}}, nil
	}

	var captured payments.IntentRequest
	f.manager.createFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
		captured = req
		return payments.Intent{ID: "pi_2", Amount: req.Amount, Currency: req.Currency, CreatedAt: now}, nil
	}

	if _, err := f.service.CreatePaymentIntent(context.Background(), CreatePaymentIntentCommand{
		UserID:   "user-1",
		Currency: "usd",
		Shipping: ShippingSelection{Country: "US", Method: "standard"},
		Contact:  CheckoutContact{Email: "claire@example.com"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 10000 EUR * 1.10 = 11000 USD + 1100 shipping.
	if captured.Amount != 12100 {
		t.Fatalf("expected converted amount 12100, got %d", captured.Amount)
	}
	if captured.Currency != "USD" {
		t.Fatalf("expected USD intent, got %q", captured.Currency)
	}
}

func TestCheckoutConfirmOrderSendsEmailOnceAndClearsCart(t *testing.T) {
	now := time.Date(2026, 5, 10, 11, 0, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, []CartItem{{ID: "prod-1", Name: "Hamper", Price: 4500, Quantity: 1}})

	f.manager.lookupFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{
			IntentID:     intentID,
			Status:       payments.StatusSucceeded,
			Amount:       5300,
			Currency:     "EUR",
			ReceiptEmail: "claire@example.com",
			Metadata:     map[string]string{"user_id": "user-1", "shipping_method": "standard"},
		}, nil
	}

	markCalls := 0
	f.confirmations.markFunc = func(ctx context.Context, conf domain.OrderConfirmation) (bool, error) {
		markCalls++
		return markCalls == 1, nil
	}

	result, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{PaymentIntentID: "pi_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.EmailSent {
		t.Fatal("expected email sent on first confirmation")
	}
	if !result.CartCleared {
		t.Fatal("expected cart cleared")
	}
	if f.mailer.orderCalls != 1 {
		t.Fatalf("expected 1 mail, got %d", f.mailer.orderCalls)
	}

	// Second confirmation (webhook racing the return page) is deduplicated
	// by the in-process cache before the repository is even consulted.
	result, err = f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{PaymentIntentID: "pi_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.EmailSkipped {
		t.Fatal("expected duplicate confirmation to skip email")
	}
	if f.mailer.orderCalls != 1 {
		t.Fatalf("expected still 1 mail, got %d", f.mailer.orderCalls)
	}
	if markCalls != 1 {
		t.Fatalf("expected one MarkSent call, got %d", markCalls)
	}
}

func TestCheckoutConfirmOrderPersistedFlagSuppressesEmail(t *testing.T) {
	now := time.Date(2026, 5, 10, 11, 30, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, nil)

	f.manager.lookupFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{
			IntentID: intentID,
			Status:   payments.StatusSucceeded,
			Metadata: map[string]string{"user_id": "user-1"},
		}, nil
	}
	f.confirmations.markFunc = func(ctx context.Context, conf domain.OrderConfirmation) (bool, error) {
		return false, nil
	}

	result, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{PaymentIntentID: "pi_9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.EmailSkipped || result.EmailSent {
		t.Fatalf("expected skip from persisted flag, got %+v", result)
	}
	if f.mailer.orderCalls != 0 {
		t.Fatalf("expected no mail, got %d", f.mailer.orderCalls)
	}
	if !result.CartCleared {
		t.Fatal("expected cart still cleared on duplicate confirmation")
	}
}

func TestCheckoutConfirmOrderEmailFailureIsNonFatal(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, nil)

	f.manager.lookupFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{
			IntentID:     intentID,
			Status:       payments.StatusSucceeded,
			ReceiptEmail: "claire@example.com",
			Metadata:     map[string]string{"user_id": "user-1"},
		}, nil
	}
	f.mailer.orderFunc = func(ctx context.Context, msg OrderConfirmationMail) error {
		return errors.New("smtp down")
	}

	result, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{PaymentIntentID: "pi_5"})
	if err != nil {
		t.Fatalf("email failure must not fail confirmation: %v", err)
	}
	if result.EmailSent {
		t.Fatal("expected EmailSent false after mailer failure")
	}
	if !result.CartCleared {
		t.Fatal("expected cart cleared despite email failure")
	}
}

func TestCheckoutConfirmOrderRejectsUnpaidIntent(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 30, 0, 0, time.UTC)
	f := newCheckoutFixture(t, now, nil)

	f.manager.lookupFunc = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error) {
		return payments.PaymentDetails{IntentID: intentID, Status: payments.StatusPending}, nil
	}

	if _, err := f.service.ConfirmOrder(context.Background(), ConfirmOrderCommand{PaymentIntentID: "pi_7"}); !errors.Is(err, ErrCheckoutNotPaid) {
		t.Fatalf("expected ErrCheckoutNotPaid, got %v", err)
	}
	if f.mailer.orderCalls != 0 {
		t.Fatalf("expected no mail for unpaid intent, got %d", f.mailer.orderCalls)
	}
}
