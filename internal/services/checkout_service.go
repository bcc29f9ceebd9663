package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/payments"
	"github.com/maison-panier/api/internal/platform/textutil"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errCheckoutCartRequired          = errors.New("checkout service: cart service is required")
	errCheckoutPaymentsRequired      = errors.New("checkout service: payments manager is required")
	errCheckoutShippingRequired      = errors.New("checkout service: shipping service is required")
	errCheckoutCurrencyRequired      = errors.New("checkout service: currency service is required")
	errCheckoutConfirmationsRequired = errors.New("checkout service: confirmation repository is required")
	errCheckoutClockRequired         = errors.New("checkout service: clock is required")
)

// ErrCheckoutInvalidInput indicates the caller supplied invalid input.
var ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")

// ErrCheckoutEmptyCart indicates a payment intent was requested for an empty cart.
var ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")

// ErrCheckoutPaymentFailed indicates the PSP intent could not be created.
var ErrCheckoutPaymentFailed = errors.New("checkout service: payment failed")

// ErrCheckoutNotPaid indicates the intent has not succeeded yet.
var ErrCheckoutNotPaid = errors.New("checkout service: payment not completed")

// ErrCheckoutUnavailable indicates a checkout dependency cannot fulfil the request.
var ErrCheckoutUnavailable = errors.New("checkout service: unavailable")

// checkoutIntentManager abstracts payments.Manager for easier testing.
type checkoutIntentManager interface {
	CreateIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error)
	LookupIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.PaymentDetails, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Cart          CartService
	Payments      checkoutIntentManager
	Shipping      ShippingService
	Currency      CurrencyService
	Confirmations repositories.ConfirmationRepository
	Mailer        Mailer
	Activity      ActivityService
	Events        EventPublisher
	Clock         func() time.Time
	Logger        func(context.Context, string, map[string]any)
}

type checkoutService struct {
	cart          CartService
	payments      checkoutIntentManager
	shipping      ShippingService
	currency      CurrencyService
	confirmations repositories.ConfirmationRepository
	mailer        Mailer
	activity      ActivityService
	events        EventPublisher
	now           func() time.Time
	logger        func(context.Context, string, map[string]any)

	mu        sync.Mutex
	confirmed map[string]struct{}
}

// NewCheckoutService constructs a CheckoutService enforcing dependency validation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Cart == nil {
		return nil, errCheckoutCartRequired
	}
	if deps.Payments == nil {
		return nil, errCheckoutPaymentsRequired
	}
	if deps.Shipping == nil {
		return nil, errCheckoutShippingRequired
	}
	if deps.Currency == nil {
		return nil, errCheckoutCurrencyRequired
	}
	if deps.Confirmations == nil {
		return nil, errCheckoutConfirmationsRequired
	}
	if deps.Clock == nil {
		return nil, errCheckoutClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		cart:          deps.Cart,
		payments:      deps.Payments,
		shipping:      deps.Shipping,
		currency:      deps.Currency,
		confirmations: deps.Confirmations,
		mailer:        deps.Mailer,
		activity:      deps.Activity,
		events:        deps.Events,
		now:           func() time.Time { return deps.Clock().UTC() },
		logger:        logger,
		confirmed:     map[string]struct{}{},
	}, nil
}

// CreatePaymentIntent prices the user's cart plus the chosen shipping rate in
// the requested currency and opens a PSP payment intent for the total.
func (s *checkoutService) CreatePaymentIntent(ctx context.Context, cmd CreatePaymentIntentCommand) (PaymentIntent, error) {
	if s == nil || s.cart == nil || s.payments == nil {
		return PaymentIntent{}, ErrCheckoutUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return PaymentIntent{}, ErrCheckoutInvalidInput
	}

	email := strings.TrimSpace(cmd.Contact.Email)
	if email == "" || !strings.Contains(email, "@") {
		return PaymentIntent{}, fmt.Errorf("%w: contact email is required", ErrCheckoutInvalidInput)
	}

	cart, err := s.cart.GetCart(ctx, uid)
	if err != nil {
		return PaymentIntent{}, s.translateCartError(err)
	}
	if len(cart.Items) == 0 || cart.TotalItems() == 0 {
		return PaymentIntent{}, ErrCheckoutEmptyCart
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = cart.Currency
	}
	if !s.currency.Supported(currency) {
		return PaymentIntent{}, fmt.Errorf("%w: currency %s", ErrCheckoutInvalidInput, currency)
	}

	shippingAmount, shippingMethod, err := s.resolveShipping(ctx, cmd.Shipping, currency)
	if err != nil {
		return PaymentIntent{}, err
	}

	subtotal, err := s.currency.Convert(cart.TotalPrice(), cart.Currency, currency)
	if err != nil {
		return PaymentIntent{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	total := subtotal + shippingAmount
	if total <= 0 {
		return PaymentIntent{}, ErrCheckoutEmptyCart
	}

	items := make([]payments.IntentLineItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		amount, err := s.currency.Convert(line.Price, cart.Currency, currency)
		if err != nil {
			return PaymentIntent{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		items = append(items, payments.IntentLineItem{
			Name:     line.Name,
			SKU:      line.ID,
			Quantity: int64(line.Quantity),
			Amount:   amount,
		})
	}

	metadata := map[string]string{
		"user_id":         uid,
		"customer_email":  email,
		"shipping_method": shippingMethod,
	}
	if name := strings.TrimSpace(cmd.Contact.Name); name != "" {
		metadata["customer_name"] = name
	}
	if country := strings.ToUpper(strings.TrimSpace(cmd.Shipping.Country)); country != "" {
		metadata["shipping_country"] = country
	}

	req := payments.IntentRequest{
		Amount:         total,
		Currency:       currency,
		ReceiptEmail:   email,
		Description:    "Maison Panier order",
		Metadata:       metadata,
		IdempotencyKey: strings.TrimSpace(cmd.IdempotencyKey),
		Items:          items,
		Shipping:       shippingDetailsFromAddress(cmd.Contact.Name, cmd.Shipping.Country, cmd.Address),
	}

	intent, err := s.payments.CreateIntent(ctx, payments.PaymentContext{Currency: currency}, req)
	if err != nil {
		if errors.Is(err, payments.ErrUnsupportedProvider) {
			return PaymentIntent{}, ErrCheckoutInvalidInput
		}
		s.logger(ctx, "checkout.intent_failed", map[string]any{
			"userID": uid,
			"error":  err.Error(),
		})
		return PaymentIntent{}, ErrCheckoutPaymentFailed
	}

	s.logger(ctx, "checkout.intent_created", map[string]any{
		"userID":        uid,
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})

	return domain.PaymentIntent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Status:       string(intent.Status),
		CreatedAt:    intent.CreatedAt,
	}, nil
}

// ConfirmOrder verifies the intent with the PSP, sends the confirmation email
// at most once per intent and clears the cart. Both the return page and the
// webhook funnel through here; the persisted flag makes the race harmless.
func (s *checkoutService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) (ConfirmOrderResult, error) {
	if s == nil || s.payments == nil || s.confirmations == nil {
		return ConfirmOrderResult{}, ErrCheckoutUnavailable
	}

	intentID := strings.TrimSpace(cmd.PaymentIntentID)
	if intentID == "" {
		return ConfirmOrderResult{}, ErrCheckoutInvalidInput
	}

	details, err := s.payments.LookupIntent(ctx, payments.PaymentContext{}, intentID)
	if err != nil {
		s.logger(ctx, "checkout.lookup_failed", map[string]any{
			"paymentIntent": intentID,
			"error":         err.Error(),
		})
		return ConfirmOrderResult{}, ErrCheckoutUnavailable
	}
	if details.Status != payments.StatusSucceeded {
		return ConfirmOrderResult{}, ErrCheckoutNotPaid
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		uid = strings.TrimSpace(details.Metadata["user_id"])
	}
	email := strings.TrimSpace(cmd.Contact.Email)
	if email == "" {
		email = firstNonEmpty(details.ReceiptEmail, details.Metadata["customer_email"])
	}
	name := firstNonEmpty(cmd.Contact.Name, details.Metadata["customer_name"])

	result := ConfirmOrderResult{PaymentIntentID: intentID}

	if s.alreadyConfirmed(intentID) {
		result.EmailSkipped = true
	} else {
		created, err := s.confirmations.MarkSent(ctx, domain.OrderConfirmation{
			PaymentIntentID: intentID,
			UserID:          uid,
			Email:           email,
			SentAt:          s.now(),
		})
		if err != nil {
			return ConfirmOrderResult{}, ErrCheckoutUnavailable
		}
		s.rememberConfirmed(intentID)

		if !created {
			result.EmailSkipped = true
		} else if s.mailer != nil && email != "" {
			mail := OrderConfirmationMail{
				To:              email,
				Name:            name,
				PaymentIntentID: intentID,
				Total:           details.Amount,
				Currency:        details.Currency,
				ShippingMethod:  details.Metadata["shipping_method"],
			}
			if err := s.mailer.SendOrderConfirmation(ctx, mail); err != nil {
				// Payment success wins; a lost email is logged, not fatal.
				s.logger(ctx, "checkout.email_failed", map[string]any{
					"paymentIntent": intentID,
					"error":         err.Error(),
				})
			} else {
				result.EmailSent = true
			}
		}
	}

	if uid != "" && s.cart != nil {
		if _, err := s.cart.ClearCart(ctx, uid); err != nil {
			s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
				"userID": uid,
				"error":  err.Error(),
			})
		} else {
			result.CartCleared = true
		}
	}

	if s.activity != nil {
		s.activity.Record(ctx, ActivityRecord{
			Actor:      uid,
			ActorType:  "customer",
			Action:     "order.confirmed",
			TargetRef:  "payments/" + intentID,
			Severity:   "info",
			OccurredAt: s.now(),
			Metadata: map[string]any{
				"amount":   details.Amount,
				"currency": details.Currency,
			},
		})
	}

	if s.events != nil {
		if _, err := s.events.Publish(ctx, StoreEvent{
			Kind:       "order.confirmed",
			Subject:    intentID,
			OccurredAt: s.now(),
			Payload: map[string]any{
				"user_id":  uid,
				"amount":   details.Amount,
				"currency": details.Currency,
			},
		}); err != nil {
			s.logger(ctx, "checkout.event_publish_failed", map[string]any{
				"paymentIntent": intentID,
				"error":         err.Error(),
			})
		}
	}

	return result, nil
}

func (s *checkoutService) resolveShipping(ctx context.Context, sel ShippingSelection, currency string) (int64, string, error) {
	country := strings.ToUpper(strings.TrimSpace(sel.Country))
	if country == "" {
		return 0, "", fmt.Errorf("%w: shipping country is required", ErrCheckoutInvalidInput)
	}

	rates, err := s.shipping.RatesForCountry(ctx, country, currency)
	if err != nil {
		if errors.Is(err, ErrShippingCountryUnsupported) || errors.Is(err, ErrShippingInvalidInput) {
			return 0, "", fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		return 0, "", ErrCheckoutUnavailable
	}

	method := strings.TrimSpace(sel.Method)
	if method == "" {
		// First rate is the default selection.
		return rates[0].Amount, rates[0].Method, nil
	}
	for _, rate := range rates {
		if strings.EqualFold(rate.Method, method) {
			return rate.Amount, rate.Method, nil
		}
	}
	return 0, "", fmt.Errorf("%w: unknown shipping method %q", ErrCheckoutInvalidInput, method)
}

func (s *checkoutService) alreadyConfirmed(intentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.confirmed[intentID]
	return ok
}

func (s *checkoutService) rememberConfirmed(intentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed[intentID] = struct{}{}
}

func (s *checkoutService) translateCartError(err error) error {
	switch {
	case errors.Is(err, ErrCartInvalidInput):
		return ErrCheckoutInvalidInput
	case errors.Is(err, ErrCartNotFound):
		return ErrCheckoutEmptyCart
	default:
		return ErrCheckoutUnavailable
	}
}

func shippingDetailsFromAddress(name, country string, address map[string]string) *payments.ShippingDetails {
	address = textutil.NormalizeStringMap(address)
	if len(address) == 0 {
		return nil
	}
	details := &payments.ShippingDetails{
		Name:       strings.TrimSpace(name),
		Line1:      address["line1"],
		Line2:      address["line2"],
		City:       address["city"],
		PostalCode: address["postal_code"],
		Country:    strings.ToUpper(firstNonEmpty(address["country"], strings.TrimSpace(country))),
	}
	if details.Line1 == "" && details.City == "" {
		return nil
	}
	return details
}
