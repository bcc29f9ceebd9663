package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time
	Clients   *stripeClients
}

// StripeProvider implements the Provider interface over Stripe Payment Intents.
type StripeProvider struct {
	api     stripeClients
	account string
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
		}
	}

	if clients.intents == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:     clients,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateIntent creates a Stripe Payment Intent with automatic payment methods
// enabled, so the client confirms with whatever wallet or card it prefers.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	if req.Amount <= 0 {
		return Intent{}, errors.New("stripe: intent amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("stripe: intent currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if email := strings.TrimSpace(req.ReceiptEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	if req.Shipping != nil {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name: stripe.String(req.Shipping.Name),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(req.Shipping.Line1),
				Line2:      stripe.String(req.Shipping.Line2),
				City:       stripe.String(req.Shipping.City),
				PostalCode: stripe.String(req.Shipping.PostalCode),
				Country:    stripe.String(req.Shipping.Country),
			},
		}
	}

	metadata := make(map[string]string, len(req.Metadata)+len(req.Items))
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	// Line items ride along as metadata; Payment Intents have no native
	// line-item concept.
	for i, item := range req.Items {
		metadata["line_"+strconv.Itoa(i)] = fmt.Sprintf("%s x%d @%d", item.Name, max64(item.Quantity, 1), item.Amount)
	}
	if len(metadata) > 0 {
		params.Metadata = metadata
	}

	intent, err := p.api.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
	})

	createdAt := p.clock()
	if intent.Created != 0 {
		createdAt = time.Unix(intent.Created, 0).UTC()
	}

	return Intent{
		ID:           intent.ID,
		Provider:     "stripe",
		ClientSecret: intent.ClientSecret,
		Status:       stripeIntentStatus(intent.Status),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		CreatedAt:    createdAt,
		Raw:          stripeRawPayload(intent),
	}, nil
}

// LookupIntent retrieves a Stripe Payment Intent.
func (p *StripeProvider) LookupIntent(ctx context.Context, intentID string) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	intent, err := p.api.intents.Get(intentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return stripePaymentDetails(intent), nil
}

// CancelIntent cancels a Stripe Payment Intent that has not captured yet.
func (p *StripeProvider) CancelIntent(ctx context.Context, intentID string) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	intent, err := p.api.intents.Cancel(intentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: cancel payment intent: %w", err)
	}
	p.logger(ctx, "payments.stripe.intent.canceled", map[string]any{
		"paymentIntent": intent.ID,
	})
	return stripePaymentDetails(intent), nil
}

func stripeIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	default:
		return StatusPending
	}
}

func stripePaymentDetails(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}

	status := stripeIntentStatus(intent.Status)

	var capturedAt *time.Time
	captured := intent.Status == stripe.PaymentIntentStatusSucceeded
	if charge := intent.LatestCharge; charge != nil {
		if charge.Paid || charge.Captured {
			t := time.Unix(charge.Created, 0).UTC()
			capturedAt = &t
			captured = true
		}
	}

	currency := strings.ToUpper(string(intent.Currency))
	if currency == "" && intent.LatestCharge != nil {
		currency = strings.ToUpper(string(intent.LatestCharge.Currency))
	}

	metadata := make(map[string]string, len(intent.Metadata))
	for k, v := range intent.Metadata {
		metadata[k] = v
	}

	return PaymentDetails{
		Provider:     "stripe",
		IntentID:     intent.ID,
		Status:       status,
		Amount:       intent.Amount,
		Currency:     currency,
		ReceiptEmail: strings.TrimSpace(intent.ReceiptEmail),
		Captured:     captured,
		CapturedAt:   capturedAt,
		Metadata:     metadata,
		Raw:          stripeRawPayload(intent),
	}
}

func stripeRawPayload(intent *stripe.PaymentIntent) map[string]any {
	raw := map[string]any{}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	} else {
		raw["payment_intent"] = intent
	}
	return raw
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
