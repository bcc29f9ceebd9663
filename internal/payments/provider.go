package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the normalised payment states shared across providers.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusCanceled indicates the intent was cancelled before capture.
	StatusCanceled Status = "canceled"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
)

// ErrUnsupportedProvider is returned when the manager cannot locate a provider.
var ErrUnsupportedProvider = errors.New("payments: unsupported provider")

// IntentLineItem describes one order line attached to an intent for receipts
// and PSP dashboards.
type IntentLineItem struct {
	Name     string
	SKU      string
	Quantity int64
	Amount   int64
}

// ShippingDetails carries the destination attached to a payment intent.
type ShippingDetails struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

// IntentRequest captures the payload required to create a payment intent.
type IntentRequest struct {
	Amount         int64
	Currency       string
	ReceiptEmail   string
	Description    string
	Shipping       *ShippingDetails
	Metadata       map[string]string
	IdempotencyKey string
	Items          []IntentLineItem
}

// Intent represents the PSP payment intent returned to the client for
// confirmation.
type Intent struct {
	ID           string
	Provider     string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
	CreatedAt    time.Time
	Raw          map[string]any
}

// PaymentDetails normalises PSP specific fields for reconciliation.
type PaymentDetails struct {
	Provider     string
	IntentID     string
	Status       Status
	Amount       int64
	Currency     string
	ReceiptEmail string
	Captured     bool
	CapturedAt   *time.Time
	Metadata     map[string]string
	Raw          map[string]any
}

// WebhookEvent is a verified, normalised PSP callback.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
	Details  PaymentDetails
}

// Provider defines the contract for PSP adapters to implement.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	LookupIntent(ctx context.Context, intentID string) (PaymentDetails, error)
	CancelIntent(ctx context.Context, intentID string) (PaymentDetails, error)
}

// WebhookVerifier authenticates raw webhook payloads against the PSP
// signature scheme.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (WebhookEvent, error)
}

// Manager coordinates provider selection and exposes the aggregated interface.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	currencyRoutes  map[string]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider overrides the default provider for currencies without explicit routing.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = provider
	}
}

// WithCurrencyRoutes configures static currency to provider mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	copyMap := make(map[string]Provider, len(providers))
	for k, v := range providers {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		providers: copyMap,
	}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultProvider = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// PaymentContext defines the hints available when selecting a provider.
type PaymentContext struct {
	PreferredProvider string
	Currency          string
}

func (m *Manager) resolveProvider(ctx PaymentContext) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.providers) == 0 {
		return "", nil, errors.New("payments: no providers registered")
	}
	if provider := strings.TrimSpace(strings.ToLower(ctx.PreferredProvider)); provider != "" {
		if p, ok := m.providers[provider]; ok {
			return provider, p, nil
		}
	}
	currency := strings.ToUpper(strings.TrimSpace(ctx.Currency))
	if currency != "" && m.currencyRoutes != nil {
		if providerKey, ok := m.currencyRoutes[currency]; ok {
			provider := strings.TrimSpace(strings.ToLower(providerKey))
			if p, ok := m.providers[provider]; ok {
				return provider, p, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultProvider)); def != "" {
		if p, ok := m.providers[def]; ok {
			return def, p, nil
		}
	}
	if len(m.providers) == 1 {
		for key, p := range m.providers {
			return key, p, nil
		}
	}
	return "", nil, ErrUnsupportedProvider
}

// CreateIntent delegates to the resolved provider.
func (m *Manager) CreateIntent(ctx context.Context, paymentCtx PaymentContext, req IntentRequest) (Intent, error) {
	key, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return Intent{}, err
	}
	intent, err := provider.CreateIntent(ctx, req)
	if err != nil {
		return Intent{}, err
	}
	intent.Provider = key
	return intent, nil
}

// LookupIntent delegates to the resolved provider.
func (m *Manager) LookupIntent(ctx context.Context, paymentCtx PaymentContext, intentID string) (PaymentDetails, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.LookupIntent(ctx, intentID)
}

// CancelIntent delegates to the resolved provider.
func (m *Manager) CancelIntent(ctx context.Context, paymentCtx PaymentContext, intentID string) (PaymentDetails, error) {
	_, provider, err := m.resolveProvider(paymentCtx)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.CancelIntent(ctx, intentID)
}
