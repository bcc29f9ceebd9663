package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// ErrWebhookSignature indicates the payload failed Stripe signature verification.
var ErrWebhookSignature = errors.New("payments: invalid webhook signature")

// StripeWebhookVerifier validates webhook payloads against the endpoint's
// signing secret and normalises payment-intent events.
type StripeWebhookVerifier struct {
	secret string
}

// NewStripeWebhookVerifier constructs a verifier for the given signing secret.
func NewStripeWebhookVerifier(secret string) (*StripeWebhookVerifier, error) {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		return nil, errors.New("stripe: webhook signing secret is required")
	}
	return &StripeWebhookVerifier{secret: trimmed}, nil
}

// VerifyEvent checks the Stripe-Signature header and decodes the event.
// Events that do not carry a payment intent come back with an empty IntentID;
// callers decide whether to ignore them.
func (v *StripeWebhookVerifier) VerifyEvent(payload []byte, signatureHeader string) (WebhookEvent, error) {
	if v == nil {
		return WebhookEvent{}, errors.New("stripe: verifier is nil")
	}

	event, err := webhook.ConstructEvent(payload, signatureHeader, v.secret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	out := WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if strings.HasPrefix(out.Type, "payment_intent.") {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: decode webhook intent: %w", err)
		}
		out.IntentID = intent.ID
		out.Details = stripePaymentDetails(&intent)
	}

	return out, nil
}
