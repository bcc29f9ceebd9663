package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/payments"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// WebhookVerifier validates a raw webhook payload and returns the decoded event.
type WebhookVerifier interface {
	VerifyEvent(payload []byte, signatureHeader string) (payments.WebhookEvent, error)
}

// StripeWebhookHandlers processes payment provider callbacks. Succeeded
// payment intents run the same confirmation path as the client return page;
// the confirmation service deduplicates the email between the two.
type StripeWebhookHandlers struct {
	verifier WebhookVerifier
	checkout services.CheckoutService
	logger   func(context.Context, string, map[string]any)
}

// NewStripeWebhookHandlers constructs the webhook handlers.
func NewStripeWebhookHandlers(verifier WebhookVerifier, checkout services.CheckoutService, logger func(context.Context, string, map[string]any)) *StripeWebhookHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripeWebhookHandlers{
		verifier: verifier,
		checkout: checkout,
		logger:   logger,
	}
}

// Routes wires the /webhooks endpoints onto the provided router.
func (h *StripeWebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.handleStripe)
}

func (h *StripeWebhookHandlers) handleStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.verifier == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_unavailable", "webhook processing is unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read webhook payload", http.StatusBadRequest))
		return
	}

	event, err := h.verifier.VerifyEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrWebhookSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to decode webhook event", http.StatusBadRequest))
		return
	}

	// Only successful payments trigger work; everything else is
	// acknowledged so the provider stops retrying.
	if event.Type != "payment_intent.succeeded" || event.IntentID == "" {
		writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true})
		return
	}

	userID := strings.TrimSpace(event.Details.Metadata["user_id"])
	if userID == "" {
		h.logger(ctx, "webhook intent missing user metadata", map[string]any{
			"event_id":  event.ID,
			"intent_id": event.IntentID,
		})
		writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true})
		return
	}

	contact := services.CheckoutContact{
		Email: strings.TrimSpace(event.Details.Metadata["customer_email"]),
		Name:  strings.TrimSpace(event.Details.Metadata["customer_name"]),
	}
	if contact.Email == "" {
		contact.Email = strings.TrimSpace(event.Details.ReceiptEmail)
	}

	result, err := h.checkout.ConfirmOrder(ctx, services.ConfirmOrderCommand{
		UserID:          userID,
		PaymentIntentID: event.IntentID,
		Contact:         contact,
	})
	if err != nil {
		// 5xx makes the provider retry later; anything client-shaped is
		// acknowledged because a retry will not fix it.
		if errors.Is(err, services.ErrCheckoutUnavailable) {
			httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "confirmation temporarily unavailable", http.StatusServiceUnavailable))
			return
		}
		h.logger(ctx, "webhook confirmation rejected", map[string]any{
			"event_id":  event.ID,
			"intent_id": event.IntentID,
			"error":     err.Error(),
		})
		writeJSONResponse(w, http.StatusOK, webhookAckResponse{Received: true})
		return
	}

	writeJSONResponse(w, http.StatusOK, webhookAckResponse{
		Received:     true,
		EmailSent:    result.EmailSent,
		EmailSkipped: result.EmailSkipped,
	})
}

type webhookAckResponse struct {
	Received     bool `json:"received"`
	EmailSent    bool `json:"emailSent,omitempty"`
	EmailSkipped bool `json:"emailSkipped,omitempty"`
}

var _ WebhookVerifier = (*payments.StripeWebhookVerifier)(nil)
