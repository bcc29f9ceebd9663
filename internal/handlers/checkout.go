package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxCheckoutRequestBody = 8 * 1024

// CheckoutHandlers exposes payment-intent creation and order confirmation
// for the current user's cart.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs handlers enforcing authentication before
// invoking the checkout service.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes wires the /checkout endpoints onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/payment-intent", h.createPaymentIntent)
	r.Post("/confirm", h.confirmOrder)
}

func (h *CheckoutHandlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Currency string `json:"currency"`
		Shipping struct {
			Country string `json:"country"`
			Method  string `json:"method"`
			Amount  int64  `json:"amount"`
		} `json:"shipping"`
		Contact struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"contact"`
		Address map[string]string `json:"address"`
	}
	if err := decodeJSONBody(r, maxCheckoutRequestBody, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	intent, err := h.checkout.CreatePaymentIntent(ctx, services.CreatePaymentIntentCommand{
		UserID:   identity.UID,
		Currency: req.Currency,
		Shipping: services.ShippingSelection{
			Country: req.Shipping.Country,
			Method:  req.Shipping.Method,
			Amount:  req.Shipping.Amount,
		},
		Contact: services.CheckoutContact{
			Email: req.Contact.Email,
			Name:  req.Contact.Name,
		},
		Address:        req.Address,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentIntentResponse{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Status:          intent.Status,
	})
}

func (h *CheckoutHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		PaymentIntentID string `json:"paymentIntentId"`
		Contact         struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"contact"`
	}
	if err := decodeJSONBody(r, maxCheckoutRequestBody, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.checkout.ConfirmOrder(ctx, services.ConfirmOrderCommand{
		UserID:          identity.UID,
		PaymentIntentID: req.PaymentIntentID,
		Contact: services.CheckoutContact{
			Email: req.Contact.Email,
			Name:  req.Contact.Name,
		},
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, confirmOrderResponse{
		PaymentIntentID: result.PaymentIntentID,
		EmailSent:       result.EmailSent,
		EmailSkipped:    result.EmailSkipped,
		CartCleared:     result.CartCleared,
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart has no items to pay for", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutNotPaid):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_completed", "payment has not completed yet", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment provider rejected the request", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to serve checkout request", http.StatusInternalServerError))
	}
}

type paymentIntentResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status,omitempty"`
}

type confirmOrderResponse struct {
	PaymentIntentID string `json:"paymentIntentId"`
	EmailSent       bool   `json:"emailSent"`
	EmailSkipped    bool   `json:"emailSkipped"`
	CartCleared     bool   `json:"cartCleared"`
}
