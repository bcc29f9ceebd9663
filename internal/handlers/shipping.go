package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

// ShippingHandlers resolves delivery rates for a destination country.
type ShippingHandlers struct {
	shipping services.ShippingService
}

// NewShippingHandlers constructs the shipping rate handlers.
func NewShippingHandlers(shipping services.ShippingService) *ShippingHandlers {
	return &ShippingHandlers{shipping: shipping}
}

// Routes wires the shipping endpoints onto the provided router.
func (h *ShippingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/shipping-rates", h.listRates)
}

func (h *ShippingHandlers) listRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shipping == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
		return
	}

	country := strings.TrimSpace(r.URL.Query().Get("country"))
	currency := strings.TrimSpace(r.URL.Query().Get("currency"))

	rates, err := h.shipping.RatesForCountry(ctx, country, currency)
	if err != nil {
		writeShippingError(ctx, w, err)
		return
	}

	items := make([]shippingRatePayload, 0, len(rates))
	for _, rate := range rates {
		items = append(items, shippingRatePayload{
			Method:       rate.Method,
			Label:        rate.Label,
			Amount:       rate.Amount,
			Currency:     rate.Currency,
			DeliveryDays: rate.DeliveryDays,
		})
	}
	writeJSONResponse(w, http.StatusOK, shippingRatesResponse{Country: strings.ToUpper(country), Rates: items})
}

func writeShippingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrShippingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShippingCountryUnsupported):
		httpx.WriteError(ctx, w, httpx.NewError("country_not_served", "no delivery options for this country", http.StatusNotFound))
	case errors.Is(err, services.ErrCurrencyUnsupported):
		httpx.WriteError(ctx, w, httpx.NewError("currency_unsupported", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrShippingUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_unavailable", "shipping service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("shipping_error", "failed to resolve shipping rates", http.StatusInternalServerError))
	}
}

type shippingRatesResponse struct {
	Country string                `json:"country"`
	Rates   []shippingRatePayload `json:"rates"`
}

type shippingRatePayload struct {
	Method       string `json:"method"`
	Label        string `json:"label"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	DeliveryDays string `json:"deliveryDays,omitempty"`
}
