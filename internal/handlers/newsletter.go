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

const maxNewsletterBodySize = 4 * 1024

// NewsletterHandlers accepts public newsletter opt-ins. Subscriptions are
// rate limited per client IP to keep the endpoint from being used as a mail
// cannon.
type NewsletterHandlers struct {
	newsletter services.NewsletterService
	limiter    RateLimiter
}

// NewNewsletterHandlers constructs the newsletter handlers. A nil limiter
// disables rate limiting.
func NewNewsletterHandlers(newsletter services.NewsletterService, limiter RateLimiter) *NewsletterHandlers {
	return &NewsletterHandlers{newsletter: newsletter, limiter: limiter}
}

// Routes wires the newsletter endpoints onto the provided router.
func (h *NewsletterHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/newsletter", h.subscribe)
}

func (h *NewsletterHandlers) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.newsletter == nil {
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_unavailable", "newsletter service is unavailable", http.StatusServiceUnavailable))
		return
	}

	if h.limiter != nil && !h.limiter.Allow(clientAddress(r.RemoteAddr)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many subscription attempts", http.StatusTooManyRequests))
		return
	}

	var req struct {
		Email  string `json:"email"`
		Source string `json:"source"`
	}
	if err := decodeJSONBody(r, maxNewsletterBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	subscription, err := h.newsletter.Subscribe(ctx, services.SubscribeCommand{
		Email:  req.Email,
		Source: req.Source,
	})
	if err != nil {
		writeNewsletterError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, newsletterResponse{
		Email:      subscription.Email,
		Subscribed: true,
	})
}

func writeNewsletterError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNewsletterInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNewsletterAlreadySubscribed):
		httpx.WriteError(ctx, w, httpx.NewError("already_subscribed", "email is already subscribed", http.StatusConflict))
	case errors.Is(err, services.ErrNewsletterUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_unavailable", "newsletter service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_error", "failed to record subscription", http.StatusInternalServerError))
	}
}

type newsletterResponse struct {
	Email      string `json:"email"`
	Subscribed bool   `json:"subscribed"`
}

// clientAddress strips the port from a RemoteAddr so rate-limit keys stay
// stable across ephemeral ports.
func clientAddress(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if idx := strings.LastIndex(addr, ":"); idx > 0 && !strings.Contains(addr[idx:], "]") {
		return addr[:idx]
	}
	return addr
}
