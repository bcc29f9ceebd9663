package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxPushBodySize = 256 * 1024

// InternalJobHandlers receives Pub/Sub push deliveries for the store events
// topic and runs the asynchronous jobs they represent. The route group is
// expected to sit behind the OIDC middleware so only the push subscription's
// service account can reach it.
type InternalJobHandlers struct {
	mailer services.Mailer
	logger func(context.Context, string, map[string]any)
}

// NewInternalJobHandlers constructs the internal push handlers.
func NewInternalJobHandlers(mailer services.Mailer, logger func(context.Context, string, map[string]any)) *InternalJobHandlers {
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &InternalJobHandlers{
		mailer: mailer,
		logger: logger,
	}
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalJobHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/store-events", h.handleStoreEvent)
}

// pushEnvelope mirrors the JSON body of a Pub/Sub push delivery.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func (h *InternalJobHandlers) handleStoreEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read push payload", http.StatusBadRequest))
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to decode push envelope", http.StatusBadRequest))
		return
	}

	var event services.StoreEvent
	if len(envelope.Message.Data) > 0 {
		if err := json.Unmarshal(envelope.Message.Data, &event); err != nil {
			// A malformed event will never parse on retry; log and ack.
			h.logger(ctx, "push event decode failed", map[string]any{
				"message_id": envelope.Message.MessageID,
				"error":      err.Error(),
			})
			writeJSONResponse(w, http.StatusOK, pushAckResponse{Received: true})
			return
		}
	}
	if event.Kind == "" {
		event.Kind = envelope.Message.Attributes["kind"]
	}

	switch event.Kind {
	case "newsletter.subscribed":
		h.handleNewsletterWelcome(ctx, w, envelope.Message.MessageID, event)
	default:
		// Unknown kinds are acked so the subscription does not wedge on
		// events this service does not process.
		writeJSONResponse(w, http.StatusOK, pushAckResponse{Received: true})
	}
}

func (h *InternalJobHandlers) handleNewsletterWelcome(ctx context.Context, w http.ResponseWriter, messageID string, event services.StoreEvent) {
	email, _ := event.Payload["email"].(string)
	email = strings.TrimSpace(email)
	if email == "" {
		h.logger(ctx, "welcome job missing email", map[string]any{
			"message_id": messageID,
			"subject":    event.Subject,
		})
		writeJSONResponse(w, http.StatusOK, pushAckResponse{Received: true})
		return
	}

	if h.mailer == nil {
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "mail delivery is unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.mailer.SendNewsletterWelcome(ctx, email); err != nil {
		// 5xx nacks the delivery so Pub/Sub redelivers with backoff.
		h.logger(ctx, "welcome mail failed", map[string]any{
			"message_id": messageID,
			"subject":    event.Subject,
			"error":      err.Error(),
		})
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "welcome mail delivery failed", http.StatusServiceUnavailable))
		return
	}

	writeJSONResponse(w, http.StatusOK, pushAckResponse{Received: true, Processed: true})
}

type pushAckResponse struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed,omitempty"`
}
