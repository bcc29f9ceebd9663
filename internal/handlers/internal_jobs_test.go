package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/services"
)

type stubJobMailer struct {
	welcomeFunc func(ctx context.Context, to string) error
}

func (s *stubJobMailer) SendOrderConfirmation(ctx context.Context, msg services.OrderConfirmationMail) error {
	return nil
}

func (s *stubJobMailer) SendNewsletterWelcome(ctx context.Context, to string) error {
	if s.welcomeFunc != nil {
		return s.welcomeFunc(ctx, to)
	}
	return nil
}

var _ services.Mailer = (*stubJobMailer)(nil)

func pushRequest(t *testing.T, event services.StoreEvent) *http.Request {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	envelope := map[string]any{
		"message": map[string]any{
			"data":       data,
			"attributes": map[string]string{"kind": event.Kind},
			"messageId":  "msg-1",
		},
		"subscription": "projects/panier-dev/subscriptions/store-events-push",
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/jobs/store-events", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newJobRouter(h *InternalJobHandlers) chi.Router {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestStoreEventPushSendsWelcomeMail(t *testing.T) {
	welcomed := ""
	mailer := &stubJobMailer{
		welcomeFunc: func(ctx context.Context, to string) error {
			welcomed = to
			return nil
		},
	}
	handlers := NewInternalJobHandlers(mailer, nil)
	router := newJobRouter(handlers)

	req := pushRequest(t, services.StoreEvent{
		Kind:       "newsletter.subscribed",
		Subject:    "SUB-1",
		Payload:    map[string]any{"email": "claire@example.com", "source": "footer"},
		OccurredAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if welcomed != "claire@example.com" {
		t.Fatalf("expected welcome mail to claire@example.com, got %q", welcomed)
	}

	var ack pushAckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.Received || !ack.Processed {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestStoreEventPushNacksOnMailFailure(t *testing.T) {
	mailer := &stubJobMailer{
		welcomeFunc: func(ctx context.Context, to string) error {
			return errors.New("smtp down")
		},
	}
	handlers := NewInternalJobHandlers(mailer, nil)
	router := newJobRouter(handlers)

	req := pushRequest(t, services.StoreEvent{
		Kind:    "newsletter.subscribed",
		Subject: "SUB-2",
		Payload: map[string]any{"email": "claire@example.com"},
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for retryable failure, got %d", rec.Code)
	}
}

func TestStoreEventPushAcksUnknownKind(t *testing.T) {
	called := false
	mailer := &stubJobMailer{
		welcomeFunc: func(ctx context.Context, to string) error {
			called = true
			return nil
		},
	}
	handlers := NewInternalJobHandlers(mailer, nil)
	router := newJobRouter(handlers)

	req := pushRequest(t, services.StoreEvent{
		Kind:    "order.confirmed",
		Subject: "pi_123",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for unhandled kind, got %d", rec.Code)
	}
	if called {
		t.Fatal("welcome mail must not fire for unrelated events")
	}
}

func TestStoreEventPushAcksMissingEmail(t *testing.T) {
	handlers := NewInternalJobHandlers(&stubJobMailer{}, nil)
	router := newJobRouter(handlers)

	req := pushRequest(t, services.StoreEvent{
		Kind:    "newsletter.subscribed",
		Subject: "SUB-3",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack when email missing, got %d", rec.Code)
	}
}

func TestStoreEventPushRejectsMalformedEnvelope(t *testing.T) {
	handlers := NewInternalJobHandlers(&stubJobMailer{}, nil)
	router := newJobRouter(handlers)

	req := httptest.NewRequest(http.MethodPost, "/jobs/store-events", bytes.NewReader([]byte("not-json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed envelope, got %d", rec.Code)
	}
}
