package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/services"
)

type stubNewsletterService struct {
	subscribeFunc func(ctx context.Context, cmd services.SubscribeCommand) (services.NewsletterSubscription, error)
}

func (s *stubNewsletterService) Subscribe(ctx context.Context, cmd services.SubscribeCommand) (services.NewsletterSubscription, error) {
	if s.subscribeFunc != nil {
		return s.subscribeFunc(ctx, cmd)
	}
	return services.NewsletterSubscription{Email: cmd.Email}, nil
}

func TestNewsletterSubscribe(t *testing.T) {
	router := chi.NewRouter()
	var captured services.SubscribeCommand
	newsletter := &stubNewsletterService{
		subscribeFunc: func(ctx context.Context, cmd services.SubscribeCommand) (services.NewsletterSubscription, error) {
			captured = cmd
			return services.NewsletterSubscription{ID: "sub-1", Email: "claire@example.com"}, nil
		},
	}
	NewNewsletterHandlers(newsletter, nil).Routes(router)

	body := bytes.NewBufferString(`{"email":"claire@example.com","source":"footer"}`)
	req := httptest.NewRequest(http.MethodPost, "/newsletter", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Email != "claire@example.com" || captured.Source != "footer" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp newsletterResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Subscribed || resp.Email != "claire@example.com" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNewsletterSubscribeConflict(t *testing.T) {
	router := chi.NewRouter()
	newsletter := &stubNewsletterService{
		subscribeFunc: func(ctx context.Context, cmd services.SubscribeCommand) (services.NewsletterSubscription, error) {
			return services.NewsletterSubscription{}, services.ErrNewsletterAlreadySubscribed
		},
	}
	NewNewsletterHandlers(newsletter, nil).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/newsletter", bytes.NewBufferString(`{"email":"claire@example.com"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "already_subscribed" {
		t.Fatalf("expected already_subscribed, got %v", resp["error"])
	}
}

func TestNewsletterSubscribeRateLimited(t *testing.T) {
	router := chi.NewRouter()
	now := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	limiter := newSimpleRateLimiter(2, time.Minute, func() time.Time { return now })
	NewNewsletterHandlers(&stubNewsletterService{}, limiter).Routes(router)

	for attempt := 0; attempt < 2; attempt++ {
		req := httptest.NewRequest(http.MethodPost, "/newsletter", bytes.NewBufferString(`{"email":"claire@example.com"}`))
		req.RemoteAddr = "203.0.113.7:51000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected status 201, got %d", attempt+1, rr.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/newsletter", bytes.NewBufferString(`{"email":"claire@example.com"}`))
	req.RemoteAddr = "203.0.113.7:51999"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "rate_limited" {
		t.Fatalf("expected rate_limited, got %v", resp["error"])
	}
}

func TestNewsletterSubscribeRejectsEmptyBody(t *testing.T) {
	router := chi.NewRouter()
	NewNewsletterHandlers(&stubNewsletterService{}, nil).Routes(router)

	req := httptest.NewRequest(http.MethodPost, "/newsletter", bytes.NewBufferString(""))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestClientAddressStripsPort(t *testing.T) {
	cases := map[string]string{
		"203.0.113.7:51000": "203.0.113.7",
		"203.0.113.7":       "203.0.113.7",
		"[2001:db8::1]:443": "[2001:db8::1]",
		" ":                 "",
	}
	for input, want := range cases {
		if got := clientAddress(input); got != want {
			t.Fatalf("clientAddress(%q) = %q, want %q", input, got, want)
		}
	}
}
