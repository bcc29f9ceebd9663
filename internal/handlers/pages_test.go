package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/services"
)

type stubContentService struct {
	getFunc    func(ctx context.Context, key string) (services.ContentPage, error)
	listFunc   func(ctx context.Context) ([]services.ContentPage, error)
	upsertFunc func(ctx context.Context, cmd services.UpsertContentPageCommand) (services.ContentPage, error)
}

func (s *stubContentService) GetPage(ctx context.Context, key string) (services.ContentPage, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, key)
	}
	return services.ContentPage{}, services.ErrContentNotFound
}

func (s *stubContentService) ListPages(ctx context.Context) ([]services.ContentPage, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx)
	}
	return nil, nil
}

func (s *stubContentService) UpsertPage(ctx context.Context, cmd services.UpsertContentPageCommand) (services.ContentPage, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, cmd)
	}
	return cmd.Page, nil
}

func TestListPages(t *testing.T) {
	router := chi.NewRouter()
	content := &stubContentService{
		listFunc: func(ctx context.Context) ([]services.ContentPage, error) {
			return []services.ContentPage{
				{
					Key:       "about",
					Kind:      domain.ContentKindHTML,
					Title:     "About Us",
					HTML:      "<p>Welcome</p>",
					UpdatedAt: time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC),
				},
				{
					Key:      "homepage",
					Kind:     domain.ContentKindStructured,
					Sections: map[string]any{"hero": map[string]any{"title": "Maison Panier"}},
				},
			}, nil
		},
	}
	NewPageHandlers(content).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp contentPageListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Pages) != 2 {
		t.Fatalf("expected two pages, got %d", len(resp.Pages))
	}
	if resp.Pages[0].HTML != "<p>Welcome</p>" {
		t.Fatalf("unexpected html payload %+v", resp.Pages[0])
	}
	if resp.Pages[1].Sections == nil {
		t.Fatalf("expected structured sections, got %+v", resp.Pages[1])
	}
}

func TestGetPageByKey(t *testing.T) {
	router := chi.NewRouter()
	content := &stubContentService{
		getFunc: func(ctx context.Context, key string) (services.ContentPage, error) {
			if key != "about" {
				t.Fatalf("unexpected page key %q", key)
			}
			return services.ContentPage{Key: "about", Kind: domain.ContentKindHTML, Title: "About Us"}, nil
		},
	}
	NewPageHandlers(content).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/pages/about", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp contentPageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Page.Key != "about" || resp.Page.Title != "About Us" {
		t.Fatalf("unexpected page %+v", resp.Page)
	}
}

func TestGetPageNotFound(t *testing.T) {
	router := chi.NewRouter()
	NewPageHandlers(&stubContentService{}).Routes(router)

	req := httptest.NewRequest(http.MethodGet, "/pages/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "page_not_found" {
		t.Fatalf("expected page_not_found, got %v", resp["error"])
	}
}
