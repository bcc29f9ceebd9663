package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/services"
)

func TestAdminUpsertPage(t *testing.T) {
	router := chi.NewRouter()
	var captured services.UpsertContentPageCommand
	content := &stubContentService{
		upsertFunc: func(ctx context.Context, cmd services.UpsertContentPageCommand) (services.ContentPage, error) {
			captured = cmd
			return cmd.Page, nil
		},
	}
	var recorded services.ActivityRecord
	activities := &stubActivityService{
		recordFunc: func(ctx context.Context, record services.ActivityRecord) {
			recorded = record
		},
	}
	NewAdminContentHandlers(nil, content, activities).Routes(router)

	payload := `{"kind":"HTML","title":"About Us","html":"<p>Welcome</p>"}`
	req := roleRequest(httptest.NewRequest(http.MethodPut, "/pages/about", bytes.NewBufferString(payload)), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Page.Key != "about" {
		t.Fatalf("expected key from path, got %q", captured.Page.Key)
	}
	if string(captured.Page.Kind) != "html" {
		t.Fatalf("expected lowered kind, got %q", captured.Page.Kind)
	}
	if captured.ActorID != "admin-1" {
		t.Fatalf("unexpected actor %q", captured.ActorID)
	}
	if recorded.Action != "page.updated" || recorded.TargetRef != "pages/about" {
		t.Fatalf("unexpected activity %+v", recorded)
	}

	var resp contentPageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Page.HTML != "<p>Welcome</p>" {
		t.Fatalf("unexpected page payload %+v", resp.Page)
	}
}

func TestAdminUpsertPageInvalidKind(t *testing.T) {
	router := chi.NewRouter()
	content := &stubContentService{
		upsertFunc: func(ctx context.Context, cmd services.UpsertContentPageCommand) (services.ContentPage, error) {
			return services.ContentPage{}, services.ErrContentInvalidInput
		},
	}
	NewAdminContentHandlers(nil, content, nil).Routes(router)

	req := roleRequest(httptest.NewRequest(http.MethodPut, "/pages/about", bytes.NewBufferString(`{"kind":"pdf"}`)), "admin-1", "admin")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
