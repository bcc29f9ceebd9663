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

// PageHandlers serves published CMS pages to the storefront.
type PageHandlers struct {
	content services.ContentService
}

// NewPageHandlers constructs the public content page handlers.
func NewPageHandlers(content services.ContentService) *PageHandlers {
	return &PageHandlers{content: content}
}

// Routes wires the page endpoints onto the provided router.
func (h *PageHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/pages", h.listPages)
	r.Get("/pages/{key}", h.getPage)
}

func (h *PageHandlers) listPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	pages, err := h.content.ListPages(ctx)
	if err != nil {
		writeContentError(ctx, w, err)
		return
	}

	items := make([]contentPagePayload, 0, len(pages))
	for _, page := range pages {
		items = append(items, buildContentPagePayload(page))
	}
	writeJSONResponse(w, http.StatusOK, contentPageListResponse{Pages: items})
}

func (h *PageHandlers) getPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	key := strings.TrimSpace(chi.URLParam(r, "key"))
	page, err := h.content.GetPage(ctx, key)
	if err != nil {
		writeContentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, contentPageResponse{Page: buildContentPagePayload(page)})
}

func writeContentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrContentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrContentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("page_not_found", "page not found", http.StatusNotFound))
	case errors.Is(err, services.ErrContentUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("content_error", "failed to serve content request", http.StatusInternalServerError))
	}
}

func buildContentPagePayload(page services.ContentPage) contentPagePayload {
	payload := contentPagePayload{
		Key:      page.Key,
		Kind:     string(page.Kind),
		Title:    page.Title,
		HTML:     page.HTML,
		Sections: cloneMap(page.Sections),
	}
	if !page.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(page.UpdatedAt)
	}
	return payload
}

type contentPageListResponse struct {
	Pages []contentPagePayload `json:"pages"`
}

type contentPageResponse struct {
	Page contentPagePayload `json:"page"`
}

type contentPagePayload struct {
	Key       string         `json:"key"`
	Kind      string         `json:"kind"`
	Title     string         `json:"title,omitempty"`
	HTML      string         `json:"html,omitempty"`
	Sections  map[string]any `json:"sections,omitempty"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
}
