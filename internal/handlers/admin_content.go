package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxAdminContentBodySize = 512 * 1024

// AdminContentHandlers exposes CMS page editing for back-office users.
type AdminContentHandlers struct {
	authn      *auth.Authenticator
	content    services.ContentService
	activities services.ActivityService
}

// NewAdminContentHandlers constructs the admin content handlers.
func NewAdminContentHandlers(authn *auth.Authenticator, content services.ContentService, activities services.ActivityService) *AdminContentHandlers {
	return &AdminContentHandlers{
		authn:      authn,
		content:    content,
		activities: activities,
	}
}

// Routes wires the admin content endpoints onto the provided router.
func (h *AdminContentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(string(domain.RoleAdmin), string(domain.RoleModerator)))
	}
	r.Get("/pages", h.listPages)
	r.Put("/pages/{key}", h.upsertPage)
}

func (h *AdminContentHandlers) listPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := currentIdentity(ctx, w); !ok {
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

func (h *AdminContentHandlers) upsertPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Kind     string         `json:"kind"`
		Title    string         `json:"title"`
		HTML     string         `json:"html"`
		Sections map[string]any `json:"sections"`
	}
	if err := decodeJSONBody(r, maxAdminContentBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	page, err := h.content.UpsertPage(ctx, services.UpsertContentPageCommand{
		Page: services.ContentPage{
			Key:      strings.TrimSpace(chi.URLParam(r, "key")),
			Kind:     services.ContentPageKind(strings.ToLower(strings.TrimSpace(req.Kind))),
			Title:    strings.TrimSpace(req.Title),
			HTML:     req.HTML,
			Sections: req.Sections,
		},
		ActorID: identity.UID,
	})
	if err != nil {
		writeContentError(ctx, w, err)
		return
	}

	if h.activities != nil {
		h.activities.Record(ctx, services.ActivityRecord{
			Actor:     identity.UID,
			ActorType: actorTypeFor(identity),
			Action:    "page.updated",
			TargetRef: "pages/" + page.Key,
			Metadata:  map[string]any{"kind": string(page.Kind)},
			IPAddress: clientAddress(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
	}

	writeJSONResponse(w, http.StatusOK, contentPageResponse{Page: buildContentPagePayload(page)})
}
