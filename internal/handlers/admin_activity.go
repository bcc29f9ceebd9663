package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

// AdminActivityHandlers serves the immutable back-office activity log.
type AdminActivityHandlers struct {
	authn      *auth.Authenticator
	activities services.ActivityService
}

// NewAdminActivityHandlers constructs the activity log handlers.
func NewAdminActivityHandlers(authn *auth.Authenticator, activities services.ActivityService) *AdminActivityHandlers {
	return &AdminActivityHandlers{
		authn:      authn,
		activities: activities,
	}
}

// Routes wires the activity log endpoints onto the provided router.
func (h *AdminActivityHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(string(domain.RoleAdmin)))
	}
	r.Get("/activities", h.listActivities)
}

func (h *AdminActivityHandlers) listActivities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.activities == nil {
		httpx.WriteError(ctx, w, httpx.NewError("activity_unavailable", "activity service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := currentIdentity(ctx, w); !ok {
		return
	}

	filter := services.ActivityListFilter{
		Action:     strings.TrimSpace(r.URL.Query().Get("action")),
		Actor:      strings.TrimSpace(r.URL.Query().Get("actor")),
		ActorType:  strings.TrimSpace(r.URL.Query().Get("actorType")),
		TargetRef:  strings.TrimSpace(r.URL.Query().Get("targetRef")),
		Pagination: parsePagination(r),
	}

	dateRange, err := parseDateRange(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	filter.DateRange = dateRange

	page, err := h.activities.List(ctx, filter)
	if err != nil {
		writeActivityError(ctx, w, err)
		return
	}

	items := make([]activityEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, buildActivityEntryPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, activityListResponse{
		Activities:    items,
		NextPageToken: page.NextPageToken,
	})
}

func parseDateRange(r *http.Request) (domain.RangeQuery[time.Time], error) {
	var out domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := parseRFC3339(raw)
		if err != nil {
			return out, err
		}
		out.From = &parsed
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := parseRFC3339(raw)
		if err != nil {
			return out, err
		}
		out.To = &parsed
	}
	return out, nil
}

func writeActivityError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("activity_error", "failed to list activity log", http.StatusInternalServerError))
}

func buildActivityEntryPayload(entry services.ActivityEntry) activityEntryPayload {
	payload := activityEntryPayload{
		ID:        entry.ID,
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		Metadata:  cloneMap(entry.Metadata),
		IPHash:    entry.IPHash,
		UserAgent: entry.UserAgent,
	}
	if !entry.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(entry.CreatedAt)
	}
	return payload
}

type activityListResponse struct {
	Activities    []activityEntryPayload `json:"activities"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

type activityEntryPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actorType"`
	Action    string         `json:"action"`
	TargetRef string         `json:"targetRef,omitempty"`
	Severity  string         `json:"severity"`
	RequestID string         `json:"requestId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	IPHash    string         `json:"ipHash,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	CreatedAt string         `json:"createdAt"`
}
