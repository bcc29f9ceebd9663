package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxAdminUserBodySize = 16 * 1024

// AdminUserHandlers exposes back-office user administration. All routes are
// admin-only; the service additionally refuses self-deletion.
type AdminUserHandlers struct {
	authn      *auth.Authenticator
	users      services.UserService
	activities services.ActivityService
}

// NewAdminUserHandlers constructs the admin user handlers.
func NewAdminUserHandlers(authn *auth.Authenticator, users services.UserService, activities services.ActivityService) *AdminUserHandlers {
	return &AdminUserHandlers{
		authn:      authn,
		users:      users,
		activities: activities,
	}
}

// Routes wires the admin user endpoints onto the provided router.
func (h *AdminUserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(string(domain.RoleAdmin)))
	}
	r.Get("/users", h.listUsers)
	r.Patch("/users/{uid}", h.updateUser)
	r.Delete("/users/{uid}", h.deleteUser)
}

func (h *AdminUserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := currentIdentity(ctx, w); !ok {
		return
	}

	filter := services.UserFilter{
		Role:       strings.TrimSpace(r.URL.Query().Get("role")),
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		Pagination: parsePagination(r),
	}

	page, err := h.users.ListUsers(ctx, filter)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	items := make([]userProfilePayload, 0, len(page.Items))
	for _, profile := range page.Items {
		items = append(items, buildUserProfilePayload(profile))
	}
	writeJSONResponse(w, http.StatusOK, userListResponse{
		Users:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminUserHandlers) updateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Role        *string `json:"role"`
		DisplayName *string `json:"displayName"`
		Verified    *bool   `json:"verified"`
		Disabled    *bool   `json:"disabled"`
	}
	if err := decodeJSONBody(r, maxAdminUserBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.UpdateUserCommand{
		UID:         strings.TrimSpace(chi.URLParam(r, "uid")),
		ActorID:     identity.UID,
		DisplayName: req.DisplayName,
		Verified:    req.Verified,
		Disabled:    req.Disabled,
	}
	if req.Role != nil {
		role := services.UserRole(strings.ToLower(strings.TrimSpace(*req.Role)))
		cmd.Role = &role
	}

	profile, err := h.users.UpdateUser(ctx, cmd)
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	if h.activities != nil {
		metadata := map[string]any{}
		if cmd.Role != nil {
			metadata["role"] = string(*cmd.Role)
		}
		if cmd.Disabled != nil {
			metadata["disabled"] = *cmd.Disabled
		}
		h.activities.Record(ctx, services.ActivityRecord{
			Actor:     identity.UID,
			ActorType: actorTypeFor(identity),
			Action:    "user.updated",
			TargetRef: "users/" + profile.UID,
			Metadata:  metadata,
			IPAddress: clientAddress(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
	}

	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserProfilePayload(profile)})
}

func (h *AdminUserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	uid := strings.TrimSpace(chi.URLParam(r, "uid"))
	if err := h.users.DeleteUser(ctx, services.DeleteUserCommand{
		UID:     uid,
		ActorID: identity.UID,
	}); err != nil {
		writeUserError(ctx, w, err)
		return
	}

	if h.activities != nil {
		h.activities.Record(ctx, services.ActivityRecord{
			Actor:     identity.UID,
			ActorType: actorTypeFor(identity),
			Action:    "user.deleted",
			TargetRef: "users/" + uid,
			Severity:  "warn",
			IPAddress: clientAddress(r.RemoteAddr),
			UserAgent: r.UserAgent(),
		})
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeUserError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrUserInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUserSelfDelete):
		httpx.WriteError(ctx, w, httpx.NewError("self_delete_forbidden", "cannot delete your own account", http.StatusForbidden))
	case errors.Is(err, services.ErrUserUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("user_error", "failed to serve user request", http.StatusInternalServerError))
	}
}

func buildUserProfilePayload(profile services.UserProfile) userProfilePayload {
	payload := userProfilePayload{
		UID:         profile.UID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Role:        string(profile.Role),
		Verified:    profile.Verified,
		Disabled:    profile.Disabled,
	}
	if !profile.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(profile.CreatedAt)
	}
	if !profile.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(profile.UpdatedAt)
	}
	return payload
}

type userListResponse struct {
	Users         []userProfilePayload `json:"users"`
	NextPageToken string               `json:"nextPageToken,omitempty"`
}

type userResponse struct {
	User userProfilePayload `json:"user"`
}

type userProfilePayload struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
	Verified    bool   `json:"verified"`
	Disabled    bool   `json:"disabled"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}
