package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

// ProfileHandlers serves the authenticated user's own profile. Fetching the
// profile provisions it on first login.
type ProfileHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewProfileHandlers constructs the profile handlers.
func NewProfileHandlers(authn *auth.Authenticator, users services.UserService) *ProfileHandlers {
	return &ProfileHandlers{
		authn: authn,
		users: users,
	}
}

// Routes wires the /me endpoints onto the provided router.
func (h *ProfileHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)
}

func (h *ProfileHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		httpx.WriteError(ctx, w, httpx.NewError("user_service_unavailable", "user service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.users.EnsureProfile(ctx, services.EnsureProfileCommand{
		UID:      identity.UID,
		Email:    identity.Email,
		Verified: identity.EmailVerified(),
	})
	if err != nil {
		writeUserError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, userResponse{User: buildUserProfilePayload(profile)})
}
