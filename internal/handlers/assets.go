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

const maxAssetRequestBody = 4 * 1024

// AssetHandlers issues signed upload and download URLs for the media
// library. Clients upload directly to the bucket; the API never proxies
// file bytes.
type AssetHandlers struct {
	authn  *auth.Authenticator
	assets services.AssetService
}

// NewAssetHandlers constructs the asset handlers.
func NewAssetHandlers(authn *auth.Authenticator, assets services.AssetService) *AssetHandlers {
	return &AssetHandlers{
		authn:  authn,
		assets: assets,
	}
}

// Routes wires the asset endpoints onto the provided router.
func (h *AssetHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(string(domain.RoleAdmin), string(domain.RoleModerator)))
	}
	r.Post("/assets/uploads", h.issueUpload)
	r.Get("/assets/{assetId}/download", h.issueDownload)
}

func (h *AssetHandlers) issueUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("asset_service_unavailable", "asset service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req struct {
		Kind        string `json:"kind"`
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		SizeBytes   int64  `json:"sizeBytes"`
	}
	if err := decodeJSONBody(r, maxAssetRequestBody, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	signed, err := h.assets.IssueSignedUpload(ctx, services.SignedUploadCommand{
		ActorID:     identity.UID,
		Kind:        req.Kind,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeAssetError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildSignedAssetPayload(signed))
}

func (h *AssetHandlers) issueDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.assets == nil {
		httpx.WriteError(ctx, w, httpx.NewError("asset_service_unavailable", "asset service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	signed, err := h.assets.IssueSignedDownload(ctx, services.SignedDownloadCommand{
		ActorID: identity.UID,
		AssetID: strings.TrimSpace(chi.URLParam(r, "assetId")),
	})
	if err != nil {
		writeAssetError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildSignedAssetPayload(signed))
}

func writeAssetError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAssetInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAssetNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("asset_not_found", "asset not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAssetUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("asset_service_unavailable", "asset service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("asset_error", "failed to serve asset request", http.StatusInternalServerError))
	}
}

func buildSignedAssetPayload(signed services.SignedAssetResponse) signedAssetPayload {
	payload := signedAssetPayload{
		AssetID: signed.AssetID,
		URL:     signed.URL,
		Method:  signed.Method,
		Headers: signed.Headers,
	}
	if !signed.ExpiresAt.IsZero() {
		payload.ExpiresAt = formatTime(signed.ExpiresAt)
	}
	return payload
}

type signedAssetPayload struct {
	AssetID   string            `json:"assetId"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	ExpiresAt string            `json:"expiresAt,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}
