package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/httpx"
	"github.com/maison-panier/api/internal/services"
)

const maxAdminCatalogBodySize = 256 * 1024

// AdminCatalogHandlers exposes catalog mutations for back-office users.
// Moderators may create and update products; deletion stays admin-only.
type AdminCatalogHandlers struct {
	authn      *auth.Authenticator
	catalog    services.CatalogService
	activities services.ActivityService
}

// NewAdminCatalogHandlers constructs the admin catalog handlers.
func NewAdminCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, activities services.ActivityService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{
		authn:      authn,
		catalog:    catalog,
		activities: activities,
	}
}

// Routes wires the admin catalog endpoints onto the provided router.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(string(domain.RoleAdmin), string(domain.RoleModerator)))
	}
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productId}", h.updateProduct)
	r.Delete("/products/{productId}", h.deleteProduct)
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := currentIdentity(ctx, w); !ok {
		return
	}

	filter := services.ProductFilter{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		Pagination: parsePagination(r),
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products:      items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	h.upsertProduct(w, r, "")
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	h.upsertProduct(w, r, strings.TrimSpace(chi.URLParam(r, "productId")))
}

func (h *AdminCatalogHandlers) upsertProduct(w http.ResponseWriter, r *http.Request, productID string) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}

	var req productInput
	if err := decodeJSONBody(r, maxAdminCatalogBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	product := req.toDomain()
	if productID != "" {
		product.ID = productID
	}

	saved, err := h.catalog.UpsertProduct(ctx, services.UpsertProductCommand{
		Product: product,
		ActorID: identity.UID,
	})
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	action := "product.updated"
	status := http.StatusOK
	if productID == "" {
		action = "product.created"
		status = http.StatusCreated
	}
	h.recordActivity(r, identity, action, "products/"+saved.ID, map[string]any{
		"slug": saved.Slug,
		"name": saved.Name,
	})

	writeJSONResponse(w, status, productResponse{Product: buildProductPayload(saved)})
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := currentIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasRole(string(domain.RoleAdmin)) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "deleting products requires the admin role", http.StatusForbidden))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if err := h.catalog.DeleteProduct(ctx, services.DeleteProductCommand{
		ProductID: productID,
		ActorID:   identity.UID,
	}); err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	h.recordActivity(r, identity, "product.deleted", "products/"+productID, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminCatalogHandlers) recordActivity(r *http.Request, identity *auth.Identity, action string, targetRef string, metadata map[string]any) {
	if h.activities == nil || identity == nil {
		return
	}
	h.activities.Record(r.Context(), services.ActivityRecord{
		Actor:     identity.UID,
		ActorType: actorTypeFor(identity),
		Action:    action,
		TargetRef: targetRef,
		RequestID: middleware.GetReqID(r.Context()),
		Metadata:  metadata,
		IPAddress: clientAddress(r.RemoteAddr),
		UserAgent: r.UserAgent(),
	})
}

func actorTypeFor(identity *auth.Identity) string {
	switch {
	case identity.HasRole(string(domain.RoleAdmin)):
		return string(domain.RoleAdmin)
	case identity.HasRole(string(domain.RoleModerator)):
		return string(domain.RoleModerator)
	default:
		return string(domain.RoleCustomer)
	}
}

// productInput is the wire form of a catalog product for admin mutations.
type productInput struct {
	ID          string            `json:"id"`
	Slug        string            `json:"slug"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Price       int64             `json:"price"`
	Currency    string            `json:"currency"`
	Image       string            `json:"image"`
	Images      []string          `json:"images"`
	Variants    []variantInput    `json:"variants"`
	Items       []subProductInput `json:"items"`
	Details     map[string]any    `json:"details"`
	Active      *bool             `json:"active"`
}

type variantInput struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	Price int64  `json:"price"`
}

type subProductInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

func (in productInput) toDomain() services.Product {
	product := services.Product{
		ID:          strings.TrimSpace(in.ID),
		Slug:        strings.TrimSpace(in.Slug),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Currency:    strings.TrimSpace(in.Currency),
		Image:       strings.TrimSpace(in.Image),
		Images:      in.Images,
		Details:     in.Details,
		Active:      true,
	}
	if in.Active != nil {
		product.Active = *in.Active
	}
	for _, variant := range in.Variants {
		product.Variants = append(product.Variants, services.Variant{
			Name:  strings.TrimSpace(variant.Name),
			Image: strings.TrimSpace(variant.Image),
			Price: variant.Price,
		})
	}
	for _, item := range in.Items {
		product.Items = append(product.Items, services.SubProduct{
			ID:          strings.TrimSpace(item.ID),
			Name:        strings.TrimSpace(item.Name),
			Price:       item.Price,
			Image:       strings.TrimSpace(item.Image),
			Category:    strings.TrimSpace(item.Category),
			Description: item.Description,
		})
	}
	return product
}
