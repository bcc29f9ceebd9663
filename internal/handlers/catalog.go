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

// CatalogHandlers exposes the public, read-only product catalog.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the public catalog handlers.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes wires the catalog endpoints onto the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{idOrSlug}", h.getProduct)
	r.Get("/categories", h.listCategories)
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	filter := services.ProductFilter{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		Query:      strings.TrimSpace(r.URL.Query().Get("q")),
		ActiveOnly: true,
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

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	idOrSlug := strings.TrimSpace(chi.URLParam(r, "idOrSlug"))
	product, err := h.catalog.GetProduct(ctx, idOrSlug)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSONResponse(w, http.StatusOK, categoriesResponse{Categories: categories})
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to serve catalog request", http.StatusInternalServerError))
	}
}

func buildProductPayload(product services.Product) productPayload {
	payload := productPayload{
		ID:          product.ID,
		Slug:        product.Slug,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Price:       product.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(product.Currency)),
		Image:       product.Image,
		Images:      product.Images,
		Details:     cloneMap(product.Details),
		Active:      product.Active,
	}
	if payload.Images == nil {
		payload.Images = []string{}
	}
	for _, variant := range product.Variants {
		payload.Variants = append(payload.Variants, variantPayload{
			Name:  variant.Name,
			Image: variant.Image,
			Price: variant.Price,
		})
	}
	for _, item := range product.Items {
		payload.Items = append(payload.Items, subProductPayload{
			ID:          item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Image:       item.Image,
			Category:    item.Category,
			Description: item.Description,
		})
	}
	if !product.CreatedAt.IsZero() {
		payload.CreatedAt = formatTime(product.CreatedAt)
	}
	if !product.UpdatedAt.IsZero() {
		payload.UpdatedAt = formatTime(product.UpdatedAt)
	}
	return payload
}

type productListResponse struct {
	Products      []productPayload `json:"products"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type categoriesResponse struct {
	Categories []string `json:"categories"`
}

type productPayload struct {
	ID          string              `json:"id"`
	Slug        string              `json:"slug"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category"`
	Price       int64               `json:"price"`
	Currency    string              `json:"currency"`
	Image       string              `json:"image,omitempty"`
	Images      []string            `json:"images"`
	Variants    []variantPayload    `json:"variants,omitempty"`
	Items       []subProductPayload `json:"items,omitempty"`
	Details     map[string]any      `json:"details,omitempty"`
	Active      bool                `json:"active"`
	CreatedAt   string              `json:"createdAt,omitempty"`
	UpdatedAt   string              `json:"updatedAt,omitempty"`
}

type variantPayload struct {
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Price int64  `json:"price"`
}

type subProductPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}
