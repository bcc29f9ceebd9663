package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository persists catalog products in Firestore. The document ID
// is the product ID; slugs are kept unique through a transactional lookup on
// write.
type ProductRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{base: base, provider: provider}, nil
}

// Upsert writes the product document, rejecting slugs already claimed by a
// different product.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return domain.Product{}, errors.New("product repository: product id is required")
	}

	doc := fromDomainProduct(product)

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Product{}, err
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if doc.Slug != "" {
			query := client.Collection(productCollection).
				Where("slug", "==", doc.Slug).
				Limit(1)
			snaps, err := tx.Documents(query).GetAll()
			if err != nil {
				return err
			}
			if len(snaps) > 0 && snaps[0].Ref.ID != productID {
				return status.Errorf(codes.AlreadyExists, "slug %q already in use", doc.Slug)
			}
		}
		docRef, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.upsert", err)
	}

	saved := toDomainProduct(doc)
	saved.ID = productID
	return saved, nil
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	if r == nil || r.provider == nil {
		return errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("products.delete", err)
	}
	return nil
}

// FindByID loads a product by its document ID.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	product := toDomainProduct(doc.Data)
	product.ID = doc.ID
	return product, nil
}

// FindBySlug resolves a product through the slug field.
func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	trimmed := strings.ToLower(strings.TrimSpace(slug))
	if trimmed == "" {
		return domain.Product{}, pfirestore.WrapError("products.find_by_slug", status.Error(codes.NotFound, "slug is required"))
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", trimmed).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.WrapError("products.find_by_slug", status.Errorf(codes.NotFound, "product %q not found", trimmed))
	}

	product := toDomainProduct(docs[0].Data)
	product.ID = docs[0].ID
	return product, nil
}

// List pages products ordered by creation time, newest first. The free-text
// query is applied in memory after the indexed filters; catalog sizes stay
// small enough that this beats maintaining a search index.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var tokenTime time.Time
	var tokenID string
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		var err error
		tokenTime, tokenID, err = decodeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("products.list: invalid page token: %w", err)
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Category != "" {
			q = q.Where("category", "==", filter.Category)
		}
		if filter.ActiveOnly {
			q = q.Where("active", "==", true)
		}
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if tokenID != "" {
			q = q.StartAfter(tokenTime, tokenID)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeCursorToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := toDomainProduct(doc.Data)
		product.ID = doc.ID
		if query != "" && !productMatchesQuery(product, query) {
			continue
		}
		items = append(items, product)
	}

	return domain.CursorPage[domain.Product]{Items: items, NextPageToken: nextToken}, nil
}

// ListCategories returns the distinct category values present in the catalog.
func (r *ProductRepository) ListCategories(ctx context.Context) ([]string, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	iterDocs, err := client.Collection(productCollection).Select("category").Documents(ctx).GetAll()
	if err != nil {
		return nil, pfirestore.WrapError("products.list_categories", err)
	}

	seen := make(map[string]struct{}, len(iterDocs))
	categories := make([]string, 0, len(iterDocs))
	for _, snap := range iterDocs {
		value, ok := snap.Data()["category"].(string)
		if !ok {
			continue
		}
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		categories = append(categories, trimmed)
	}
	return categories, nil
}

func productMatchesQuery(product domain.Product, query string) bool {
	haystacks := []string{product.Name, product.Description, product.Slug}
	for _, candidate := range haystacks {
		if strings.Contains(strings.ToLower(candidate), query) {
			return true
		}
	}
	return false
}

type productDocument struct {
	Slug        string               `firestore:"slug"`
	Name        string               `firestore:"name"`
	Description string               `firestore:"description,omitempty"`
	Category    string               `firestore:"category"`
	Price       int64                `firestore:"price"`
	Currency    string               `firestore:"currency"`
	Image       string               `firestore:"image,omitempty"`
	Images      []string             `firestore:"images,omitempty"`
	Variants    []variantDocument    `firestore:"variants,omitempty"`
	Items       []subProductDocument `firestore:"items,omitempty"`
	Details     map[string]any       `firestore:"details,omitempty"`
	Active      bool                 `firestore:"active"`
	CreatedAt   time.Time            `firestore:"createdAt"`
	UpdatedAt   time.Time            `firestore:"updatedAt"`
}

type variantDocument struct {
	Name  string `firestore:"name"`
	Image string `firestore:"image,omitempty"`
	Price int64  `firestore:"price"`
}

type subProductDocument struct {
	ID          string `firestore:"id,omitempty"`
	Name        string `firestore:"name"`
	Price       int64  `firestore:"price"`
	Image       string `firestore:"image,omitempty"`
	Category    string `firestore:"category,omitempty"`
	Description string `firestore:"description,omitempty"`
}

func fromDomainProduct(product domain.Product) productDocument {
	doc := productDocument{
		Slug:        strings.ToLower(strings.TrimSpace(product.Slug)),
		Name:        strings.TrimSpace(product.Name),
		Description: strings.TrimSpace(product.Description),
		Category:    strings.ToLower(strings.TrimSpace(product.Category)),
		Price:       product.Price,
		Currency:    strings.ToUpper(strings.TrimSpace(product.Currency)),
		Image:       strings.TrimSpace(product.Image),
		Details:     cloneAnyMap(product.Details),
		Active:      product.Active,
		CreatedAt:   product.CreatedAt.UTC(),
		UpdatedAt:   product.UpdatedAt.UTC(),
	}
	if len(product.Images) > 0 {
		doc.Images = make([]string, 0, len(product.Images))
		for _, image := range product.Images {
			if trimmed := strings.TrimSpace(image); trimmed != "" {
				doc.Images = append(doc.Images, trimmed)
			}
		}
	}
	for _, v := range product.Variants {
		doc.Variants = append(doc.Variants, variantDocument{
			Name:  strings.TrimSpace(v.Name),
			Image: strings.TrimSpace(v.Image),
			Price: v.Price,
		})
	}
	for _, item := range product.Items {
		doc.Items = append(doc.Items, subProductDocument{
			ID:          strings.TrimSpace(item.ID),
			Name:        strings.TrimSpace(item.Name),
			Price:       item.Price,
			Image:       strings.TrimSpace(item.Image),
			Category:    strings.TrimSpace(item.Category),
			Description: strings.TrimSpace(item.Description),
		})
	}
	return doc
}

func toDomainProduct(doc productDocument) domain.Product {
	product := domain.Product{
		Slug:        doc.Slug,
		Name:        doc.Name,
		Description: doc.Description,
		Category:    doc.Category,
		Price:       doc.Price,
		Currency:    doc.Currency,
		Image:       doc.Image,
		Details:     cloneAnyMap(doc.Details),
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if len(doc.Images) > 0 {
		product.Images = append([]string{}, doc.Images...)
	}
	for _, v := range doc.Variants {
		product.Variants = append(product.Variants, domain.Variant{Name: v.Name, Image: v.Image, Price: v.Price})
	}
	for _, item := range doc.Items {
		product.Items = append(product.Items, domain.SubProduct{
			ID:          item.ID,
			Name:        item.Name,
			Price:       item.Price,
			Image:       item.Image,
			Category:    item.Category,
			Description: item.Description,
		})
	}
	return product
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
