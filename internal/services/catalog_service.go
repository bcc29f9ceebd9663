package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errCatalogRepositoryRequired = errors.New("catalog service: repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested product does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogConflict indicates the product could not be written due to a slug collision.
var ErrCatalogConflict = errors.New("catalog service: conflict")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

const (
	maxProductNameLength        = 200
	maxProductDescriptionLength = 5000
	maxProductImages            = 12
	maxProductVariants          = 20
	defaultCatalogPageSize      = 24
	maxCatalogPageSize          = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CatalogServiceDeps wires persistence and ambient dependencies for the catalog.
type CatalogServiceDeps struct {
	Repository  repositories.ProductRepository
	Activity    ActivityService
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type catalogService struct {
	repo     repositories.ProductRepository
	activity ActivityService
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &catalogService{
		repo:     deps.Repository,
		activity: deps.Activity,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// GetProduct resolves a product by document ID first, then by slug.
func (s *catalogService) GetProduct(ctx context.Context, idOrSlug string) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return Product{}, ErrCatalogInvalidInput
	}

	product, err := s.repo.FindByID(ctx, key)
	if err == nil {
		return normaliseProduct(product), nil
	}
	if !isRepoNotFound(err) {
		return Product{}, s.translateRepoError(err)
	}

	product, err = s.repo.FindBySlug(ctx, strings.ToLower(key))
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return normaliseProduct(product), nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}

	repoFilter := repositories.ProductListFilter{
		Category:   strings.ToLower(strings.TrimSpace(filter.Category)),
		Query:      strings.TrimSpace(filter.Query),
		ActiveOnly: filter.ActiveOnly,
		Pagination: clampPagination(filter.Pagination, defaultCatalogPageSize, maxCatalogPageSize),
	}

	page, err := s.repo.List(ctx, repoFilter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}

	for i := range page.Items {
		page.Items[i] = normaliseProduct(page.Items[i])
	}
	return page, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]string, error) {
	if s == nil || s.repo == nil {
		return nil, ErrCatalogUnavailable
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	seen := make(map[string]struct{}, len(categories))
	out := make([]string, 0, len(categories))
	for _, category := range categories {
		trimmed := strings.ToLower(strings.TrimSpace(category))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out, nil
}

// UpsertProduct creates or replaces a catalog product. New products receive a
// generated ID; slugs are derived from the name when absent.
func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	product := cmd.Product
	now := s.now()

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if len(product.Name) > maxProductNameLength {
		return Product{}, fmt.Errorf("%w: name must be %d characters or fewer", ErrCatalogInvalidInput, maxProductNameLength)
	}

	product.Description = strings.TrimSpace(product.Description)
	if len(product.Description) > maxProductDescriptionLength {
		return Product{}, fmt.Errorf("%w: description must be %d characters or fewer", ErrCatalogInvalidInput, maxProductDescriptionLength)
	}

	product.Category = strings.ToLower(strings.TrimSpace(product.Category))
	if product.Category == "" {
		return Product{}, fmt.Errorf("%w: category is required", ErrCatalogInvalidInput)
	}

	if product.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be non-negative", ErrCatalogInvalidInput)
	}

	product.Currency = strings.ToUpper(strings.TrimSpace(product.Currency))
	if product.Currency == "" {
		product.Currency = "EUR"
	}
	if len(product.Currency) != 3 {
		return Product{}, fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrCatalogInvalidInput)
	}

	product.Slug = strings.ToLower(strings.TrimSpace(product.Slug))
	if product.Slug == "" {
		product.Slug = slugify(product.Name)
	}
	if !slugPattern.MatchString(product.Slug) {
		return Product{}, fmt.Errorf("%w: slug must be lowercase letters, digits and hyphens", ErrCatalogInvalidInput)
	}

	if len(product.Images) > maxProductImages {
		return Product{}, fmt.Errorf("%w: at most %d images are allowed", ErrCatalogInvalidInput, maxProductImages)
	}
	if len(product.Variants) > maxProductVariants {
		return Product{}, fmt.Errorf("%w: at most %d variants are allowed", ErrCatalogInvalidInput, maxProductVariants)
	}

	seenVariants := make(map[string]struct{}, len(product.Variants))
	for i := range product.Variants {
		name := strings.TrimSpace(product.Variants[i].Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: variant name is required", ErrCatalogInvalidInput)
		}
		if product.Variants[i].Price < 0 {
			return Product{}, fmt.Errorf("%w: variant price must be non-negative", ErrCatalogInvalidInput)
		}
		lowered := strings.ToLower(name)
		if _, ok := seenVariants[lowered]; ok {
			return Product{}, fmt.Errorf("%w: duplicate variant %q", ErrCatalogInvalidInput, name)
		}
		seenVariants[lowered] = struct{}{}
		product.Variants[i].Name = name
		product.Variants[i].Image = strings.TrimSpace(product.Variants[i].Image)
	}

	for i := range product.Items {
		product.Items[i].Name = strings.TrimSpace(product.Items[i].Name)
		if product.Items[i].Name == "" {
			return Product{}, fmt.Errorf("%w: sub item name is required", ErrCatalogInvalidInput)
		}
		if product.Items[i].Price < 0 {
			return Product{}, fmt.Errorf("%w: sub item price must be non-negative", ErrCatalogInvalidInput)
		}
	}

	created := false
	if strings.TrimSpace(product.ID) == "" {
		product.ID = s.newID()
		product.CreatedAt = now
		created = true
	} else if product.CreatedAt.IsZero() {
		existing, err := s.repo.FindByID(ctx, product.ID)
		if err == nil {
			product.CreatedAt = existing.CreatedAt
		} else if isRepoNotFound(err) {
			product.CreatedAt = now
			created = true
		} else {
			return Product{}, s.translateRepoError(err)
		}
	}
	product.UpdatedAt = now

	saved, err := s.repo.Upsert(ctx, normaliseProduct(product))
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}

	s.recordActivity(ctx, cmd.ActorID, productActivityAction(created), "products/"+saved.ID, map[string]any{
		"slug":     saved.Slug,
		"category": saved.Category,
	})

	return normaliseProduct(saved), nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, cmd DeleteProductCommand) error {
	if s == nil || s.repo == nil {
		return ErrCatalogUnavailable
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return ErrCatalogInvalidInput
	}

	if _, err := s.repo.FindByID(ctx, productID); err != nil {
		return s.translateRepoError(err)
	}

	if err := s.repo.Delete(ctx, productID); err != nil {
		return s.translateRepoError(err)
	}

	s.recordActivity(ctx, cmd.ActorID, "product.deleted", "products/"+productID, nil)
	return nil
}

func (s *catalogService) recordActivity(ctx context.Context, actor, action, targetRef string, metadata map[string]any) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityRecord{
		Actor:      strings.TrimSpace(actor),
		ActorType:  "admin",
		Action:     action,
		TargetRef:  targetRef,
		Severity:   "info",
		OccurredAt: s.now(),
		Metadata:   metadata,
	})
}

func productActivityAction(created bool) string {
	if created {
		return "product.created"
	}
	return "product.updated"
}

func (s *catalogService) translateRepoError(err error) error {
	return mapRepoError(err, ErrCatalogNotFound, ErrCatalogConflict, ErrCatalogUnavailable)
}

func normaliseProduct(product domain.Product) domain.Product {
	product.ID = strings.TrimSpace(product.ID)
	product.Slug = strings.ToLower(strings.TrimSpace(product.Slug))
	product.Name = strings.TrimSpace(product.Name)
	product.Category = strings.ToLower(strings.TrimSpace(product.Category))
	product.Currency = strings.ToUpper(strings.TrimSpace(product.Currency))
	if product.Images == nil {
		product.Images = []string{}
	}
	if product.Variants == nil {
		product.Variants = []domain.Variant{}
	}
	if product.Items == nil {
		product.Items = []domain.SubProduct{}
	}
	if product.Details == nil {
		product.Details = map[string]any{}
	}
	return product
}

// slugify folds accented characters to their ASCII base before building the
// slug, so "Panier Noël" becomes "panier-noel" rather than "panier-no-l".
func slugify(name string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folder, name); err == nil {
		name = folded
	}
	lowered := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastHyphen := true
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func clampPagination(p domain.Pagination, def, max int) domain.Pagination {
	if p.PageSize <= 0 {
		p.PageSize = def
	}
	if p.PageSize > max {
		p.PageSize = max
	}
	p.PageToken = strings.TrimSpace(p.PageToken)
	return p
}
