package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const contentCollection = "pages"

// ContentRepository stores CMS pages keyed by their page key.
type ContentRepository struct {
	base *pfirestore.BaseRepository[pageDocument]
}

// NewContentRepository constructs a Firestore-backed content repository.
func NewContentRepository(provider *pfirestore.Provider) (*ContentRepository, error) {
	if provider == nil {
		return nil, errors.New("content repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[pageDocument](provider, contentCollection, nil, nil)
	return &ContentRepository{base: base}, nil
}

// GetPage loads a page by key.
func (r *ContentRepository) GetPage(ctx context.Context, key string) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	pageKey := strings.ToLower(strings.TrimSpace(key))
	if pageKey == "" {
		return domain.ContentPage{}, errors.New("content repository: page key is required")
	}

	doc, err := r.base.Get(ctx, pageKey)
	if err != nil {
		return domain.ContentPage{}, err
	}
	page := toDomainPage(doc.Data)
	page.Key = doc.ID
	return page, nil
}

// UpsertPage writes the page document.
func (r *ContentRepository) UpsertPage(ctx context.Context, page domain.ContentPage) (domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return domain.ContentPage{}, errors.New("content repository not initialised")
	}
	pageKey := strings.ToLower(strings.TrimSpace(page.Key))
	if pageKey == "" {
		return domain.ContentPage{}, errors.New("content repository: page key is required")
	}

	doc := pageDocument{
		Kind:      string(page.Kind),
		Title:     strings.TrimSpace(page.Title),
		HTML:      page.HTML,
		Sections:  cloneAnyMap(page.Sections),
		UpdatedBy: strings.TrimSpace(page.UpdatedBy),
		CreatedAt: page.CreatedAt.UTC(),
		UpdatedAt: page.UpdatedAt.UTC(),
	}

	if _, err := r.base.Set(ctx, pageKey, doc); err != nil {
		return domain.ContentPage{}, err
	}

	saved := toDomainPage(doc)
	saved.Key = pageKey
	return saved, nil
}

// ListPages returns every CMS page; the collection holds a handful of documents.
func (r *ContentRepository) ListPages(ctx context.Context) ([]domain.ContentPage, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("content repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy(firestore.DocumentID, firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	pages := make([]domain.ContentPage, 0, len(docs))
	for _, doc := range docs {
		page := toDomainPage(doc.Data)
		page.Key = doc.ID
		pages = append(pages, page)
	}
	return pages, nil
}

type pageDocument struct {
	Kind      string         `firestore:"kind"`
	Title     string         `firestore:"title,omitempty"`
	HTML      string         `firestore:"html,omitempty"`
	Sections  map[string]any `firestore:"sections,omitempty"`
	UpdatedBy string         `firestore:"updatedBy,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
	UpdatedAt time.Time      `firestore:"updatedAt"`
}

func toDomainPage(doc pageDocument) domain.ContentPage {
	return domain.ContentPage{
		Kind:      domain.ContentPageKind(doc.Kind),
		Title:     doc.Title,
		HTML:      doc.HTML,
		Sections:  cloneAnyMap(doc.Sections),
		UpdatedBy: doc.UpdatedBy,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

var _ repositories.ContentRepository = (*ContentRepository)(nil)
