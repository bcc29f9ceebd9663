package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const basketCollection = "customBaskets"

// BasketRepository stores the transient custom-basket builder state, one
// document per user.
type BasketRepository struct {
	base *pfirestore.BaseRepository[basketDocument]
}

// NewBasketRepository constructs a Firestore-backed basket repository.
func NewBasketRepository(provider *pfirestore.Provider) (*BasketRepository, error) {
	if provider == nil {
		return nil, errors.New("basket repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[basketDocument](provider, basketCollection, nil, nil)
	return &BasketRepository{base: base}, nil
}

// Get loads the builder state for the given user.
func (r *BasketRepository) Get(ctx context.Context, userID string) (domain.CustomBasket, error) {
	if r == nil || r.base == nil {
		return domain.CustomBasket{}, errors.New("basket repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CustomBasket{}, errors.New("basket repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.CustomBasket{}, err
	}

	basket := domain.CustomBasket{
		UserID:        doc.ID,
		Type:          domain.BasketType(doc.Data.Type),
		SelectedItems: toDomainSelections(doc.Data.SelectedItems),
		PendingItems:  toDomainSelections(doc.Data.PendingItems),
		TotalPrice:    doc.Data.TotalPrice,
		CreatedAt:     doc.Data.CreatedAt,
		UpdatedAt:     doc.Data.UpdatedAt,
	}
	if basket.UpdatedAt.IsZero() {
		basket.UpdatedAt = doc.UpdateTime
	}
	return basket, nil
}

// Save writes the builder state.
func (r *BasketRepository) Save(ctx context.Context, basket domain.CustomBasket) (domain.CustomBasket, error) {
	if r == nil || r.base == nil {
		return domain.CustomBasket{}, errors.New("basket repository not initialised")
	}
	uid := strings.TrimSpace(basket.UserID)
	if uid == "" {
		return domain.CustomBasket{}, errors.New("basket repository: user id is required")
	}

	now := time.Now().UTC()
	doc := basketDocument{
		Type:          string(basket.Type),
		SelectedItems: fromDomainSelections(basket.SelectedItems),
		PendingItems:  fromDomainSelections(basket.PendingItems),
		TotalPrice:    basket.TotalPrice,
		CreatedAt:     basket.CreatedAt.UTC(),
		UpdatedAt:     now,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.CustomBasket{}, err
	}

	saved := basket
	saved.UserID = uid
	saved.CreatedAt = doc.CreatedAt
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// Delete removes the builder state; deleting an absent basket is not an error.
func (r *BasketRepository) Delete(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("basket repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("basket repository: user id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, uid)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("baskets.delete", err)
	}
	return nil
}

type basketDocument struct {
	Type          string              `firestore:"type,omitempty"`
	SelectedItems []selectionDocument `firestore:"selectedItems,omitempty"`
	PendingItems  []selectionDocument `firestore:"pendingItems,omitempty"`
	TotalPrice    int64               `firestore:"totalPrice"`
	CreatedAt     time.Time           `firestore:"createdAt"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
}

var _ repositories.BasketRepository = (*BasketRepository)(nil)
