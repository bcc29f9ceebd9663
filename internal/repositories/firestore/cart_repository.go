package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts keyed by the owning user's UID. Lines are
// embedded in the cart document so every mutation replaces the full line set
// atomically.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

// GetCart loads the cart for the given user ID.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := toDomainCart(doc.Data)
	cart.ID = doc.ID
	cart.UserID = doc.ID
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = doc.UpdateTime
	}
	return cart, nil
}

// UpsertCart writes the full cart document.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.UserID)
	if uid == "" {
		uid = strings.TrimSpace(cart.ID)
	}
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc := fromDomainCart(cart)
	result, err := r.base.Set(ctx, uid, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := toDomainCart(doc)
	saved.ID = uid
	saved.UserID = uid
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// ReplaceItems swaps the cart's line set in a transaction, creating the cart
// document when the user has none yet.
func (r *CartRepository) ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, syncedAt *time.Time) (domain.Cart, error) {
	if r == nil || r.provider == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	var updated cartDocument

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.base.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}

		var doc cartDocument
		snap, err := tx.Get(docRef)
		switch {
		case err == nil:
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
			doc = cartDocument{Currency: "EUR", CreatedAt: now}
		default:
			return err
		}

		doc.Items = fromDomainCartItems(items)
		doc.UpdatedAt = now
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		if syncedAt != nil {
			at := syncedAt.UTC()
			doc.LastSyncedAt = &at
		}

		updated = doc
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return domain.Cart{}, pfirestore.WrapError("carts.replace_items", err)
	}

	cart := toDomainCart(updated)
	cart.ID = uid
	cart.UserID = uid
	return cart, nil
}

type cartDocument struct {
	Currency     string             `firestore:"currency"`
	Items        []cartItemDocument `firestore:"items"`
	LastSyncedAt *time.Time         `firestore:"lastSyncedAt,omitempty"`
	CreatedAt    time.Time          `firestore:"createdAt"`
	UpdatedAt    time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID          string              `firestore:"id"`
	ProductID   string              `firestore:"productId,omitempty"`
	Name        string              `firestore:"name"`
	Price       int64               `firestore:"price"`
	Image       string              `firestore:"image,omitempty"`
	Category    string              `firestore:"category,omitempty"`
	Description string              `firestore:"description,omitempty"`
	Quantity    int                 `firestore:"quantity"`
	VariantName string              `firestore:"variantName,omitempty"`
	CustomItems []selectionDocument `firestore:"customItems,omitempty"`
	BasketItems []selectionDocument `firestore:"basketItems,omitempty"`
	AddedAt     time.Time           `firestore:"addedAt"`
	UpdatedAt   *time.Time          `firestore:"updatedAt,omitempty"`
}

type selectionDocument struct {
	ID          string         `firestore:"id"`
	ProductID   string         `firestore:"productId,omitempty"`
	Name        string         `firestore:"name"`
	Price       int64          `firestore:"price"`
	Image       string         `firestore:"image,omitempty"`
	Category    string         `firestore:"category,omitempty"`
	VariantName string         `firestore:"variantName,omitempty"`
	Details     map[string]any `firestore:"details,omitempty"`
}

func fromDomainCart(cart domain.Cart) cartDocument {
	doc := cartDocument{
		Currency:  strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:     fromDomainCartItems(cart.Items),
		CreatedAt: cart.CreatedAt.UTC(),
		UpdatedAt: cart.UpdatedAt.UTC(),
	}
	if doc.Currency == "" {
		doc.Currency = "EUR"
	}
	if cart.LastSyncedAt != nil {
		at := cart.LastSyncedAt.UTC()
		doc.LastSyncedAt = &at
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	return doc
}

func fromDomainCartItems(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ID:          strings.TrimSpace(item.ID),
			ProductID:   strings.TrimSpace(item.ProductID),
			Name:        strings.TrimSpace(item.Name),
			Price:       item.Price,
			Image:       strings.TrimSpace(item.Image),
			Category:    strings.TrimSpace(item.Category),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			VariantName: strings.TrimSpace(item.VariantName),
			CustomItems: fromDomainSelections(item.CustomItems),
			BasketItems: fromDomainSelections(item.BasketItems),
			AddedAt:     item.AddedAt.UTC(),
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return docs
}

func fromDomainSelections(selections []domain.BasketSelection) []selectionDocument {
	if len(selections) == 0 {
		return nil
	}
	docs := make([]selectionDocument, 0, len(selections))
	for _, sel := range selections {
		docs = append(docs, selectionDocument{
			ID:          strings.TrimSpace(sel.ID),
			ProductID:   strings.TrimSpace(sel.ProductID),
			Name:        strings.TrimSpace(sel.Name),
			Price:       sel.Price,
			Image:       strings.TrimSpace(sel.Image),
			Category:    strings.TrimSpace(sel.Category),
			VariantName: strings.TrimSpace(sel.VariantName),
			Details:     cloneAnyMap(sel.Details),
		})
	}
	return docs
}

func toDomainCart(doc cartDocument) domain.Cart {
	cart := domain.Cart{
		Currency:     doc.Currency,
		Items:        toDomainCartItems(doc.Items),
		LastSyncedAt: doc.LastSyncedAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if cart.Currency == "" {
		cart.Currency = "EUR"
	}
	return cart
}

func toDomainCartItems(docs []cartItemDocument) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.CartItem{
			ID:          doc.ID,
			ProductID:   doc.ProductID,
			Name:        doc.Name,
			Price:       doc.Price,
			Image:       doc.Image,
			Category:    doc.Category,
			Description: doc.Description,
			Quantity:    doc.Quantity,
			VariantName: doc.VariantName,
			CustomItems: toDomainSelections(doc.CustomItems),
			BasketItems: toDomainSelections(doc.BasketItems),
			AddedAt:     doc.AddedAt,
			UpdatedAt:   doc.UpdatedAt,
		})
	}
	return items
}

func toDomainSelections(docs []selectionDocument) []domain.BasketSelection {
	if len(docs) == 0 {
		return nil
	}
	selections := make([]domain.BasketSelection, 0, len(docs))
	for _, doc := range docs {
		selections = append(selections, domain.BasketSelection{
			ID:          doc.ID,
			ProductID:   doc.ProductID,
			Name:        doc.Name,
			Price:       doc.Price,
			Image:       doc.Image,
			Category:    doc.Category,
			VariantName: doc.VariantName,
			Details:     cloneAnyMap(doc.Details),
		})
	}
	return selections
}

var _ repositories.CartRepository = (*CartRepository)(nil)
