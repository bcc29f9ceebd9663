package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartConflict indicates the cart could not be updated due to concurrent modifications.
var ErrCartConflict = errors.New("cart service: conflict")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

const maxCartLines = 100

// CartServiceDeps wires the repository and ambient dependencies for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Clock           func() time.Time
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	now      func() time.Time
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "EUR"
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:     deps.Repository,
		now:      func() time.Time { return deps.Clock().UTC() },
		currency: defaultCurrency,
		logger:   logger,
	}, nil
}

// GetCart loads the cart for the user, creating an empty cart when absent.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			saved, err := s.repo.UpsertCart(ctx, s.newCart(uid))
			if err != nil {
				return Cart{}, s.translateRepoError(err)
			}
			return s.normaliseCart(saved, uid), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, uid), nil
}

// AddItem appends a line or grows an existing one. When the command carries a
// positive TargetQuantity the matching line is set to that quantity instead
// of incremented, which keeps replayed client mutations idempotent.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	item, err := validateCartItem(cmd.Item)
	if err != nil {
		return Cart{}, err
	}
	if cmd.TargetQuantity < 0 {
		return Cart{}, fmt.Errorf("%w: target quantity must be non-negative", ErrCartInvalidInput)
	}

	cart, err := s.loadOrNew(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	items := cloneCartItems(cart.Items)
	now := s.now()

	idx := indexOfCartItem(items, item.ID)
	if idx >= 0 {
		if cmd.TargetQuantity > 0 {
			items[idx].Quantity = cmd.TargetQuantity
		} else {
			items[idx].Quantity += item.Quantity
		}
		ts := now
		items[idx].UpdatedAt = &ts
	} else {
		if len(items) >= maxCartLines {
			return Cart{}, fmt.Errorf("%w: cart holds at most %d lines", ErrCartInvalidInput, maxCartLines)
		}
		if cmd.TargetQuantity > 0 {
			item.Quantity = cmd.TargetQuantity
		}
		item.AddedAt = now
		items = append(items, item)
	}

	saved, err := s.repo.ReplaceItems(ctx, uid, items, nil)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, uid), nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, itemID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	target := strings.TrimSpace(itemID)
	if uid == "" || target == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, uid)

	items := cloneCartItems(cart.Items)
	idx := indexOfCartItem(items, target)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}
	items = append(items[:idx], items[idx+1:]...)

	saved, err := s.repo.ReplaceItems(ctx, uid, items, nil)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, uid), nil
}

// UpdateQuantity sets a line's quantity. Zero or negative removes the line.
func (s *cartService) UpdateQuantity(ctx context.Context, cmd UpdateQuantityCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	target := strings.TrimSpace(cmd.ItemID)
	if uid == "" || target == "" {
		return Cart{}, ErrCartInvalidInput
	}

	if cmd.Quantity <= 0 {
		return s.RemoveItem(ctx, uid, target)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrCartNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	cart = s.normaliseCart(cart, uid)

	items := cloneCartItems(cart.Items)
	idx := indexOfCartItem(items, target)
	if idx < 0 {
		return Cart{}, ErrCartNotFound
	}
	items[idx].Quantity = cmd.Quantity
	ts := s.now()
	items[idx].UpdatedAt = &ts

	saved, err := s.repo.ReplaceItems(ctx, uid, items, nil)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, uid), nil
}

func (s *cartService) ClearCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	saved, err := s.repo.ReplaceItems(ctx, uid, []domain.CartItem{}, nil)
	if err != nil {
		if isRepoNotFound(err) {
			return s.normaliseCart(s.newCart(uid), uid), nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(saved, uid), nil
}

// Sync reconciles a client-held cart against the server copy and returns the
// authoritative result. Lines present on both sides keep the larger quantity;
// lines only the client has are appended.
func (s *cartService) Sync(ctx context.Context, cmd SyncCartCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	incoming := make([]domain.CartItem, 0, len(cmd.Items))
	for _, raw := range cmd.Items {
		item, err := validateCartItem(raw)
		if err != nil {
			return Cart{}, err
		}
		incoming = append(incoming, item)
	}

	cart, err := s.loadOrNew(ctx, uid)
	if err != nil {
		return Cart{}, err
	}

	merged := mergeCartLines(cart.Items, incoming, s.now())
	if len(merged) > maxCartLines {
		return Cart{}, fmt.Errorf("%w: cart holds at most %d lines", ErrCartInvalidInput, maxCartLines)
	}

	syncedAt := s.now()
	saved, err := s.repo.ReplaceItems(ctx, uid, merged, &syncedAt)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}

	s.logger(ctx, "cart.synced", map[string]any{
		"userID":   uid,
		"incoming": len(incoming),
		"lines":    len(merged),
	})

	return s.normaliseCart(saved, uid), nil
}

// MergeGuestCart folds a guest-session cart into the user's server cart at
// login. An empty guest cart degrades to a plain fetch.
func (s *cartService) MergeGuestCart(ctx context.Context, cmd MergeCartCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	if len(cmd.Items) == 0 {
		return s.GetCart(ctx, uid)
	}

	return s.Sync(ctx, SyncCartCommand{UserID: uid, Items: cmd.Items})
}

func (s *cartService) loadOrNew(ctx context.Context, uid string) (domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.newCart(uid), nil
		}
		return domain.Cart{}, s.translateRepoError(err)
	}
	return s.normaliseCart(cart, uid), nil
}

func (s *cartService) newCart(userID string) domain.Cart {
	now := s.now()
	return domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *cartService) normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if cart.ID = strings.TrimSpace(cart.ID); cart.ID == "" {
		cart.ID = userID
	}
	cart.UserID = strings.TrimSpace(firstNonEmpty(cart.UserID, userID))
	cart.Currency = strings.ToUpper(strings.TrimSpace(firstNonEmpty(cart.Currency, s.currency)))
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = s.now()
	}
	if cart.UpdatedAt.IsZero() {
		cart.UpdatedAt = s.now()
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	return mapRepoError(err, ErrCartNotFound, ErrCartConflict, ErrCartUnavailable)
}

// mergeCartLines unions server and client lines by line ID. On quantity
// disagreement the larger quantity wins, which favours never losing an item
// the shopper added on either device.
func mergeCartLines(server, client []domain.CartItem, now time.Time) []domain.CartItem {
	merged := cloneCartItems(server)
	for _, incoming := range client {
		idx := indexOfCartItem(merged, incoming.ID)
		if idx < 0 {
			if incoming.AddedAt.IsZero() {
				incoming.AddedAt = now
			}
			merged = append(merged, incoming)
			continue
		}
		if incoming.Quantity > merged[idx].Quantity {
			merged[idx].Quantity = incoming.Quantity
			ts := now
			merged[idx].UpdatedAt = &ts
		}
	}
	return merged
}

func validateCartItem(item domain.CartItem) (domain.CartItem, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.ID = strings.TrimSpace(item.ID)
	item.Name = strings.TrimSpace(item.Name)
	item.VariantName = strings.TrimSpace(item.VariantName)
	item.Image = strings.TrimSpace(item.Image)
	item.Category = strings.ToLower(strings.TrimSpace(item.Category))

	if item.ID == "" {
		if item.ProductID == "" {
			return domain.CartItem{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
		}
		item.ID = composeLineID(item.ProductID, item.VariantName)
	}
	if item.Name == "" {
		return domain.CartItem{}, fmt.Errorf("%w: item name is required", ErrCartInvalidInput)
	}
	if item.Price < 0 {
		return domain.CartItem{}, fmt.Errorf("%w: item price must be non-negative", ErrCartInvalidInput)
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	return item, nil
}

func indexOfCartItem(items []domain.CartItem, itemID string) int {
	target := strings.TrimSpace(itemID)
	if target == "" {
		return -1
	}
	for i, item := range items {
		if strings.EqualFold(strings.TrimSpace(item.ID), target) {
			return i
		}
	}
	return -1
}

func cloneCartItems(items []domain.CartItem) []domain.CartItem {
	if len(items) == 0 {
		return []domain.CartItem{}
	}
	dup := make([]domain.CartItem, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].CustomItems = cloneSelections(dup[i].CustomItems)
		dup[i].BasketItems = cloneSelections(dup[i].BasketItems)
		if dup[i].UpdatedAt != nil {
			ts := dup[i].UpdatedAt.UTC()
			dup[i].UpdatedAt = &ts
		}
	}
	return dup
}

func cloneAnyMap(values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
