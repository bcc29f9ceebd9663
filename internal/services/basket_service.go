package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errBasketRepositoryRequired = errors.New("basket service: repository is required")
	errBasketCartRequired       = errors.New("basket service: cart service is required")
	errBasketClockRequired      = errors.New("basket service: clock is required")
)

// ErrBasketInvalidInput indicates the caller supplied invalid input.
var ErrBasketInvalidInput = errors.New("basket service: invalid input")

// ErrBasketNotFound indicates no active basket exists for the user.
var ErrBasketNotFound = errors.New("basket service: not found")

// ErrBasketUnavailable indicates the basket backend cannot fulfil the request.
var ErrBasketUnavailable = errors.New("basket service: unavailable")

// ErrBasketTypeRequired indicates an item was added before a basket colour was chosen.
var ErrBasketTypeRequired = errors.New("basket service: basket type not chosen")

// ErrBasketDuplicateItem indicates the selection already holds the item.
var ErrBasketDuplicateItem = errors.New("basket service: item already selected")

// ErrBasketFull indicates the selection already holds the maximum number of items.
var ErrBasketFull = errors.New("basket service: selection is full")

// ErrBasketTooSmall indicates the selection has fewer items than a basket requires.
var ErrBasketTooSmall = errors.New("basket service: selection below minimum")

var basketTypeImages = map[domain.BasketType]string{
	domain.BasketTypeNatural: "/images/baskets/natural.webp",
	domain.BasketTypeBlack:   "/images/baskets/black.webp",
}

// BasketServiceDeps wires persistence, the cart, and ambient dependencies.
type BasketServiceDeps struct {
	Repository  repositories.BasketRepository
	Cart        CartService
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type basketService struct {
	repo   repositories.BasketRepository
	cart   CartService
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewBasketService constructs a BasketService enforcing dependency validation.
func NewBasketService(deps BasketServiceDeps) (BasketService, error) {
	if deps.Repository == nil {
		return nil, errBasketRepositoryRequired
	}
	if deps.Cart == nil {
		return nil, errBasketCartRequired
	}
	if deps.Clock == nil {
		return nil, errBasketClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &basketService{
		repo:   deps.Repository,
		cart:   deps.Cart,
		now:    func() time.Time { return deps.Clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *basketService) GetBasket(ctx context.Context, userID string) (CustomBasket, error) {
	if s == nil || s.repo == nil {
		return CustomBasket{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return CustomBasket{}, ErrBasketInvalidInput
	}

	basket, err := s.repo.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyBasket(uid), nil
		}
		return CustomBasket{}, s.translateRepoError(err)
	}
	return normaliseBasket(basket, uid), nil
}

// SetBasketType chooses the basket colour. Any items queued before the choice
// are flushed into the selection, subject to the same duplicate and capacity
// rules as a direct add.
func (s *basketService) SetBasketType(ctx context.Context, cmd SetBasketTypeCommand) (BasketTypeResult, error) {
	if s == nil || s.repo == nil {
		return BasketTypeResult{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return BasketTypeResult{}, ErrBasketInvalidInput
	}
	if !cmd.Type.Valid() {
		return BasketTypeResult{}, fmt.Errorf("%w: unknown basket type %q", ErrBasketInvalidInput, cmd.Type)
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return BasketTypeResult{}, err
	}

	basket.Type = cmd.Type
	flushed := 0
	for _, pending := range basket.PendingItems {
		if len(basket.SelectedItems) >= domain.MaxBasketSelection {
			break
		}
		if indexOfSelection(basket.SelectedItems, pending.ID) >= 0 {
			continue
		}
		basket.SelectedItems = append(basket.SelectedItems, pending)
		flushed++
	}
	basket.PendingItems = []domain.BasketSelection{}
	basket.TotalPrice = selectionTotal(basket.SelectedItems)
	basket.UpdatedAt = s.now()
	if basket.CreatedAt.IsZero() {
		basket.CreatedAt = basket.UpdatedAt
	}

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return BasketTypeResult{}, s.translateRepoError(err)
	}

	s.logger(ctx, "basket.type_chosen", map[string]any{
		"userID":  uid,
		"type":    string(cmd.Type),
		"flushed": flushed,
	})

	return BasketTypeResult{Basket: normaliseBasket(saved, uid), Flushed: flushed}, nil
}

// QueueItem parks a selection until a basket colour is chosen. When a colour
// already exists the item goes straight into the selection.
func (s *basketService) QueueItem(ctx context.Context, cmd BasketItemCommand) (CustomBasket, error) {
	if s == nil || s.repo == nil {
		return CustomBasket{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CustomBasket{}, ErrBasketInvalidInput
	}
	item, err := validateSelection(cmd.Item)
	if err != nil {
		return CustomBasket{}, err
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return CustomBasket{}, err
	}

	if basket.HasType() {
		return s.addToSelection(ctx, basket, item)
	}

	if indexOfSelection(basket.PendingItems, item.ID) >= 0 {
		return CustomBasket{}, ErrBasketDuplicateItem
	}
	basket.PendingItems = append(basket.PendingItems, item)
	basket.UpdatedAt = s.now()
	if basket.CreatedAt.IsZero() {
		basket.CreatedAt = basket.UpdatedAt
	}

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return CustomBasket{}, s.translateRepoError(err)
	}
	return normaliseBasket(saved, uid), nil
}

func (s *basketService) AddItem(ctx context.Context, cmd BasketItemCommand) (CustomBasket, error) {
	if s == nil || s.repo == nil {
		return CustomBasket{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return CustomBasket{}, ErrBasketInvalidInput
	}
	item, err := validateSelection(cmd.Item)
	if err != nil {
		return CustomBasket{}, err
	}

	basket, err := s.loadOrEmpty(ctx, uid)
	if err != nil {
		return CustomBasket{}, err
	}

	if !basket.HasType() {
		return CustomBasket{}, ErrBasketTypeRequired
	}

	return s.addToSelection(ctx, basket, item)
}

func (s *basketService) addToSelection(ctx context.Context, basket domain.CustomBasket, item domain.BasketSelection) (CustomBasket, error) {
	if indexOfSelection(basket.SelectedItems, item.ID) >= 0 {
		return CustomBasket{}, ErrBasketDuplicateItem
	}
	if len(basket.SelectedItems) >= domain.MaxBasketSelection {
		return CustomBasket{}, ErrBasketFull
	}

	basket.SelectedItems = append(basket.SelectedItems, item)
	basket.TotalPrice = selectionTotal(basket.SelectedItems)
	basket.UpdatedAt = s.now()
	if basket.CreatedAt.IsZero() {
		basket.CreatedAt = basket.UpdatedAt
	}

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return CustomBasket{}, s.translateRepoError(err)
	}
	return normaliseBasket(saved, basket.UserID), nil
}

func (s *basketService) RemoveItem(ctx context.Context, userID string, itemID string) (CustomBasket, error) {
	if s == nil || s.repo == nil {
		return CustomBasket{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(userID)
	target := strings.TrimSpace(itemID)
	if uid == "" || target == "" {
		return CustomBasket{}, ErrBasketInvalidInput
	}

	basket, err := s.repo.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return CustomBasket{}, ErrBasketNotFound
		}
		return CustomBasket{}, s.translateRepoError(err)
	}
	basket = normaliseBasket(basket, uid)

	if idx := indexOfSelection(basket.SelectedItems, target); idx >= 0 {
		basket.SelectedItems = append(basket.SelectedItems[:idx], basket.SelectedItems[idx+1:]...)
	} else if idx := indexOfSelection(basket.PendingItems, target); idx >= 0 {
		basket.PendingItems = append(basket.PendingItems[:idx], basket.PendingItems[idx+1:]...)
	} else {
		return CustomBasket{}, ErrBasketNotFound
	}

	basket.TotalPrice = selectionTotal(basket.SelectedItems)
	basket.UpdatedAt = s.now()

	saved, err := s.repo.Save(ctx, basket)
	if err != nil {
		return CustomBasket{}, s.translateRepoError(err)
	}
	return normaliseBasket(saved, uid), nil
}

func (s *basketService) ClearBasket(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrBasketUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrBasketInvalidInput
	}

	if err := s.repo.Delete(ctx, uid); err != nil && !isRepoNotFound(err) {
		return s.translateRepoError(err)
	}
	return nil
}

// ConvertToCartLine turns the finished selection into a single synthetic cart
// line and clears the basket. The basket is cleared only after the cart write
// succeeds, so a failed add leaves the builder state intact.
func (s *basketService) ConvertToCartLine(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil || s.cart == nil {
		return Cart{}, ErrBasketUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrBasketInvalidInput
	}

	basket, err := s.repo.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{}, ErrBasketNotFound
		}
		return Cart{}, s.translateRepoError(err)
	}
	basket = normaliseBasket(basket, uid)

	if !basket.HasType() {
		return Cart{}, ErrBasketTypeRequired
	}
	if len(basket.SelectedItems) < domain.MinBasketSelection {
		return Cart{}, ErrBasketTooSmall
	}
	if len(basket.SelectedItems) > domain.MaxBasketSelection {
		return Cart{}, fmt.Errorf("%w: selection exceeds %d items", ErrBasketInvalidInput, domain.MaxBasketSelection)
	}

	now := s.now()
	line := domain.CartItem{
		ID:          "custom-basket-" + s.newID(),
		Name:        basketDisplayName(basket.Type),
		Price:       selectionTotal(basket.SelectedItems),
		Image:       basketTypeImages[basket.Type],
		Category:    "custom-basket",
		Quantity:    1,
		CustomItems: cloneSelections(basket.SelectedItems),
		AddedAt:     now,
	}

	cart, err := s.cart.AddItem(ctx, AddCartItemCommand{UserID: uid, Item: line})
	if err != nil {
		return Cart{}, err
	}

	if err := s.repo.Delete(ctx, uid); err != nil && !isRepoNotFound(err) {
		// Cart write already landed, so surface the cart and only log the
		// stale builder state.
		s.logger(ctx, "basket.clear_failed", map[string]any{
			"userID": uid,
			"error":  err.Error(),
		})
	}

	s.logger(ctx, "basket.converted", map[string]any{
		"userID": uid,
		"type":   string(basket.Type),
		"items":  len(basket.SelectedItems),
		"total":  line.Price,
	})

	return cart, nil
}

func (s *basketService) loadOrEmpty(ctx context.Context, uid string) (domain.CustomBasket, error) {
	basket, err := s.repo.Get(ctx, uid)
	if err != nil {
		if isRepoNotFound(err) {
			return s.emptyBasket(uid), nil
		}
		return domain.CustomBasket{}, s.translateRepoError(err)
	}
	return normaliseBasket(basket, uid), nil
}

func (s *basketService) emptyBasket(uid string) domain.CustomBasket {
	now := s.now()
	return domain.CustomBasket{
		UserID:        uid,
		SelectedItems: []domain.BasketSelection{},
		PendingItems:  []domain.BasketSelection{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *basketService) translateRepoError(err error) error {
	return mapRepoError(err, ErrBasketNotFound, ErrBasketUnavailable, ErrBasketUnavailable)
}

func basketDisplayName(t domain.BasketType) string {
	switch t {
	case domain.BasketTypeBlack:
		return "Custom Black Basket"
	default:
		return "Custom Natural Basket"
	}
}

func validateSelection(item domain.BasketSelection) (domain.BasketSelection, error) {
	item.ID = strings.TrimSpace(item.ID)
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.Name = strings.TrimSpace(item.Name)
	item.VariantName = strings.TrimSpace(item.VariantName)
	item.Image = strings.TrimSpace(item.Image)
	item.Category = strings.ToLower(strings.TrimSpace(item.Category))

	if item.ID == "" {
		if item.ProductID == "" {
			return domain.BasketSelection{}, fmt.Errorf("%w: item id is required", ErrBasketInvalidInput)
		}
		item.ID = composeLineID(item.ProductID, item.VariantName)
	}
	if item.Name == "" {
		return domain.BasketSelection{}, fmt.Errorf("%w: item name is required", ErrBasketInvalidInput)
	}
	if item.Price < 0 {
		return domain.BasketSelection{}, fmt.Errorf("%w: item price must be non-negative", ErrBasketInvalidInput)
	}
	return item, nil
}

// composeLineID builds the canonical line identity: the product ID plus a
// slugged variant suffix when a variant was chosen.
func composeLineID(productID, variantName string) string {
	id := strings.TrimSpace(productID)
	if variant := slugify(variantName); variant != "" {
		id += "-" + variant
	}
	return id
}

func indexOfSelection(items []domain.BasketSelection, itemID string) int {
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

func selectionTotal(items []domain.BasketSelection) int64 {
	var total int64
	for _, item := range items {
		if item.Price > 0 {
			total += item.Price
		}
	}
	return total
}

func cloneSelections(items []domain.BasketSelection) []domain.BasketSelection {
	if len(items) == 0 {
		return []domain.BasketSelection{}
	}
	dup := make([]domain.BasketSelection, len(items))
	copy(dup, items)
	for i := range dup {
		dup[i].Details = cloneAnyMap(dup[i].Details)
	}
	return dup
}

func normaliseBasket(basket domain.CustomBasket, uid string) domain.CustomBasket {
	if strings.TrimSpace(basket.UserID) == "" {
		basket.UserID = uid
	}
	if basket.SelectedItems == nil {
		basket.SelectedItems = []domain.BasketSelection{}
	}
	if basket.PendingItems == nil {
		basket.PendingItems = []domain.BasketSelection{}
	}
	basket.TotalPrice = selectionTotal(basket.SelectedItems)
	return basket
}
