package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const shippingRateCollection = "shippingRates"

// ShippingRateRepository lists delivery options per destination country.
// Rates are seeded by operations tooling and read-only for the API.
type ShippingRateRepository struct {
	base *pfirestore.BaseRepository[shippingRateDocument]
}

// NewShippingRateRepository constructs a Firestore-backed shipping rate repository.
func NewShippingRateRepository(provider *pfirestore.Provider) (*ShippingRateRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping rate repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shippingRateDocument](provider, shippingRateCollection, nil, nil)
	return &ShippingRateRepository{base: base}, nil
}

// ListByCountry returns the country's rates cheapest first, so the first
// entry doubles as the default selection.
func (r *ShippingRateRepository) ListByCountry(ctx context.Context, country string) ([]domain.ShippingRate, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("shipping rate repository not initialised")
	}
	code := strings.ToUpper(strings.TrimSpace(country))
	if code == "" {
		return nil, errors.New("shipping rate repository: country is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("country", "==", code).OrderBy("amount", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	rates := make([]domain.ShippingRate, 0, len(docs))
	for _, doc := range docs {
		rates = append(rates, domain.ShippingRate{
			ID:           doc.ID,
			Country:      doc.Data.Country,
			Method:       doc.Data.Method,
			Label:        doc.Data.Label,
			Amount:       doc.Data.Amount,
			Currency:     doc.Data.Currency,
			DeliveryDays: doc.Data.DeliveryDays,
		})
	}
	return rates, nil
}

type shippingRateDocument struct {
	Country      string `firestore:"country"`
	Method       string `firestore:"method"`
	Label        string `firestore:"label,omitempty"`
	Amount       int64  `firestore:"amount"`
	Currency     string `firestore:"currency"`
	DeliveryDays string `firestore:"deliveryDays,omitempty"`
}

var _ repositories.ShippingRateRepository = (*ShippingRateRepository)(nil)
