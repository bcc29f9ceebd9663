package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const newsletterCollection = "newsletterSubscribers"

// NewsletterRepository stores opt-ins. The document ID is a hash of the
// normalised email, which makes uniqueness a plain create-only write.
type NewsletterRepository struct {
	base *pfirestore.BaseRepository[newsletterDocument]
}

// NewNewsletterRepository constructs a Firestore-backed newsletter repository.
func NewNewsletterRepository(provider *pfirestore.Provider) (*NewsletterRepository, error) {
	if provider == nil {
		return nil, errors.New("newsletter repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[newsletterDocument](provider, newsletterCollection, nil, nil)
	return &NewsletterRepository{base: base}, nil
}

// FindByEmail looks up a subscription by normalised address.
func (r *NewsletterRepository) FindByEmail(ctx context.Context, email string) (domain.NewsletterSubscription, error) {
	if r == nil || r.base == nil {
		return domain.NewsletterSubscription{}, errors.New("newsletter repository not initialised")
	}
	normalised := strings.ToLower(strings.TrimSpace(email))
	if normalised == "" {
		return domain.NewsletterSubscription{}, errors.New("newsletter repository: email is required")
	}

	doc, err := r.base.Get(ctx, emailDocID(normalised))
	if err != nil {
		return domain.NewsletterSubscription{}, err
	}
	return toDomainSubscription(doc.Data), nil
}

// Insert writes the subscription, failing with a conflict when the address
// is already present.
func (r *NewsletterRepository) Insert(ctx context.Context, sub domain.NewsletterSubscription) (domain.NewsletterSubscription, error) {
	if r == nil || r.base == nil {
		return domain.NewsletterSubscription{}, errors.New("newsletter repository not initialised")
	}
	normalised := strings.ToLower(strings.TrimSpace(sub.Email))
	if normalised == "" {
		return domain.NewsletterSubscription{}, errors.New("newsletter repository: email is required")
	}

	doc := newsletterDocument{
		SubscriptionID: strings.TrimSpace(sub.ID),
		Email:          normalised,
		Source:         strings.TrimSpace(sub.Source),
		CreatedAt:      sub.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	docRef, err := r.base.DocumentRef(ctx, emailDocID(normalised))
	if err != nil {
		return domain.NewsletterSubscription{}, err
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		return domain.NewsletterSubscription{}, pfirestore.WrapError("newsletter.insert", err)
	}
	return toDomainSubscription(doc), nil
}

func emailDocID(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}

type newsletterDocument struct {
	SubscriptionID string    `firestore:"subscriptionId"`
	Email          string    `firestore:"email"`
	Source         string    `firestore:"source,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
}

func toDomainSubscription(doc newsletterDocument) domain.NewsletterSubscription {
	return domain.NewsletterSubscription{
		ID:        doc.SubscriptionID,
		Email:     doc.Email,
		Source:    doc.Source,
		CreatedAt: doc.CreatedAt,
	}
}

var _ repositories.NewsletterRepository = (*NewsletterRepository)(nil)
