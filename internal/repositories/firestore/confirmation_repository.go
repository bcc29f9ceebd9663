package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const confirmationCollection = "orderConfirmations"

// ConfirmationRepository tracks the per-intent confirmation email flag. The
// payment intent ID is the document ID, so MarkSent reduces to a create-only
// write: the AlreadyExists outcome is the duplicate signal, not an error.
type ConfirmationRepository struct {
	base *pfirestore.BaseRepository[confirmationDocument]
}

// NewConfirmationRepository constructs a Firestore-backed confirmation repository.
func NewConfirmationRepository(provider *pfirestore.Provider) (*ConfirmationRepository, error) {
	if provider == nil {
		return nil, errors.New("confirmation repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[confirmationDocument](provider, confirmationCollection, nil, nil)
	return &ConfirmationRepository{base: base}, nil
}

// MarkSent records the flag if absent. Returns true when this call created
// the flag, false when another caller got there first.
func (r *ConfirmationRepository) MarkSent(ctx context.Context, conf domain.OrderConfirmation) (bool, error) {
	if r == nil || r.base == nil {
		return false, errors.New("confirmation repository not initialised")
	}
	intentID := strings.TrimSpace(conf.PaymentIntentID)
	if intentID == "" {
		return false, errors.New("confirmation repository: payment intent id is required")
	}

	doc := confirmationDocument{
		UserID: strings.TrimSpace(conf.UserID),
		Email:  strings.ToLower(strings.TrimSpace(conf.Email)),
		SentAt: conf.SentAt.UTC(),
	}
	if doc.SentAt.IsZero() {
		doc.SentAt = time.Now().UTC()
	}

	docRef, err := r.base.DocumentRef(ctx, intentID)
	if err != nil {
		return false, err
	}
	if _, err := docRef.Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, pfirestore.WrapError("confirmations.mark_sent", err)
	}
	return true, nil
}

// Get loads the confirmation flag for an intent.
func (r *ConfirmationRepository) Get(ctx context.Context, paymentIntentID string) (domain.OrderConfirmation, error) {
	if r == nil || r.base == nil {
		return domain.OrderConfirmation{}, errors.New("confirmation repository not initialised")
	}
	intentID := strings.TrimSpace(paymentIntentID)
	if intentID == "" {
		return domain.OrderConfirmation{}, errors.New("confirmation repository: payment intent id is required")
	}

	doc, err := r.base.Get(ctx, intentID)
	if err != nil {
		return domain.OrderConfirmation{}, err
	}
	return domain.OrderConfirmation{
		PaymentIntentID: doc.ID,
		UserID:          doc.Data.UserID,
		Email:           doc.Data.Email,
		SentAt:          doc.Data.SentAt,
	}, nil
}

type confirmationDocument struct {
	UserID string    `firestore:"userId,omitempty"`
	Email  string    `firestore:"email,omitempty"`
	SentAt time.Time `firestore:"sentAt"`
}

var _ repositories.ConfirmationRepository = (*ConfirmationRepository)(nil)
