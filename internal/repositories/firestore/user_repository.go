package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/maison-panier/api/internal/domain"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/repositories"
)

const userCollection = "users"

// UserRepository persists profiles mirrored from the identity provider, one
// document per UID.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

// NewUserRepository constructs a Firestore-backed user repository.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[userDocument](provider, userCollection, nil, nil)
	return &UserRepository{base: base}, nil
}

// FindByUID loads the profile for a UID.
func (r *UserRepository) FindByUID(ctx context.Context, uid string) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	trimmed := strings.TrimSpace(uid)
	if trimmed == "" {
		return domain.UserProfile{}, errors.New("user repository: uid is required")
	}

	doc, err := r.base.Get(ctx, trimmed)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile := toDomainUser(doc.Data)
	profile.UID = doc.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = doc.CreateTime
	}
	return profile, nil
}

// Upsert writes the profile document.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if r == nil || r.base == nil {
		return domain.UserProfile{}, errors.New("user repository not initialised")
	}
	uid := strings.TrimSpace(profile.UID)
	if uid == "" {
		return domain.UserProfile{}, errors.New("user repository: uid is required")
	}

	now := time.Now().UTC()
	doc := userDocument{
		Email:       strings.ToLower(strings.TrimSpace(profile.Email)),
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Role:        string(profile.Role),
		Verified:    profile.Verified,
		Disabled:    profile.Disabled,
		CreatedAt:   profile.CreatedAt.UTC(),
		UpdatedAt:   profile.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	if _, err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.UserProfile{}, err
	}

	saved := toDomainUser(doc)
	saved.UID = uid
	return saved, nil
}

// List pages profiles ordered by creation time, newest first. The free-text
// query matches email and display name in memory.
func (r *UserRepository) List(ctx context.Context, filter repositories.UserListFilter) (domain.CursorPage[domain.UserProfile], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.UserProfile]{}, errors.New("user repository not initialised")
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
			return domain.CursorPage[domain.UserProfile]{}, fmt.Errorf("users.list: invalid page token: %w", err)
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if role := strings.TrimSpace(filter.Role); role != "" {
			q = q.Where("role", "==", role)
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
		return domain.CursorPage[domain.UserProfile]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeCursorToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	items := make([]domain.UserProfile, 0, len(docs))
	for _, doc := range docs {
		profile := toDomainUser(doc.Data)
		profile.UID = doc.ID
		if query != "" &&
			!strings.Contains(strings.ToLower(profile.Email), query) &&
			!strings.Contains(strings.ToLower(profile.DisplayName), query) {
			continue
		}
		items = append(items, profile)
	}

	return domain.CursorPage[domain.UserProfile]{Items: items, NextPageToken: nextToken}, nil
}

// Delete removes the profile document.
func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	if r == nil || r.base == nil {
		return errors.New("user repository not initialised")
	}
	trimmed := strings.TrimSpace(uid)
	if trimmed == "" {
		return errors.New("user repository: uid is required")
	}
	docRef, err := r.base.DocumentRef(ctx, trimmed)
	if err != nil {
		return err
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("users.delete", err)
	}
	return nil
}

type userDocument struct {
	Email       string    `firestore:"email,omitempty"`
	DisplayName string    `firestore:"displayName,omitempty"`
	Role        string    `firestore:"role"`
	Verified    bool      `firestore:"verified"`
	Disabled    bool      `firestore:"disabled"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func toDomainUser(doc userDocument) domain.UserProfile {
	return domain.UserProfile{
		Email:       doc.Email,
		DisplayName: doc.DisplayName,
		Role:        domain.UserRole(doc.Role),
		Verified:    doc.Verified,
		Disabled:    doc.Disabled,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)
