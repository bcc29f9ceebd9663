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

const activityCollection = "activityLogs"

// ActivityRepository appends and lists immutable activity log rows.
type ActivityRepository struct {
	base *pfirestore.BaseRepository[activityDocument]
}

// NewActivityRepository constructs a Firestore-backed activity repository.
func NewActivityRepository(provider *pfirestore.Provider) (*ActivityRepository, error) {
	if provider == nil {
		return nil, errors.New("activity repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[activityDocument](provider, activityCollection, nil, nil)
	return &ActivityRepository{base: base}, nil
}

// Append writes a log entry under its pre-generated ID.
func (r *ActivityRepository) Append(ctx context.Context, entry domain.ActivityEntry) error {
	if r == nil || r.base == nil {
		return errors.New("activity repository not initialised")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		return errors.New("activity repository: entry id is required")
	}

	doc := activityDocument{
		Actor:     entry.Actor,
		ActorType: entry.ActorType,
		Action:    entry.Action,
		TargetRef: entry.TargetRef,
		Severity:  entry.Severity,
		RequestID: entry.RequestID,
		Metadata:  cloneAnyMap(entry.Metadata),
		IPHash:    entry.IPHash,
		UserAgent: entry.UserAgent,
		CreatedAt: entry.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := r.base.Set(ctx, id, doc)
	return err
}

// List pages entries newest first with optional equality filters and an
// inclusive created-at range.
func (r *ActivityRepository) List(ctx context.Context, filter repositories.ActivityFilter) (domain.CursorPage[domain.ActivityEntry], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.ActivityEntry]{}, errors.New("activity repository not initialised")
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
			return domain.CursorPage[domain.ActivityEntry]{}, fmt.Errorf("activity.list: invalid page token: %w", err)
		}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if action := strings.TrimSpace(filter.Action); action != "" {
			q = q.Where("action", "==", action)
		}
		if actor := strings.TrimSpace(filter.Actor); actor != "" {
			q = q.Where("actor", "==", actor)
		}
		if actorType := strings.TrimSpace(filter.ActorType); actorType != "" {
			q = q.Where("actorType", "==", actorType)
		}
		if target := strings.TrimSpace(filter.TargetRef); target != "" {
			q = q.Where("targetRef", "==", target)
		}
		if filter.DateRange.From != nil {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			q = q.Where("createdAt", "<=", filter.DateRange.To.UTC())
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
		return domain.CursorPage[domain.ActivityEntry]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken = encodeCursorToken(last.Data.CreatedAt, last.ID)
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.ActivityEntry, 0, len(docs))
	for _, doc := range docs {
		entry := toDomainActivity(doc.Data)
		entry.ID = doc.ID
		items = append(items, entry)
	}

	return domain.CursorPage[domain.ActivityEntry]{Items: items, NextPageToken: nextToken}, nil
}

type activityDocument struct {
	Actor     string         `firestore:"actor,omitempty"`
	ActorType string         `firestore:"actorType"`
	Action    string         `firestore:"action"`
	TargetRef string         `firestore:"targetRef,omitempty"`
	Severity  string         `firestore:"severity"`
	RequestID string         `firestore:"requestId,omitempty"`
	Metadata  map[string]any `firestore:"metadata,omitempty"`
	IPHash    string         `firestore:"ipHash,omitempty"`
	UserAgent string         `firestore:"userAgent,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

func toDomainActivity(doc activityDocument) domain.ActivityEntry {
	return domain.ActivityEntry{
		Actor:     doc.Actor,
		ActorType: doc.ActorType,
		Action:    doc.Action,
		TargetRef: doc.TargetRef,
		Severity:  doc.Severity,
		RequestID: doc.RequestID,
		Metadata:  cloneAnyMap(doc.Metadata),
		IPHash:    doc.IPHash,
		UserAgent: doc.UserAgent,
		CreatedAt: doc.CreatedAt,
	}
}

var _ repositories.ActivityRepository = (*ActivityRepository)(nil)
