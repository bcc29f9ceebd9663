package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

const (
	defaultActivitySeverity  = "info"
	defaultActivityActorType = "unknown"
	ipHashPrefix             = "sha256:"
	defaultActivityPageSize  = 50
	maxActivityPageSize      = 200
)

// ActivityLogger defines the logging contract used by the activity writer.
type ActivityLogger interface {
	Warnf(format string, args ...any)
}

// ActivityServiceDeps bundles constructor inputs for the activity service.
type ActivityServiceDeps struct {
	Repository  repositories.ActivityRepository
	Clock       func() time.Time
	Logger      ActivityLogger
	HashSalt    string
	IDGenerator func() string
}

type activityService struct {
	repo     repositories.ActivityRepository
	clock    func() time.Time
	logger   ActivityLogger
	hashSalt string
	newID    func() string
}

// NewActivityService creates an activity log writer backed by the supplied repository.
func NewActivityService(deps ActivityServiceDeps) (ActivityService, error) {
	if deps.Repository == nil {
		return nil, fmt.Errorf("activity service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopActivityLogger{}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &activityService{
		repo:     deps.Repository,
		clock:    func() time.Time { return clock().UTC() },
		logger:   logger,
		hashSalt: deps.HashSalt,
		newID:    idGen,
	}, nil
}

// Record persists an activity entry after sanitising fields. Repository
// failures are logged but do not bubble up, so the primary mutation flow is
// never interrupted by a lost log row.
func (s *activityService) Record(ctx context.Context, record ActivityRecord) {
	if s == nil || s.repo == nil {
		return
	}
	entry := s.buildEntry(record)
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Warnf("activity append failed: %v", err)
	}
}

// List retrieves paginated activity entries with optional filters.
func (s *activityService) List(ctx context.Context, filter ActivityListFilter) (domain.CursorPage[ActivityEntry], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[ActivityEntry]{}, fmt.Errorf("activity service: repository is required")
	}
	return s.repo.List(ctx, repositories.ActivityFilter{
		Action:     strings.TrimSpace(filter.Action),
		Actor:      strings.TrimSpace(filter.Actor),
		ActorType:  strings.TrimSpace(filter.ActorType),
		TargetRef:  strings.TrimSpace(filter.TargetRef),
		DateRange:  filter.DateRange,
		Pagination: clampPagination(filter.Pagination, defaultActivityPageSize, maxActivityPageSize),
	})
}

func (s *activityService) buildEntry(record ActivityRecord) domain.ActivityEntry {
	now := s.clock()
	occurred := record.OccurredAt
	if occurred.IsZero() {
		occurred = now
	} else {
		occurred = occurred.UTC()
	}

	entry := domain.ActivityEntry{
		ID:        s.newID(),
		Actor:     truncateText(record.Actor, 160),
		ActorType: normaliseActorType(record.ActorType),
		Action:    truncateText(record.Action, 120),
		TargetRef: truncateText(record.TargetRef, 200),
		Severity:  normaliseSeverity(record.Severity),
		RequestID: truncateText(record.RequestID, 128),
		UserAgent: truncateText(record.UserAgent, 256),
		CreatedAt: occurred,
	}

	if len(record.Metadata) > 0 {
		meta := make(map[string]any, len(record.Metadata))
		for key, value := range record.Metadata {
			trimmedKey := truncateText(key, 80)
			if trimmedKey == "" {
				continue
			}
			if str, ok := value.(string); ok {
				meta[trimmedKey] = truncateText(str, 512)
			} else {
				meta[trimmedKey] = value
			}
		}
		if len(meta) > 0 {
			entry.Metadata = meta
		}
	}

	// Raw IPs never reach storage; a salted hash still lets operators
	// correlate entries from the same origin.
	if ip := strings.TrimSpace(record.IPAddress); ip != "" {
		entry.IPHash = ipHashPrefix + s.hashString(ip)
	}

	return entry
}

func (s *activityService) hashString(value string) string {
	sum := sha256.Sum256([]byte(s.hashSalt + strings.TrimSpace(value)))
	return hex.EncodeToString(sum[:])
}

type noopActivityLogger struct{}

func (noopActivityLogger) Warnf(string, ...any) {}

func normaliseActorType(actorType string) string {
	switch strings.ToLower(strings.TrimSpace(actorType)) {
	case "customer", "admin", "moderator", "system", "service":
		return strings.ToLower(strings.TrimSpace(actorType))
	default:
		return defaultActivityActorType
	}
}

func normaliseSeverity(severity string) string {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return defaultActivitySeverity
	}
}

func truncateText(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit > 0 && len(trimmed) > limit {
		return trimmed[:limit]
	}
	return trimmed
}
