package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errContentRepositoryRequired = errors.New("content service: repository is required")
	errContentClockRequired      = errors.New("content service: clock is required")
)

// ErrContentInvalidInput indicates the caller supplied invalid input.
var ErrContentInvalidInput = errors.New("content service: invalid input")

// ErrContentNotFound indicates the requested page does not exist.
var ErrContentNotFound = errors.New("content service: not found")

// ErrContentUnavailable indicates the content backend cannot fulfil the request.
var ErrContentUnavailable = errors.New("content service: unavailable")

const (
	maxPageTitleLength = 200
	maxPageHTMLLength  = 200_000
)

var pageKeyPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// ContentServiceDeps wires persistence and ambient dependencies for CMS pages.
type ContentServiceDeps struct {
	Repository repositories.ContentRepository
	Activity   ActivityService
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type contentService struct {
	repo     repositories.ContentRepository
	activity ActivityService
	policy   *bluemonday.Policy
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewContentService constructs a ContentService enforcing dependency validation.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Repository == nil {
		return nil, errContentRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errContentClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &contentService{
		repo:     deps.Repository,
		activity: deps.Activity,
		policy:   newPageHTMLPolicy(),
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

func (s *contentService) GetPage(ctx context.Context, key string) (ContentPage, error) {
	if s == nil || s.repo == nil {
		return ContentPage{}, ErrContentUnavailable
	}

	pageKey := strings.ToLower(strings.TrimSpace(key))
	if pageKey == "" {
		return ContentPage{}, ErrContentInvalidInput
	}

	page, err := s.repo.GetPage(ctx, pageKey)
	if err != nil {
		return ContentPage{}, s.translateRepoError(err)
	}
	return normalisePage(page), nil
}

func (s *contentService) ListPages(ctx context.Context) ([]ContentPage, error) {
	if s == nil || s.repo == nil {
		return nil, ErrContentUnavailable
	}

	pages, err := s.repo.ListPages(ctx)
	if err != nil {
		return nil, s.translateRepoError(err)
	}

	out := make([]domain.ContentPage, 0, len(pages))
	for _, page := range pages {
		out = append(out, normalisePage(page))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// UpsertPage writes a CMS page. HTML pages pass through the sanitizer on
// every write so stored markup is always safe to serve verbatim.
func (s *contentService) UpsertPage(ctx context.Context, cmd UpsertContentPageCommand) (ContentPage, error) {
	if s == nil || s.repo == nil {
		return ContentPage{}, ErrContentUnavailable
	}

	page := cmd.Page
	page.Key = strings.ToLower(strings.TrimSpace(page.Key))
	if !pageKeyPattern.MatchString(page.Key) {
		return ContentPage{}, fmt.Errorf("%w: page key must be lowercase letters, digits, hyphens or underscores", ErrContentInvalidInput)
	}

	page.Title = strings.TrimSpace(page.Title)
	if len(page.Title) > maxPageTitleLength {
		return ContentPage{}, fmt.Errorf("%w: title must be %d characters or fewer", ErrContentInvalidInput, maxPageTitleLength)
	}

	switch page.Kind {
	case domain.ContentKindHTML:
		html := strings.TrimSpace(page.HTML)
		if html == "" {
			return ContentPage{}, fmt.Errorf("%w: html body is required", ErrContentInvalidInput)
		}
		if len(html) > maxPageHTMLLength {
			return ContentPage{}, fmt.Errorf("%w: html body must be %d bytes or fewer", ErrContentInvalidInput, maxPageHTMLLength)
		}
		page.HTML = s.policy.Sanitize(html)
		page.Sections = nil
	case domain.ContentKindStructured:
		if len(page.Sections) == 0 {
			return ContentPage{}, fmt.Errorf("%w: sections are required", ErrContentInvalidInput)
		}
		page.Sections = cloneAnyMap(page.Sections)
		page.HTML = ""
	default:
		return ContentPage{}, fmt.Errorf("%w: unknown page kind %q", ErrContentInvalidInput, page.Kind)
	}

	now := s.now()
	if existing, err := s.repo.GetPage(ctx, page.Key); err == nil {
		page.CreatedAt = existing.CreatedAt
	} else if isRepoNotFound(err) {
		page.CreatedAt = now
	} else {
		return ContentPage{}, s.translateRepoError(err)
	}
	page.UpdatedAt = now
	page.UpdatedBy = strings.TrimSpace(cmd.ActorID)

	saved, err := s.repo.UpsertPage(ctx, page)
	if err != nil {
		return ContentPage{}, s.translateRepoError(err)
	}

	if s.activity != nil {
		s.activity.Record(ctx, ActivityRecord{
			Actor:      page.UpdatedBy,
			ActorType:  "admin",
			Action:     "content.updated",
			TargetRef:  "pages/" + saved.Key,
			Severity:   "info",
			OccurredAt: now,
			Metadata:   map[string]any{"kind": string(saved.Kind)},
		})
	}

	return normalisePage(saved), nil
}

func (s *contentService) translateRepoError(err error) error {
	return mapRepoError(err, ErrContentNotFound, ErrContentUnavailable, ErrContentUnavailable)
}

func normalisePage(page domain.ContentPage) domain.ContentPage {
	page.Key = strings.ToLower(strings.TrimSpace(page.Key))
	page.Title = strings.TrimSpace(page.Title)
	if page.Kind == domain.ContentKindStructured && page.Sections == nil {
		page.Sections = map[string]any{}
	}
	return page
}

func newPageHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("class").OnElements("figure", "figcaption", "p", "span")
	policy.AllowAttrs("loading").OnElements("img")
	policy.RequireNoFollowOnLinks(true)
	return policy
}
