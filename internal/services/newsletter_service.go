package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/maison-panier/api/internal/domain"
	"github.com/maison-panier/api/internal/repositories"
)

var (
	errNewsletterRepositoryRequired = errors.New("newsletter service: repository is required")
	errNewsletterClockRequired      = errors.New("newsletter service: clock is required")
)

// ErrNewsletterInvalidInput indicates a malformed email address.
var ErrNewsletterInvalidInput = errors.New("newsletter service: invalid input")

// ErrNewsletterAlreadySubscribed indicates the address is already on the list.
var ErrNewsletterAlreadySubscribed = errors.New("newsletter service: already subscribed")

// ErrNewsletterUnavailable indicates the subscription backend cannot fulfil the request.
var ErrNewsletterUnavailable = errors.New("newsletter service: unavailable")

// NewsletterServiceDeps wires persistence, mail and ambient dependencies.
type NewsletterServiceDeps struct {
	Repository  repositories.NewsletterRepository
	Mailer      Mailer
	Events      EventPublisher
	Clock       func() time.Time
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type newsletterService struct {
	repo   repositories.NewsletterRepository
	mailer Mailer
	events EventPublisher
	now    func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewNewsletterService constructs a NewsletterService enforcing dependency validation.
func NewNewsletterService(deps NewsletterServiceDeps) (NewsletterService, error) {
	if deps.Repository == nil {
		return nil, errNewsletterRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errNewsletterClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &newsletterService{
		repo:   deps.Repository,
		mailer: deps.Mailer,
		events: deps.Events,
		now:    func() time.Time { return deps.Clock().UTC() },
		newID:  idGen,
		logger: logger,
	}, nil
}

// Subscribe records an opt-in once per normalised address and sends the
// welcome mail. A failed welcome mail leaves the subscription in place.
func (s *newsletterService) Subscribe(ctx context.Context, cmd SubscribeCommand) (NewsletterSubscription, error) {
	if s == nil || s.repo == nil {
		return NewsletterSubscription{}, ErrNewsletterUnavailable
	}

	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" {
		return NewsletterSubscription{}, ErrNewsletterInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return NewsletterSubscription{}, fmt.Errorf("%w: malformed email address", ErrNewsletterInvalidInput)
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return NewsletterSubscription{}, ErrNewsletterAlreadySubscribed
	} else if !isRepoNotFound(err) {
		return NewsletterSubscription{}, ErrNewsletterUnavailable
	}

	sub := domain.NewsletterSubscription{
		ID:        s.newID(),
		Email:     email,
		Source:    strings.TrimSpace(cmd.Source),
		CreatedAt: s.now(),
	}

	saved, err := s.repo.Insert(ctx, sub)
	if err != nil {
		if isRepoConflict(err) {
			return NewsletterSubscription{}, ErrNewsletterAlreadySubscribed
		}
		return NewsletterSubscription{}, ErrNewsletterUnavailable
	}

	// When an event publisher is wired the welcome mail is delivered
	// asynchronously via the push subscription; the inline mailer covers
	// deployments without a broker.
	if s.mailer != nil && s.events == nil {
		if err := s.mailer.SendNewsletterWelcome(ctx, email); err != nil {
			s.logger(ctx, "newsletter.welcome_failed", map[string]any{
				"email": email,
				"error": err.Error(),
			})
		}
	}

	if s.events != nil {
		if _, err := s.events.Publish(ctx, StoreEvent{
			Kind:       "newsletter.subscribed",
			Subject:    saved.ID,
			OccurredAt: s.now(),
			Payload:    map[string]any{"email": saved.Email, "source": saved.Source},
		}); err != nil {
			s.logger(ctx, "newsletter.event_publish_failed", map[string]any{
				"email": email,
				"error": err.Error(),
			})
		}
	}

	return saved, nil
}
