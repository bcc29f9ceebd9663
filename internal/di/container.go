package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maison-panier/api/internal/payments"
	"github.com/maison-panier/api/internal/platform/config"
	"github.com/maison-panier/api/internal/repositories"
	"github.com/maison-panier/api/internal/services"
)

// Repositories bundles the persistence contracts the service layer consumes.
// Production wiring fills these with Firestore-backed implementations; tests
// may supply stubs for individual slots.
type Repositories struct {
	Products      repositories.ProductRepository
	Carts         repositories.CartRepository
	Baskets       repositories.BasketRepository
	Content       repositories.ContentRepository
	Users         repositories.UserRepository
	Activity      repositories.ActivityRepository
	Newsletter    repositories.NewsletterRepository
	Confirmations repositories.ConfirmationRepository
	ShippingRates repositories.ShippingRateRepository
	Assets        repositories.AssetRepository
	Health        repositories.HealthRepository
}

// Infrastructure carries the non-persistence collaborators: payment intents,
// outbound mail, the event broker, and ambient concerns shared by every
// service.
type Infrastructure struct {
	Payments *payments.Manager
	Mailer   services.Mailer
	Events   services.EventPublisher

	Logger         func(ctx context.Context, event string, fields map[string]any)
	ActivityLogger services.ActivityLogger

	Clock       func() time.Time
	IDGenerator func() string

	// HashSalt anonymises client addresses recorded in the activity log.
	HashSalt string

	Build services.BuildInfo
}

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog    services.CatalogService
	Cart       services.CartService
	Basket     services.BasketService
	Checkout   services.CheckoutService
	Currency   services.CurrencyService
	Shipping   services.ShippingService
	Content    services.ContentService
	Users      services.UserService
	Activity   services.ActivityService
	Newsletter services.NewsletterService
	Assets     services.AssetService
	System     services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories Repositories
	Services     Services
}

// NewContainer assembles the service graph from the provided repositories and
// infrastructure. The catalog and cart slots are mandatory; optional slots
// (assets, health, checkout chain) are skipped when their dependencies are
// absent so local setups can run a reduced surface.
func NewContainer(cfg config.Config, repos Repositories, infra Infrastructure) (*Container, error) {
	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}

	svc, err := buildServices(cfg, repos, infra, clock)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: repos,
		Services:     svc,
	}, nil
}

func buildServices(cfg config.Config, repos Repositories, infra Infrastructure, clock func() time.Time) (Services, error) {
	var svc Services

	currency, err := services.NewCurrencyService(services.CurrencyServiceDeps{
		Base:  cfg.Currency.Base,
		Rates: cfg.Currency.Rates,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build currency service: %w", err)
	}
	svc.Currency = currency

	if repos.Activity != nil {
		activity, err := services.NewActivityService(services.ActivityServiceDeps{
			Repository:  repos.Activity,
			Clock:       clock,
			Logger:      infra.ActivityLogger,
			HashSalt:    infra.HashSalt,
			IDGenerator: infra.IDGenerator,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build activity service: %w", err)
		}
		svc.Activity = activity
	}

	if repos.Products == nil {
		return Services{}, errors.New("di: product repository is required")
	}
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository:  repos.Products,
		Activity:    svc.Activity,
		Clock:       clock,
		Logger:      infra.Logger,
		IDGenerator: infra.IDGenerator,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	if repos.Carts == nil {
		return Services{}, errors.New("di: cart repository is required")
	}
	cart, err := services.NewCartService(services.CartServiceDeps{
		Repository:      repos.Carts,
		Clock:           clock,
		DefaultCurrency: cfg.Currency.Base,
		Logger:          infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	if repos.Baskets != nil {
		basket, err := services.NewBasketService(services.BasketServiceDeps{
			Repository:  repos.Baskets,
			Cart:        svc.Cart,
			Clock:       clock,
			Logger:      infra.Logger,
			IDGenerator: infra.IDGenerator,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build basket service: %w", err)
		}
		svc.Basket = basket
	}

	if repos.ShippingRates != nil {
		shipping, err := services.NewShippingService(services.ShippingServiceDeps{
			Repository: repos.ShippingRates,
			Currency:   svc.Currency,
			Logger:     infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build shipping service: %w", err)
		}
		svc.Shipping = shipping
	}

	if repos.Confirmations != nil && infra.Payments != nil && svc.Shipping != nil {
		checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Cart:          svc.Cart,
			Payments:      infra.Payments,
			Shipping:      svc.Shipping,
			Currency:      svc.Currency,
			Confirmations: repos.Confirmations,
			Mailer:        infra.Mailer,
			Activity:      svc.Activity,
			Events:        infra.Events,
			Clock:         clock,
			Logger:        infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkout
	}

	if repos.Content != nil {
		content, err := services.NewContentService(services.ContentServiceDeps{
			Repository: repos.Content,
			Activity:   svc.Activity,
			Clock:      clock,
			Logger:     infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build content service: %w", err)
		}
		svc.Content = content
	}

	if repos.Users != nil {
		users, err := services.NewUserService(services.UserServiceDeps{
			Repository: repos.Users,
			Activity:   svc.Activity,
			Clock:      clock,
			Logger:     infra.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build user service: %w", err)
		}
		svc.Users = users
	}

	if repos.Newsletter != nil {
		newsletter, err := services.NewNewsletterService(services.NewsletterServiceDeps{
			Repository:  repos.Newsletter,
			Mailer:      infra.Mailer,
			Events:      infra.Events,
			Clock:       clock,
			Logger:      infra.Logger,
			IDGenerator: infra.IDGenerator,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build newsletter service: %w", err)
		}
		svc.Newsletter = newsletter
	}

	if repos.Assets != nil {
		assets, err := services.NewAssetService(services.AssetServiceDeps{
			Repository:  repos.Assets,
			Clock:       clock,
			TTL:         cfg.Storage.SignedURLTTL,
			Logger:      infra.Logger,
			IDGenerator: infra.IDGenerator,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build asset service: %w", err)
		}
		svc.Assets = assets
	}

	if repos.Health != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: repos.Health,
			Clock:            clock,
			Build:            infra.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
