package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/maison-panier/api/internal/di"
	"github.com/maison-panier/api/internal/handlers"
	"github.com/maison-panier/api/internal/payments"
	"github.com/maison-panier/api/internal/platform/auth"
	"github.com/maison-panier/api/internal/platform/config"
	pfirestore "github.com/maison-panier/api/internal/platform/firestore"
	"github.com/maison-panier/api/internal/platform/idempotency"
	"github.com/maison-panier/api/internal/platform/jobs"
	"github.com/maison-panier/api/internal/platform/mailer"
	"github.com/maison-panier/api/internal/platform/observability"
	"github.com/maison-panier/api/internal/platform/secrets"
	platformstorage "github.com/maison-panier/api/internal/platform/storage"
	"github.com/maison-panier/api/internal/repositories"
	firestoreRepo "github.com/maison-panier/api/internal/repositories/firestore"
	"github.com/maison-panier/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	requiredSecrets := requiredSecretNames(envValues)
	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecrets...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	productRepo, err := firestoreRepo.NewProductRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise product repository", zap.Error(err))
	}
	cartRepo, err := firestoreRepo.NewCartRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise cart repository", zap.Error(err))
	}
	basketRepo, err := firestoreRepo.NewBasketRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise basket repository", zap.Error(err))
	}
	contentRepo, err := firestoreRepo.NewContentRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise content repository", zap.Error(err))
	}
	userRepo, err := firestoreRepo.NewUserRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise user repository", zap.Error(err))
	}
	activityRepo, err := firestoreRepo.NewActivityRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise activity repository", zap.Error(err))
	}
	newsletterRepo, err := firestoreRepo.NewNewsletterRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise newsletter repository", zap.Error(err))
	}
	confirmationRepo, err := firestoreRepo.NewConfirmationRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise confirmation repository", zap.Error(err))
	}
	shippingRepo, err := firestoreRepo.NewShippingRateRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise shipping rate repository", zap.Error(err))
	}

	var assetRepo repositories.AssetRepository
	if signerKeyFile := strings.TrimSpace(cfg.Storage.SignerKeyFile); signerKeyFile != "" {
		signer, err := platformstorage.NewServiceAccountSignerFromFile(signerKeyFile)
		if err != nil {
			logger.Fatal("failed to load storage signer key", zap.Error(err))
		}
		signedURLClient, err := platformstorage.NewClient(signer)
		if err != nil {
			logger.Fatal("failed to initialise signed url client", zap.Error(err))
		}
		assetRepo, err = firestoreRepo.NewAssetRepository(firestoreProvider, signedURLClient, cfg.Storage.AssetsBucket)
		if err != nil {
			logger.Fatal("failed to initialise asset repository", zap.Error(err))
		}
	} else {
		logger.Warn("storage signer key not configured; media uploads disabled")
	}

	healthRepo, err := newHealthRepository(firestoreClient, fetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	if strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		logger.Fatal("stripe api key is required")
	}
	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: zapEventLogger(paymentsLogger),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(map[string]payments.Provider{
		"stripe": stripeProvider,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}
	webhookVerifier, err := payments.NewStripeWebhookVerifier(cfg.PSP.StripeWebhookSecret)
	if err != nil {
		logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
	}

	var storeMailer services.Mailer
	if strings.TrimSpace(cfg.SMTP.From) != "" {
		smtpMailer, err := mailer.NewSMTPMailer(mailer.SMTPMailerDeps{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			From:      cfg.SMTP.From,
			StoreName: cfg.SMTP.StoreName,
		})
		if err != nil {
			logger.Fatal("failed to initialise smtp mailer", zap.Error(err))
		}
		storeMailer = smtpMailer
	} else {
		logger.Warn("smtp sender not configured; transactional mail disabled")
	}

	var eventPublisher services.EventPublisher
	var eventsTopic *pubsub.Topic
	var pubsubClient *pubsub.Client
	if cfg.Features.EnableOrderEvents || cfg.Features.EnableNewsletterWelcome {
		pubsubClient, err = pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		eventsTopic = pubsubClient.Topic(cfg.PubSub.EventsTopic)
		eventPublisher, err = jobs.NewPubSubEventPublisher(eventsTopic)
		if err != nil {
			logger.Fatal("failed to initialise event publisher", zap.Error(err))
		}
	}
	defer func() {
		if eventsTopic != nil {
			eventsTopic.Stop()
		}
		if pubsubClient != nil {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}
	}()

	container, err := di.NewContainer(cfg, di.Repositories{
		Products:      productRepo,
		Carts:         cartRepo,
		Baskets:       basketRepo,
		Content:       contentRepo,
		Users:         userRepo,
		Activity:      activityRepo,
		Newsletter:    newsletterRepo,
		Confirmations: confirmationRepo,
		ShippingRates: shippingRepo,
		Assets:        assetRepo,
		Health:        healthRepo,
	}, di.Infrastructure{
		Payments:       paymentManager,
		Mailer:         storeMailer,
		Events:         eventPublisher,
		Logger:         zapEventLogger(logger.Named("services")),
		ActivityLogger: logger.Named("activity").Sugar(),
		Clock:          time.Now,
		IDGenerator:    func() string { return ulid.Make().String() },
		HashSalt:       strings.TrimSpace(envValues["API_ACTIVITY_HASH_SALT"]),
		Build:          buildInfo,
	})
	if err != nil {
		logger.Fatal("failed to assemble service container", zap.Error(err))
	}
	svc := container.Services

	catalogHandlers := handlers.NewCatalogHandlers(svc.Catalog)
	pageHandlers := handlers.NewPageHandlers(svc.Content)
	shippingHandlers := handlers.NewShippingHandlers(svc.Shipping)
	newsletterLimiter := handlers.NewRateLimiter(cfg.RateLimits.NewsletterPerMinute, time.Minute)
	newsletterHandlers := handlers.NewNewsletterHandlers(svc.Newsletter, newsletterLimiter)

	profileHandlers := handlers.NewProfileHandlers(authenticator, svc.Users)
	cartHandlers := handlers.NewCartHandlers(authenticator, svc.Cart)
	basketHandlers := handlers.NewBasketHandlers(authenticator, svc.Basket)
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, svc.Checkout)

	adminCatalogHandlers := handlers.NewAdminCatalogHandlers(authenticator, svc.Catalog, svc.Activity)
	adminUserHandlers := handlers.NewAdminUserHandlers(authenticator, svc.Users, svc.Activity)
	adminContentHandlers := handlers.NewAdminContentHandlers(authenticator, svc.Content, svc.Activity)
	adminActivityHandlers := handlers.NewAdminActivityHandlers(authenticator, svc.Activity)
	assetHandlers := handlers.NewAssetHandlers(authenticator, svc.Assets)

	webhookHandlers := handlers.NewStripeWebhookHandlers(webhookVerifier, svc.Checkout, zapEventLogger(logger.Named("webhooks")))
	jobHandlers := handlers.NewInternalJobHandlers(storeMailer, zapEventLogger(logger.Named("jobs")))

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotencyMiddleware,
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithPublicRoutes(func(r chi.Router) {
			catalogHandlers.Routes(r)
			pageHandlers.Routes(r)
			shippingHandlers.Routes(r)
			newsletterHandlers.Routes(r)
		}),
		handlers.WithMeRoutes(profileHandlers.Routes),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithBasketRoutes(basketHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithAdminRoutes(func(r chi.Router) {
			// Each handler installs its own role middleware, so every one
			// gets an isolated group.
			r.Group(adminCatalogHandlers.Routes)
			r.Group(adminUserHandlers.Routes)
			r.Group(adminContentHandlers.Routes)
			r.Group(adminActivityHandlers.Routes)
			r.Group(assetHandlers.Routes)
		}),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithInternalRoutes(jobHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("maison-panier api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts a zap logger to the event-style logging callbacks the
// service and payments layers accept.
func zapEventLogger(logger *zap.Logger) func(context.Context, string, map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug(event, zFields...)
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newHealthRepository(client *firestore.Client, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok {
					switch st.Code() {
					case codes.NotFound:
						return nil
					}
				}
				return err
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequireOIDC(audience, issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("API_SECURITY_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	projectMap := secretProjectMapFromEnv(env)
	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}
	versionPins := secretVersionPinsFromEnv(env)
	credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE")

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if len(versionPins) > 0 {
		opts = append(opts, secrets.WithVersionPins(versionPins))
	}
	if credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env map[string]string) []string {
	required := []string{
		"PSP.StripeAPIKey",
		"PSP.StripeWebhookSecret",
	}
	if env != nil && strings.TrimSpace(env["API_SMTP_PASSWORD"]) != "" {
		required = append(required, "SMTP.Password")
	}
	return uniqueStrings(required)
}

func secretProjectMapFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_PROJECT_IDS"]
	}
	raw = strings.TrimSpace(raw)
	projects := make(map[string]string)
	if raw == "" {
		return projects
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}

func secretVersionPinsFromEnv(env map[string]string) map[string]string {
	raw := ""
	if env != nil {
		raw = env["API_SECRET_VERSION_PINS"]
	}
	raw = strings.TrimSpace(raw)
	pins := make(map[string]string)
	if raw == "" {
		return pins
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		ref := strings.TrimSpace(parts[0])
		version := strings.TrimSpace(parts[1])
		if ref == "" || version == "" {
			continue
		}
		var prefix string
		if idx := strings.Index(ref, ":"); idx > 0 {
			schemeSplit := strings.Index(ref, "://")
			if schemeSplit == -1 || idx < schemeSplit {
				prefix = strings.ToLower(strings.TrimSpace(ref[:idx])) + ":"
				ref = strings.TrimSpace(ref[idx+1:])
			}
		}
		if strings.HasPrefix(ref, "sm://") {
			ref = "secret://" + strings.TrimPrefix(ref, "sm://")
		} else if !strings.HasPrefix(ref, "secret://") {
			ref = "secret://" + ref
		}
		ref = prefix + ref
		pins[ref] = version
	}
	return pins
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
