package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/handlers"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/payments"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/auth"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/config"
	pfirestore "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/firestore"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/idempotency"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/jobs"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/observability"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/secrets"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/seed"
	platformstorage "github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/storage"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories"
	firestoreRepo "github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/firestore"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/repositories/memory"
	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger("checkout-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(firstEnv("CHECKOUT_SECRET_PROJECT_ID", "CHECKOUT_FIREBASE_PROJECT_ID")),
		secrets.WithFallbackFile(firstEnv("CHECKOUT_SECRET_FALLBACK_FILE")),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	buildInfo := buildInfoFromEnv(cfg, startedAt)

	var (
		registry          repositories.Registry
		firestoreProvider *pfirestore.Provider
		idempotencyStore  idempotency.Store
		checks            []repositories.DependencyCheck
	)
	switch cfg.Checkout.Backend {
	case config.BackendMemory:
		store, err := loadMemoryStore(ctx, cfg, logger.Named("seed"))
		if err != nil {
			logger.Fatal("failed to seed memory backend", zap.Error(err))
		}
		registry = store
		idempotencyStore = idempotency.NewMemoryStore()
	default:
		firestoreProvider = pfirestore.NewProvider(cfg.Firestore)
		client, err := firestoreProvider.Client(ctx)
		if err != nil {
			logger.Fatal("failed to initialise firestore client", zap.Error(err))
		}
		registry, err = firestoreRepo.NewRegistry(firestoreProvider)
		if err != nil {
			logger.Fatal("failed to initialise firestore repositories", zap.Error(err))
		}
		idempotencyStore = idempotency.NewFirestoreStore(client)
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   firestoreProvider.Ping,
		})
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
		if firestoreProvider != nil {
			if err := firestoreProvider.Close(); err != nil {
				logger.Warn("firestore close error", zap.Error(err))
			}
		}
	}()

	var events services.PaymentEventPublisher
	if cfg.Checkout.Backend == config.BackendFirestore && cfg.PubSub.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := pubsubClient.Topic(cfg.PubSub.PaymentEventsTopic)
		defer topic.Stop()
		publisher, err := jobs.NewPubSubPaymentEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise payment event publisher", zap.Error(err))
		}
		events = publisher
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := topic.Exists(ctx)
				return err
			},
		})
	}
	checks = append(checks, secretManagerCheck(fetcher))

	eventLogger := observability.EventLogger(logger.Named("checkout"))
	sessions := services.NewCartSessions(cfg.Checkout.SessionIdleTTL, time.Now)

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Sessions: sessions,
		Catalog:  registry.Catalog(),
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}
	couponService, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons:       registry.Coupons(),
		TenantConfigs: registry.TenantConfigs(),
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise coupon service", zap.Error(err))
	}
	shippingService, err := services.NewShippingService(services.ShippingServiceDeps{
		TenantConfigs: registry.TenantConfigs(),
		Zones:         registry.ShippingZones(),
		Communes:      registry.Communes(),
		CacheTTL:      cfg.Checkout.ZoneCacheTTL,
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise shipping service", zap.Error(err))
	}
	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Sessions:      sessions,
		TenantConfigs: registry.TenantConfigs(),
		Coupons:       couponService,
		Shipping:      shippingService,
		Orders:        registry.Orders(),
		Clock:         time.Now,
		Logger:        eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}
	statusService, err := services.NewPaymentStatusService(services.PaymentStatusServiceDeps{
		Orders:   registry.Orders(),
		Attempts: registry.PaymentAttempts(),
		Logger:   eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment status service", zap.Error(err))
	}
	reconciler, err := services.NewPaymentReconciler(services.PaymentReconcilerDeps{
		Reader:      statusService,
		Interval:    cfg.Checkout.PollInterval,
		MaxAttempts: cfg.Checkout.PollAttempts,
		Logger:      eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment reconciler", zap.Error(err))
	}

	var (
		dispatcher services.PaymentDispatcher
		sweeper    services.AttemptSweeper
	)
	gateways, err := newGatewayRegistry(cfg, logger.Named("payments"))
	if err != nil {
		logger.Warn("payments disabled: no gateway could be configured", zap.Error(err))
	} else {
		dispatcher, err = services.NewPaymentDispatcher(services.PaymentDispatcherDeps{
			TenantConfigs: registry.TenantConfigs(),
			Orders:        registry.Orders(),
			Attempts:      registry.PaymentAttempts(),
			Gateways:      gateways,
			Events:        events,
			Clock:         time.Now,
			Logger:        eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise payment dispatcher", zap.Error(err))
		}
		sweeper, err = services.NewAttemptSweeper(services.AttemptSweeperDeps{
			Attempts:      registry.PaymentAttempts(),
			TenantConfigs: registry.TenantConfigs(),
			Gateways:      gateways,
			Events:        events,
			TTL:           cfg.Checkout.AttemptTTL,
			BatchSize:     cfg.Checkout.SweepBatchSize,
			Clock:         time.Now,
			Logger:        eventLogger,
		})
		if err != nil {
			logger.Fatal("failed to initialise attempt sweeper", zap.Error(err))
		}
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	systemService, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: healthRepo,
		Clock:            time.Now,
		Build:            buildInfo,
		Optional:         []string{"pubsub", "secretManager"},
	})
	if err != nil {
		logger.Fatal("failed to initialise system service", zap.Error(err))
	}

	var authenticator *auth.Authenticator
	if strings.TrimSpace(cfg.Firebase.ProjectID) != "" {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
		if err != nil {
			logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
		}
		authenticator = auth.NewAuthenticator(verifier)
	} else {
		logger.Warn("auth: firebase project not configured; checkout accepts guests only")
	}

	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	checkoutHandlers := handlers.NewCheckoutHandlers(handlers.CheckoutHandlersDeps{
		Authenticator:     authenticator,
		Shipping:          shippingService,
		Coupons:           couponService,
		Checkout:          checkoutService,
		Payments:          dispatcher,
		Reconciler:        reconciler,
		Idempotency:       idempotencyMiddleware,
		IdempotencyHeader: cfg.Idempotency.Header,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
	})
	cartHandlers := handlers.NewCartHandlers(cartService)
	orderHandlers := handlers.NewOrderHandlers(statusService)
	internalHandlers := handlers.NewInternalHandlers(couponService, sweeper)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	projectID := traceProjectID(cfg)
	opts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCheckoutRoutes(func(r chi.Router) {
			cartHandlers.Routes(r)
			checkoutHandlers.Routes(r)
		}),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithInternalRoutes(internalHandlers.Routes),
	}
	if oidc := buildOIDCMiddleware(logger.Named("auth"), cfg); oidc != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidc))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		idempotency.RunCleanup(groupCtx, idempotencyStore, cfg.Idempotency.CleanupInterval, cfg.Idempotency.CleanupBatchSize,
			observability.NewPrintfAdapter(logger.Named("idempotency")))
		return nil
	})
	group.Go(func() error {
		every(groupCtx, cfg.Checkout.SessionIdleTTL/4, func(context.Context) {
			if evicted := sessions.Sweep(); evicted > 0 {
				logger.Debug("cart sessions evicted", zap.Int("count", evicted))
			}
		})
		return nil
	})
	if sweeper != nil {
		sweepLogger := logger.Named("sweeper")
		group.Go(func() error {
			every(groupCtx, cfg.Checkout.SweepInterval, func(ctx context.Context) {
				sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
				defer cancel()
				result, err := sweeper.Sweep(sweepCtx)
				if err != nil {
					sweepLogger.Error("attempt sweep failed", zap.Error(err))
					return
				}
				if result.Abandoned > 0 || result.Settled > 0 {
					sweepLogger.Info("attempt sweep finished",
						zap.Int("scanned", result.Scanned),
						zap.Int("abandoned", result.Abandoned),
						zap.Int("settled", result.Settled),
						zap.Int("skipped", result.Skipped))
				}
			})
			return nil
		})
	}

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	group.Go(func() error {
		serverLogger.Info("checkout api listening", zap.String("backend", cfg.Checkout.Backend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received; draining requests")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("checkout api stopped with error", zap.Error(err))
	}
}

func loadMemoryStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*memory.Store, error) {
	var opener platformstorage.ObjectOpener
	if strings.HasPrefix(cfg.Checkout.SeedFile, "gs://") {
		gcs, err := platformstorage.NewGCSOpener(ctx)
		if err != nil {
			return nil, err
		}
		defer gcs.Close()
		opener = gcs
	}
	store := memory.New()
	fixture, err := seed.Load(ctx, platformstorage.NewReader(opener), cfg.Checkout.SeedFile, store)
	if err != nil {
		return nil, err
	}
	logger.Info("memory backend seeded",
		zap.String("source", cfg.Checkout.SeedFile),
		zap.Int("tenants", len(fixture.Tenants)),
		zap.Int("communes", len(fixture.Communes)))
	return store, nil
}

func newGatewayRegistry(cfg config.Config, logger *zap.Logger) (*payments.Registry, error) {
	gateways := make(map[string]payments.Gateway)
	if key := strings.TrimSpace(cfg.PSP.StripeAPIKey); key != "" {
		stripeGateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
			APIKey:    key,
			AccountID: cfg.PSP.StripeAccountID,
			Logger:    observability.EventLogger(logger),
			Clock:     time.Now,
		})
		if err != nil {
			return nil, err
		}
		gateways["stripe"] = stripeGateway
	}
	for id, endpoint := range cfg.PSP.HostedGateways {
		hosted, err := payments.NewHostedGateway(payments.HostedGatewayConfig{
			ID:       id,
			Endpoint: endpoint,
			APIKey:   cfg.PSP.HostedAPIKeys[id],
		})
		if err != nil {
			return nil, err
		}
		gateways[id] = hosted
	}
	return payments.NewRegistry(gateways)
}

func secretManagerCheck(fetcher *secrets.Fetcher) repositories.DependencyCheck {
	const secretHealthReference = "secret://checkout-healthz?version=latest"
	return repositories.DependencyCheck{
		Name:    "secretManager",
		Timeout: time.Second,
		Check: func(ctx context.Context) error {
			_, err := fetcher.Resolve(ctx, secretHealthReference)
			if err == nil {
				return nil
			}
			// a missing probe secret still proves Secret Manager answered
			if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
				return nil
			}
			return err
		},
	}
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}
	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, adapter)

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, cfg.Security.OIDC.Issuers)
}

func buildInfoFromEnv(cfg config.Config, started time.Time) services.BuildInfo {
	version := firstEnv("CHECKOUT_BUILD_VERSION")
	if version == "" {
		version = "dev"
	}
	commit := firstEnv("CHECKOUT_BUILD_COMMIT_SHA")
	if commit == "" {
		commit = "unknown"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: cfg.Security.Environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

// every runs fn on each tick until ctx is done. Non-positive intervals disable it.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
