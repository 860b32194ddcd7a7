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
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/finitefield-org/hanko-field/internal/catalog"
	"github.com/finitefield-org/hanko-field/internal/handlers"
	"github.com/finitefield-org/hanko-field/internal/payments"
	"github.com/finitefield-org/hanko-field/internal/platform/config"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/platform/idempotency"
	"github.com/finitefield-org/hanko-field/internal/platform/jobs"
	"github.com/finitefield-org/hanko-field/internal/platform/observability"
	"github.com/finitefield-org/hanko-field/internal/platform/secrets"
	fsrepo "github.com/finitefield-org/hanko-field/internal/repositories/firestore"
	"github.com/finitefield-org/hanko-field/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger("hanko-field-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	secretsCfg, err := config.LoadSecrets()
	if err != nil {
		logger.Fatal("failed to read secret settings", zap.Error(err))
	}
	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(secretsCfg.DefaultProject),
		secrets.WithFallbackFile(secretsCfg.FallbackFile),
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
		var validation *config.ValidationError
		if errors.As(err, &validation) {
			logger.Fatal("invalid configuration", zap.Strings("fields", validation.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	docs, closeDocs, err := openStore(ctx, cfg.Firestore)
	if err != nil {
		logger.Fatal("failed to initialise document store", zap.Error(err))
	}
	defer func() {
		if err := closeDocs(); err != nil {
			logger.Warn("document store close error", zap.Error(err))
		}
	}()

	orderRepo, err := fsrepo.NewOrderRepository(docs)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	eventRepo, err := fsrepo.NewOrderEventRepository(docs)
	if err != nil {
		logger.Fatal("failed to initialise order event repository", zap.Error(err))
	}
	catalogReader, err := catalog.NewReader(docs)
	if err != nil {
		logger.Fatal("failed to initialise catalog reader", zap.Error(err))
	}
	keys, err := idempotency.NewStore(docs, idempotency.WithTTL(cfg.Orders.IdempotencyTTL))
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	ledger, err := idempotency.NewLedger(docs, cfg.Orders.WebhookEventTTL)
	if err != nil {
		logger.Fatal("failed to initialise webhook ledger", zap.Error(err))
	}

	var publisher services.OrderEventPublisher
	if topicID := strings.TrimSpace(cfg.PubSub.OrderEventsTopic); topicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("failed to initialise pubsub client", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
		topic := client.Topic(topicID)
		defer topic.Stop()
		pub, err := jobs.NewPubSubOrderEventPublisher(topic)
		if err != nil {
			logger.Fatal("failed to initialise order event publisher", zap.Error(err))
		}
		publisher = pub
	} else {
		logger.Info("order event topic not configured; lifecycle events are not published")
	}

	catalogService, err := services.NewCatalogService(catalogReader)
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}
	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Catalog:     catalogReader,
		Orders:      orderRepo,
		Events:      eventRepo,
		Idempotency: keys,
		Publisher:   publisher,
		Clock:       time.Now,
		Logger:      observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}
	webhookService, err := services.NewPaymentWebhookService(services.PaymentWebhookServiceDeps{
		Orders:    orderRepo,
		Events:    eventRepo,
		Ledger:    ledger,
		Publisher: publisher,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("webhooks")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment webhook service", zap.Error(err))
	}

	verifier := payments.NewSignatureVerifier(cfg.Stripe.WebhookSecret, payments.WithTolerance(cfg.Stripe.SignatureTolerance))
	if !verifier.Enabled() {
		logger.Warn("stripe webhook secret not configured; signatures are not verified")
	}

	health := handlers.NewHealthHandlers(
		handlers.WithReadyCheck("catalog", func(ctx context.Context) error {
			_, err := catalogReader.PublicConfig(ctx)
			return err
		}),
	)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.InjectLoggerMiddleware(logger),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			chimw.RequestSize(cfg.Server.BodyLimit),
		),
		handlers.WithHealthHandlers(health),
		handlers.WithPublicRoutes(handlers.NewPublicHandlers(catalogService).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(orderService).Routes),
		handlers.WithPaymentRoutes(handlers.NewPaymentWebhookHandlers(verifier, webhookService).Routes),
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("store", cfg.Firestore.Backend))
	go func() {
		serverLogger.Info("hanko-field api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore returns the configured document store and its closer.
func openStore(ctx context.Context, cfg config.FirestoreConfig) (docstore.Store, func() error, error) {
	if cfg.Backend == config.BackendMemory {
		return docstore.NewMemory(), func() error { return nil }, nil
	}
	provider := docstore.NewProvider(docstore.ProviderConfig{
		ProjectID:    cfg.ProjectID,
		EmulatorHost: cfg.EmulatorHost,
	})
	// Dial eagerly; a missing project fails startup.
	if _, err := provider.Client(ctx); err != nil {
		_ = provider.Close()
		return nil, nil, err
	}
	store, err := docstore.NewFirestoreStore(provider)
	if err != nil {
		_ = provider.Close()
		return nil, nil, err
	}
	return store, provider.Close, nil
}
