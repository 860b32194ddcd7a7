package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/finitefield-org/hanko-field/internal/admin/httpserver"
	"github.com/finitefield-org/hanko-field/internal/admin/httpserver/middleware"
	"github.com/finitefield-org/hanko-field/internal/admin/mockdata"
	"github.com/finitefield-org/hanko-field/internal/admin/orders"
	"github.com/finitefield-org/hanko-field/internal/platform/config"
	"github.com/finitefield-org/hanko-field/internal/platform/docstore"
	"github.com/finitefield-org/hanko-field/internal/platform/observability"
	fsrepo "github.com/finitefield-org/hanko-field/internal/repositories/firestore"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger("hanko-field-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("admin")

	cfg, err := config.LoadAdmin()
	if err != nil {
		logger.Fatal("failed to load admin configuration", zap.Error(err))
	}

	docs, sourceLabel, closeDocs, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialise admin data source", zap.String("mode", cfg.Mode), zap.Error(err))
	}
	defer func() {
		if err := closeDocs(); err != nil {
			logger.Warn("document store close error", zap.Error(err))
		}
	}()

	console, err := newConsole(docs, cfg, logger.Named("console"))
	if err != nil {
		logger.Fatal("failed to initialise admin console", zap.Error(err))
	}
	if err := console.Refresh(ctx); err != nil {
		logger.Warn("initial snapshot load failed; retrying per request", zap.Error(err))
	}

	var authenticator middleware.Authenticator
	if cfg.AuthEnabled {
		authenticator, err = newFirebaseAuthenticator(ctx, cfg)
		if err != nil {
			logger.Fatal("failed to initialise firebase authenticator", zap.Error(err))
		}
	} else {
		logger.Warn("admin authentication disabled", zap.String("mode", cfg.Mode))
	}

	server, err := httpserver.New(httpserver.Config{
		Address:       cfg.Addr,
		Console:       console,
		SourceLabel:   sourceLabel,
		IsMock:        cfg.Mode == config.AdminModeMock,
		Authenticator: authenticator,
		AuthEnabled:   cfg.AuthEnabled,
		LoginPath:     cfg.LoginPath,
		Logger:        logger,
		CSRF: middleware.CSRFConfig{
			CookieName: cfg.CSRFCookieName,
			HeaderName: cfg.CSRFHeaderName,
			Secure:     cfg.CSRFCookieSecure,
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise admin server", zap.Error(err))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("mode", cfg.Mode))
	go func() {
		serverLogger.Info("hanko-field admin listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore seeds an in-memory store in mock mode and connects to Firestore
// otherwise. The returned label is shown in the console header.
func openStore(ctx context.Context, cfg config.AdminConfig) (docstore.Store, string, func() error, error) {
	if cfg.Mode == config.AdminModeMock {
		seed, err := mockdata.Open(cfg.SeedFile)
		if err != nil {
			return nil, "", nil, err
		}
		defer seed.Close()
		store := docstore.NewMemory()
		if err := mockdata.Load(seed, store, time.Now().UTC()); err != nil {
			return nil, "", nil, err
		}
		return store, "Mock", func() error { return nil }, nil
	}

	var opts []docstore.ProviderOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, docstore.WithClientOptions(option.WithCredentialsFile(cfg.CredentialsFile)))
	}
	provider := docstore.NewProvider(docstore.ProviderConfig{ProjectID: cfg.ProjectID}, opts...)
	if _, err := provider.Client(ctx); err != nil {
		_ = provider.Close()
		return nil, "", nil, err
	}
	store, err := docstore.NewFirestoreStore(provider)
	if err != nil {
		_ = provider.Close()
		return nil, "", nil, err
	}
	return store, "Firestore (" + cfg.ProjectID + ")", provider.Close, nil
}

func newConsole(docs docstore.Store, cfg config.AdminConfig, logger *zap.Logger) (*orders.Console, error) {
	orderRepo, err := fsrepo.NewOrderRepository(docs, fsrepo.WithDefaultLocale(cfg.DefaultLocale))
	if err != nil {
		return nil, err
	}
	eventRepo, err := fsrepo.NewOrderEventRepository(docs)
	if err != nil {
		return nil, err
	}
	materialRepo, err := fsrepo.NewMaterialRepository(docs)
	if err != nil {
		return nil, err
	}
	countryRepo, err := fsrepo.NewCountryRepository(docs)
	if err != nil {
		return nil, err
	}
	source, err := orders.NewRepositorySource(orders.RepositorySourceDeps{
		Orders:    orderRepo,
		Events:    eventRepo,
		Materials: materialRepo,
		Countries: countryRepo,
		Locale:    cfg.Locale,
	})
	if err != nil {
		return nil, err
	}
	return orders.NewConsole(source,
		orders.WithTimeout(cfg.RefreshTimeout),
		orders.WithLogger(logger),
	)
}

func newFirebaseAuthenticator(ctx context.Context, cfg config.AdminConfig) (*middleware.FirebaseAuthenticator, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return middleware.NewFirebaseAuthenticator(client, cfg.AllowedRoles...)
}
