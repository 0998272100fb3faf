package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/gatekeep/internal/api/http"
	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeep/internal/api/telemetry"
	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/revocation"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"
	"github.com/aussiebroadwan/gatekeep/pkg/transportx"
	"github.com/cenkalti/backoff/v4"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the API service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	registry *revocation.Registry
	signer   *jwtx.HS256Signer
	verifier *jwtx.HS256Verifier
	metrics  *telemetry.Metrics

	// Services
	tokenService    *service.TokenService
	userService     *service.UserService
	catFactsService *service.CatFactsService
	versionSync     *service.VersionSyncService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatekeep-api",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ctx := context.Background()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initTokens(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.versionSync.Start()

	app.logger.Info("api service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.versionSync.Stop()
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server, flushes pending versions and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down api service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop performs a final flush so bumped versions survive the restart.
	app.versionSync.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("api service stopped")
	return nil
}

// initDatabase opens the store, waits for it to answer and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	db, err := sqlite.NewStore(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	// The file may sit on a volume that is still being mounted.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5),
		ctx,
	)
	err = backoff.RetryNotify(
		func() error { return db.Ping(ctx) },
		policy,
		func(err error, wait time.Duration) {
			app.logger.Warn("database not ready, retrying", "error", err, "wait", wait)
		},
	)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initTokens builds the signer, the verifier and the revocation registry,
// warming the registry from the persisted versions.
func (app *Application) initTokens(ctx context.Context) error {
	secret := []byte(app.cfg.JWT.Secret)

	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}
	app.signer = signer
	app.verifier = jwtx.NewVerifierHS256(secret, jwtx.VerifyOptions{
		Issuer:   app.cfg.JWT.Issuer,
		Audience: []string{app.cfg.JWT.Audience},
		Leeway:   app.cfg.JWT.Leeway,
	})

	app.registry = revocation.New(revocation.WithJournal(app.db.TokenVersions()))

	stored, err := app.db.TokenVersions().ListVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token versions: %w", err)
	}
	versions := make(map[string]uint64, len(stored))
	for _, tv := range stored {
		versions[tv.Principal] = tv.Version
	}
	app.registry.Restore(versions)

	app.logger.Info("token versions restored", "principals", len(versions))
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	app.metrics = telemetry.New(app.registry.Len)

	app.tokenService = &service.TokenService{
		Signer:     app.signer,
		Verifier:   app.verifier,
		Versions:   app.registry,
		Issuer:     app.cfg.JWT.Issuer,
		Audience:   app.cfg.JWT.Audience,
		AccessTTL:  app.cfg.JWT.AccessTTL(),
		RefreshTTL: app.cfg.JWT.RefreshTTL(),
	}

	app.userService = &service.UserService{
		Store:  app.db,
		Hasher: cryptox.NewPasswordHasher(pepper),
	}
	app.metrics.TrackUsers(app.userService.CountUsers)

	app.catFactsService = &service.CatFactsService{
		Transport: transportx.New(app.cfg.HTTP.Transport(),
			transportx.WithRetryHook(app.metrics.ObserveRetry),
			transportx.WithResultHook(app.metrics.ObserveResult),
		),
		URL: app.cfg.CatFactsURL,
	}

	app.versionSync = service.NewVersionSyncService(
		app.registry,
		app.logger,
		app.cfg.VersionSyncInterval,
	)

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	gate := &httpx.Gate{
		Extract:    httpx.BearerToken,
		Verifier:   app.verifier,
		Versions:   app.registry,
		OnDecision: app.metrics.ObserveDecision,
	}

	router := httpapi.NewRouter(
		gate,
		app.signer,
		app.cfg.RateLimits,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.CatFactsService = app.catFactsService
	router.Versions = app.registry
	if app.cfg.MetricsEnabled {
		router.Metrics = app.metrics.Handler()
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
