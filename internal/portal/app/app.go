package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/sendhisword/portal/internal/portal/gateway"
	"github.com/sendhisword/portal/internal/portal/session"
	"github.com/sendhisword/portal/internal/portal/store"
	"github.com/sendhisword/portal/internal/portal/store/drivers/sqlite"
	"github.com/sendhisword/portal/pkg/authapi"
	"github.com/sendhisword/portal/pkg/sealbox"
	"github.com/sendhisword/portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the portal gateway together: session store, auth
// client, session controller and HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	channel    session.SignalChannel
	controller *session.Controller

	server *http.Server
	router *gateway.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.AuthBaseURL == "" {
		return nil, errors.New("PORTAL_AUTH_URL is required")
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initController(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.controller.Close()
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.controller.Start()

	// Restore any persisted session before taking traffic so the guards
	// don't bounce a returning user.
	app.controller.Initialize(context.Background())

	app.logger.Info("portal gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown gracefully stops the server, controller and store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down portal gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.controller.Close(); err != nil {
		app.logger.Error("error closing session controller", "error", err)
	}
	if app.channel != nil {
		if err := app.channel.Close(); err != nil {
			app.logger.Error("error closing signal channel", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing session store", "error", err)
		return err
	}

	app.logger.Info("portal gateway stopped")
	return nil
}

// initStore opens the session store. Without a database file the gateway
// runs on an in-memory store and sessions do not survive restarts.
func (app *Application) initStore() error {
	if app.cfg.DatabaseFile == "" {
		app.logger.Warn("no database file configured, sessions will not survive restarts")
		app.db = store.NewMemory()
		return nil
	}

	box, ephemeral, err := sealbox.Open(app.cfg.SealKeyPath)
	if err != nil {
		return fmt.Errorf("failed to initialize token sealing: %w", err)
	}
	if ephemeral {
		app.logger.Warn("using an ephemeral sealing key, persisted sessions will not outlive this process")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn, box)
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply store migrations: %w", err)
	}

	app.logger.Info("session store migrations applied successfully")
	app.db = db
	return nil
}

// initController builds the session controller and, when configured, its
// cross-process signal channel.
func (app *Application) initController() error {
	if app.cfg.SignalFile != "" {
		app.channel = session.NewFileChannel(app.cfg.SignalFile, app.cfg.SignalInterval)
	}

	app.controller = session.New(session.Config{
		API:              authapi.New(app.cfg.AuthBaseURL),
		Store:            app.db,
		Channel:          app.channel,
		Logger:           app.logger,
		FallbackInterval: app.cfg.RefreshFallback,
	})
	return nil
}

func (app *Application) initHTTP() error {
	var backend *url.URL
	if app.cfg.BackendURL != "" {
		parsed, err := url.Parse(app.cfg.BackendURL)
		if err != nil {
			return fmt.Errorf("invalid backend URL: %w", err)
		}
		backend = parsed
	} else {
		app.logger.Warn("no backend configured, portal areas are disabled")
	}

	app.router = gateway.NewRouter(
		app.controller,
		app.db,
		backend,
		BuildVersion,
		app.cfg.AllowedOrigins,
		app.logger,
	)
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
	return nil
}
