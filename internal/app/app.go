package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"passauth/internal/config"
	"passauth/internal/infrastructure"
	customMiddleware "passauth/internal/middleware"
	"passauth/internal/passcode"
	"passauth/internal/store"
	transport "passauth/internal/transport/http"
)

// VERSION is the service version reported in startup logs.
const VERSION = "1.0.0"

// Application wires configuration, storage, the lifecycle engine and the
// HTTP server together.
type Application struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Engine  *passcode.Engine
	Metrics *infrastructure.Metrics
	Router  chi.Router
	Server  *http.Server
}

// NewApplication builds the application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &Application{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Engine:  passcode.NewEngine(st.Stores(), st, logger),
		Metrics: infrastructure.NewMetrics(),
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware ordering: RequestID → RealIP → Logger → Recoverer →
	// SecurityHeaders → CORS → RateLimiter. RequestID must come first so
	// every later stage logs with the trace id.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.corsConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Metrics(a.Metrics))

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout, a.Logger))

			handler := transport.NewAuthHandler(a.Engine, a.Store, a.Metrics, a.Logger)
			r.Mount("/", handler.Routes())
		})
	})

	// Prometheus endpoint outside the middleware group
	r.Handle("/metrics", a.Metrics.Handler())

	a.Router = r
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		Logger:         a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server. A listen failure cancels the supplied
// context so Run can unwind.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", transport.ServiceName),
		slog.String("version", VERSION),
		slog.String("address", a.Server.Addr),
		slog.String("database", a.Config.Database.Path),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and closes the store.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.ErrorContext(ctx, "error closing store", slog.String("error", err.Error()))
	}

	infrastructure.CloseLogFile()

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "received interrupt signal")
	case <-ctx.Done():
		// Server failed to start or listen
	}

	return a.Stop(context.Background())
}
