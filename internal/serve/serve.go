package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/accounts"
	"github.com/kelmah-platform/kelmah-payout-service/internal/crashtracker"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
	"github.com/kelmah-platform/kelmah-payout-service/internal/monitor"
	"github.com/kelmah-platform/kelmah-payout-service/internal/provider"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httperror"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httphandler"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/middleware"
)

const ServiceID = "kelmah-payout-service"

type ServeOptions struct {
	Environment        string
	GitCommit          string
	Port               int
	Version            string
	DatabaseDSN        string
	CorsAllowedOrigins []string
	// InternalAPIKey guards the service-to-service endpoints. Empty disables the check.
	InternalAPIKey string

	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	AccountsClient     accounts.ClientInterface
	DispatcherRegistry *provider.Registry
	EngineConfig       engine.Config

	dbConnectionPool db.DBConnectionPool
	models           *data.Models
	payoutEngine     *engine.Engine
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies() error {
	// Report unexpected handler errors through the crash tracker
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	dbConnectionPool, err := db.OpenDBConnectionPool(opts.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connecting to the database: %w", err)
	}
	opts.dbConnectionPool = dbConnectionPool

	opts.models, err = data.NewModels(dbConnectionPool)
	if err != nil {
		return fmt.Errorf("creating models: %w", err)
	}

	opts.payoutEngine, err = engine.NewEngine(dbConnectionPool, opts.models.Payouts, opts.DispatcherRegistry, opts.AccountsClient, opts.MonitorService, opts.EngineConfig)
	if err != nil {
		return fmt.Errorf("creating payout engine: %w", err)
	}

	return nil
}

// PayoutEngine exposes the engine built by SetupDependencies, so the serve command can share it with the scheduler.
func (opts *ServeOptions) PayoutEngine() *engine.Engine {
	return opts.payoutEngine
}

// Serve runs the HTTP server until it receives a shutdown signal, setting up the dependencies first when the caller
// has not already done so.
func Serve(opts ServeOptions) error {
	if opts.payoutEngine == nil {
		if err := opts.SetupDependencies(); err != nil {
			return fmt.Errorf("starting dependencies: %w", err)
		}
	}
	return runHTTPServer(&opts)
}

func runHTTPServer(opts *ServeOptions) error {
	defer opts.CrashTrackerClient.FlushEvents(2 * time.Second)
	defer opts.CrashTrackerClient.Recover()

	listenAddr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      handleHTTP(opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("Starting Kelmah Payout Service on %s", listenAddr)
		serverErrors <- srv.ListenAndServe()
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("running http server: %w", err)
		}
	case sig := <-signalChan:
		log.Infof("Received signal %q, shutting down...", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
	}

	log.Info("Closing the database connection...")
	if err := opts.dbConnectionPool.Close(); err != nil {
		log.Errorf("error closing database connection: %s", err.Error())
	}
	log.Info("Stopping Kelmah Payout Service")
	return nil
}

func handleHTTP(o *ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	mux.Get("/health", httphandler.HealthHandler{
		Version:          o.Version,
		ServiceID:        ServiceID,
		ReleaseID:        o.GitCommit,
		DBConnectionPool: o.dbConnectionPool,
	}.ServeHTTP)
	mux.Method(http.MethodGet, "/metrics", o.MonitorService.HTTPHandler())

	payoutsHandler := httphandler.PayoutsHandler{
		Models:           o.models,
		DBConnectionPool: o.dbConnectionPool,
		PayoutEngine:     o.payoutEngine,
		Providers:        o.DispatcherRegistry.Providers(),
	}

	mux.Group(func(r chi.Router) {
		r.Use(middleware.InternalAPIKeyMiddleware(o.InternalAPIKey))

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", payoutsHandler.PostPayout)
			r.Get("/", payoutsHandler.GetPayouts)
			r.Get("/{id}", payoutsHandler.GetPayout)
			r.Post("/{id}/retry", payoutsHandler.RetryPayout)

			// Manual batch triggers are rate limited, the scheduler is the primary driver.
			r.With(httprate.LimitByIP(10, 1*time.Minute)).
				Post("/process-batch", payoutsHandler.ProcessBatch)
		})
		r.Get("/providers", payoutsHandler.GetProviders)
	})

	return mux
}
