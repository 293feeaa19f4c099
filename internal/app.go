package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"cryptogram/internal/controllers"
	"cryptogram/internal/persistence"
	"cryptogram/internal/persistence/interfaces"
	"cryptogram/internal/providers"
	"cryptogram/internal/services"
	"cryptogram/internal/storage"
	"cryptogram/internal/structures"
	"cryptogram/internal/syncer"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type App struct {
	WebServer *http.Server
}

// NewApp restores local state, starts the background workers and serves
// HTTP until SIGINT/SIGTERM, then shuts everything down in reverse order.
func NewApp(
	healthController *controllers.HealthController,
	scheduler interfaces.SchedulerInterface,
	archive persistence.ArchiveInterface,
	coordinator syncer.CoordinatorInterface,
	session services.SessionServiceInterface,
	store storage.StoreInterface,
	conf *structures.Config,
	logger providers.Logger,
	router providers.RouterProviderInterface,
	metrics providers.MetricsProviderInterface,
) (*App, error) {
	// Inner mux: game routes
	apiMux := http.NewServeMux()
	router.Mount(apiMux)

	instrumentedAPI := providers.LoggingMiddleware(logger, providers.MetricsMiddleware(metrics, apiMux))

	// Outer mux: infrastructure + instrumented API
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthController.Health)
	if conf.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.Handle("/", instrumentedAPI)

	logger.Infof(providers.TypeApp, "Starting %s", conf.AppName)
	if err := scheduler.Restore(); err != nil {
		logger.Errorf(providers.TypeApp, "Restore error: %s", err)
	}

	app := &App{
		WebServer: &http.Server{
			Addr:         conf.WebServer.Host + ":" + strconv.Itoa(conf.WebServer.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	scheduler.Init()
	coordinator.Start()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof(providers.TypeApp, "Listening HTTP clients on %s:%d", conf.WebServer.Host, conf.WebServer.Port)
		if err := app.WebServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		logger.Infof(providers.TypeApp, "Shutdown signal received")
	case err := <-serverErr:
		runErr = fmt.Errorf("server error: %w", err)
	}

	scheduler.Stop()
	coordinator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.WebServer.Shutdown(ctx); err != nil {
		logger.Errorf(providers.TypeApp, "HTTP shutdown: %v", err)
	}
	session.Close()
	if err := scheduler.Persist(); err != nil {
		logger.Errorf(providers.TypeApp, "Final persist: %v", err)
	}
	archive.Close()
	if err := store.Close(); err != nil {
		logger.Errorf(providers.TypeApp, "Close local store: %v", err)
	}
	if runErr != nil {
		return nil, runErr
	}
	logger.Infof(providers.TypeApp, "gracefully stopped")
	return app, nil
}
