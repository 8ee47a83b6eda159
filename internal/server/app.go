// Package server wires the application together: configuration, database,
// object storage, the translation client, services, and the HTTP endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/httpapi"
	"github.com/babelscrib/babelscrib/internal/server/repositories/repomanager"
	"github.com/babelscrib/babelscrib/internal/server/services"
	"github.com/babelscrib/babelscrib/internal/server/storage"
	"github.com/babelscrib/babelscrib/internal/server/translation"
)

// sweepInterval is the cadence of the in-process retention sweeps.
const sweepInterval = time.Hour

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	handler http.Handler
	sweeper *services.RetentionSweeper
}

// NewApp builds the whole dependency graph and runs migrations.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := storage.NewS3Store(ctx, storage.S3Options{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	job, err := translation.NewClient(translation.ClientOptions{
		Endpoint:     cfg.TranslatorEndpoint,
		APIKey:       cfg.TranslatorAPIKey,
		PollInterval: cfg.TranslationPollInterval,
		WaitTimeout:  cfg.TranslationWaitTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("translation client init error: %w", err)
	}

	sessions := services.NewSessionTracker(db, rm, cfg, logger)
	registry := services.NewDocumentRegistry(db, rm, blobs, cfg, logger)
	sweeper := services.NewRetentionSweeper(blobs, sessions, cfg, logger)
	orchestrator := services.NewTranslationOrchestrator(registry, blobs, job, sweeper, cfg, logger)

	api := httpapi.NewServer(cfg, sessions, registry, orchestrator, blobs, db, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		handler: api.Routes(),
		sweeper: sweeper,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server", "error", err.Error())
		cancelFunc()
	}
}

// startSweepLoop runs periodic retention sweeps while the server is up.
func (app *App) startSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.sweeper.SweepOldTargets(ctx, app.config.TargetRetentionThreshold)
			if _, err := app.sweeper.SweepIdleSessions(ctx, app.config.SessionIdleThreshold); err != nil {
				app.logger.Warn(ctx, "session sweep failed", "error", err.Error())
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSweepLoop(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err.Error())
	}
}
