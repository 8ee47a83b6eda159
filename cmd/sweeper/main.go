// Command sweeper runs one retention pass and exits: translated outputs past
// the retention threshold and sessions idle past theirs are removed. Meant
// for cron or a scheduled job runner.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/repositories/repomanager"
	"github.com/babelscrib/babelscrib/internal/server/services"
	"github.com/babelscrib/babelscrib/internal/server/storage"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewDefault()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Printf("db init error: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	blobs, err := storage.NewS3Store(ctx, storage.S3Options{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		log.Printf("object storage init error: %v", err)
		os.Exit(1)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	sessions := services.NewSessionTracker(db, rm, cfg, logger)
	sweeper := services.NewRetentionSweeper(blobs, sessions, cfg, logger)

	report := sweeper.SweepOldTargets(ctx, cfg.TargetRetentionThreshold)
	logger.Info(ctx, "target sweep done",
		"found", report.Found, "cleaned", report.Cleaned, "failed", report.Failed)

	purged, err := sweeper.SweepIdleSessions(ctx, cfg.SessionIdleThreshold)
	if err != nil {
		logger.Error(ctx, "session sweep failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info(ctx, "session sweep done", "purged", purged)
}
