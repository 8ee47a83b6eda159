package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/storage"
)

// CleanupReport describes one sweep or cleanup pass over a container.
type CleanupReport struct {
	Attempted bool     `json:"attempted"`
	Found     int      `json:"found"`
	Cleaned   int      `json:"cleaned"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// RetentionSweeper removes aged artifacts: translated blobs past their
// retention threshold and sessions idle past theirs.
type RetentionSweeper struct {
	blobs           storage.BlobStore
	sessions        *SessionTracker
	targetContainer string
	logger          logging.Logger
}

func NewRetentionSweeper(blobs storage.BlobStore, sessions *SessionTracker, cfg *config.Config, logger logging.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		blobs:           blobs,
		sessions:        sessions,
		targetContainer: cfg.TargetContainer,
		logger:          logger.With("module", "sweeper"),
	}
}

// SweepOldTargets deletes translated blobs older than threshold from the
// shared target container, across all identities. A missing container means
// there is nothing to sweep. Per-blob failures are counted, not raised.
func (s *RetentionSweeper) SweepOldTargets(ctx context.Context, threshold time.Duration) CleanupReport {
	report := CleanupReport{Attempted: true}

	blobs, err := s.blobs.ListBlobs(ctx, s.targetContainer, "")
	if err != nil {
		if errors.Is(err, storage.ErrContainerNotFound) {
			return report
		}
		report.Errors = append(report.Errors, fmt.Sprintf("list %s: %v", s.targetContainer, err))
		return report
	}

	cutoff := time.Now().UTC().Add(-threshold)
	for _, b := range blobs {
		if !b.LastModified.Before(cutoff) {
			continue
		}
		report.Found++
		if err := s.blobs.DeleteBlob(ctx, s.targetContainer, b.Name); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("delete %s/%s: %v", s.targetContainer, b.Name, err))
			continue
		}
		report.Cleaned++
	}

	if report.Found > 0 {
		s.logger.Info(ctx, "target retention sweep finished",
			"found", report.Found, "cleaned", report.Cleaned, "failed", report.Failed)
	}

	return report
}

// SweepIdleSessions deletes sessions idle longer than threshold.
func (s *RetentionSweeper) SweepIdleSessions(ctx context.Context, threshold time.Duration) (int64, error) {
	return s.sessions.PurgeIdle(ctx, threshold)
}
