// Package services contains server-side business logic: session tracking,
// the document registry, the translation orchestrator, and the retention
// sweeper.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/auth"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/identity"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/repositories/repomanager"
)

// SessionTracker binds browser sessions to user identities. The session key
// is an opaque uuid stored in user_sessions; callers carry it inside a signed
// transport token (see internal/server/auth).
type SessionTracker struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	logger      logging.Logger
}

func NewSessionTracker(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *SessionTracker {
	return &SessionTracker{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		logger:      logger.With("module", "sessions"),
	}
}

// ResolveOrCreate returns the session for the given transport token, binding
// it to email. An existing session is re-bound to the submitted email even if
// it previously belonged to a different one: the latest submitted email wins.
// When the token is absent, stale, or unknown, a fresh session is minted.
// The returned string is the transport token the caller should carry onward.
func (s *SessionTracker) ResolveOrCreate(ctx context.Context, transportToken string, email string) (*models.Session, string, error) {
	idHash, err := identity.Hash(email)
	if err != nil {
		return nil, "", err
	}

	normalized := identity.NormalizeEmail(email)
	repo := s.repomanager.Sessions(s.db)

	if transportToken != "" {
		sessionKey, err := auth.SessionKeyFromToken(transportToken, s.jwtSecret)
		if err == nil {
			session, err := repo.Get(ctx, sessionKey)
			switch {
			case err == nil:
				if err := repo.Rebind(ctx, sessionKey, normalized, idHash); err != nil {
					return nil, "", fmt.Errorf("error rebinding session: %w", err)
				}
				session.UserEmail = normalized
				session.UserIDHash = idHash
				session.LastActivity = time.Now().UTC()
				return session, transportToken, nil
			case errors.Is(err, common.ErrorNotFound):
				// purged or never existed, fall through and mint
			default:
				return nil, "", common.ErrorInternal
			}
		}
		s.logger.Debug(ctx, "session token not usable, minting new session")
	}

	now := time.Now().UTC()
	session := &models.Session{
		SessionKey:   uuid.NewString(),
		UserEmail:    normalized,
		UserIDHash:   idHash,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := repo.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("error creating session: %w", err)
	}

	token, err := auth.GenerateToken(session.SessionKey, s.jwtSecret)
	if err != nil {
		return nil, "", common.ErrorInternal
	}

	return session, token, nil
}

// Lookup resolves a transport token to its session and refreshes the
// session's last-activity timestamp. A missing, malformed, or unknown token
// means "no identity" and yields (nil, nil), not an error.
func (s *SessionTracker) Lookup(ctx context.Context, transportToken string) (*models.Session, error) {
	if transportToken == "" {
		return nil, nil
	}

	sessionKey, err := auth.SessionKeyFromToken(transportToken, s.jwtSecret)
	if err != nil {
		return nil, nil
	}

	repo := s.repomanager.Sessions(s.db)

	session, err := repo.Get(ctx, sessionKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, common.ErrorInternal
	}

	if err := repo.Touch(ctx, sessionKey); err != nil {
		return nil, common.ErrorInternal
	}
	session.LastActivity = time.Now().UTC()

	return session, nil
}

// PurgeIdle deletes sessions idle for longer than threshold and returns the
// number removed.
func (s *SessionTracker) PurgeIdle(ctx context.Context, threshold time.Duration) (int64, error) {
	repo := s.repomanager.Sessions(s.db)

	cutoff := time.Now().UTC().Add(-threshold)
	count, err := repo.DeleteIdle(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging idle sessions: %w", err)
	}

	if count > 0 {
		s.logger.Info(ctx, "purged idle sessions", "count", count)
	}

	return count, nil
}
