package sessions

import (
	"context"
	"time"

	"github.com/babelscrib/babelscrib/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, sessionKey string) (*models.Session, error)
	Create(ctx context.Context, session *models.Session) error

	// Rebind updates the email/identity pair of an existing session and
	// refreshes its last-activity timestamp.
	Rebind(ctx context.Context, sessionKey, email, idHash string) error

	// Touch refreshes last_activity only.
	Touch(ctx context.Context, sessionKey string) error

	// DeleteIdle removes sessions whose last activity precedes cutoff and
	// returns the number deleted.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
}
