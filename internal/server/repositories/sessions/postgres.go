// Package sessions provides the PostgreSQL-backed repository for transport
// session rows.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/dbx"
	"github.com/babelscrib/babelscrib/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, sessionKey string) (*models.Session, error) {
	query := `
		SELECT session_key, user_email, user_id_hash, created_at, last_activity
		FROM user_sessions
		WHERE session_key = $1
	`

	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionKey).Scan(
		&s.SessionKey, &s.UserEmail, &s.UserIDHash, &s.CreatedAt, &s.LastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO user_sessions (session_key, user_email, user_id_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, last_activity
	`

	err := r.db.QueryRowContext(ctx, query,
		session.SessionKey, session.UserEmail, session.UserIDHash).
		Scan(&session.CreatedAt, &session.LastActivity)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Rebind(ctx context.Context, sessionKey, email, idHash string) error {
	query := `
		UPDATE user_sessions
		SET user_email = $2, user_id_hash = $3, last_activity = now()
		WHERE session_key = $1
	`

	res, err := r.db.ExecContext(ctx, query, sessionKey, email, idHash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) Touch(ctx context.Context, sessionKey string) error {
	query := `UPDATE user_sessions SET last_activity = now() WHERE session_key = $1`

	_, err := r.db.ExecContext(ctx, query, sessionKey)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM user_sessions WHERE last_activity < $1`

	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}
