// Package documents provides the PostgreSQL-backed repository for the local
// document index.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/dbx"
	"github.com/babelscrib/babelscrib/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const documentColumns = `id, title, user_email, user_id_hash, blob_name, user_blob_name, is_translated, translation_language, uploaded_at`

func scanDocument(row interface{ Scan(dest ...any) error }) (*models.Document, error) {
	d := &models.Document{}
	var lang sql.NullString

	err := row.Scan(&d.ID, &d.Title, &d.UserEmail, &d.UserIDHash,
		&d.BlobName, &d.UserBlobName, &d.IsTranslated, &lang, &d.UploadedAt)
	if err != nil {
		return nil, err
	}
	if lang.Valid {
		d.TranslationLanguage = &lang.String
	}

	return d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (title, user_email, user_id_hash, blob_name, user_blob_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, uploaded_at
	`

	err := r.db.QueryRowContext(ctx, query,
		doc.Title, doc.UserEmail, doc.UserIDHash, doc.BlobName, doc.UserBlobName).
		Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListByIdentity(ctx context.Context, idHash string) ([]*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id_hash = $1
		ORDER BY uploaded_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, idHash)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) DeleteByIdentity(ctx context.Context, idHash string) (int64, error) {
	query := `DELETE FROM documents WHERE user_id_hash = $1`

	res, err := r.db.ExecContext(ctx, query, idHash)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) MarkTranslated(ctx context.Context, idHash, language string) (int64, error) {
	query := `
		UPDATE documents
		SET is_translated = true, translation_language = $2
		WHERE user_id_hash = $1
	`

	res, err := r.db.ExecContext(ctx, query, idHash, language)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) GetByUserBlobName(ctx context.Context, idHash, userBlobName string) (*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id_hash = $1 AND user_blob_name = $2
		ORDER BY uploaded_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, idHash, userBlobName)
}

func (r *PostgresRepository) GetByTitle(ctx context.Context, idHash, title string) (*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id_hash = $1 AND title = $2
		ORDER BY uploaded_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, idHash, title)
}

func (r *PostgresRepository) GetByBlobSuffix(ctx context.Context, idHash, suffix string) (*models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE user_id_hash = $1 AND user_blob_name LIKE '%' || $2
		ORDER BY uploaded_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, idHash, suffix)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM documents WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ResetTranslated(ctx context.Context, id int64) error {
	query := `
		UPDATE documents
		SET is_translated = false, translation_language = NULL
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
