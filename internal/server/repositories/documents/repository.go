package documents

import (
	"context"

	"github.com/babelscrib/babelscrib/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, doc *models.Document) error

	// ListByIdentity returns the identity's documents, newest first.
	ListByIdentity(ctx context.Context, idHash string) ([]*models.Document, error)

	// DeleteByIdentity removes every document row owned by the identity
	// and returns the number deleted.
	DeleteByIdentity(ctx context.Context, idHash string) (int64, error)

	// MarkTranslated flags all of the identity's documents as translated
	// into language, returning the number of rows updated.
	MarkTranslated(ctx context.Context, idHash, language string) (int64, error)

	GetByUserBlobName(ctx context.Context, idHash, userBlobName string) (*models.Document, error)
	GetByTitle(ctx context.Context, idHash, title string) (*models.Document, error)
	GetByBlobSuffix(ctx context.Context, idHash, suffix string) (*models.Document, error)

	Delete(ctx context.Context, id int64) error
	ResetTranslated(ctx context.Context, id int64) error
}
