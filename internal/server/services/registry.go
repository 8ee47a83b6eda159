package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/dbx"
	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/identity"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/repositories/repomanager"
	"github.com/babelscrib/babelscrib/internal/server/storage"
)

// DeletionReport summarizes a replace-all pass. Row deletion is
// authoritative; blob deletions are best effort and failures are counted
// rather than raised.
type DeletionReport struct {
	RowsDeleted        int64    `json:"rows_deleted"`
	SourceBlobsDeleted int      `json:"source_blobs_deleted"`
	TargetBlobsDeleted int      `json:"target_blobs_deleted"`
	BlobErrors         []string `json:"blob_errors,omitempty"`
}

// DocumentRegistry maintains per-identity document metadata and keeps it
// aligned with the blobs in the shared source and target containers.
type DocumentRegistry struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	blobs           storage.BlobStore
	sourceContainer string
	targetContainer string
	logger          logging.Logger
}

func NewDocumentRegistry(db *sql.DB, m repomanager.RepositoryManager, blobs storage.BlobStore, cfg *config.Config, logger logging.Logger) *DocumentRegistry {
	return &DocumentRegistry{
		db:              db,
		repomanager:     m,
		blobs:           blobs,
		sourceContainer: cfg.SourceContainer,
		targetContainer: cfg.TargetContainer,
		logger:          logger.With("module", "registry"),
	}
}

// ReplaceAllFor clears everything the identity owns ahead of a fresh upload:
// all document rows, then all blobs under the identity's prefix in both the
// source and target containers. Blob deletion failures do not abort the
// operation; they are reported in the returned DeletionReport.
func (r *DocumentRegistry) ReplaceAllFor(ctx context.Context, idHash string) (*DeletionReport, error) {
	repo := r.repomanager.Documents(r.db)

	rows, err := repo.DeleteByIdentity(ctx, idHash)
	if err != nil {
		return nil, fmt.Errorf("error deleting document rows: %w", err)
	}

	report := &DeletionReport{RowsDeleted: rows}
	report.SourceBlobsDeleted = r.deletePrefix(ctx, r.sourceContainer, idHash, report)
	report.TargetBlobsDeleted = r.deletePrefix(ctx, r.targetContainer, idHash, report)

	return report, nil
}

func (r *DocumentRegistry) deletePrefix(ctx context.Context, container, idHash string, report *DeletionReport) int {
	blobs, err := r.blobs.ListBlobs(ctx, container, identity.Prefix(idHash))
	if err != nil {
		if errors.Is(err, storage.ErrContainerNotFound) {
			return 0
		}
		report.BlobErrors = append(report.BlobErrors, fmt.Sprintf("list %s: %v", container, err))
		return 0
	}

	deleted := 0
	for _, b := range blobs {
		if err := r.blobs.DeleteBlob(ctx, container, b.Name); err != nil {
			report.BlobErrors = append(report.BlobErrors, fmt.Sprintf("delete %s/%s: %v", container, b.Name, err))
			continue
		}
		deleted++
	}
	return deleted
}

// RecordUpload inserts the metadata row for a freshly uploaded blob.
func (r *DocumentRegistry) RecordUpload(ctx context.Context, email, idHash, title, userBlobName string) (*models.Document, error) {
	doc := &models.Document{
		Title:        title,
		UserEmail:    email,
		UserIDHash:   idHash,
		BlobName:     identity.SanitizeFilename(title),
		UserBlobName: userBlobName,
		UploadedAt:   time.Now().UTC(),
	}

	repo := r.repomanager.Documents(r.db)
	if err := repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("error recording upload: %w", err)
	}

	return doc, nil
}

// ListFor returns the identity's documents, newest first.
func (r *DocumentRegistry) ListFor(ctx context.Context, idHash string) ([]*models.Document, error) {
	repo := r.repomanager.Documents(r.db)

	docs, err := repo.ListByIdentity(ctx, idHash)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}

	return docs, nil
}

// MarkTranslated flags every document of the identity as translated into
// language, returning the number of rows updated.
func (r *DocumentRegistry) MarkTranslated(ctx context.Context, idHash, language string) (int64, error) {
	repo := r.repomanager.Documents(r.db)

	count, err := repo.MarkTranslated(ctx, idHash, language)
	if err != nil {
		return 0, fmt.Errorf("error marking documents translated: %w", err)
	}

	return count, nil
}

// FindByNameOrTitle resolves a user-facing filename to a document. Lookup
// order: exact namespaced blob name, then original title, then blob-name
// suffix. The suffix pass tolerates callers that only know the sanitized
// name of a blob. Returns common.ErrorNotFound when nothing matches.
func (r *DocumentRegistry) FindByNameOrTitle(ctx context.Context, idHash, filename string) (*models.Document, error) {
	repo := r.repomanager.Documents(r.db)

	exact := idHash + "/" + identity.SanitizeFilename(filename)
	doc, err := repo.GetByUserBlobName(ctx, idHash, exact)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error resolving document: %w", err)
	}

	doc, err = repo.GetByTitle(ctx, idHash, filename)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error resolving document: %w", err)
	}

	doc, err = repo.GetByBlobSuffix(ctx, idHash, "/"+identity.SanitizeFilename(filename))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error resolving document: %w", err)
	}

	return doc, nil
}

// RemoveAfterDelivery deletes a document's translated blob and its metadata
// row once the translated file has been streamed to its owner. Downloads are
// single delivery: after this call the document is gone.
func (r *DocumentRegistry) RemoveAfterDelivery(ctx context.Context, doc *models.Document) error {
	if err := r.blobs.DeleteBlob(ctx, r.targetContainer, doc.UserBlobName); err != nil {
		return fmt.Errorf("error deleting delivered blob: %w", err)
	}

	repo := r.repomanager.Documents(r.db)
	if err := repo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("error deleting delivered document row: %w", err)
	}

	r.logger.Info(ctx, "document delivered and removed", "identity", doc.UserIDHash, "blob", doc.UserBlobName)
	return nil
}

// RemoveTranslated deletes one document's translated output blob and clears
// its translated flag, keeping the source upload intact.
func (r *DocumentRegistry) RemoveTranslated(ctx context.Context, doc *models.Document) error {
	if err := r.blobs.DeleteBlob(ctx, r.targetContainer, doc.UserBlobName); err != nil {
		return fmt.Errorf("error deleting translated blob: %w", err)
	}

	repo := r.repomanager.Documents(r.db)
	if err := repo.ResetTranslated(ctx, doc.ID); err != nil {
		return fmt.Errorf("error resetting translated flag: %w", err)
	}

	return nil
}

// RemoveAllTranslated clears every translated output the identity owns and
// resets the flags of the affected rows. Blob failures are reported in the
// DeletionReport, not raised.
func (r *DocumentRegistry) RemoveAllTranslated(ctx context.Context, idHash string) (*DeletionReport, error) {
	docs, err := r.ListFor(ctx, idHash)
	if err != nil {
		return nil, err
	}

	report := &DeletionReport{}

	var cleared []int64
	for _, doc := range docs {
		if !doc.IsTranslated {
			continue
		}
		if err := r.blobs.DeleteBlob(ctx, r.targetContainer, doc.UserBlobName); err != nil {
			report.BlobErrors = append(report.BlobErrors, fmt.Sprintf("delete %s/%s: %v", r.targetContainer, doc.UserBlobName, err))
			continue
		}
		report.TargetBlobsDeleted++
		cleared = append(cleared, doc.ID)
	}

	if len(cleared) == 0 {
		return report, nil
	}

	// the flags come off together: a half-reset listing is confusing
	if err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := r.repomanager.Documents(tx)
		for _, id := range cleared {
			if err := repoTx.ResetTranslated(ctx, id); err != nil {
				return fmt.Errorf("error resetting translated flag: %w", err)
			}
		}
		return nil
	}); err != nil {
		return report, err
	}
	report.RowsDeleted = int64(len(cleared))

	return report, nil
}
