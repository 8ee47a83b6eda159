package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/models"
)

const testIdentity = "0123456789abcdef"

func newRegistry(t *testing.T, repo *fakeDocumentsRepo, blobs *fakeBlobStore) *DocumentRegistry {
	t.Helper()
	return newRegistryWithDB(t, nil, repo, blobs)
}

func newRegistryWithDB(t *testing.T, db *sql.DB, repo *fakeDocumentsRepo, blobs *fakeBlobStore) *DocumentRegistry {
	t.Helper()
	cfg := &config.Config{SourceContainer: "docs-source", TargetContainer: "docs-target"}
	return NewDocumentRegistry(db, &fakeRepoManager{d: repo}, blobs, cfg, newTestLogger())
}

func TestReplaceAllFor(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.put("docs-source", testIdentity+"/a.pdf", []byte("a"), time.Now())
	blobs.put("docs-source", testIdentity+"/b.pdf", []byte("b"), time.Now())
	blobs.put("docs-source", "feedfeedfeedfeed/c.pdf", []byte("c"), time.Now())
	blobs.put("docs-target", testIdentity+"/a.pdf", []byte("a-fr"), time.Now())

	repo := &fakeDocumentsRepo{deleteByIDOut: 2}
	r := newRegistry(t, repo, blobs)

	report, err := r.ReplaceAllFor(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.EqualValues(t, 2, report.RowsDeleted)
	assert.Equal(t, 2, report.SourceBlobsDeleted)
	assert.Equal(t, 1, report.TargetBlobsDeleted)
	assert.Empty(t, report.BlobErrors)

	// another identity's blob stays put
	assert.Len(t, blobs.names("docs-source"), 1, "other identities must be untouched")
}

func TestReplaceAllFor_BlobFailuresTolerated(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.put("docs-source", testIdentity+"/a.pdf", []byte("a"), time.Now())
	blobs.put("docs-source", testIdentity+"/b.pdf", []byte("b"), time.Now())
	blobs.deleteErr["docs-source/"+testIdentity+"/a.pdf"] = errBoom{}

	repo := &fakeDocumentsRepo{deleteByIDOut: 2}
	r := newRegistry(t, repo, blobs)

	report, err := r.ReplaceAllFor(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, 1, report.SourceBlobsDeleted)
	assert.Len(t, report.BlobErrors, 1)
}

func TestReplaceAllFor_MissingContainers(t *testing.T) {
	repo := &fakeDocumentsRepo{deleteByIDOut: 0}
	r := newRegistry(t, repo, newFakeBlobStore())

	report, err := r.ReplaceAllFor(context.Background(), testIdentity)
	require.NoError(t, err)
	assert.Zero(t, report.SourceBlobsDeleted)
	assert.Empty(t, report.BlobErrors, "missing containers are not an error")
}

func TestReplaceAllFor_RowDeletionError(t *testing.T) {
	repo := &fakeDocumentsRepo{deleteByIDErr: errBoom{}}
	r := newRegistry(t, repo, newFakeBlobStore())

	_, err := r.ReplaceAllFor(context.Background(), testIdentity)
	assert.Error(t, err, "row deletion failure must abort")
}

func TestRecordUpload(t *testing.T) {
	repo := &fakeDocumentsRepo{}
	r := newRegistry(t, repo, newFakeBlobStore())

	doc, err := r.RecordUpload(context.Background(), "a@b.com", testIdentity, "report.pdf", testIdentity+"/report.pdf")
	require.NoError(t, err)

	assert.NotZero(t, doc.ID)
	assert.Equal(t, "report.pdf", doc.BlobName)
	assert.Equal(t, testIdentity+"/report.pdf", doc.UserBlobName)
	assert.False(t, doc.IsTranslated, "fresh upload must not be marked translated")
}

func TestFindByNameOrTitle_FallbackOrder(t *testing.T) {
	exact := &models.Document{ID: 1}
	byTitle := &models.Document{ID: 2}
	bySuffix := &models.Document{ID: 3}

	tests := []struct {
		name   string
		repo   *fakeDocumentsRepo
		wantID int64
	}{
		{
			name: "exact blob name wins",
			repo: &fakeDocumentsRepo{
				byUserBlobName: map[string]*models.Document{testIdentity + "/r.pdf": exact},
				byTitle:        map[string]*models.Document{"r.pdf": byTitle},
			},
			wantID: 1,
		},
		{
			name: "title is second",
			repo: &fakeDocumentsRepo{
				byTitle:  map[string]*models.Document{"r.pdf": byTitle},
				bySuffix: map[string]*models.Document{"/r.pdf": bySuffix},
			},
			wantID: 2,
		},
		{
			name:   "suffix is last",
			repo:   &fakeDocumentsRepo{bySuffix: map[string]*models.Document{"/r.pdf": bySuffix}},
			wantID: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry(t, tt.repo, newFakeBlobStore())
			doc, err := r.FindByNameOrTitle(context.Background(), testIdentity, "r.pdf")
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, doc.ID)
		})
	}
}

func TestFindByNameOrTitle_NotFound(t *testing.T) {
	r := newRegistry(t, &fakeDocumentsRepo{}, newFakeBlobStore())

	_, err := r.FindByNameOrTitle(context.Background(), testIdentity, "missing.pdf")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRemoveAfterDelivery(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.put("docs-target", testIdentity+"/r.pdf", []byte("fr"), time.Now())

	repo := &fakeDocumentsRepo{}
	r := newRegistry(t, repo, blobs)

	doc := &models.Document{ID: 7, UserIDHash: testIdentity, UserBlobName: testIdentity + "/r.pdf"}
	require.NoError(t, r.RemoveAfterDelivery(context.Background(), doc))

	assert.Empty(t, blobs.names("docs-target"), "delivered blob must be gone")
	assert.Equal(t, []int64{7}, repo.deleted)
}

func TestRemoveAllTranslated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	blobs := newFakeBlobStore()
	blobs.put("docs-target", testIdentity+"/a.pdf", []byte("fr"), time.Now())

	lang := "fr"
	repo := &fakeDocumentsRepo{docs: []*models.Document{
		{ID: 1, UserIDHash: testIdentity, UserBlobName: testIdentity + "/a.pdf", IsTranslated: true, TranslationLanguage: &lang},
		{ID: 2, UserIDHash: testIdentity, UserBlobName: testIdentity + "/b.pdf"},
	}}
	r := newRegistryWithDB(t, db, repo, blobs)

	report, err := r.RemoveAllTranslated(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TargetBlobsDeleted)
	assert.Equal(t, []int64{1}, repo.resetted, "untranslated docs must be skipped")
	require.NoError(t, mock.ExpectationsWereMet())
}
