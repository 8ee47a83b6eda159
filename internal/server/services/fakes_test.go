package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/dbx"
	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/repositories/documents"
	"github.com/babelscrib/babelscrib/internal/server/repositories/sessions"
	"github.com/babelscrib/babelscrib/internal/server/storage"
	"github.com/babelscrib/babelscrib/internal/server/translation"
)

func newTestLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// --- fake repositories ---

type fakeSessionsRepo struct {
	byKey map[string]*models.Session

	created   []*models.Session
	rebound   []string
	touched   []string
	createErr error
	rebindErr error
	touchErr  error

	deleteIdleOut int64
	deleteIdleErr error
}

func (f *fakeSessionsRepo) Get(ctx context.Context, sessionKey string) (*models.Session, error) {
	if s, ok := f.byKey[sessionKey]; ok {
		copy := *s
		return &copy, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeSessionsRepo) Create(ctx context.Context, session *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, session)
	return nil
}

func (f *fakeSessionsRepo) Rebind(ctx context.Context, sessionKey, email, idHash string) error {
	if f.rebindErr != nil {
		return f.rebindErr
	}
	f.rebound = append(f.rebound, sessionKey)
	return nil
}

func (f *fakeSessionsRepo) Touch(ctx context.Context, sessionKey string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, sessionKey)
	return nil
}

func (f *fakeSessionsRepo) DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.deleteIdleOut, f.deleteIdleErr
}

type fakeDocumentsRepo struct {
	docs []*models.Document

	createErr      error
	deleteByIDOut  int64
	deleteByIDErr  error
	markOut        int64
	markErr        error
	deleted        []int64
	resetted       []int64
	deleteErr      error
	resetErr       error
	byUserBlobName map[string]*models.Document
	byTitle        map[string]*models.Document
	bySuffix       map[string]*models.Document
}

func (f *fakeDocumentsRepo) Create(ctx context.Context, doc *models.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	doc.ID = int64(len(f.docs) + 1)
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeDocumentsRepo) ListByIdentity(ctx context.Context, idHash string) ([]*models.Document, error) {
	return f.docs, nil
}

func (f *fakeDocumentsRepo) DeleteByIdentity(ctx context.Context, idHash string) (int64, error) {
	return f.deleteByIDOut, f.deleteByIDErr
}

func (f *fakeDocumentsRepo) MarkTranslated(ctx context.Context, idHash, language string) (int64, error) {
	return f.markOut, f.markErr
}

func (f *fakeDocumentsRepo) GetByUserBlobName(ctx context.Context, idHash, userBlobName string) (*models.Document, error) {
	if d, ok := f.byUserBlobName[userBlobName]; ok {
		return d, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDocumentsRepo) GetByTitle(ctx context.Context, idHash, title string) (*models.Document, error) {
	if d, ok := f.byTitle[title]; ok {
		return d, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDocumentsRepo) GetByBlobSuffix(ctx context.Context, idHash, suffix string) (*models.Document, error) {
	if d, ok := f.bySuffix[suffix]; ok {
		return d, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeDocumentsRepo) Delete(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeDocumentsRepo) ResetTranslated(ctx context.Context, id int64) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetted = append(f.resetted, id)
	return nil
}

type fakeRepoManager struct {
	s *fakeSessionsRepo
	d *fakeDocumentsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessions.Repository     { return m.s }
func (m *fakeRepoManager) Documents(db dbx.DBTX) documents.Repository   { return m.d }

// --- fake blob store ---

type fakeBlob struct {
	data     []byte
	modified time.Time
}

// fakeBlobStore is an in-memory BlobStore with per-call error injection
// keyed by "container" or "container/name".
type fakeBlobStore struct {
	mu         sync.Mutex
	containers map[string]map[string]fakeBlob

	createErr    map[string]error
	deleteCtrErr map[string]error
	listErr      map[string]error
	copyErr      map[string]error
	deleteErr    map[string]error
	uploadErr    map[string]error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		containers:   map[string]map[string]fakeBlob{},
		createErr:    map[string]error{},
		deleteCtrErr: map[string]error{},
		listErr:      map[string]error{},
		copyErr:      map[string]error{},
		deleteErr:    map[string]error{},
		uploadErr:    map[string]error{},
	}
}

func (f *fakeBlobStore) put(container, name string, data []byte, modified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.containers[container] == nil {
		f.containers[container] = map[string]fakeBlob{}
	}
	f.containers[container][name] = fakeBlob{data: data, modified: modified}
}

func (f *fakeBlobStore) CreateContainer(ctx context.Context, container string) error {
	if err := f.createErr[container]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.containers[container] == nil {
		f.containers[container] = map[string]fakeBlob{}
	}
	return nil
}

func (f *fakeBlobStore) DeleteContainer(ctx context.Context, container string) error {
	// "*" fails every deletion; scratch container names carry random run IDs
	if err := f.deleteCtrErr["*"]; err != nil {
		return err
	}
	if err := f.deleteCtrErr[container]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, container)
	return nil
}

func (f *fakeBlobStore) ListBlobs(ctx context.Context, container, prefix string) ([]storage.BlobInfo, error) {
	if err := f.listErr[container]; err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	blobs, ok := f.containers[container]
	if !ok {
		return nil, storage.ErrContainerNotFound
	}
	var out []storage.BlobInfo
	for name, b := range blobs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, storage.BlobInfo{Name: name, LastModified: b.modified, Size: int64(len(b.data))})
		}
	}
	return out, nil
}

func (f *fakeBlobStore) Get(ctx context.Context, container, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blobs, ok := f.containers[container]
	if !ok {
		return nil, storage.ErrContainerNotFound
	}
	b, ok := blobs[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (f *fakeBlobStore) Upload(ctx context.Context, container, name string, body io.Reader, overwrite bool) error {
	if err := f.uploadErr[container+"/"+name]; err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.put(container, name, data, time.Now())
	return nil
}

func (f *fakeBlobStore) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	if err := f.copyErr[srcContainer+"/"+srcName]; err != nil {
		return err
	}
	f.mu.Lock()
	src, ok := f.containers[srcContainer]
	if !ok {
		f.mu.Unlock()
		return storage.ErrContainerNotFound
	}
	b, ok := src[srcName]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("blob %s/%s not found", srcContainer, srcName)
	}
	f.put(dstContainer, dstName, b.data, b.modified)
	return nil
}

func (f *fakeBlobStore) DeleteBlob(ctx context.Context, container, name string) error {
	if err := f.deleteErr[container+"/"+name]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if blobs, ok := f.containers[container]; ok {
		delete(blobs, name)
	}
	return nil
}

func (f *fakeBlobStore) Exists(ctx context.Context, container, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blobs, ok := f.containers[container]
	if !ok {
		return false, nil
	}
	_, ok = blobs[name]
	return ok, nil
}

func (f *fakeBlobStore) ContainerURI(container string) string {
	return "https://blobs.local/" + container
}

func (f *fakeBlobStore) names(container string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.containers[container] {
		out = append(out, name)
	}
	return out
}

func (f *fakeBlobStore) hasContainer(container string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.containers[container]
	return ok
}

// containerFromURI undoes fakeBlobStore.ContainerURI.
func containerFromURI(uri string) string {
	return strings.TrimPrefix(uri, "https://blobs.local/")
}

// --- fake translation job ---

type fakeJob struct {
	blobs *fakeBlobStore

	submitErr error
	waitErr   error
	result    *translation.BatchResult

	submitted []translation.BatchRequest

	// translate controls whether Wait copies staged blobs into the target
	// container, imitating the service writing its outputs.
	translate bool
}

func (f *fakeJob) Submit(ctx context.Context, req translation.BatchRequest) (*translation.RunHandle, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return &translation.RunHandle{OperationURL: "https://translator.local/op/1"}, nil
}

func (f *fakeJob) Wait(ctx context.Context, handle *translation.RunHandle) (*translation.BatchResult, error) {
	if f.translate && len(f.submitted) > 0 {
		req := f.submitted[len(f.submitted)-1]
		src := containerFromURI(req.SourceURI)
		dst := containerFromURI(req.TargetURI)
		for _, name := range f.blobs.names(src) {
			_ = f.blobs.Copy(ctx, src, name, dst, name)
		}
	}
	if f.waitErr != nil {
		return f.result, f.waitErr
	}
	return f.result, nil
}

// --- fake document index ---

type fakeIndex struct {
	docs    []*models.Document
	listErr error

	markedLanguage string
	markOut        int64
	markErr        error
}

func (f *fakeIndex) ListFor(ctx context.Context, idHash string) ([]*models.Document, error) {
	return f.docs, f.listErr
}

func (f *fakeIndex) MarkTranslated(ctx context.Context, idHash, language string) (int64, error) {
	f.markedLanguage = language
	return f.markOut, f.markErr
}
