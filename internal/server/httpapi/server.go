// Package httpapi exposes the service over HTTP: uploads, translation runs,
// listings, single-delivery downloads, and deletion of translated outputs.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/babelscrib/babelscrib/internal/logging"
	"github.com/babelscrib/babelscrib/internal/server/config"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/services"
	"github.com/babelscrib/babelscrib/internal/server/storage"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "babelscrib_session"

// maxUploadSize bounds one multipart upload.
const maxUploadSize = 64 << 20

// SessionTracker is the slice of the session service the handlers need.
type SessionTracker interface {
	ResolveOrCreate(ctx context.Context, transportToken, email string) (*models.Session, string, error)
	Lookup(ctx context.Context, transportToken string) (*models.Session, error)
}

// DocumentRegistry is the slice of the registry the handlers need.
type DocumentRegistry interface {
	ReplaceAllFor(ctx context.Context, idHash string) (*services.DeletionReport, error)
	RecordUpload(ctx context.Context, email, idHash, title, userBlobName string) (*models.Document, error)
	ListFor(ctx context.Context, idHash string) ([]*models.Document, error)
	FindByNameOrTitle(ctx context.Context, idHash, filename string) (*models.Document, error)
	RemoveAfterDelivery(ctx context.Context, doc *models.Document) error
	RemoveTranslated(ctx context.Context, doc *models.Document) error
	RemoveAllTranslated(ctx context.Context, idHash string) (*services.DeletionReport, error)
}

// Orchestrator runs translation for one identity.
type Orchestrator interface {
	RunForIdentity(ctx context.Context, idHash string, opts services.RunOptions) (*services.RunResult, error)
}

// Pinger reports database liveness for the readiness probe.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server holds the handler dependencies.
type Server struct {
	cfg          *config.Config
	sessions     SessionTracker
	registry     DocumentRegistry
	orchestrator Orchestrator
	blobs        storage.BlobStore
	db           Pinger
	logger       logging.Logger
}

func NewServer(cfg *config.Config, sessions SessionTracker, registry DocumentRegistry, orchestrator Orchestrator, blobs storage.BlobStore, db Pinger, logger logging.Logger) *Server {
	return &Server{
		cfg:          cfg,
		sessions:     sessions,
		registry:     registry,
		orchestrator: orchestrator,
		blobs:        blobs,
		db:           db,
		logger:       logger.With("module", "httpapi"),
	}
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /translate", s.handleTranslate)
	mux.HandleFunc("GET /files", s.handleListFiles)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("DELETE /files", s.handleDeleteAllTranslated)
	mux.HandleFunc("DELETE /files/{filename}", s.handleDeleteTranslated)
	mux.HandleFunc("GET /languages", s.handleLanguages)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	return mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(context.Background(), "encode response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// transportToken extracts the session token from the request cookie.
func transportToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// requireSession resolves the caller's session or writes a 401.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *models.Session {
	session, err := s.sessions.Lookup(r.Context(), transportToken(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "session lookup failed")
		return nil
	}
	if session == nil {
		s.writeError(w, http.StatusUnauthorized, "no active session, upload a document first")
		return nil
	}
	return session
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
