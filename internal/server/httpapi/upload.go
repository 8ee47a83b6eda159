package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/server/identity"
	"github.com/babelscrib/babelscrib/internal/server/models"
	"github.com/babelscrib/babelscrib/internal/server/services"
)

type documentDTO struct {
	Title               string    `json:"title"`
	BlobName            string    `json:"blob_name"`
	UserBlobName        string    `json:"user_blob_name"`
	IsTranslated        bool      `json:"is_translated"`
	TranslationLanguage *string   `json:"translation_language,omitempty"`
	UploadedAt          time.Time `json:"uploaded_at"`
}

func toDTO(doc *models.Document) documentDTO {
	return documentDTO{
		Title:               doc.Title,
		BlobName:            doc.BlobName,
		UserBlobName:        doc.UserBlobName,
		IsTranslated:        doc.IsTranslated,
		TranslationLanguage: doc.TranslationLanguage,
		UploadedAt:          doc.UploadedAt,
	}
}

type uploadResponse struct {
	Message  string                   `json:"message"`
	File     documentDTO              `json:"file"`
	Replaced *services.DeletionReport `json:"replaced,omitempty"`
}

// handleUpload accepts one multipart document plus the uploader's email.
// Uploading replaces everything the identity previously stored: old rows and
// blobs are cleared, then the new document is stored under the namespaced
// path and recorded.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	email := r.FormValue("email")

	session, token, err := s.sessions.ResolveOrCreate(r.Context(), transportToken(r), email)
	if err != nil {
		if errors.Is(err, common.ErrorInvalidEmail) {
			s.writeError(w, http.StatusBadRequest, "a valid email address is required")
			return
		}
		s.logger.Error(r.Context(), "resolve session", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "session could not be established")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "a file is required")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		s.writeError(w, http.StatusBadRequest, "the uploaded file has no name")
		return
	}

	idHash := session.UserIDHash

	replaced, err := s.registry.ReplaceAllFor(r.Context(), idHash)
	if err != nil {
		s.logger.Error(r.Context(), "replace documents", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "previous documents could not be cleared")
		return
	}

	if err := s.blobs.CreateContainer(r.Context(), s.cfg.SourceContainer); err != nil {
		s.logger.Error(r.Context(), "ensure source container", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "storage is not available")
		return
	}

	userBlobName := identity.Prefix(idHash) + identity.SanitizeFilename(header.Filename)
	if err := s.blobs.Upload(r.Context(), s.cfg.SourceContainer, userBlobName, file, true); err != nil {
		s.logger.Error(r.Context(), "upload blob", "blob", userBlobName, "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "the file could not be stored")
		return
	}

	doc, err := s.registry.RecordUpload(r.Context(), session.UserEmail, idHash, header.Filename, userBlobName)
	if err != nil {
		s.logger.Error(r.Context(), "record upload", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "the upload could not be recorded")
		return
	}

	s.setSessionCookie(w, token)
	s.logger.Info(r.Context(), "document uploaded", "identity", idHash, "blob", userBlobName, "size", header.Size)

	s.writeJSON(w, http.StatusCreated, uploadResponse{
		Message:  "uploaded",
		File:     toDTO(doc),
		Replaced: replaced,
	})
}
