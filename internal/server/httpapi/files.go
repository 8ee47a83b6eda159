package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/babelscrib/babelscrib/internal/common"
)

// handleListFiles returns the caller's documents, newest first.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	docs, err := s.registry.ListFor(r.Context(), session.UserIDHash)
	if err != nil {
		s.logger.Error(r.Context(), "list documents", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "documents could not be listed")
		return
	}

	out := make([]documentDTO, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDTO(doc))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

// handleDownload streams a translated document to its owner. Delivery is
// single shot: after the bytes have gone out, the blob and its metadata row
// are removed, so a second request for the same file returns 404.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	filename := r.PathValue("filename")

	doc, err := s.registry.FindByNameOrTitle(r.Context(), session.UserIDHash, filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.writeError(w, http.StatusNotFound, "no such document")
			return
		}
		s.logger.Error(r.Context(), "resolve download", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "document could not be resolved")
		return
	}

	body, err := s.blobs.Get(r.Context(), s.cfg.TargetContainer, doc.UserBlobName)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "no translated output for this document")
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(filepath.Ext(doc.BlobName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.BlobName+`"`)

	if _, err := io.Copy(w, body); err != nil {
		// bytes already on the wire, nothing sensible to send; keep the
		// document so the caller can retry
		s.logger.Warn(r.Context(), "download interrupted", "blob", doc.UserBlobName, "error", err.Error())
		return
	}

	if err := s.registry.RemoveAfterDelivery(r.Context(), doc); err != nil {
		s.logger.Warn(r.Context(), "post-delivery cleanup failed", "blob", doc.UserBlobName, "error", err.Error())
	}
}

// handleDeleteAllTranslated removes every translated output the caller owns.
func (s *Server) handleDeleteAllTranslated(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	report, err := s.registry.RemoveAllTranslated(r.Context(), session.UserIDHash)
	if err != nil {
		s.logger.Error(r.Context(), "delete translated outputs", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "translated outputs could not be removed")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleDeleteTranslated removes one translated output.
func (s *Server) handleDeleteTranslated(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	filename := r.PathValue("filename")

	doc, err := s.registry.FindByNameOrTitle(r.Context(), session.UserIDHash, filename)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.writeError(w, http.StatusNotFound, "no such document")
			return
		}
		s.logger.Error(r.Context(), "resolve deletion", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "document could not be resolved")
		return
	}

	if !doc.IsTranslated {
		s.writeError(w, http.StatusNotFound, "this document has no translated output")
		return
	}

	if err := s.registry.RemoveTranslated(r.Context(), doc); err != nil {
		s.logger.Error(r.Context(), "delete translated output", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "translated output could not be removed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"message": "deleted", "file": doc.Title})
}
