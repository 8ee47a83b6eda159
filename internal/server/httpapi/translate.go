package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/babelscrib/babelscrib/internal/common"
	"github.com/babelscrib/babelscrib/internal/server/services"
	"github.com/babelscrib/babelscrib/internal/server/translation"
)

type translateRequest struct {
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
	CleanupSource  bool   `json:"cleanup_source"`
}

type translateFailure struct {
	Error     string              `json:"error"`
	Code      string              `json:"code,omitempty"`
	RetrySafe bool                `json:"retry_safe"`
	Result    *services.RunResult `json:"result,omitempty"`
}

// handleTranslate runs a translation over everything the caller uploaded.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	session := s.requireSession(w, r)
	if session == nil {
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TargetLanguage == "" {
		s.writeError(w, http.StatusBadRequest, "target_language is required")
		return
	}

	result, err := s.orchestrator.RunForIdentity(r.Context(), session.UserIDHash, services.RunOptions{
		TargetLanguage: req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
		CleanupSource:  req.CleanupSource,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNoDocuments) {
			s.writeError(w, http.StatusBadRequest, "no documents to translate, upload one first")
			return
		}

		var jobErr *translation.JobError
		if errors.As(err, &jobErr) {
			s.writeJSON(w, http.StatusBadGateway, translateFailure{
				Error:     jobErr.Message,
				Code:      jobErr.Code,
				RetrySafe: jobErr.RetrySafe,
				Result:    result,
			})
			return
		}

		s.logger.Error(r.Context(), "translation run", "identity", session.UserIDHash, "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "translation run failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
