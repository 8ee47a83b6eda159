package httpapi

import (
	"context"
	"net/http"
	"time"
)

// Language is one entry of the supported-languages list.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// supportedLanguages is the set of translation targets offered by the
// service. Codes follow BCP 47 as the translation API expects them.
var supportedLanguages = []Language{
	{Code: "ar", Name: "Arabic"},
	{Code: "bg", Name: "Bulgarian"},
	{Code: "cs", Name: "Czech"},
	{Code: "da", Name: "Danish"},
	{Code: "de", Name: "German"},
	{Code: "el", Name: "Greek"},
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "et", Name: "Estonian"},
	{Code: "fi", Name: "Finnish"},
	{Code: "fr", Name: "French"},
	{Code: "he", Name: "Hebrew"},
	{Code: "hi", Name: "Hindi"},
	{Code: "hr", Name: "Croatian"},
	{Code: "hu", Name: "Hungarian"},
	{Code: "id", Name: "Indonesian"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "lt", Name: "Lithuanian"},
	{Code: "lv", Name: "Latvian"},
	{Code: "nl", Name: "Dutch"},
	{Code: "no", Name: "Norwegian"},
	{Code: "pl", Name: "Polish"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ro", Name: "Romanian"},
	{Code: "ru", Name: "Russian"},
	{Code: "sk", Name: "Slovak"},
	{Code: "sl", Name: "Slovenian"},
	{Code: "sv", Name: "Swedish"},
	{Code: "th", Name: "Thai"},
	{Code: "tr", Name: "Turkish"},
	{Code: "uk", Name: "Ukrainian"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "zh-Hans", Name: "Chinese (Simplified)"},
	{Code: "zh-Hant", Name: "Chinese (Traditional)"},
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"languages": supportedLanguages})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the service can take traffic: the database
// must answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
