// Package models defines the persisted row types of the server.
package models

import "time"

// Document is the local index entry for one uploaded file. UserBlobName is
// the namespaced path inside the shared source container and always starts
// with "{UserIDHash}/".
type Document struct {
	ID                  int64
	Title               string
	UserEmail           string
	UserIDHash          string
	BlobName            string
	UserBlobName        string
	IsTranslated        bool
	TranslationLanguage *string
	UploadedAt          time.Time
}
