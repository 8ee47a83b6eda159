package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// a translate request for an identity that has nothing uploaded
	ErrorNoDocuments = errors.New("no documents to translate")

	// blob store connection settings are missing or malformed
	ErrorStorageUnavailable = errors.New("storage unavailable")

	ErrorInvalidEmail = errors.New("invalid email")
	ErrorInvalidToken = errors.New("invalid token")
)
