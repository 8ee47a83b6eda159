// Package translation defines the asynchronous batch-translation collaborator
// and its REST client. A job translates every document in a source container
// into a target container for one language pair.
package translation

import "context"

// Batch operation statuses reported by the service.
const (
	StatusNotStarted = "NotStarted"
	StatusRunning    = "Running"
	StatusSucceeded  = "Succeeded"
	StatusFailed     = "Failed"
	StatusValidation = "ValidationFailed"
	StatusCancelled  = "Cancelled"
)

// BatchRequest describes one translation run over a container pair. An empty
// SourceLanguage asks the service to auto-detect.
type BatchRequest struct {
	SourceURI      string
	TargetURI      string
	TargetLanguage string
	SourceLanguage string
}

// RunHandle identifies a submitted batch operation.
type RunHandle struct {
	OperationURL string
}

// DocumentError carries the service's per-document failure detail.
type DocumentError struct {
	Code    string
	Message string
}

// DocumentStatus is the outcome of one document within a batch.
type DocumentStatus struct {
	ID                 string
	Status             string
	SourceFilename     string
	TranslatedFilename string
	TranslatedTo       string
	Error              *DocumentError
}

// BatchResult is the terminal state of a batch operation.
type BatchResult struct {
	Status    string
	Total     int
	Succeeded int
	Failed    int
	Documents []DocumentStatus
}

// Job is the external translation collaborator. Submit starts a batch and
// returns immediately; Wait blocks until the operation reaches a terminal
// status or the client's wait deadline passes.
type Job interface {
	Submit(ctx context.Context, req BatchRequest) (*RunHandle, error)
	Wait(ctx context.Context, handle *RunHandle) (*BatchResult, error)
}

// JobError wraps a failure reported by the translation service. RetrySafe is
// set when the underlying cause is a stale target conflict, which a rerun
// with fresh scratch containers avoids.
type JobError struct {
	Code    string
	Message string

	RetrySafe bool
}

func (e *JobError) Error() string {
	if e.Code == "" {
		return "translation job failed: " + e.Message
	}
	return "translation job failed: " + e.Code + ": " + e.Message
}

// IsTerminal reports whether a batch status is final.
func IsTerminal(status string) bool {
	switch status {
	case StatusSucceeded, StatusFailed, StatusValidation, StatusCancelled:
		return true
	}
	return false
}
