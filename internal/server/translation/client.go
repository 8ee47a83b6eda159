package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker/v2"

	"github.com/babelscrib/babelscrib/internal/logging"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultWaitTimeout  = 30 * time.Minute

	// error code the service reports when a translated file already sits
	// in the target container
	codeTargetExists = "TargetFileAlreadyExists"
)

// ClientOptions configures the REST client.
type ClientOptions struct {
	Endpoint string
	APIKey   string

	// PollInterval is the gap between status polls; WaitTimeout bounds the
	// total time Wait spends on one operation. Zero values pick defaults.
	PollInterval time.Duration
	WaitTimeout  time.Duration
}

// Client talks to the batch document-translation REST API. Submissions go
// through a circuit breaker so a broken upstream fails fast instead of
// stacking up blocked workers.
type Client struct {
	endpoint     string
	apiKey       string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*RunHandle]
	pollInterval time.Duration
	waitTimeout  time.Duration
	logger       logging.Logger
}

// NewClient builds a Client for the given endpoint and key.
func NewClient(opts ClientOptions, logger logging.Logger) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("translation endpoint is required")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("translation API key is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}

	breaker := gobreaker.NewCircuitBreaker[*RunHandle](gobreaker.Settings{
		Name:    "translation-submit",
		Timeout: 60 * time.Second,
	})

	return &Client{
		endpoint:     strings.TrimRight(opts.Endpoint, "/"),
		apiKey:       opts.APIKey,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		breaker:      breaker,
		pollInterval: pollInterval,
		waitTimeout:  waitTimeout,
		logger:       logger.With("module", "translation_client"),
	}, nil
}

type batchSource struct {
	SourceURL string `json:"sourceUrl"`
	Language  string `json:"language,omitempty"`
}

type batchTarget struct {
	TargetURL string `json:"targetUrl"`
	Language  string `json:"language"`
}

type batchInput struct {
	Source  batchSource   `json:"source"`
	Targets []batchTarget `json:"targets"`
}

type batchSubmission struct {
	Inputs []batchInput `json:"inputs"`
}

type serviceError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit starts a batch translation and returns a handle for Wait.
func (c *Client) Submit(ctx context.Context, req BatchRequest) (*RunHandle, error) {
	body, err := json.Marshal(batchSubmission{
		Inputs: []batchInput{{
			Source: batchSource{SourceURL: req.SourceURI, Language: req.SourceLanguage},
			Targets: []batchTarget{{
				TargetURL: req.TargetURI,
				Language:  req.TargetLanguage,
			}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	handle, err := c.breaker.Execute(func() (*RunHandle, error) {
		return c.submitOnce(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "batch submitted", "operation", handle.OperationURL, "target_language", req.TargetLanguage)
	return handle, nil
}

func (c *Client) submitOnce(ctx context.Context, body []byte) (*RunHandle, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/batches", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusCreated {
		return nil, c.parseServiceError(resp)
	}

	operation := resp.Header.Get("Operation-Location")
	if operation == "" {
		return nil, &JobError{Code: "MissingOperationLocation", Message: "service accepted the batch without an operation URL"}
	}

	return &RunHandle{OperationURL: operation}, nil
}

type operationStatus struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Summary struct {
		Total   int `json:"total"`
		Success int `json:"success"`
		Failed  int `json:"failed"`
	} `json:"summary"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type documentList struct {
	Value []struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		SourcePath string `json:"sourcePath"`
		Path       string `json:"path"`
		To         string `json:"to"`
		Error      *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"value"`
}

// Wait polls the operation until it reaches a terminal status, then fetches
// the per-document outcomes. The poll loop is bounded by the configured wait
// timeout; hitting it yields a definite JobError instead of hanging.
func (c *Client) Wait(ctx context.Context, handle *RunHandle) (*BatchResult, error) {
	var status operationStatus

	backoff := retry.WithMaxDuration(c.waitTimeout, retry.NewConstant(c.pollInterval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := c.fetchStatus(ctx, handle.OperationURL)
		if err != nil {
			return err
		}
		status = *s
		if !IsTerminal(status.Status) {
			return retry.RetryableError(fmt.Errorf("operation %s still %s", status.ID, status.Status))
		}
		return nil
	})
	if err != nil {
		if !IsTerminal(status.Status) {
			return nil, &JobError{Code: "OperationTimeout", Message: fmt.Sprintf("operation did not finish within %s", c.waitTimeout)}
		}
		return nil, err
	}

	result := &BatchResult{
		Status:    status.Status,
		Total:     status.Summary.Total,
		Succeeded: status.Summary.Success,
		Failed:    status.Summary.Failed,
	}

	docs, err := c.fetchDocuments(ctx, handle.OperationURL)
	if err != nil {
		// terminal status is already known; per-document detail is
		// diagnostic only
		c.logger.Warn(ctx, "failed to fetch per-document results", "error", err.Error())
	} else {
		result.Documents = docs
	}

	if status.Status != StatusSucceeded {
		jobErr := &JobError{Code: "BatchFailed", Message: "batch finished with status " + status.Status}
		if status.Error != nil {
			jobErr.Code = status.Error.Code
			jobErr.Message = status.Error.Message
		}
		for _, d := range result.Documents {
			if d.Error != nil && d.Error.Code == codeTargetExists {
				jobErr.RetrySafe = true
				break
			}
		}
		if jobErr.Code == codeTargetExists {
			jobErr.RetrySafe = true
		}
		return result, jobErr
	}

	return result, nil
}

func (c *Client) fetchStatus(ctx context.Context, operationURL string) (*operationStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("poll operation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseServiceError(resp)
	}

	var status operationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode operation status: %w", err)
	}
	return &status, nil
}

func (c *Client) fetchDocuments(ctx context.Context, operationURL string) ([]DocumentStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL+"/documents", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseServiceError(resp)
	}

	var list documentList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode document list: %w", err)
	}

	docs := make([]DocumentStatus, 0, len(list.Value))
	for _, d := range list.Value {
		status := DocumentStatus{
			ID:                 d.ID,
			Status:             d.Status,
			SourceFilename:     filenameFromPath(d.SourcePath),
			TranslatedFilename: filenameFromPath(d.Path),
			TranslatedTo:       d.To,
		}
		if d.Error != nil {
			status.Error = &DocumentError{Code: d.Error.Code, Message: d.Error.Message}
		}
		docs = append(docs, status)
	}
	return docs, nil
}

func (c *Client) parseServiceError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var svcErr serviceError
	if err := json.Unmarshal(body, &svcErr); err == nil && svcErr.Error.Code != "" {
		return &JobError{
			Code:      svcErr.Error.Code,
			Message:   svcErr.Error.Message,
			RetrySafe: svcErr.Error.Code == codeTargetExists,
		}
	}

	return &JobError{
		Code:    fmt.Sprintf("HTTP%d", resp.StatusCode),
		Message: strings.TrimSpace(string(body)),
	}
}

func filenameFromPath(p string) string {
	if p == "" {
		return ""
	}
	// paths may arrive as full URLs with query strings
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return path.Base(p)
}
