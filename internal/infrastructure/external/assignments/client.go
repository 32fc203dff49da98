// Package assignments implements the HTTP client of the assignment/question
// collaborator. The collaborator owns the mapping from classes to the concept
// names required for mastery, the engine only consumes it for gap analysis.
package assignments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/edubridge/mastery-graph/internal/domain/shared"
	"github.com/edubridge/mastery-graph/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the assignments client.
type ClientConfig struct {
	// BaseURL is the collaborator's base URL.
	BaseURL string

	// APIKey authenticates the engine (sent as a bearer token if set).
	APIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// MaxRetries bounds retries of transient failures.
	MaxRetries int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		MaxRetries: 3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the assignment collaborator HTTP client.
// Implements query.RequiredConceptsProvider.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewClient creates a new assignments client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxRetries),
			retry.WithInitialDelay(200*time.Millisecond),
		),
		logger: config.Logger.With("client", "assignments"),
	}
}

// requiredConceptsResponse is the collaborator's wire format.
type requiredConceptsResponse struct {
	ClassID  string   `json:"class_id"`
	Concepts []string `json:"concepts"`
}

// RequiredConcepts returns the concept names required for the class.
// Transient failures (network errors, 5xx) are retried; a malformed body is
// permanent and surfaces as ErrRequirementsMalformed.
func (c *Client) RequiredConcepts(ctx context.Context, classID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/classes/%s/required-concepts", c.config.BaseURL, url.PathEscape(classID))

	var names []string
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		result, err := c.fetch(ctx, endpoint)
		if err != nil {
			return err
		}
		names = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("%w: %v", shared.ErrRequirementsUnavailable, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, retry.Retryable(fmt.Errorf("%w: read body: %v", shared.ErrRequirementsUnavailable, err))
	}

	switch {
	case resp.StatusCode >= 500:
		c.logger.Warn("collaborator server error", "status", resp.StatusCode)
		return nil, retry.Retryable(fmt.Errorf("%w: status %d", shared.ErrRequirementsUnavailable, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("%w: status %d", shared.ErrRequirementsUnavailable, resp.StatusCode))
	}

	var parsed requiredConceptsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("%w: %v", shared.ErrRequirementsMalformed, err))
	}
	return parsed.Concepts, nil
}
