// Package core implements the core-service internal API client.
// This package handles all communication with core-service internal
// endpoints: subject documents, chunks, questions, exam templates,
// concept-graph and insight versions. Requests are HMAC-signed.
package core

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sparke-study/oracle-service/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the core-service client.
type ClientConfig struct {
	// BaseURL is the core-service base URL.
	BaseURL string

	// APISecret is the shared HMAC secret for request signing.
	APISecret string

	// LegacyAPIKey is sent as X-Internal-API-Key when non-empty.
	// Поддерживается для старых инсталляций core-service.
	LegacyAPIKey string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// RateLimiterConfig for API rate limiting.
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerConfig for fault tolerance.
	CircuitBreakerConfig CircuitBreakerConfig

	// RetryConfig for retry behavior on network failures.
	RetryConfig RetryConfig

	// Logger for structured logging.
	Logger *slog.Logger

	// Debug enables debug logging.
	Debug bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, apiSecret string) ClientConfig {
	return ClientConfig{
		BaseURL:              baseURL,
		APISecret:            apiSecret,
		Timeout:              30 * time.Second,
		RateLimiterConfig:    DefaultRateLimiterConfig(),
		CircuitBreakerConfig: DefaultCircuitBreakerConfig(),
		RetryConfig:          DefaultRetryConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the core-service internal API client.
type Client struct {
	config         ClientConfig
	httpClient     *http.Client
	logger         *slog.Logger
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	mapper         *Mapper

	// now подменяется в тестах для детерминированных подписей.
	now func() time.Time
}

// NewClient creates a new core-service API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger:         config.Logger,
		rateLimiter:    NewRateLimiter(config.RateLimiterConfig),
		circuitBreaker: NewCircuitBreaker(config.CircuitBreakerConfig),
		mapper:         NewMapper(),
		now:            time.Now,
	}
}

// Mapper returns the DTO mapper shared with adapters.
func (c *Client) Mapper() *Mapper {
	return c.mapper
}

// ══════════════════════════════════════════════════════════════════════════════
// API ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is an HTTP-level error response from core-service.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("core api: status %d: %s", e.StatusCode, e.Body)
}

// Is maps HTTP status classes onto shared domain errors, so that callers
// can use errors.Is without knowing about HTTP.
func (e *APIError) Is(target error) bool {
	switch {
	case errors.Is(target, shared.ErrNotFound):
		return e.StatusCode == http.StatusNotFound
	case errors.Is(target, shared.ErrUnauthorized):
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case errors.Is(target, shared.ErrRateLimited):
		return e.StatusCode == http.StatusTooManyRequests
	case errors.Is(target, shared.ErrServiceUnavailable):
		return e.StatusCode >= 500
	case errors.Is(target, shared.ErrPermanentRejection):
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusConflict ||
			e.StatusCode == http.StatusNotFound
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT DATA OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetDocuments fetches subject documents with resource types.
func (c *Client) GetDocuments(ctx context.Context, subjectID string) ([]DocumentDTO, error) {
	var docs []DocumentDTO
	path := fmt.Sprintf("/internal/subjects/%s/documents", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &docs); err != nil {
		return nil, fmt.Errorf("get documents %s: %w", subjectID, err)
	}
	return docs, nil
}

// GetChunks fetches all extracted text chunks of a subject.
func (c *Client) GetChunks(ctx context.Context, subjectID string) ([]ChunkDTO, error) {
	var chunks []ChunkDTO
	path := fmt.Sprintf("/internal/subjects/%s/chunks", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &chunks); err != nil {
		return nil, fmt.Errorf("get chunks %s: %w", subjectID, err)
	}
	return chunks, nil
}

// GetQuestions fetches parsed exam questions of a subject.
func (c *Client) GetQuestions(ctx context.Context, subjectID string) ([]QuestionDTO, error) {
	var questions []QuestionDTO
	path := fmt.Sprintf("/internal/subjects/%s/questions", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &questions); err != nil {
		return nil, fmt.Errorf("get questions %s: %w", subjectID, err)
	}
	return questions, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EXAM TEMPLATE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetLatestExamTemplate fetches the latest exam template, nil when the
// subject has none yet.
func (c *Client) GetLatestExamTemplate(ctx context.Context, subjectID string) (*TemplateDTO, error) {
	var resp TemplateResponseDTO
	path := fmt.Sprintf("/internal/subjects/%s/exam-template/latest", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get latest exam template %s: %w", subjectID, err)
	}
	return resp.Template, nil
}

// PutExamTemplate persists a new exam template version.
func (c *Client) PutExamTemplate(ctx context.Context, subjectID string, body TemplatePutDTO) error {
	path := fmt.Sprintf("/internal/subjects/%s/exam-template", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("put exam template %s: %w", subjectID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// INSIGHT VERSION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetLatestInsightVersion fetches the latest stored insight version.
func (c *Client) GetLatestInsightVersion(ctx context.Context, subjectID string) (*InsightVersionDTO, error) {
	var resp InsightVersionDTO
	path := fmt.Sprintf("/internal/subjects/%s/insight-versions/latest", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get latest insight version %s: %w", subjectID, err)
	}
	return &resp, nil
}

// PutConceptGraph upserts the concept graph of a subject.
func (c *Client) PutConceptGraph(ctx context.Context, subjectID string, graph GraphDTO) error {
	path := fmt.Sprintf("/internal/subjects/%s/concept-graph", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodPut, path, graph, nil); err != nil {
		return fmt.Errorf("put concept graph %s: %w", subjectID, err)
	}
	return nil
}

// PutInsightVersion upserts the insight version with progress or the
// final payload. Возвращает versionId, присвоенный core-service.
func (c *Client) PutInsightVersion(ctx context.Context, subjectID string, body VersionUpdateDTO) (*VersionPutResponseDTO, error) {
	var resp VersionPutResponseDTO
	path := fmt.Sprintf("/internal/subjects/%s/insight-versions", url.PathEscape(subjectID))
	if err := c.doRequest(ctx, http.MethodPut, path, body, &resp); err != nil {
		return nil, fmt.Errorf("put insight version %s: %w", subjectID, err)
	}
	return &resp, nil
}

// PutInsightSession delivers the terminal session status with the result.
func (c *Client) PutInsightSession(ctx context.Context, subjectID, sessionID string, body SessionUpdateDTO) error {
	path := fmt.Sprintf("/internal/subjects/%s/insight-sessions/%s",
		url.PathEscape(subjectID), url.PathEscape(sessionID))
	if err := c.doRequest(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("put insight session %s: %w", sessionID, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs an HTTP request with rate limiting, circuit breaking
// and retries. Повторяются только сетевые сбои: ответ с HTTP-статусом
// ошибки уходит вызывающему после первой же попытки.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, result any) error {
	if err := c.circuitBreaker.Allow(); err != nil {
		return shared.WrapError("core", "Request", shared.ErrServiceUnavailable, "circuit breaker rejected request", err)
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryConfig.CalculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.rateLimiter.Allow(ctx); err != nil {
			return shared.WrapError("core", "Request", shared.ErrRateLimited, "rate limiter wait failed", err)
		}

		err := c.doSingleRequest(ctx, method, path, bodyBytes, result)
		if err == nil {
			c.circuitBreaker.RecordSuccess()
			return nil
		}
		lastErr = err

		if !isNetworkError(err) {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
				c.circuitBreaker.RecordFailure()
			}
			return err
		}
		c.logger.Warn("core api network error, retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err))
	}

	c.circuitBreaker.RecordFailure()
	return shared.WrapError("core", "Request", shared.ErrServiceUnavailable,
		fmt.Sprintf("request failed after %d retries", c.config.RetryConfig.MaxRetries), lastErr)
}

// doSingleRequest performs a single signed HTTP request.
func (c *Client) doSingleRequest(ctx context.Context, method, path string, bodyBytes []byte, result any) error {
	fullURL := c.config.BaseURL + path

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.signRequest(req, method, path, bodyBytes)

	if c.config.Debug {
		c.logger.Debug("core api request", "method", method, "path", path)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return shared.WrapError("core", "Parse", shared.ErrInvalidFormat, "unmarshal response", err)
		}
	}
	return nil
}

// signRequest подписывает запрос по схеме HmacGuard core-service:
// подпись HMAC-SHA256 над строкой "{ts}.{METHOD}.{path}.{sha256hex(body)}".
func (c *Client) signRequest(req *http.Request, method, path string, bodyBytes []byte) {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	bodyHash := sha256Hex(bodyBytes)
	payload := ts + "." + method + "." + path + "." + bodyHash

	mac := hmac.New(sha256.New, []byte(c.config.APISecret))
	mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-Timestamp", ts)
	req.Header.Set("X-Body-SHA256", bodyHash)
	req.Header.Set("X-Signature", signature)
	if c.config.LegacyAPIKey != "" {
		req.Header.Set("X-Internal-API-Key", c.config.LegacyAPIKey)
	}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// isNetworkError reports whether the error is a connection-level failure
// worth retrying.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

const maxErrorBodyLength = 512

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyLength {
		return string(body[:maxErrorBodyLength]) + "..."
	}
	return string(body)
}

// IsHealthy checks if core-service internal API is reachable.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.doSingleRequest(ctx, http.MethodGet, "/internal/health", nil, nil)
	return err == nil
}
