// Package clip is a client for the CLIP embedding service, which vectorizes
// text and images into one shared space.
package clip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	defaultBaseDelay  = 200 * time.Millisecond
	defaultMaxDelay   = 2 * time.Second
	maxErrorBody      = 4 << 10
)

// Config holds the CLIP client settings.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client implements domain.Embedder and domain.HealthChecker against a CLIP service.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	retry   retryConfig
	logger  *zap.Logger
}

// New creates a CLIP client. Zero values fall back to defaults.
func New(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	rc := retryConfig{maxRetries: cfg.MaxRetries, baseDelay: cfg.BaseDelay, maxDelay: cfg.MaxDelay}
	if rc.maxRetries < 0 {
		rc.maxRetries = 0
	} else if rc.maxRetries == 0 {
		rc.maxRetries = defaultMaxRetries
	}
	if rc.baseDelay <= 0 {
		rc.baseDelay = defaultBaseDelay
	}
	if rc.maxDelay <= 0 {
		rc.maxDelay = defaultMaxDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = "ViT-B/32"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   model,
		http:    hc,
		retry:   rc,
		logger:  logger,
	}
}

type embedRequest struct {
	Type  string `json:"type"`
	Input string `json:"input"`
}

type embedResponse struct {
	Status     string    `json:"status"`
	Embeddings []float32 `json:"embeddings"`
	Dimension  int       `json:"embedding_dimension"`
}

// statusError is a non-2xx answer from the service.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("clip status %d: %s", e.code, e.detail)
}

// Embed implements domain.Embedder.
func (c *Client) Embed(ctx context.Context, in domain.Input) (domain.EmbeddingResult, error) {
	kind := in.Kind
	if kind == "" {
		kind = domain.InputText
	}
	if !kind.IsValid() {
		return domain.EmbeddingResult{}, fmt.Errorf("%s: %w", kind, domain.ErrUnsupportedInput)
	}
	payload := in.Payload
	if kind == domain.InputImageBase64 {
		payload = stripDataURI(payload)
	}
	body, err := json.Marshal(embedRequest{Type: string(kind), Input: payload})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	resp, err := retry(ctx, c.retry, func() (embedResponse, error) {
		return c.post(ctx, body)
	})
	metrics.EmbeddingRequestDuration.WithLabelValues("clip", c.model).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("clip", c.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("clip", c.model, errorType(err)).Inc()
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return domain.EmbeddingResult{}, domain.Validationf("clip rejected %s input: %s", kind, se.detail)
		}
		return domain.EmbeddingResult{}, fmt.Errorf("clip embed %s: %w: %w", kind, domain.ErrEmbeddingProviderError, err)
	}
	if len(resp.Embeddings) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("clip", c.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues("clip", c.model, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty clip response: %w", domain.ErrEmbeddingProviderError)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues("clip", c.model, "success").Inc()
	return domain.EmbeddingResult{Embedding: resp.Embeddings}, nil
}

func (c *Client) post(ctx context.Context, body []byte) (embedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return embedResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return embedResponse{}, fmt.Errorf("post embeddings: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return embedResponse{}, readStatusError(res)
	}
	var out embedResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return embedResponse{}, &statusError{code: res.StatusCode, detail: "malformed response: " + err.Error()}
	}
	return out, nil
}

// HealthCheck implements domain.HealthChecker.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("clip health: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("clip health: %w", readStatusError(res))
	}
	return nil
}

func readStatusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	var parsed struct {
		Detail string `json:"detail"`
	}
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &parsed) == nil && parsed.Detail != "" {
		detail = parsed.Detail
	}
	return &statusError{code: res.StatusCode, detail: detail}
}

// stripDataURI drops a "data:<mime>;base64," prefix.
func stripDataURI(s string) string {
	if _, after, ok := strings.Cut(s, "base64,"); ok && strings.HasPrefix(s, "data:") {
		return after
	}
	return s
}

func errorType(err error) string {
	var se *statusError
	if errors.As(err, &se) {
		if se.code >= 500 {
			return "server_error"
		}
		return "client_error"
	}
	return "transport_error"
}
