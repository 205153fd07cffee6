package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TransportError wraps any failure to get a usable response from the
// backend: connection errors, non-200 statuses, unparseable bodies.
type TransportError struct {
	Backend string
	URL     string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Backend, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is a Chatter backed by an HTTP endpoint. It makes exactly one
// request per Chat call; retry policy belongs to the caller.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	dialect    Dialect
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient resolves the wire dialect for baseURL and returns a ready
// client. backend may be "openai", "ollama", or "auto"; on auto the
// endpoint is probed. The hosted OpenAI API without a key is rejected
// here rather than failing mid-pipeline.
func NewClient(ctx context.Context, baseURL, apiKey, model, backend string, opts ...Option) (*Client, error) {
	c := &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  slog.Default().With("component", "agent"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.dialect, c.baseURL = SelectDialect(ctx, backend, baseURL, NewProber())

	if c.dialect == DialectOpenAI && strings.Contains(c.baseURL, "api.openai.com") && c.apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for %s", c.baseURL)
	}

	c.logger.Debug("backend resolved",
		"backend", c.dialect,
		"base_url", c.baseURL,
		"model", c.model)

	return c, nil
}

// Backend reports the resolved dialect, recorded in artifact metadata.
func (c *Client) Backend() string { return string(c.dialect) }

func (c *Client) Model() string { return c.model }

func (c *Client) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	requestID := fmt.Sprintf("chat_%d", time.Now().UnixNano())
	start := time.Now()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	c.logger.Debug("sending chat request",
		"request_id", requestID,
		"backend", c.dialect,
		"model", c.model,
		"message_count", len(messages),
		"temperature", opts.Temperature,
		"max_tokens", opts.MaxTokens)

	var (
		content string
		err     error
	)
	if c.dialect == DialectOpenAI {
		content, err = c.chatOpenAI(ctx, messages, opts)
	} else {
		content, err = c.chatOllama(ctx, messages, opts)
	}

	if err != nil {
		c.logger.Error("chat request failed",
			"request_id", requestID,
			"backend", c.dialect,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return "", err
	}

	c.logger.Info("chat request completed",
		"request_id", requestID,
		"backend", c.dialect,
		"duration_ms", time.Since(start).Milliseconds(),
		"response_length", len(content))

	return content, nil
}

func (c *Client) chatOpenAI(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	url := c.baseURL + "/chat/completions"

	payload := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": opts.Temperature,
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	body, err := c.post(ctx, url, payload, headers)
	if err != nil {
		return "", err
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &TransportError{Backend: string(c.dialect), URL: url, Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(response.Choices) == 0 {
		return "", &TransportError{Backend: string(c.dialect), URL: url, Err: fmt.Errorf("no choices in response")}
	}
	return response.Choices[0].Message.Content, nil
}

func (c *Client) chatOllama(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	url := c.baseURL + "/api/chat"

	payload := map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   false,
		"options": map[string]any{
			"temperature": opts.Temperature,
		},
	}

	body, err := c.post(ctx, url, payload, nil)
	if err != nil {
		return "", err
	}

	var response struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", &TransportError{Backend: string(c.dialect), URL: url, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return response.Message.Content, nil
}

func (c *Client) post(ctx context.Context, url string, payload any, headers map[string]string) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Backend: string(c.dialect), URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Backend: string(c.dialect), URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Backend: string(c.dialect), URL: url, Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Backend: string(c.dialect),
			URL:     url,
			Err:     fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	return respBody, nil
}
