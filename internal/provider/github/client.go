package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/clients"
)

const (
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
)

// ErrNotFound is returned when a file does not exist in the repository.
// First-run bootstrap treats this as a normal branch, not a failure.
var ErrNotFound = errors.New("github: file not found")

// ErrConflict is returned when a conditional write is rejected because the
// stored blob changed since the supplied SHA was observed. Callers must
// reload and recompute, never overwrite blindly.
var ErrConflict = errors.New("github: version conflict")

// APIError carries a non-2xx contents-API response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github returned status %d: %s", e.StatusCode, e.Message)
}

// Client is a GitHub contents-API client scoped to a single repository.
// Blobs are base64-encoded; each blob's SHA doubles as the
// optimistic-concurrency token.
type Client struct {
	token      string
	owner      string
	repo       string
	baseURL    string
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
}

type Option func(*Client)

func NewClient(token, owner, repo string, opts ...Option) *Client {
	cfg := clients.DefaultHTTPExecutorConfig()
	cfg.CircuitBreaker = true
	c := &Client{
		token:      token,
		owner:      owner,
		repo:       repo,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		executor:   clients.NewHTTPExecutor(cfg),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL points the client at a different API host, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func (c *Client) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, path)
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	return clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("github: create request: %w", err)
		}
		req.Header.Set("Authorization", "token "+c.token)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.httpClient.Do(req)
	})
}

func apiError(resp *http.Response, body []byte) error {
	var parsed apiErrorResponse
	_ = json.Unmarshal(body, &parsed)
	return &APIError{StatusCode: resp.StatusCode, Message: parsed.Message}
}

// GetFile reads a file and returns its decoded content and SHA.
func (c *Client) GetFile(ctx context.Context, path string) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path), nil)
	if err != nil {
		return nil, "", fmt.Errorf("github: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("github: read response for %s: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("get %s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("github: get %s: %w", path, apiError(resp, body))
	}

	var content contentResponse
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, "", fmt.Errorf("github: decode contents of %s: %w", path, err)
	}
	// The API wraps base64 payloads at 60 columns.
	raw := strings.ReplaceAll(content.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", fmt.Errorf("github: decode base64 of %s: %w", path, err)
	}
	return decoded, content.SHA, nil
}

// PutFile creates or updates a file and returns the new blob SHA. When sha
// is non-empty the write is conditional: a mismatch yields ErrConflict.
func (c *Client) PutFile(ctx context.Context, path string, content []byte, message, sha string) (string, error) {
	payload, err := json.Marshal(writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
	})
	if err != nil {
		return "", fmt.Errorf("github: marshal write request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path), payload)
	if err != nil {
		return "", fmt.Errorf("github: put %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("github: read response for %s: %w", path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", fmt.Errorf("put %s: %w", path, ErrConflict)
	default:
		return "", fmt.Errorf("github: put %s: %w", path, apiError(resp, body))
	}

	var parsed writeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("github: decode write response for %s: %w", path, err)
	}
	if parsed.Content == nil {
		return "", fmt.Errorf("github: write response for %s missing content", path)
	}
	return parsed.Content.SHA, nil
}

// DeleteFile removes a file. The SHA is mandatory; the API rejects blind
// deletes.
func (c *Client) DeleteFile(ctx context.Context, path, message, sha string) error {
	payload, err := json.Marshal(deleteRequest{Message: message, SHA: sha})
	if err != nil {
		return fmt.Errorf("github: marshal delete request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodDelete, c.contentsURL(path), payload)
	if err != nil {
		return fmt.Errorf("github: delete %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("github: read response for %s: %w", path, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("delete %s: %w", path, ErrConflict)
	default:
		return fmt.Errorf("github: delete %s: %w", path, apiError(resp, body))
	}
}
