// Package twitter posts to the Twitter v2 API.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/chenzhisen/XaviersSimACTII-sub000/internal/clients"
)

const (
	defaultBaseURL = "https://api.twitter.com"
	defaultTimeout = 30 * time.Second

	// MaxTweetLength is the hard API ceiling; callers budget a few
	// characters below it for any reserved prefix.
	MaxTweetLength = 280
)

// APIError carries a non-2xx API response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter returned status %d: %s", e.StatusCode, e.Detail)
}

// Client posts tweets with an OAuth2 bearer token.
type Client struct {
	bearerToken string
	baseURL     string
	httpClient  *http.Client
	executor    failsafe.Executor[*http.Response]
}

type Option func(*Client)

func NewClient(bearerToken string, opts ...Option) *Client {
	cfg := clients.DefaultHTTPExecutorConfig()
	cfg.CircuitBreaker = true
	c := &Client{
		bearerToken: bearerToken,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		executor:    clients.NewHTTPExecutor(cfg),
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

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// PostTweet publishes text and returns the created tweet's id.
func (c *Client) PostTweet(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(tweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("twitter: marshal tweet request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, c.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("twitter: create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("twitter: post tweet: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("twitter: read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		var parsed errorResponse
		_ = json.Unmarshal(body, &parsed)
		detail := parsed.Detail
		if detail == "" {
			detail = parsed.Title
		}
		return "", &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var parsed tweetResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("twitter: decode response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("twitter: response missing tweet id")
	}
	return parsed.Data.ID, nil
}
