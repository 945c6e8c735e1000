package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostTweetReturnsID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/2/tweets" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer bearer-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var req tweetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Text != "hello from the simulation" {
			t.Fatalf("unexpected text %q", req.Text)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"id": "1234567890"},
		})
	}))
	defer server.Close()

	client := NewClient("bearer-token", WithBaseURL(server.URL))
	id, err := client.PostTweet(context.Background(), "hello from the simulation")
	if err != nil {
		t.Fatalf("PostTweet failed: %v", err)
	}
	if id != "1234567890" {
		t.Fatalf("expected id 1234567890, got %s", id)
	}
}

func TestPostTweetRejectionIsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"detail": "duplicate content"})
	}))
	defer server.Close()

	client := NewClient("bearer-token", WithBaseURL(server.URL))
	_, err := client.PostTweet(context.Background(), "same tweet twice")
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "duplicate content" {
		t.Fatalf("unexpected detail %q", apiErr.Detail)
	}
}

func TestPostTweetMissingIDIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data": {}}`))
	}))
	defer server.Close()

	client := NewClient("bearer-token", WithBaseURL(server.URL))
	if _, err := client.PostTweet(context.Background(), "text"); err == nil {
		t.Fatal("expected an error for missing id")
	}
}
