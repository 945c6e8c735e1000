package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient("test-token", "owner", "repo", WithBaseURL(server.URL))
	return client, server
}

func TestGetFileDecodesWrappedBase64(t *testing.T) {
	content := []byte(`{"hello": "world"}`)
	encoded := base64.StdEncoding.EncodeToString(content)
	// The API wraps base64 at 60 columns; emulate a wrapped payload.
	wrapped := encoded[:10] + "\n" + encoded[10:]

	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/repos/owner/repo/contents/data/dev/ongoing_tweets.json" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": wrapped,
			"sha":     "abc123",
		})
	}))
	defer server.Close()

	data, sha, err := client.GetFile(context.Background(), "data/dev/ongoing_tweets.json")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if string(data) != string(content) {
		t.Fatalf("expected %q, got %q", content, data)
	}
	if sha != "abc123" {
		t.Fatalf("expected sha abc123, got %s", sha)
	}
}

func TestGetFileMissingIsErrNotFound(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := client.GetFile(context.Background(), "data/dev/missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutFileSendsConditionalWrite(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("expected PUT, got %s", r.Method)
		}
		var req writeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SHA != "old-sha" {
			t.Fatalf("expected conditional sha old-sha, got %q", req.SHA)
		}
		if req.Message != "Update file" {
			t.Fatalf("unexpected message %q", req.Message)
		}
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil || string(decoded) != "payload" {
			t.Fatalf("bad content %q: %v", req.Content, err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "new-sha"},
		})
	}))
	defer server.Close()

	sha, err := client.PutFile(context.Background(), "data/dev/file.json", []byte("payload"), "Update file", "old-sha")
	if err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	if sha != "new-sha" {
		t.Fatalf("expected new-sha, got %s", sha)
	}
}

func TestPutFileStaleShaIsErrConflict(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		_, err := client.PutFile(context.Background(), "data/dev/file.json", []byte("x"), "m", "stale")
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("status %d: expected ErrConflict, got %v", status, err)
		}
		server.Close()
	}
}

func TestDeleteFileRequiresSHA(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("expected DELETE, got %s", r.Method)
		}
		var req deleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.SHA != "sha-to-delete" {
			t.Fatalf("expected sha-to-delete, got %q", req.SHA)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := client.DeleteFile(context.Background(), "data/dev/file.json", "Remove file", "sha-to-delete"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
}
