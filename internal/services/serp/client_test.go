package serp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/models"
)

func newTestClient(serverURL string) *Client {
	return NewClient("test-key", WithBaseURL(serverURL), WithRateLimit(600))
}

func TestStartSearchReturnsHandle(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"q":       r.URL.Query().Get("q"),
			"engine":  r.URL.Query().Get("engine"),
			"async":   r.URL.Query().Get("async"),
			"api_key": r.URL.Query().Get("api_key"),
		}
		fmt.Fprint(w, `{"search_metadata":{"id":"abc123","status":"Queued"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	handle, err := client.StartSearch(context.Background(), &interfaces.SearchRequest{
		Keyword: "best running shoes",
		Mode:    models.SearchModeStandard,
	})
	if err != nil {
		t.Fatalf("StartSearch failed: %v", err)
	}
	if handle != "abc123" {
		t.Errorf("expected handle abc123, got %q", handle)
	}
	if gotQuery["engine"] != "google" {
		t.Errorf("standard mode should use google engine, got %q", gotQuery["engine"])
	}
	if gotQuery["async"] != "true" {
		t.Error("start must request the asynchronous variant")
	}
	if gotQuery["api_key"] != "test-key" {
		t.Error("api key must be sent as query parameter")
	}
}

func TestStartSearchEngineSelection(t *testing.T) {
	tests := []struct {
		mode   models.SearchMode
		engine string
	}{
		{models.SearchModeStandard, "google"},
		{models.SearchModeAIPanel, "google_ai_mode"},
		{models.SearchModeConversational, "google_ai_chat"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			var gotEngine string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotEngine = r.URL.Query().Get("engine")
				fmt.Fprint(w, `{"search_metadata":{"id":"h1","status":"Queued"}}`)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			if _, err := client.StartSearch(context.Background(), &interfaces.SearchRequest{
				Keyword: "kw",
				Mode:    tt.mode,
			}); err != nil {
				t.Fatalf("StartSearch failed: %v", err)
			}
			if gotEngine != tt.engine {
				t.Errorf("mode %s mapped to engine %q, want %q", tt.mode, gotEngine, tt.engine)
			}
		})
	}
}

func TestStartSearchMissingHandle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search_metadata":{"status":"Queued"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	if _, err := client.StartSearch(context.Background(), &interfaces.SearchRequest{Keyword: "kw"}); err == nil {
		t.Fatal("start response without tracking handle must be an error")
	}
}

func TestStartSearchMissingAPIKey(t *testing.T) {
	client := NewClient("")
	_, err := client.StartSearch(context.Background(), &interfaces.SearchRequest{Keyword: "kw"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if IsTransient(err) {
		t.Error("missing API key is a configuration error, never transient")
	}
}

func TestCheckSearchStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected interfaces.CheckStatus
	}{
		{"queued", `{"search_metadata":{"id":"h1","status":"Queued"}}`, interfaces.CheckPending},
		{"processing", `{"search_metadata":{"id":"h1","status":"Processing"}}`, interfaces.CheckPending},
		{"error", `{"search_metadata":{"id":"h1","status":"Error","error":"quota exceeded"}}`, interfaces.CheckFailed},
		{"success", `{"search_metadata":{"id":"h1","status":"Success"},"organic_results":[{"position":1,"title":"T","link":"https://example.com"}]}`, interfaces.CheckComplete},
		{"unknown status", `{"search_metadata":{"id":"h1","status":"Exploded"}}`, interfaces.CheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			outcome, err := client.CheckSearch(context.Background(), "h1", "example.com", models.SearchModeStandard)
			if err != nil {
				t.Fatalf("CheckSearch failed: %v", err)
			}
			if outcome.Status != tt.expected {
				t.Errorf("status = %q, want %q", outcome.Status, tt.expected)
			}
		})
	}
}

func TestCheckSearchCompleteParsesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"search_metadata":{"id":"h1","status":"Success"},
			"organic_results":[
				{"position":1,"title":"Other","link":"https://other.com"},
				{"position":2,"title":"Target","link":"https://example.com/page"}
			]
		}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	outcome, err := client.CheckSearch(context.Background(), "h1", "example.com", models.SearchModeStandard)
	if err != nil {
		t.Fatalf("CheckSearch failed: %v", err)
	}
	if outcome.Result == nil {
		t.Fatal("complete outcome must carry a parsed result")
	}
	if outcome.Result.Rank == nil || *outcome.Result.Rank != 2 {
		t.Errorf("expected rank 2, got %v", outcome.Result.Rank)
	}
}

func TestCheckSearchFailureCarriesReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search_metadata":{"id":"h1","status":"Error","error":"quota exceeded"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	outcome, err := client.CheckSearch(context.Background(), "h1", "example.com", models.SearchModeStandard)
	if err != nil {
		t.Fatalf("CheckSearch failed: %v", err)
	}
	if outcome.Reason != "quota exceeded" {
		t.Errorf("expected provider reason, got %q", outcome.Reason)
	}
}

func TestRateLimitResponseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CheckSearch(context.Background(), "h1", "example.com", models.SearchModeStandard)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rlErr.RetryAfter != 7*time.Second {
		t.Errorf("Retry-After not parsed, got %v", rlErr.RetryAfter)
	}
	if !IsTransient(err) {
		t.Error("rate limit errors are transient")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.CheckSearch(context.Background(), "h1", "example.com", models.SearchModeStandard)
			if err == nil {
				t.Fatal("expected error")
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient for %d = %v, want %v", tt.status, IsTransient(err), tt.transient)
			}
		})
	}
}

func TestRateLimiterBoundsRequestRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"search_metadata":{"id":"h1","status":"Queued"}}`)
	}))
	defer server.Close()

	// 2 per minute with burst 2: third call must wait ~30s, so a short
	// context deadline aborts it inside the limiter
	client := NewClient("test-key", WithBaseURL(server.URL), WithRateLimit(2))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := client.StartSearch(ctx, &interfaces.SearchRequest{Keyword: "kw"}); err != nil {
			t.Fatalf("call %d within burst failed: %v", i, err)
		}
	}

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := client.StartSearch(shortCtx, &interfaces.SearchRequest{Keyword: "kw"}); err == nil {
		t.Fatal("third call should block on the limiter past the context deadline")
	}
}
