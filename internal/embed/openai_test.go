package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestEmbedder(serverURL string) *OpenAIEmbedder {
	e := NewOpenAIEmbedder("test-api-key", "", serverURL+"/v1/embeddings", 3)
	e.backoff = time.Millisecond
	return e
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Errorf("authorization header: got %q", got)
		}
		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "text-embedding-3-small" {
			t.Errorf("model: got %q", req.Model)
		}
		if len(req.Input) != 1 || req.Input[0] != "hello world" {
			t.Errorf("input: got %v", req.Input)
		}

		json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []openAIEmbedData{{Embedding: []float32{0.1, 0.2, 0.3}, Index: 0}},
		})
	}))
	defer server.Close()

	e := newTestEmbedder(server.URL)
	vectors, err := e.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}
}

func TestOpenAIEmbedder_SanitizesInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if strings.Contains(req.Input[0], "\n") {
			t.Errorf("newlines not flattened: %q", req.Input[0])
		}
		if len(req.Input[1]) > maxInputChars {
			t.Errorf("input not truncated: %d chars", len(req.Input[1]))
		}

		json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []openAIEmbedData{
				{Embedding: []float32{1, 0, 0}, Index: 0},
				{Embedding: []float32{0, 1, 0}, Index: 1},
			},
		})
	}))
	defer server.Close()

	e := newTestEmbedder(server.URL)
	_, err := e.Embed(context.Background(), []string{
		"line one\nline two",
		strings.Repeat("x", maxInputChars+500),
	})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
}

func TestOpenAIEmbedder_OrdersVectorsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Out-of-order response data must land in input order.
		json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []openAIEmbedData{
				{Embedding: []float32{0, 1}, Index: 1},
				{Embedding: []float32{1, 0}, Index: 0},
			},
		})
	}))
	defer server.Close()

	e := newTestEmbedder(server.URL)
	vectors, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Errorf("vectors not reordered by index: %v", vectors)
	}
}

func TestOpenAIEmbedder_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": "rate limited"}`))
			return
		}
		json.NewEncoder(w).Encode(openAIEmbedResponse{
			Data: []openAIEmbedData{{Embedding: []float32{1, 2, 3}, Index: 0}},
		})
	}))
	defer server.Close()

	e := newTestEmbedder(server.URL)
	vectors, err := e.Embed(context.Background(), []string{"retry me"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("expected 1 vector, got %d", len(vectors))
	}
	if calls.Load() < 2 {
		t.Errorf("expected a retry, got %d calls", calls.Load())
	}
}

func TestOpenAIEmbedder_ClientErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	}))
	defer server.Close()

	e := newTestEmbedder(server.URL)
	_, err := e.Embed(context.Background(), []string{"will fail"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "API error 401") {
		t.Errorf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("client error should not retry, got %d calls", calls.Load())
	}
}

func TestOpenAIEmbedder_EmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("key", "", "", 0)
	vectors, err := e.Embed(context.Background(), nil)
	if err != nil || vectors != nil {
		t.Errorf("expected nil, nil for empty input, got %v, %v", vectors, err)
	}
}

func TestOpenAIEmbedder_Defaults(t *testing.T) {
	e := NewOpenAIEmbedder("key", "", "", 0)
	if e.Name() != "openai:text-embedding-3-small" {
		t.Errorf("name: got %q", e.Name())
	}
	if e.Dimensions() != DefaultDimensions {
		t.Errorf("dimensions: got %d", e.Dimensions())
	}
	if e.baseURL != openAIEmbedURL {
		t.Errorf("base url: got %q", e.baseURL)
	}
}
