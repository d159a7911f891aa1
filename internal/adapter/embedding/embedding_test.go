package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"docrag/config"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, err := e.Embed(context.Background(), []string{"vector search in go", "vector search in go"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a[0], a[1]) {
		t.Error("same text produced different vectors")
	}
	b, _ := NewHashEmbedder(64).Embed(context.Background(), []string{"vector search in go"})
	if !reflect.DeepEqual(a[0], b[0]) {
		t.Error("separate instances disagree")
	}
	if len(a[0]) != 64 {
		t.Errorf("expected 64 dimensions, got %d", len(a[0]))
	}
}

func TestHashEmbedderNormalised(t *testing.T) {
	vecs, _ := NewHashEmbedder(128).Embed(context.Background(), []string{"the cat sat on the mat", "!!!"})
	var sum float64
	for _, v := range vecs[0] {
		sum += float64(v) * float64(v)
	}
	if math.Abs(sum-1) > 1e-5 {
		t.Errorf("expected unit vector, got squared norm %f", sum)
	}
	for _, v := range vecs[1] {
		if v != 0 {
			t.Fatal("text without words should embed to the zero vector")
		}
	}
}

func TestHashEmbedderHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).Embed(ctx, []string{"x"}); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func newTestServer(t *testing.T, handler func(req embeddingRequest) (int, any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			return
		}
		status, body := handler(req)
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
}

func TestOpenAIEmbedderBatches(t *testing.T) {
	calls := 0
	srv := newTestServer(t, func(req embeddingRequest) (int, any) {
		calls++
		resp := embeddingResponse{}
		// reversed order to check the index field is honoured
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{
				Index:     i,
				Embedding: []float32{float32(len(req.Input[i])), 0, 1},
			})
		}
		return http.StatusOK, resp
	})
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "secret")
	e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "custom", Options{BaseURL: srv.URL, Dimension: 3, BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}

	vecs, err := e.Embed(context.Background(), []string{"a", "bb", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 batches, got %d", calls)
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vector %d: expected first component %v, got %v", i, want, vecs[i][0])
		}
	}
}

func TestOpenAIEmbedderErrors(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "secret")

	tests := []struct {
		name    string
		handler func(req embeddingRequest) (int, any)
	}{
		{"http error", func(embeddingRequest) (int, any) {
			return http.StatusInternalServerError, map[string]string{"detail": "boom"}
		}},
		{"api error", func(embeddingRequest) (int, any) {
			return http.StatusOK, embeddingResponse{Error: &apiError{Message: "quota"}}
		}},
		{"missing vector", func(embeddingRequest) (int, any) {
			return http.StatusOK, embeddingResponse{}
		}},
		{"wrong dimension", func(req embeddingRequest) (int, any) {
			return http.StatusOK, embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: []float32{1}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.handler)
			defer srv.Close()

			e, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "custom", Options{BaseURL: srv.URL, Dimension: 3})
			if err != nil {
				t.Fatal(err)
			}
			if _, err := e.Embed(context.Background(), []string{"x"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenAIEmbedderRequiresKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	if _, err := NewOpenAIEmbedder("TEST_EMBED_KEY", "text-embedding-3-small", Options{}); err == nil {
		t.Error("expected error when API key is missing")
	}
}

func TestNewFromConfig(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: "hash", Dimension: 32})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 32 || e.ModelName() != "hash" {
		t.Errorf("unexpected embedder %s/%d", e.ModelName(), e.Dimension())
	}

	e, err = New(config.EmbeddingConfig{Provider: "ollama", Model: "all-minilm"})
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 384 {
		t.Errorf("expected 384 dimensions for all-minilm, got %d", e.Dimension())
	}

	if _, err := New(config.EmbeddingConfig{Provider: "nope"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewFromDefaultConfig(t *testing.T) {
	e, err := New(config.DefaultConfig().Embedding)
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 384 {
		t.Errorf("expected hash default of 384 dimensions, got %d", e.Dimension())
	}

	srv := newTestServer(t, func(req embeddingRequest) (int, any) {
		if req.Model != "text-embedding-3-small" {
			t.Errorf("expected provider default model, got %q", req.Model)
		}
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: make([]float32, 1536)})
		}
		return http.StatusOK, resp
	})
	defer srv.Close()

	t.Setenv("TEST_EMBED_KEY", "secret")
	cfg := config.DefaultConfig().Embedding
	cfg.Provider = "openai"
	cfg.APIKeyEnv = "TEST_EMBED_KEY"
	cfg.BaseURL = srv.URL

	e, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if e.Dimension() != 1536 {
		t.Errorf("expected 1536 dimensions inferred from the model, got %d", e.Dimension())
	}
	vecs, err := e.Embed(context.Background(), []string{"switching providers"})
	if err != nil {
		t.Fatalf("embedding with provider defaults: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 1536 {
		t.Errorf("unexpected vectors shape %d", len(vecs))
	}
}
