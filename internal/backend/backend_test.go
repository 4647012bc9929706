package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderforge/solverd/internal/schema"
)

func TestNewProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantType string
	}{
		{name: "gemini", cfg: Config{Provider: "gemini", APIKey: "k"}, wantType: "*backend.geminiClient"},
		{name: "default is gemini", cfg: Config{APIKey: "k"}, wantType: "*backend.geminiClient"},
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "k"}, wantType: "*backend.openAIClient"},
		{name: "unknown provider", cfg: Config{Provider: "bard", APIKey: "k"}, wantErr: true},
		{name: "missing key", cfg: Config{Provider: "gemini"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, fmt.Sprintf("%T", inv))
		})
	}
}

func TestGeminiInvoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash")

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Contents)

		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "hello"}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{Provider: "gemini", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := inv.Invoke(context.Background(), "say hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Nil(t, resp.Object)
}

func TestGeminiRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": "recovered"}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{Provider: "gemini", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := inv.Invoke(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGeminiDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 400, "message": "bad prompt"},
		})
	}))
	defer srv.Close()

	inv, err := New(Config{Provider: "gemini", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad prompt")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIInvokeStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"approach": ["step1"]}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{Provider: "openai", APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	s := schema.New("plan", schema.Field{Name: "approach", Kind: schema.KindStringList, Required: true})
	resp, err := inv.Invoke(context.Background(), "plan it", s)
	require.NoError(t, err)
	require.NotNil(t, resp.Object)
	assert.Equal(t, []any{"step1"}, resp.Object["approach"])
}

func TestOpenAIStructuredFallsBackToText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "not json at all"}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	inv, err := New(Config{Provider: "openai", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	s := schema.New("plan", schema.Field{Name: "approach", Kind: schema.KindStringList, Required: true})
	resp, err := inv.Invoke(context.Background(), "p", s)
	require.NoError(t, err)
	assert.Nil(t, resp.Object)
	assert.Equal(t, "not json at all", resp.Text)
}

func TestInvokeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Endpoint is unreachable from the start.

	inv, err := New(Config{Provider: "gemini", APIKey: "k", BaseURL: srv.URL, MaxRetries: 1, Timeout: 2})
	require.NoError(t, err)

	_, err = inv.Invoke(context.Background(), "p", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(fmt.Errorf("plain")))
	assert.True(t, isRetryableError(&retryableError{err: fmt.Errorf("x")}))
	assert.True(t, isRetryableError(fmt.Errorf("wrapped: %w", &retryableError{err: fmt.Errorf("x")})))
}
