package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germesbot/germes/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		OpenAIAPIKey:   "test-key",
		OpenAIBaseURL:  srv.URL,
		ChatModel:      "gpt-3.5-turbo",
		ImageModel:     "dall-e-3",
		ImageSize:      "1024x1024",
		ChatPersona:    "You are a helpful assistant.",
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompleteSendsPersonaAndReturnsAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "hello", req.Messages[1].Content)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "  greetings, mortal  "}},
			},
		})
	})

	answer, err := client.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "greetings, mortal", answer)
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGenerateImageDecodesPayload(t *testing.T) {
	raw := []byte{0x89, 'P', 'N', 'G'}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)

		var req struct {
			ResponseFormat string `json:"response_format"`
			N              int    `json:"n"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "b64_json", req.ResponseFormat)
		assert.Equal(t, 1, req.N)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"b64_json": base64.StdEncoding.EncodeToString(raw)},
			},
		})
	})

	img, err := client.GenerateImage(context.Background(), "a caduceus")
	require.NoError(t, err)
	assert.Equal(t, raw, img.Bytes)
	assert.Equal(t, "image/png", img.Mime)
}

func TestUpstreamErrorSurfacesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})

	_, err := client.GenerateImage(context.Background(), "a caduceus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}
