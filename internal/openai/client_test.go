package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "test-model",
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)
	return client
}

func chatReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	reply := map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("content-type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(reply))
}

func TestGenerateLayout(t *testing.T) {
	var gotModel string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model

		chatReply(t, w, "```html\n<div>flyer</div>\n```")
	})

	layout, err := client.GenerateLayout(context.Background(), "make a flyer")
	require.NoError(t, err)
	assert.Equal(t, "<div>flyer</div>", layout)
	assert.Equal(t, "test-model", gotModel)
}

func TestGenerateLayoutEmptyReply(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "")
	})

	_, err := client.GenerateLayout(context.Background(), "brief")
	require.Error(t, err)
}

func TestGenerateLayoutAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid key", "type": "auth"}}`))
	})

	_, err := client.GenerateLayout(context.Background(), "brief")
	require.Error(t, err)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}
