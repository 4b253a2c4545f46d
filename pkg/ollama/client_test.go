package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/vision-lens/pkg/client"
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost")
	require.ErrorIs(t, err, client.ErrConfig)
}

func TestAnalyzeImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Stream   *bool  `json:"stream"`
			Messages []struct {
				Content string   `json:"content"`
				Images  []string `json:"images"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llava", body.Model)
		if assert.Len(t, body.Messages, 1) {
			assert.Equal(t, "describe", body.Messages[0].Content)
			assert.Len(t, body.Messages[0].Images, 1)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llava","message":{"role":"assistant","content":"{\"objects\":[]}"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)

	out, err := c.AnalyzeImage(context.Background(), "llava", "describe", base64.StdEncoding.EncodeToString([]byte("img")))
	require.NoError(t, err)
	require.Equal(t, `{"objects":[]}`, out)
}

func TestAnalyzeImageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.AnalyzeImage(context.Background(), "missing", "p", base64.StdEncoding.EncodeToString([]byte("img")))
	require.ErrorIs(t, err, client.ErrTransport)
	require.Contains(t, err.Error(), "model not found")
}

func TestAnalyzeImageBadBase64(t *testing.T) {
	c, err := NewClient("http://localhost:11434")
	require.NoError(t, err)
	_, err = c.AnalyzeImage(context.Background(), "m", "p", "%%%")
	require.Error(t, err)
}
