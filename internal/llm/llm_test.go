package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_Generate(t *testing.T) {
	var got struct {
		Model       string    `json:"model"`
		Temperature float32   `json:"temperature"`
		Messages    []Message `json:"messages"`
	}
	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer, title = r.Header.Get("HTTP-Referer"), r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"explanation\":\"ok\"}"}}],
			"usage":{"prompt_tokens":10,"completion_tokens":4,"total_tokens":14}}`))
	}))
	defer srv.Close()

	c := NewOpenAI("key", srv.URL, "gpt-4o-mini", 0.2, "https://example.com", "dashboard")
	resp, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hourly average"},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"explanation":"ok"}`, resp.Content)
	assert.Equal(t, 14, resp.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "https://example.com", referer)
	assert.Equal(t, "dashboard", title)
}

func TestOpenAIClient_ZeroTemperatureIsSent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("key", srv.URL, "gpt-4o-mini", 0, "", "").Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)

	temp, ok := body["temperature"]
	require.True(t, ok, "temperature missing from request")
	assert.InDelta(t, 0, temp, 1e-6)
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("key", srv.URL, "m", 0, "", "").Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
}

func TestFactory_CreateClient(t *testing.T) {
	f := &Factory{OpenaiAPIKey: "key"}

	c, err := f.CreateClient(context.Background(), "OpenAI", "gpt-4o-mini")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = f.CreateClient(context.Background(), "mystery", "m")
	assert.Error(t, err)

	_, err = f.CreateClient(context.Background(), ProviderGemini, "gemini-2.0-flash")
	assert.Error(t, err, "missing key must be reported before any network call")
}
