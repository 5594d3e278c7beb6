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

func TestOpenAIClient_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Hello!"}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClientWithBaseURL("gpt-4o-mini", "sk-test", srv.URL+"/v1")
	require.NoError(t, err)
	res, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "Be concise and helpful."},
		{Role: "user", Content: "hi"},
	}, GenerateOptions{Temperature: 0.4, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, CompletionResult{Text: "Hello!", Recognized: true}, res)

	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.InDelta(t, 0.4, got["temperature"], 1e-9)
	assert.EqualValues(t, 256, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestOpenAIClient_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	c, err := NewOpenAIClientWithBaseURL("m", "", srv.URL)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, GenerateOptions{})
	assert.Error(t, err)
}

func TestWorkersAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/run/@cf/meta/llama-3.1-8b-instruct", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":{"response":"from workers"},"success":true}`))
	}))
	defer srv.Close()

	c, err := NewWorkersAIClient("@cf/meta/llama-3.1-8b-instruct", "tok", srv.URL+"/ai/run/")
	require.NoError(t, err)
	assert.Equal(t, "workers", c.Provider())
	res, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "from workers", res.Text)
}

func TestNewClient_UnknownType(t *testing.T) {
	_, err := NewClient(context.Background(), "bogus", "m", "", "")
	assert.Error(t, err)
}

func TestNewWorkersAIClient_RequiresBaseURL(t *testing.T) {
	_, err := NewWorkersAIClient("m", "", "")
	assert.Error(t, err)
}
