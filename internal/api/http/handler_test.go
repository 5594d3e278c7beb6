package http

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/agent"
	"rag-agent/internal/api/http/middleware"
	"rag-agent/internal/model/llm"
	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/storage/kv"
	"rag-agent/internal/tool/dispatch"
	"rag-agent/pkg/config"
	"rag-agent/pkg/errors"
)

type stubLLM struct{ calls int }

func (s *stubLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.CompletionResult, error) {
	s.calls++
	return llm.CompletionResult{Text: "hello there", Recognized: true}, nil
}
func (s *stubLLM) Model() string    { return "stub" }
func (s *stubLLM) Provider() string { return "stub" }

type stubMemory struct{}

func (stubMemory) SearchContext(ctx context.Context, ownerID, query string, k int) []string {
	return nil
}

func (stubMemory) UpsertNote(ctx context.Context, ownerID, text, id string) rag.NoteOutcome {
	return rag.NoteOutcome{Saved: "note-1", Vectorized: true}
}

type stubTools struct{}

func (stubTools) Execute(ctx context.Context, call dispatch.Call, ownerID string) (string, error) {
	if call.Tool == "fetch" {
		return "", errors.Wrap(errors.ErrDomainNotAllowed, "/search")
	}
	return "Saved to memory (note-1).", nil
}

func newTestServer(t *testing.T) (*server.Hertz, *stubLLM) {
	t.Helper()
	model := &stubLLM{}
	cfg := agent.ConfigFromAgent(config.AgentConfig{})
	cfg.ArmSoon = time.Hour
	mgr := agent.NewManager(kv.NewMemoryBackend(), cfg, agent.Deps{LLM: model, Memory: stubMemory{}, Tools: stubTools{}})
	t.Cleanup(func() { _ = mgr.Close() })

	h := NewHandler(mgr, HandlerConfig{}, nil)
	r := NewRouter(h, middleware.NewMiddleware(config.CORSConfig{Enable: true}))
	return r.Build(":0"), model
}

func perform(s *server.Hertz, method, path, body string) *ut.ResponseRecorder {
	b := []byte(body)
	return ut.PerformRequest(s.Engine, method, path, &ut.Body{Body: bytes.NewReader(b), Len: len(b)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decode(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out))
	return out
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t)
	w := perform(s, "GET", "/health", "")
	assert.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "ok")
}

func TestChatThenHistory(t *testing.T) {
	s, model := newTestServer(t)

	w := perform(s, "POST", "/chat", `{"prompt":"hi"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Equal(t, "hello there", decode(t, w)["reply"])
	assert.Equal(t, 1, model.calls)

	w = perform(s, "GET", "/api/history", "")
	require.Equal(t, 200, w.Result().StatusCode())
	msgs, ok := decode(t, w)["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
}

func TestHistoryEmpty(t *testing.T) {
	s, _ := newTestServer(t)
	w := perform(s, "GET", "/history", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"messages":[]}`, string(w.Result().Body()))
}

func TestChatMalformedJSON(t *testing.T) {
	s, model := newTestServer(t)
	w := perform(s, "POST", "/chat", `{"prompt":`)
	assert.Equal(t, 400, w.Result().StatusCode())

	w = perform(s, "POST", "/chat", `{}`)
	assert.Equal(t, 400, w.Result().StatusCode())
	assert.Zero(t, model.calls)
}

func TestMalformedBodiesRejectedOnEveryJSONRoute(t *testing.T) {
	s, model := newTestServer(t)
	cases := []struct{ path, body string }{
		{"/schedule", `{"seconds":"soon"}`},
		{"/api/schedule", `{"seconds":`},
		{"/note", `[1,2`},
		{"/api/note", `{"text":42}`},
		{"/chat", `"just a string`},
	}
	for _, tc := range cases {
		w := perform(s, "POST", tc.path, tc.body)
		assert.Equal(t, 400, w.Result().StatusCode(), tc.path+" "+tc.body)
		assert.Contains(t, string(w.Result().Body()), "invalid JSON body", tc.path)
	}
	assert.Zero(t, model.calls)

	w := perform(s, "GET", "/history", "")
	assert.JSONEq(t, `{"messages":[]}`, string(w.Result().Body()))
}

func TestChatToolErrorReported(t *testing.T) {
	s, model := newTestServer(t)
	w := perform(s, "POST", "/chat", `{"prompt":"/search https://evil.example/"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	body := decode(t, w)
	assert.Contains(t, body["error"], "domain not permitted")
	assert.Contains(t, body["reply"], "domain not permitted")
	assert.Zero(t, model.calls)
}

func TestSchedule(t *testing.T) {
	s, _ := newTestServer(t)

	w := perform(s, "POST", "/schedule", `{"seconds":5,"note":"stretch"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"scheduled":true,"in":5}`, string(w.Result().Body()))

	w = perform(s, "POST", "/api/schedule", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"scheduled":true,"in":15}`, string(w.Result().Body()))

	w = perform(s, "POST", "/schedule", `{"seconds":-3}`)
	assert.Equal(t, 400, w.Result().StatusCode())
}

func TestNoteAndClear(t *testing.T) {
	s, _ := newTestServer(t)

	w := perform(s, "POST", "/note", `{"text":"I like tea","userId":"u1"}`)
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"saved":"note-1","vectorized":true}`, string(w.Result().Body()))

	w = perform(s, "POST", "/note", `{"text":""}`)
	assert.Equal(t, 400, w.Result().StatusCode())

	perform(s, "POST", "/chat", `{"prompt":"hi"}`)
	w = perform(s, "POST", "/clear", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.JSONEq(t, `{"cleared":true}`, string(w.Result().Body()))

	w = perform(s, "GET", "/history", "")
	assert.JSONEq(t, `{"messages":[]}`, string(w.Result().Body()))
}

func TestActorQuerySelectsConversation(t *testing.T) {
	s, _ := newTestServer(t)
	perform(s, "POST", "/chat?actor=alice", `{"prompt":"hi"}`)

	w := perform(s, "GET", "/history", "")
	assert.JSONEq(t, `{"messages":[]}`, string(w.Result().Body()))

	w = perform(s, "GET", "/history?actor=alice", "")
	msgs := decode(t, w)["messages"].([]any)
	assert.Len(t, msgs, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	perform(s, "POST", "/chat", `{"prompt":"hi"}`)
	w := perform(s, "GET", "/metrics", "")
	require.Equal(t, 200, w.Result().StatusCode())
	assert.Contains(t, string(w.Result().Body()), "chat_turns_total")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	w := perform(s, "OPTIONS", "/chat", "")
	assert.Equal(t, 204, w.Result().StatusCode())
	assert.Equal(t, "*", string(w.Result().Header.Peek("Access-Control-Allow-Origin")))
}
