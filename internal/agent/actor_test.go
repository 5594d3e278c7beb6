package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/agent/job"
	"rag-agent/internal/model/llm"
	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/runtime/session"
	"rag-agent/internal/storage/kv"
	"rag-agent/internal/tool/dispatch"
	pkgerrors "rag-agent/pkg/errors"
)

type fakeLLM struct {
	mu     sync.Mutex
	calls  [][]llm.Message
	result llm.CompletionResult
	err    error
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.GenerateOptions) (llm.CompletionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	return f.result, f.err
}

func (f *fakeLLM) Model() string    { return "fake" }
func (f *fakeLLM) Provider() string { return "fake" }

type fakeMemory struct {
	snippets []string
	notes    []string
	owners   []string
}

func (f *fakeMemory) SearchContext(ctx context.Context, ownerID, query string, k int) []string {
	f.owners = append(f.owners, ownerID)
	return f.snippets
}

func (f *fakeMemory) UpsertNote(ctx context.Context, ownerID, text, id string) rag.NoteOutcome {
	f.notes = append(f.notes, text)
	f.owners = append(f.owners, ownerID)
	return rag.NoteOutcome{Saved: "k1", Vectorized: true}
}

type fakeTools struct {
	calls []dispatch.Call
	reply string
	err   error
}

func (f *fakeTools) Execute(ctx context.Context, call dispatch.Call, ownerID string) (string, error) {
	f.calls = append(f.calls, call)
	return f.reply, f.err
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

type fixture struct {
	actor *Actor
	llm   *fakeLLM
	mem   *fakeMemory
	tools *fakeTools
	store *kv.MemoryStore
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		llm:   &fakeLLM{result: llm.CompletionResult{Text: "hello!", Recognized: true}},
		mem:   &fakeMemory{},
		tools: &fakeTools{},
		store: kv.NewMemoryStore(),
		clock: &testClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	cfg := ConfigFromAgent(testAgentConfig())
	cfg.ArmSoon = time.Hour
	a, err := NewActor(context.Background(), "primary", f.store, cfg,
		Deps{LLM: f.llm, Memory: f.mem, Tools: f.tools}, WithClock(f.clock.now))
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	f.actor = a
	return f
}

func TestActor_ChatWithEmptyMemoryUsesSentinel(t *testing.T) {
	f := newFixture(t)

	res, err := f.actor.Chat(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello!", res.Reply)
	assert.False(t, res.Tool)

	turns, err := f.actor.History(context.Background())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, session.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello!", turns[1].Text)

	require.Len(t, f.llm.calls, 1)
	msgs := f.llm.calls[0]
	require.Len(t, msgs, 3)
	assert.Equal(t, "Be concise and helpful.", msgs[0].Content)
	assert.Contains(t, msgs[1].Content, NoMemorySentinel)
	assert.Equal(t, "hi", msgs[2].Content)
	assert.Equal(t, []string{"anon"}, f.mem.owners)
}

func TestActor_ChatIncludesRetrievedSnippets(t *testing.T) {
	f := newFixture(t)
	f.mem.snippets = []string{"I like tea", "Sky is blue"}

	_, err := f.actor.Chat(context.Background(), "u1", "what do I like?")
	require.NoError(t, err)

	ctxMsg := f.llm.calls[0][1].Content
	assert.Contains(t, ctxMsg, "1. I like tea")
	assert.Contains(t, ctxMsg, "2. Sky is blue")
	assert.NotContains(t, ctxMsg, NoMemorySentinel)
	assert.Equal(t, []string{"u1"}, f.mem.owners)
}

func TestActor_ChatApologizesOnUnrecognizedCompletion(t *testing.T) {
	f := newFixture(t)
	f.llm.result = llm.CompletionResult{}

	res, err := f.actor.Chat(context.Background(), "", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't draft a reply.", res.Reply)

	f.llm.err = errors.New("upstream down")
	res, err = f.actor.Chat(context.Background(), "", "again")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, I couldn't draft a reply.", res.Reply)

	turns, _ := f.actor.History(context.Background())
	assert.Len(t, turns, 4)
}

func TestActor_ToolCommandSkipsCompletion(t *testing.T) {
	f := newFixture(t)
	f.tools.reply = "Saved to memory (k1)."

	res, err := f.actor.Chat(context.Background(), "u1", "/note I like tea")
	require.NoError(t, err)
	assert.True(t, res.Tool)
	assert.NoError(t, res.ToolErr)
	assert.Equal(t, "Saved to memory (k1).", res.Reply)
	assert.Empty(t, f.llm.calls)
	require.Len(t, f.tools.calls, 1)
	assert.Equal(t, "note", f.tools.calls[0].Tool)
	assert.Equal(t, "I like tea", f.tools.calls[0].Arg)

	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 2)
	assert.Equal(t, "/note I like tea", turns[0].Text)
}

func TestActor_ToolErrorIsLoggedAndReported(t *testing.T) {
	f := newFixture(t)
	f.tools.err = pkgerrors.Wrap(pkgerrors.ErrDomainNotAllowed, "/search")

	res, err := f.actor.Chat(context.Background(), "", "/search https://example.com")
	require.NoError(t, err)
	require.Error(t, res.ToolErr)
	assert.True(t, pkgerrors.Is(res.ToolErr, pkgerrors.ErrDomainNotAllowed))
	assert.Contains(t, res.Reply, "domain not permitted")

	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 2)
	assert.Equal(t, res.Reply, turns[1].Text)
}

func TestActor_ScheduleZeroSecondsThenAlarm(t *testing.T) {
	f := newFixture(t)
	zero := 0

	j, in, err := f.actor.Schedule(context.Background(), ScheduleRequest{Seconds: &zero, Note: "stretch"})
	require.NoError(t, err)
	assert.Equal(t, 0, in)
	assert.Equal(t, job.KindFollowUp, j.Kind)

	at, ok, err := f.store.GetAlarm(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, f.clock.t.Add(time.Hour).UnixMilli(), at.UnixMilli())

	n, err := f.actor.HandleAlarm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 1)
	assert.Equal(t, session.RoleAssistant, turns[0].Role)
	assert.Equal(t, "Follow-up: stretch 👋", turns[0].Text)

	pending, err := f.actor.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
	_, ok, _ = f.store.GetAlarm(context.Background())
	assert.False(t, ok)
}

func TestActor_ScheduleDefaultsAndValidation(t *testing.T) {
	f := newFixture(t)

	j, in, err := f.actor.Schedule(context.Background(), ScheduleRequest{})
	require.NoError(t, err)
	assert.Equal(t, 15, in)
	assert.Equal(t, "Ping!", j.Note)
	assert.Equal(t, "anon", j.OwnerID)
	assert.Equal(t, f.clock.t.Add(15*time.Second).UnixMilli(), j.FireAt)

	neg := -1
	_, _, err = f.actor.Schedule(context.Background(), ScheduleRequest{Seconds: &neg})
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))

	_, _, err = f.actor.Schedule(context.Background(), ScheduleRequest{Kind: "bogus"})
	assert.Error(t, err)

	// 未到期的任务保留，闹钟重置到其 FireAt
	n, err := f.actor.HandleAlarm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	at, ok, _ := f.store.GetAlarm(context.Background())
	require.True(t, ok)
	assert.Equal(t, j.FireAt, at.UnixMilli())
}

func TestActor_ResearchJob(t *testing.T) {
	f := newFixture(t)
	f.tools.reply = "Cloudflare blog post"
	zero := 0

	_, _, err := f.actor.Schedule(context.Background(), ScheduleRequest{
		Seconds: &zero, Kind: "research", Note: "https://blog.cloudflare.com/x", OwnerID: "u1",
	})
	require.NoError(t, err)
	_, err = f.actor.HandleAlarm(context.Background())
	require.NoError(t, err)

	require.Len(t, f.tools.calls, 1)
	assert.Equal(t, "fetch", f.tools.calls[0].Tool)
	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 1)
	assert.Equal(t, "Research: Cloudflare blog post", turns[0].Text)
	assert.Equal(t, []string{"Cloudflare blog post"}, f.mem.notes)
	assert.Equal(t, []string{"u1"}, f.mem.owners)
}

func TestActor_FailedResearchJobIsRemoved(t *testing.T) {
	f := newFixture(t)
	f.tools.err = errors.New("boom")
	zero := 0

	_, _, err := f.actor.Schedule(context.Background(), ScheduleRequest{Seconds: &zero, Kind: "research", Note: "https://x"})
	require.NoError(t, err)
	n, err := f.actor.HandleAlarm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 1)
	assert.Equal(t, "Research failed: boom", turns[0].Text)
	pending, _ := f.actor.Pending(context.Background())
	assert.Empty(t, pending)
}

func TestActor_ClearAndNote(t *testing.T) {
	f := newFixture(t)
	_, err := f.actor.Chat(context.Background(), "", "hi")
	require.NoError(t, err)

	require.NoError(t, f.actor.Clear(context.Background()))
	turns, err := f.actor.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns)

	out, err := f.actor.Note(context.Background(), "", "remember me")
	require.NoError(t, err)
	assert.True(t, out.Vectorized)
	assert.Equal(t, []string{"remember me"}, f.mem.notes)

	_, err = f.actor.Note(context.Background(), "", "  ")
	assert.True(t, pkgerrors.Is(err, pkgerrors.ErrInvalidArg))
}

func TestActor_ConcurrentChatsDoNotInterleave(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.actor.Chat(context.Background(), "", "hi")
		}()
	}
	wg.Wait()

	turns, _ := f.actor.History(context.Background())
	require.Len(t, turns, 16)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, session.RoleUser, turns[i].Role)
		assert.Equal(t, session.RoleAssistant, turns[i+1].Role)
	}
}

func TestContextBlock(t *testing.T) {
	assert.Equal(t, NoMemorySentinel, ContextBlock(nil))
	assert.Equal(t, "1. a\n2. b", ContextBlock([]string{"a", "b"}))
}
