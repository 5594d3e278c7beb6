package rag

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"testing"
	"time"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/pipeline/ingest"
	"rag-agent/internal/pipeline/query"
	"rag-agent/internal/storage/vector"
)

const testDim = 8

// hashVec 相同文本得到相同向量
func hashVec(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	out := make([]float64, testDim)
	for i := range out {
		seed = seed*6364136223846793005 + 1442695040888963407
		out[i] = float64(seed>>40)/float64(1<<24) - 0.5
	}
	return out
}

func newMemoryPipeline(t *testing.T, primary *fakeEmbedClient) (*Pipeline, vector.Store) {
	t.Helper()
	ctx := context.Background()
	store := vector.NewMemoryStore()
	require.NoError(t, vector.EnsureIndex(ctx, store, "notes", testDim))
	idx, err := ingest.NewMemoryIndexer(&ingest.MemoryIndexerConfig{VectorStore: store, DefaultCollection: "notes"})
	require.NoError(t, err)
	ret, err := query.NewMemoryRetriever(&query.MemoryRetrieverConfig{VectorStore: store, DefaultIndex: "notes"})
	require.NoError(t, err)
	emb, err := NewEmbedder(EmbedderConfig{Primary: primary, Dimension: testDim})
	require.NoError(t, err)
	clock := time.UnixMilli(1700000000000)
	return NewPipeline(emb, idx, ret, nil).WithClock(func() time.Time { return clock }), store
}

func TestPipeline_UpsertThenSearchRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, store := newMemoryPipeline(t, &fakeEmbedClient{model: "m", vec: hashVec})

	out := p.UpsertNote(ctx, "u1", "my cat is called Miso", "")
	require.True(t, out.Vectorized)
	require.NotEmpty(t, out.Saved)
	assert.NotEqual(t, SavedNoEmbed, out.Saved)

	v, err := store.Get(ctx, "notes", out.Saved)
	require.NoError(t, err)
	assert.Equal(t, "u1", v.Metadata[MetaOwnerID])
	assert.Equal(t, KindNote, v.Metadata[MetaKind])
	assert.Equal(t, "1700000000000", v.Metadata[MetaTS])

	got := p.SearchContext(ctx, "u1", "my cat is called Miso", 1)
	assert.Equal(t, []string{"my cat is called Miso"}, got)
}

func TestPipeline_SearchScopedToOwner(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemoryPipeline(t, &fakeEmbedClient{model: "m", vec: hashVec})
	p.UpsertNote(ctx, "u1", "alpha", "a1")
	p.UpsertNote(ctx, "u2", "beta", "b1")
	p.UpsertNote(ctx, "u1", "gamma", "a2")

	got := p.SearchContext(ctx, "u1", "beta", 3)
	assert.ElementsMatch(t, []string{"alpha", "gamma"}, got)
	assert.Empty(t, p.SearchContext(ctx, "nobody", "alpha", 3))
}

func TestPipeline_SearchOwnerNotesSurviveCloserForeignNotes(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemoryPipeline(t, &fakeEmbedClient{model: "m", vec: hashVec})
	require.True(t, p.UpsertNote(ctx, "u1", "alpha", "mine").Vectorized)
	// 其他 owner 的笔记与查询完全相同，数量超过 k*4
	for i := 0; i < 20; i++ {
		require.True(t, p.UpsertNote(ctx, "u2", "beta", fmt.Sprintf("theirs-%d", i)).Vectorized)
	}

	assert.Equal(t, []string{"alpha"}, p.SearchContext(ctx, "u1", "beta", 3))
	assert.Len(t, p.SearchContext(ctx, "u2", "beta", 3), 3)
}

func TestPipeline_SearchLimitK(t *testing.T) {
	ctx := context.Background()
	p, _ := newMemoryPipeline(t, &fakeEmbedClient{model: "m", vec: hashVec})
	for _, s := range []string{"one", "two", "three", "four", "five"} {
		require.True(t, p.UpsertNote(ctx, "u", s, "").Vectorized)
	}
	assert.Len(t, p.SearchContext(ctx, "u", "one", 3), 3)
	assert.Empty(t, p.SearchContext(ctx, "u", "one", 0))
}

func TestPipeline_NoEmbedding(t *testing.T) {
	ctx := context.Background()
	healthy := &fakeEmbedClient{model: "m", vec: hashVec}
	p, _ := newMemoryPipeline(t, healthy)
	require.True(t, p.UpsertNote(ctx, "u1", "remember me", "").Vectorized)

	healthy.err = errors.New("embedding service down")
	assert.Equal(t, NoteOutcome{Saved: SavedNoEmbed}, p.UpsertNote(ctx, "u1", "another", ""))
	got := p.SearchContext(ctx, "u1", "something new", 3)
	assert.Empty(t, got)
}

type failingIndex struct{}

func (failingIndex) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	return nil, errors.New("index unavailable")
}

func (failingIndex) Retrieve(ctx context.Context, q string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	return nil, errors.New("index unavailable")
}

func TestPipeline_StoreErrors(t *testing.T) {
	ctx := context.Background()
	emb, err := NewEmbedder(EmbedderConfig{Primary: &fakeEmbedClient{model: "m", vec: hashVec}, Dimension: testDim})
	require.NoError(t, err)
	p := NewPipeline(emb, failingIndex{}, failingIndex{}, nil)

	assert.Equal(t, NoteOutcome{Saved: SavedVectorizeError}, p.UpsertNote(ctx, "u", "x", ""))
	assert.Empty(t, p.SearchContext(ctx, "u", "x", 3))
}

type contentlessRetriever struct{}

func (contentlessRetriever) Retrieve(ctx context.Context, q string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	return []*schema.Document{
		{ID: "1", Content: "", MetaData: map[string]any{MetaOwnerID: "u"}},
		{ID: "2", Content: "kept", MetaData: map[string]any{MetaOwnerID: "u"}},
		nil,
	}, nil
}

func TestPipeline_DropsMatchesWithoutText(t *testing.T) {
	emb, err := NewEmbedder(EmbedderConfig{Primary: &fakeEmbedClient{model: "m", vec: hashVec}, Dimension: testDim})
	require.NoError(t, err)
	p := NewPipeline(emb, failingIndex{}, contentlessRetriever{}, nil)
	assert.Equal(t, []string{"kept"}, p.SearchContext(context.Background(), "u", "q", 3))
}
