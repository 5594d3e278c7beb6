// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package query

import (
	"context"
	"testing"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-agent/internal/storage/vector"
)

type constEmbedder struct{ vec []float64 }

func (e constEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = e.vec
	}
	return out, nil
}

func seed(t *testing.T) vector.Store {
	t.Helper()
	ctx := context.Background()
	store := vector.NewMemoryStore()
	require.NoError(t, vector.EnsureIndex(ctx, store, "notes", 2))
	require.NoError(t, store.Add(ctx, "notes", []*vector.Vector{
		{ID: "a", Values: []float64{1, 0}, Metadata: map[string]string{"content": "cat is Miso", "owner_id": "u1"}},
		{ID: "b", Values: []float64{0.8, 0.2}, Metadata: map[string]string{"content": "dog is Rex", "owner_id": "u2"}},
		{ID: "c", Values: []float64{0, 1}, Metadata: map[string]string{"content": "likes tea", "owner_id": "u1"}},
	}))
	return store
}

func TestMemoryRetriever_RetrieveOwnerScoped(t *testing.T) {
	ret, err := NewMemoryRetriever(&MemoryRetrieverConfig{VectorStore: seed(t)})
	require.NoError(t, err)

	docs, err := ret.Retrieve(context.Background(), "what is my cat called",
		einoretriever.WithEmbedding(constEmbedder{vec: []float64{1, 0}}),
		einoretriever.WithDSLInfo(map[string]any{"owner_id": "u1"}),
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "cat is Miso", docs[0].Content)
	assert.Equal(t, "u1", docs[0].MetaData["owner_id"])
	assert.Equal(t, "likes tea", docs[1].Content)
}

func TestMemoryRetriever_TopK(t *testing.T) {
	ret, err := NewMemoryRetriever(&MemoryRetrieverConfig{VectorStore: seed(t), DefaultTopK: 3})
	require.NoError(t, err)

	docs, err := ret.Retrieve(context.Background(), "q",
		einoretriever.WithEmbedding(constEmbedder{vec: []float64{1, 0}}),
		einoretriever.WithTopK(1),
	)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)
	assert.Greater(t, docs[0].Score(), 0.99)
}

func TestMemoryRetriever_RequiresEmbedding(t *testing.T) {
	ret, err := NewMemoryRetriever(&MemoryRetrieverConfig{VectorStore: seed(t)})
	require.NoError(t, err)
	_, err = ret.Retrieve(context.Background(), "q")
	assert.Error(t, err)
}
