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

package ingest

import (
	"context"
	"fmt"
	"strconv"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	"github.com/cloudwego/eino/schema"

	"rag-agent/internal/storage/vector"
)

// MemoryIndexer 基于 vector.Store 实现的 Eino indexer.Indexer，写入记忆笔记
type MemoryIndexer struct {
	vectorStore       vector.Store
	defaultCollection string
	batchSize         int
}

// MemoryIndexerConfig MemoryIndexer 构造参数
type MemoryIndexerConfig struct {
	VectorStore       vector.Store
	DefaultCollection string
	BatchSize         int
}

// NewMemoryIndexer 创建基于 vector.Store 的 Eino Indexer
func NewMemoryIndexer(cfg *MemoryIndexerConfig) (*MemoryIndexer, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("MemoryIndexer 需要 VectorStore")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	collection := cfg.DefaultCollection
	if collection == "" {
		collection = "notes"
	}
	return &MemoryIndexer{
		vectorStore:       cfg.VectorStore,
		defaultCollection: collection,
		batchSize:         batchSize,
	}, nil
}

// Store 实现 indexer.Indexer；doc 已带向量时直接写入，否则用 WithEmbedding 传入的 embedder 计算
func (m *MemoryIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := einoindexer.GetCommonOptions(nil, opts...)
	indexName := m.defaultCollection
	if options != nil && len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		indexName = options.SubIndexes[0]
	}

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += m.batchSize {
		end := min(start+m.batchSize, len(docs))
		vecs := make([]*vector.Vector, 0, end-start)
		for _, doc := range docs[start:end] {
			if doc == nil {
				continue
			}
			values, err := denseVector(ctx, doc, options)
			if err != nil {
				return nil, err
			}
			meta := metaToStrings(doc.MetaData)
			meta["content"] = doc.Content
			vecs = append(vecs, &vector.Vector{ID: doc.ID, Values: values, Metadata: meta})
			ids = append(ids, doc.ID)
		}
		if len(vecs) == 0 {
			continue
		}
		if err := m.vectorStore.Add(ctx, indexName, vecs); err != nil {
			return nil, fmt.Errorf("vector store add: %w", err)
		}
	}
	return ids, nil
}

func denseVector(ctx context.Context, doc *schema.Document, options *einoindexer.Options) ([]float64, error) {
	if v := doc.DenseVector(); len(v) > 0 {
		return v, nil
	}
	if options == nil || options.Embedding == nil {
		return nil, fmt.Errorf("doc %s has no vector and no Embedding option", doc.ID)
	}
	vecs, err := options.Embedding.EmbedStrings(ctx, []string{doc.Content})
	if err != nil {
		return nil, fmt.Errorf("indexer embedding: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("indexer embedding returned empty for %s", doc.ID)
	}
	doc.WithDenseVector(vecs[0])
	return vecs[0], nil
}

// metaToStrings 元数据转为字符串值，数字类字段（如 ts）格式化保留
func metaToStrings(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		}
	}
	return out
}
