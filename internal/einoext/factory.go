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

package einoext

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"rag-agent/internal/pipeline/ingest"
	"rag-agent/internal/pipeline/query"
	"rag-agent/internal/storage/vector"
	"rag-agent/pkg/config"
)

const (
	defaultBatchSize  = 100
	defaultTopK       = 3
	defaultCollection = "notes"
	defaultDimension  = 768
)

// 记忆笔记在 redis hash 中的字段，与 eino-ext redis 组件默认字段一致
const (
	fieldContent = "content"
	fieldVector  = "vector_content"
	fieldOwner   = "owner_id"
	fieldKind    = "kind"
	fieldTS      = "ts"
)

// MemoryIndex 记忆索引的写入端与检索端
type MemoryIndex struct {
	Indexer   einoindexer.Indexer
	Retriever einoretriever.Retriever
	closeFn   func() error
}

// Close 释放后端连接
func (m *MemoryIndex) Close() error {
	if m == nil || m.closeFn == nil {
		return nil
	}
	return m.closeFn()
}

// NewMemoryIndex 根据 VectorConfig 创建记忆索引：memory 使用 vector.Store，redis 使用 eino-ext
func NewMemoryIndex(ctx context.Context, cfg config.VectorConfig, embedder einoembed.Embedder) (*MemoryIndex, error) {
	coll := cfg.Collection
	if coll == "" {
		coll = defaultCollection
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = defaultDimension
	}
	switch cfg.Type {
	case "", "memory":
		store, err := vector.NewStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := vector.EnsureIndex(ctx, store, coll, dim); err != nil {
			return nil, fmt.Errorf("ensure memory index: %w", err)
		}
		idx, err := ingest.NewMemoryIndexer(&ingest.MemoryIndexerConfig{
			VectorStore:       store,
			DefaultCollection: coll,
			BatchSize:         defaultBatchSize,
		})
		if err != nil {
			return nil, err
		}
		ret, err := query.NewMemoryRetriever(&query.MemoryRetrieverConfig{
			VectorStore:  store,
			DefaultIndex: coll,
			DefaultTopK:  defaultTopK,
		})
		if err != nil {
			return nil, err
		}
		return &MemoryIndex{Indexer: idx, Retriever: ret, closeFn: store.Close}, nil
	case "redis":
		client := redis.NewClient(RedisOptionsFromVectorConfig(cfg))
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		prefix := coll + ":"
		if err := EnsureRedisIndex(ctx, client, coll, prefix, dim); err != nil {
			_ = client.Close()
			return nil, err
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:    client,
			KeyPrefix: prefix,
			BatchSize: defaultBatchSize,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis indexer: %w", err)
		}
		ret, err := NewRedisRetriever(ctx, client, coll, embedder)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		return &MemoryIndex{Indexer: idx, Retriever: ret, closeFn: client.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", cfg.Type)
	}
}

// NewRedisRetriever 创建 eino-ext redis 检索器，并按 owner_id 限定 KNN 范围
func NewRedisRetriever(ctx context.Context, client *redis.Client, index string, embedder einoembed.Embedder) (einoretriever.Retriever, error) {
	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:       client,
		Index:        index,
		VectorField:  fieldVector,
		ReturnFields: []string{fieldContent, fieldOwner, fieldKind, fieldTS},
		TopK:         defaultTopK,
		Embedding:    embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("redis retriever: %w", err)
	}
	return &ownerScopedRetriever{inner: ret}, nil
}

// EnsureRedisIndex 创建 RediSearch 向量索引，已存在时跳过
func EnsureRedisIndex(ctx context.Context, client *redis.Client, name, prefix string, dim int) error {
	err := client.Do(ctx, RedisIndexArgs(name, prefix, dim)...).Err()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "index already exists") {
		return fmt.Errorf("FT.CREATE %s: %w", name, err)
	}
	return nil
}

// RedisIndexArgs FT.CREATE 参数：content 全文、owner_id 标签、vector_content 为 HNSW/COSINE
func RedisIndexArgs(name, prefix string, dim int) []interface{} {
	return []interface{}{
		"FT.CREATE", name, "ON", "HASH", "PREFIX", "1", prefix,
		"SCHEMA",
		fieldContent, "TEXT",
		fieldOwner, "TAG",
		fieldKind, "TAG",
		fieldTS, "NUMERIC",
		fieldVector, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
	}
}
