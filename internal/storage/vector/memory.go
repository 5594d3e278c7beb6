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

package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"rag-agent/pkg/errors"
)

// MemoryStore 内存向量存储，单进程内的默认记忆后端
type MemoryStore struct {
	indexes map[string]*index
	mu      sync.RWMutex
}

type index struct {
	meta    *Index
	vectors map[string]*Vector
}

// NewMemoryStore 创建内存向量存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*index)}
}

// Create 创建索引，重名返回错误
func (s *MemoryStore) Create(ctx context.Context, idx *Index) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.indexes[idx.Name]; exists {
		return fmt.Errorf("index %s already exists", idx.Name)
	}
	s.indexes[idx.Name] = &index{meta: idx, vectors: make(map[string]*Vector)}
	return nil
}

// Add 写入向量；维度必须与索引一致
func (s *MemoryStore) Add(ctx context.Context, indexName string, vectors []*Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookupLocked(indexName)
	if err != nil {
		return err
	}
	for _, v := range vectors {
		if len(v.Values) != idx.meta.Dimension {
			return errors.Wrapf(errors.ErrInvalidArg, "vector dimension %d does not match index dimension %d", len(v.Values), idx.meta.Dimension)
		}
	}
	for _, v := range vectors {
		idx.vectors[v.ID] = v
	}
	return nil
}

// Search 按余弦相似度降序返回 TopK，先做元数据过滤再做阈值过滤
func (s *MemoryStore) Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookupLocked(indexName)
	if err != nil {
		return nil, err
	}
	if len(query) != idx.meta.Dimension {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "query dimension %d does not match index dimension %d", len(query), idx.meta.Dimension)
	}
	if options == nil {
		options = &SearchOptions{TopK: 10}
	}

	results := make([]*SearchResult, 0, len(idx.vectors))
	for id, v := range idx.vectors {
		if !matchFilter(v.Metadata, options.Filter) {
			continue
		}
		score := cosineSimilarity(query, v.Values)
		if options.Threshold > 0 && score < options.Threshold {
			continue
		}
		results = append(results, &SearchResult{ID: id, Score: score, Metadata: v.Metadata})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].ID < results[j].ID
		}
		return results[i].Score > results[j].Score
	})
	if options.TopK > 0 && len(results) > options.TopK {
		results = results[:options.TopK]
	}
	return results, nil
}

// Get 根据 ID 获取向量
func (s *MemoryStore) Get(ctx context.Context, indexName string, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.lookupLocked(indexName)
	if err != nil {
		return nil, err
	}
	v, ok := idx.vectors[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "vector %s", id)
	}
	return v, nil
}

// Delete 删除向量
func (s *MemoryStore) Delete(ctx context.Context, indexName string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.lookupLocked(indexName)
	if err != nil {
		return err
	}
	if _, ok := idx.vectors[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "vector %s", id)
	}
	delete(idx.vectors, id)
	return nil
}

// ListIndexes 列出所有索引
func (s *MemoryStore) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) lookupLocked(name string) (*index, error) {
	idx, ok := s.indexes[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "index %s", name)
	}
	return idx, nil
}

func matchFilter(meta, filter map[string]string) bool {
	for k, want := range filter {
		if meta == nil || meta[k] != want {
			return false
		}
	}
	return true
}

// cosineSimilarity 零向量相似度为 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
