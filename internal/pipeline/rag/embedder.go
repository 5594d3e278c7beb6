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

package rag

import (
	"context"
	"fmt"
	"math"

	einoembed "github.com/cloudwego/eino/components/embedding"
	lru "github.com/hashicorp/golang-lru/v2"

	"rag-agent/internal/model/embedding"
	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
)

// DefaultDimension 记忆向量的固定维度
const DefaultDimension = 768

// ErrNoEmbedding 主备模型均未产出合法向量
var ErrNoEmbedding = fmt.Errorf("no valid embedding available")

// Embedder 主备回退的向量化器，只返回通过结构校验的向量
//
// 同时实现 Eino embedding.Embedder，供 redis indexer/retriever 构造使用。
type Embedder struct {
	primary   embedding.Client
	fallback  embedding.Client
	dimension int
	cache     *lru.Cache[string, []float64]
	logger    *log.Logger
}

// EmbedderConfig Embedder 构造参数
type EmbedderConfig struct {
	Primary   embedding.Client
	Fallback  embedding.Client
	Dimension int // <=0 取 DefaultDimension
	CacheSize int // <=0 不缓存
	Logger    *log.Logger
}

// NewEmbedder 创建主备 Embedder
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	e := &Embedder{
		primary:   cfg.Primary,
		fallback:  cfg.Fallback,
		dimension: cfg.Dimension,
		logger:    cfg.Logger,
	}
	if e.dimension <= 0 {
		e.dimension = DefaultDimension
	}
	if e.logger == nil {
		e.logger = log.Nop()
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []float64](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		e.cache = cache
	}
	return e, nil
}

// Dimension 返回固定维度
func (e *Embedder) Dimension() int { return e.dimension }

// Embed 依次尝试主、备模型；都失败时返回 ok=false，调用方按“无检索上下文”处理
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, bool) {
	if e.cache != nil {
		if v, ok := e.cache.Get(text); ok {
			return v, true
		}
	}
	for _, c := range []embedding.Client{e.primary, e.fallback} {
		if c == nil {
			continue
		}
		vec, err := c.Embed(ctx, text)
		if err == nil {
			err = Validate(vec, e.dimension)
		}
		if err != nil {
			metrics.EmbeddingAttemptsTotal.WithLabelValues(c.Model(), "error").Inc()
			e.logger.Warn("embedding 失败，尝试下一个模型", "model", c.Model(), "error", err)
			continue
		}
		metrics.EmbeddingAttemptsTotal.WithLabelValues(c.Model(), "ok").Inc()
		if e.cache != nil {
			e.cache.Add(text, vec)
		}
		return vec, true
	}
	return nil, false
}

// EmbedStrings 实现 Eino embedding.Embedder；任一文本无法向量化时返回 ErrNoEmbedding
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, ok := e.Embed(ctx, t)
		if !ok {
			return nil, ErrNoEmbedding
		}
		out[i] = vec
	}
	return out, nil
}

// Validate 向量长度必须等于 dimension 且每个分量为有限数
func Validate(vec []float64, dimension int) error {
	if len(vec) != dimension {
		return fmt.Errorf("embedding dimension %d, want %d", len(vec), dimension)
	}
	for i, f := range vec {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding entry %d is not finite", i)
		}
	}
	return nil
}

// fixedEmbedder 把已算好的向量交给 Eino indexer/retriever，避免重复调用模型
type fixedEmbedder [][]float64

func (f fixedEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	if len(texts) != len(f) {
		return nil, fmt.Errorf("fixed embedder holds %d vectors, got %d texts", len(f), len(texts))
	}
	return f, nil
}
