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
	"strings"
	"time"

	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
)

// upsertNote 的失败结果，与成功时的 key 共用 saved 字段
const (
	SavedNoEmbed        = "no-embed"
	SavedVectorizeError = "vectorize-error"
)

// 笔记元数据字段
const (
	MetaOwnerID = "owner_id"
	MetaKind    = "kind"
	MetaTS      = "ts"
	KindNote    = "note"
)

// NoteOutcome 写入笔记的结果
type NoteOutcome struct {
	Saved      string `json:"saved"`
	Vectorized bool   `json:"vectorized"`
}

// Pipeline 记忆检索管线：笔记写入与按 owner 检索
type Pipeline struct {
	embedder  *Embedder
	indexer   einoindexer.Indexer
	retriever einoretriever.Retriever
	now       func() time.Time
	logger    *log.Logger
}

// NewPipeline 创建检索管线
func NewPipeline(embedder *Embedder, indexer einoindexer.Indexer, retriever einoretriever.Retriever, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &Pipeline{
		embedder:  embedder,
		indexer:   indexer,
		retriever: retriever,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock 替换时间源
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Embed 见 Embedder.Embed
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float64, bool) {
	return p.embedder.Embed(ctx, text)
}

// UpsertNote 向量化并写入一条笔记；id 为空时生成新 key。不返回 error，失败体现在 Saved 中
func (p *Pipeline) UpsertNote(ctx context.Context, ownerID, text, id string) NoteOutcome {
	vec, ok := p.embedder.Embed(ctx, text)
	if !ok {
		metrics.NoteUpsertTotal.WithLabelValues(SavedNoEmbed).Inc()
		return NoteOutcome{Saved: SavedNoEmbed}
	}
	if id == "" {
		id = uuid.New().String()
	}
	doc := &schema.Document{
		ID:      id,
		Content: text,
		MetaData: map[string]any{
			MetaOwnerID: ownerID,
			MetaKind:    KindNote,
			MetaTS:      p.now().UnixMilli(),
		},
	}
	doc.WithDenseVector(vec)
	if _, err := p.indexer.Store(ctx, []*schema.Document{doc}, einoindexer.WithEmbedding(fixedEmbedder{vec})); err != nil {
		p.logger.Error("写入记忆失败", "owner_id", ownerID, "error", err)
		metrics.NoteUpsertTotal.WithLabelValues(SavedVectorizeError).Inc()
		return NoteOutcome{Saved: SavedVectorizeError}
	}
	metrics.NoteUpsertTotal.WithLabelValues("ok").Inc()
	return NoteOutcome{Saved: id, Vectorized: true}
}

// SearchContext 检索 owner 的前 k 条笔记原文；无向量、检索出错时返回空
func (p *Pipeline) SearchContext(ctx context.Context, ownerID, query string, k int) []string {
	if k <= 0 {
		return nil
	}
	vec, ok := p.embedder.Embed(ctx, query)
	if !ok {
		return nil
	}
	// 后端不保证支持 DSL 过滤，多取一些再按 owner 过滤
	docs, err := p.retriever.Retrieve(ctx, query,
		einoretriever.WithEmbedding(fixedEmbedder{vec}),
		einoretriever.WithTopK(k*4),
		einoretriever.WithDSLInfo(map[string]any{MetaOwnerID: ownerID}),
	)
	if err != nil {
		p.logger.Error("检索记忆失败", "owner_id", ownerID, "error", err)
		return nil
	}
	out := make([]string, 0, k)
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.Content) == "" {
			continue
		}
		if owner, _ := d.MetaData[MetaOwnerID].(string); owner != ownerID {
			continue
		}
		out = append(out, d.Content)
		if len(out) == k {
			break
		}
	}
	return out
}
