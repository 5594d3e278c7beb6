package vector

import (
	"context"
)

// Store 记忆向量存储接口
type Store interface {
	// Create 创建索引
	Create(ctx context.Context, index *Index) error
	// Add 写入向量，同 ID 覆盖
	Add(ctx context.Context, indexName string, vectors []*Vector) error
	// Search 相似度检索
	Search(ctx context.Context, indexName string, query []float64, options *SearchOptions) ([]*SearchResult, error)
	// Get 根据 ID 获取向量
	Get(ctx context.Context, indexName string, id string) (*Vector, error)
	// Delete 删除向量
	Delete(ctx context.Context, indexName string, id string) error
	// ListIndexes 列出所有索引
	ListIndexes(ctx context.Context) ([]string, error)
	Close() error
}

// Index 向量索引
type Index struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Distance  string `json:"distance"` // 目前仅 cosine
}

// Vector 向量数据，Metadata 中 content 为原文、owner_id 为归属用户
type Vector struct {
	ID       string            `json:"id"`
	Values   []float64         `json:"values"`
	Metadata map[string]string `json:"metadata"`
}

// SearchOptions 检索选项
type SearchOptions struct {
	TopK      int               `json:"top_k"`
	Filter    map[string]string `json:"filter"` // 元数据等值过滤，如 owner_id
	Threshold float64           `json:"threshold"` // >0 时生效；0 不过滤，负相似度同样保留
}

// SearchResult 检索结果
type SearchResult struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}
