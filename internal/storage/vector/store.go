package vector

import (
	"fmt"

	"rag-agent/pkg/config"
)

// NewStore 根据配置创建内置向量存储；redis 走 einoext，不经过此处
func NewStore(cfg config.VectorConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s", cfg.Type)
	}
}
