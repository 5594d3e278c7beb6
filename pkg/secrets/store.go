// Copyright 2026 fanjia1024
// Secret management abstraction

package secrets

import (
	"context"
	"fmt"
	"strings"
)

// Store Secret 存储接口（只读为主，Set 供 memory/env 测试与预置）
type Store interface {
	// Get 获取 secret 值；vault 的 key 形如 "path#field"
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error
}

// Config Secret Store 配置
type Config struct {
	Provider string            `mapstructure:"provider"` // vault | env | memory
	Config   map[string]string `mapstructure:"config"`   // Provider-specific config
}

// NewStore 创建 Secret Store；provider 为空时使用 env
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    config.Config["address"],
			Token:      config.Config["token"],
			PathPrefix: config.Config["path_prefix"],
		})
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// refPrefix 配置值中引用 secret 的前缀，如 api_key: "secret:llm#api_key"
const refPrefix = "secret:"

// Resolve 若 value 为 secret 引用则从 store 读取，否则原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !strings.HasPrefix(value, refPrefix) {
		return value, nil
	}
	if store == nil {
		return "", fmt.Errorf("secret reference %q without secret store", value)
	}
	key := strings.TrimPrefix(value, refPrefix)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	return store.Get(ctx, key)
}
