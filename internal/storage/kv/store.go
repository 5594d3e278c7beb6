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

// Package kv 提供 Actor 级持久化键值存储与单一可重置唤醒槽。
// 单次 Put 在各后端均为单条原子写；读-改-写的串行化由 Actor 负责。
package kv

import (
	"context"
	"fmt"
	"time"

	"rag-agent/pkg/config"
)

// Store 作用域为单个 Actor 的键值存储
type Store interface {
	// Get 读取 key 并反序列化到 dest；不存在时返回 false
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Put 序列化 value 并整体覆盖写入
	Put(ctx context.Context, key string, value any) error
	// Delete 删除 key，不存在时不报错
	Delete(ctx context.Context, key string) error

	// GetAlarm 读取已持久化的唤醒时间
	GetAlarm(ctx context.Context) (time.Time, bool, error)
	// SetAlarm 覆盖唤醒时间（同一时刻至多一个）
	SetAlarm(ctx context.Context, at time.Time) error
	// DeleteAlarm 解除唤醒
	DeleteAlarm(ctx context.Context) error
}

// Backend 持有连接，按 Actor ID 派生 Store
type Backend interface {
	Scope(actorID string) Store
	// AlarmedActors 列出持有已持久化唤醒的 Actor ID，用于启动时恢复
	AlarmedActors(ctx context.Context) ([]string, error)
	Close() error
}

// NewBackend 根据 KVConfig 创建后端
func NewBackend(ctx context.Context, cfg config.KVConfig) (Backend, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryBackend(), nil
	case "redis":
		b, err := NewRedisBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("storage.kv.dsn 为空（type=postgres）")
		}
		b, err := NewPostgresBackend(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("不支持的 kv 存储类型: %s", cfg.Type)
	}
}
