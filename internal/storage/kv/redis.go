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

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-agent/pkg/config"
)

const alarmKey = "__alarm"

// RedisBackend Redis 后端；key 布局 <prefix>:<actorID>:<key>
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend 创建 Redis 后端并 Ping
func NewRedisBackend(ctx context.Context, cfg config.KVConfig) (*RedisBackend, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisBackendWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisBackendWithClient 复用已有 client
func NewRedisBackendWithClient(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "actor"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Scope 实现 Backend
func (b *RedisBackend) Scope(actorID string) Store {
	return &RedisStore{client: b.client, ns: b.prefix + ":" + actorID + ":"}
}

// AlarmedActors 实现 Backend；SCAN <prefix>:*:__alarm
func (b *RedisBackend) AlarmedActors(ctx context.Context) ([]string, error) {
	head := b.prefix + ":"
	tail := ":" + alarmKey
	var ids []string
	iter := b.client.Scan(ctx, 0, head+"*"+tail, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) <= len(head)+len(tail) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(key, head), tail))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan alarms: %w", err)
	}
	return ids, nil
}

// Close 实现 Backend
func (b *RedisBackend) Close() error { return b.client.Close() }

// RedisStore 单个 Actor 的 Redis 视图
type RedisStore struct {
	client *redis.Client
	ns     string
}

// Get 实现 Store
func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.client.Get(ctx, s.ns+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value %s: %w", key, err)
	}
	return true, nil
}

// Put 实现 Store
func (s *RedisStore) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.ns+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete 实现 Store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.ns+key).Err()
}

// GetAlarm 实现 Store；以 unix 毫秒保存
func (s *RedisStore) GetAlarm(ctx context.Context) (time.Time, bool, error) {
	v, err := s.client.Get(ctx, s.ns+alarmKey).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get alarm: %w", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid alarm value %q: %w", v, err)
	}
	return time.UnixMilli(ms), true, nil
}

// SetAlarm 实现 Store
func (s *RedisStore) SetAlarm(ctx context.Context, at time.Time) error {
	return s.client.Set(ctx, s.ns+alarmKey, strconv.FormatInt(at.UnixMilli(), 10), 0).Err()
}

// DeleteAlarm 实现 Store
func (s *RedisStore) DeleteAlarm(ctx context.Context) error {
	return s.client.Del(ctx, s.ns+alarmKey).Err()
}
