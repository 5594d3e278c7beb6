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
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryBackend 进程内后端，每个 Actor 一个 MemoryStore
type MemoryBackend struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryBackend 创建内存后端
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{stores: make(map[string]*MemoryStore)}
}

// Scope 实现 Backend；同一 actorID 返回同一实例
func (b *MemoryBackend) Scope(actorID string) Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.stores[actorID]
	if !ok {
		s = NewMemoryStore()
		b.stores[actorID] = s
	}
	return s
}

// AlarmedActors 实现 Backend
func (b *MemoryBackend) AlarmedActors(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for id, s := range b.stores {
		s.mu.RLock()
		armed := s.alarm != nil
		s.mu.RUnlock()
		if armed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 实现 Backend
func (b *MemoryBackend) Close() error { return nil }

// MemoryStore 内存存储实现，值以 JSON 保存，读写语义与远端后端一致
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
	alarm *time.Time
}

// NewMemoryStore 创建新的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Get 实现 Store
func (s *MemoryStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value %s: %w", key, err)
	}
	return true, nil
}

// Put 实现 Store
func (s *MemoryStore) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value %s: %w", key, err)
	}
	s.mu.Lock()
	s.items[key] = data
	s.mu.Unlock()
	return nil
}

// Delete 实现 Store
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// GetAlarm 实现 Store
func (s *MemoryStore) GetAlarm(ctx context.Context) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.alarm == nil {
		return time.Time{}, false, nil
	}
	return *s.alarm, true, nil
}

// SetAlarm 实现 Store
func (s *MemoryStore) SetAlarm(ctx context.Context, at time.Time) error {
	s.mu.Lock()
	s.alarm = &at
	s.mu.Unlock()
	return nil
}

// DeleteAlarm 实现 Store
func (s *MemoryStore) DeleteAlarm(ctx context.Context) error {
	s.mu.Lock()
	s.alarm = nil
	s.mu.Unlock()
	return nil
}
