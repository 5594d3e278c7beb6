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

package agent

import (
	"context"
	"fmt"
	"sync"

	"rag-agent/internal/storage/kv"
)

// Manager 按会话 ID 懒加载 Actor，同一 ID 只有一个实例
type Manager struct {
	backend kv.Backend
	cfg     Config
	deps    Deps
	opts    []Option

	mu     sync.Mutex
	actors map[string]*Actor
}

// NewManager 创建 Manager
func NewManager(backend kv.Backend, cfg Config, deps Deps, opts ...Option) *Manager {
	return &Manager{
		backend: backend,
		cfg:     cfg,
		deps:    deps,
		opts:    opts,
		actors:  make(map[string]*Actor),
	}
}

// Get 返回 id 对应的 Actor，不存在时创建并恢复唤醒
func (m *Manager) Get(ctx context.Context, id string) (*Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.actors[id]; ok {
		return a, nil
	}
	a, err := NewActor(ctx, id, m.backend.Scope(id), m.cfg, m.deps, m.opts...)
	if err != nil {
		return nil, err
	}
	m.actors[id] = a
	return a, nil
}

// RestoreAll 启动时加载所有持有唤醒的 Actor 及 extra 指定的 ID，
// 使到期的任务无需等待首个请求即可触发；返回加载的 Actor 数
func (m *Manager) RestoreAll(ctx context.Context, extra ...string) (int, error) {
	ids, err := m.backend.AlarmedActors(ctx)
	if err != nil {
		return 0, fmt.Errorf("list alarmed actors: %w", err)
	}
	seen := make(map[string]struct{}, len(ids)+len(extra))
	n := 0
	for _, id := range append(ids, extra...) {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := m.Get(ctx, id); err != nil {
			return n, fmt.Errorf("restore actor %s: %w", id, err)
		}
		n++
	}
	return n, nil
}

// Close 停止所有 Actor 的计时器并关闭存储
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actors {
		a.Stop()
	}
	m.actors = make(map[string]*Actor)
	return m.backend.Close()
}
