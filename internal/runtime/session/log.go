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

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rag-agent/internal/storage/kv"
	"rag-agent/pkg/errors"
)

// MessagesKey 消息日志在 Store 中的 key
const MessagesKey = "messages"

const defaultWindow = 120

// Log 追加式消息日志，长度不超过 window，溢出时丢弃最旧的。
// 每次 Append 先写穿 Store 再更新内存副本；Snapshot 读内存副本，首次访问时从 Store 加载。
type Log struct {
	store  kv.Store
	window int
	now    func() time.Time

	mu     sync.RWMutex
	turns  []Turn
	loaded bool
}

// NewLog 创建消息日志，window<=0 时默认 120
func NewLog(store kv.Store, window int) *Log {
	if window <= 0 {
		window = defaultWindow
	}
	return &Log{store: store, window: window, now: time.Now}
}

// WithClock 替换时间源（测试用）
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Window 返回窗口大小
func (l *Log) Window() int { return l.window }

// Append 追加一条消息并写穿 Store
func (l *Log) Append(ctx context.Context, role Role, text string) (Turn, error) {
	if !role.Valid() {
		return Turn{}, errors.Wrapf(errors.ErrInvalidArg, "role %q", role)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		return Turn{}, err
	}

	turn := Turn{Role: role, Text: text, TS: l.now().UnixMilli()}
	next := make([]Turn, 0, len(l.turns)+1)
	next = append(next, l.turns...)
	next = append(next, turn)
	if len(next) > l.window {
		next = next[len(next)-l.window:]
	}
	if err := l.store.Put(ctx, MessagesKey, next); err != nil {
		return Turn{}, fmt.Errorf("persist messages: %w", err)
	}
	l.turns = next
	return turn, nil
}

// Snapshot 按追加顺序返回副本；从未写入时为空
func (l *Log) Snapshot(ctx context.Context) ([]Turn, error) {
	l.mu.RLock()
	if l.loaded {
		out := make([]Turn, len(l.turns))
		copy(out, l.turns)
		l.mu.RUnlock()
		return out, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.loadLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out, nil
}

// Clear 清空日志
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.Put(ctx, MessagesKey, []Turn{}); err != nil {
		return fmt.Errorf("persist messages: %w", err)
	}
	l.turns = nil
	l.loaded = true
	return nil
}

func (l *Log) loadLocked(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	var turns []Turn
	if _, err := l.store.Get(ctx, MessagesKey, &turns); err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	// 窗口配置可能被调小
	if len(turns) > l.window {
		turns = turns[len(turns)-l.window:]
	}
	l.turns = turns
	l.loaded = true
	return nil
}
