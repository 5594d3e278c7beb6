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

package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rag-agent/internal/storage/kv"
)

// Alarm 每个 Actor 唯一的唤醒定时器：时间点持久化在 Store 的闹钟槽，进程内由一个软件 timer 驱动。
// 重新设置总是覆盖上一次；到点后在独立 goroutine 调用 fire。
type Alarm struct {
	store kv.Store
	fire  func()
	now   func() time.Time

	mu      sync.Mutex
	timer   *time.Timer
	at      time.Time
	armed   bool
	stopped bool
}

// NewAlarm 创建闹钟；fire 在 timer 到点时被调用
func NewAlarm(store kv.Store, fire func()) *Alarm {
	return &Alarm{store: store, fire: fire, now: time.Now}
}

// WithClock 替换时间源（测试用）
func (a *Alarm) WithClock(now func() time.Time) *Alarm {
	a.now = now
	return a
}

// Set 持久化并重置 timer 到 at；at 已过去时立即触发
func (a *Alarm) Set(ctx context.Context, at time.Time) error {
	if err := a.store.SetAlarm(ctx, at); err != nil {
		return fmt.Errorf("persist alarm: %w", err)
	}
	a.arm(at)
	return nil
}

// Clear 删除持久化的闹钟并停止 timer
func (a *Alarm) Clear(ctx context.Context) error {
	if err := a.store.DeleteAlarm(ctx); err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
	a.armed = false
	return nil
}

// Restore 进程启动时按持久化的时间点恢复 timer；返回是否存在闹钟
func (a *Alarm) Restore(ctx context.Context) (bool, error) {
	at, ok, err := a.store.GetAlarm(ctx)
	if err != nil {
		return false, fmt.Errorf("load alarm: %w", err)
	}
	if !ok {
		return false, nil
	}
	a.arm(at)
	return true, nil
}

// Next 返回当前已设置的时间点
func (a *Alarm) Next() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.at, a.armed
}

// Stop 停止 timer 但保留持久化的时间点，用于关闭进程；之后不再触发
func (a *Alarm) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.stopTimerLocked()
}

func (a *Alarm) arm(at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.stopTimerLocked()
	a.at = at
	a.armed = true
	d := at.Sub(a.now())
	if d < 0 {
		d = 0
	}
	a.timer = time.AfterFunc(d, a.onTimer)
}

func (a *Alarm) onTimer() {
	a.mu.Lock()
	stopped := a.stopped
	a.mu.Unlock()
	if stopped || a.fire == nil {
		return
	}
	a.fire()
}

func (a *Alarm) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
