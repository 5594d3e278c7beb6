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
	"container/heap"
	"context"
	"fmt"
	"time"

	"rag-agent/internal/storage/kv"
)

// JobsKey 待执行 Job 集合在 Store 中的 key
const JobsKey = "jobs"

// Queue 以单个值持久化的 Job 集合；每次修改都是完整的读-改-写，调用方负责串行化
type Queue struct {
	store kv.Store
}

// NewQueue 创建 Job 队列
func NewQueue(store kv.Store) *Queue {
	return &Queue{store: store}
}

// Load 读取全部待执行 Job，按 FireAt 升序
func (q *Queue) Load(ctx context.Context) ([]ScheduledJob, error) {
	var jobs []ScheduledJob
	if _, err := q.store.Get(ctx, JobsKey, &jobs); err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	h := jobHeap(jobs)
	heap.Init(&h)
	return h.popAll(), nil
}

// Enqueue 追加一个 Job 并持久化
func (q *Queue) Enqueue(ctx context.Context, j ScheduledJob) error {
	jobs, err := q.Load(ctx)
	if err != nil {
		return err
	}
	jobs = append(jobs, j)
	return q.save(ctx, jobs)
}

// Drain 取出 now 时已到期的 Job，持久化剩余部分后返回二者（均按 FireAt 升序）
func (q *Queue) Drain(ctx context.Context, now time.Time) (due, remaining []ScheduledJob, err error) {
	var jobs []ScheduledJob
	if _, err := q.store.Get(ctx, JobsKey, &jobs); err != nil {
		return nil, nil, fmt.Errorf("load jobs: %w", err)
	}
	h := jobHeap(jobs)
	heap.Init(&h)
	for h.Len() > 0 && h[0].DueAt(now) {
		due = append(due, heap.Pop(&h).(ScheduledJob))
	}
	remaining = h.popAll()
	if len(due) == 0 {
		return nil, remaining, nil
	}
	if err := q.save(ctx, remaining); err != nil {
		return nil, nil, err
	}
	return due, remaining, nil
}

// Clear 删除全部待执行 Job
func (q *Queue) Clear(ctx context.Context) error {
	return q.save(ctx, nil)
}

func (q *Queue) save(ctx context.Context, jobs []ScheduledJob) error {
	if jobs == nil {
		jobs = []ScheduledJob{}
	}
	if err := q.store.Put(ctx, JobsKey, jobs); err != nil {
		return fmt.Errorf("persist jobs: %w", err)
	}
	return nil
}

// NextFireAt 返回最早的 FireAt；jobs 为空时 ok=false
func NextFireAt(jobs []ScheduledJob) (time.Time, bool) {
	if len(jobs) == 0 {
		return time.Time{}, false
	}
	min := jobs[0].FireAt
	for _, j := range jobs[1:] {
		if j.FireAt < min {
			min = j.FireAt
		}
	}
	return time.UnixMilli(min), true
}

// jobHeap 按 FireAt 的最小堆，FireAt 相同按 ID 保持稳定
type jobHeap []ScheduledJob

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].FireAt != h[j].FireAt {
		return h[i].FireAt < h[j].FireAt
	}
	return h[i].ID < h[j].ID
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)   { *h = append(*h, x.(ScheduledJob)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *jobHeap) popAll() []ScheduledJob {
	out := make([]ScheduledJob, 0, h.Len())
	for h.Len() > 0 {
		out = append(out, heap.Pop(h).(ScheduledJob))
	}
	return out
}
