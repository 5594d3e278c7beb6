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
	"time"

	"github.com/google/uuid"

	"rag-agent/pkg/errors"
	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
)

// Executor 执行单个到期 Job 的副作用
type Executor func(ctx context.Context, j ScheduledJob) error

// SchedulerConfig 调度参数
type SchedulerConfig struct {
	// ArmSoon enqueue 后粗粒度唤醒的延迟；处理器随后按最小 FireAt 精确重置
	ArmSoon time.Duration
}

// Scheduler 组合 Queue 与 Alarm：两阶段设置闹钟（enqueue 时尽快唤醒，处理器内精确重置）。
// 所有方法须在 Actor 的串行化区内调用。
type Scheduler struct {
	queue   *Queue
	alarm   *Alarm
	armSoon time.Duration
	now     func() time.Time
	logger  *log.Logger
}

// NewScheduler 创建调度器
func NewScheduler(queue *Queue, alarm *Alarm, cfg SchedulerConfig, logger *log.Logger) *Scheduler {
	if cfg.ArmSoon <= 0 {
		cfg.ArmSoon = time.Second
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Scheduler{
		queue:   queue,
		alarm:   alarm,
		armSoon: cfg.ArmSoon,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock 替换时间源（测试用）
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Enqueue 校验并持久化 Job，然后把闹钟设到 now+ArmSoon
func (s *Scheduler) Enqueue(ctx context.Context, j ScheduledJob) (ScheduledJob, error) {
	now := s.now()
	if j.FireAt < now.UnixMilli() {
		return ScheduledJob{}, errors.Wrapf(errors.ErrInvalidArg, "fireAt %d is in the past", j.FireAt)
	}
	if !j.Kind.Valid() {
		return ScheduledJob{}, errors.Wrapf(errors.ErrInvalidArg, "job kind %q", j.Kind)
	}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	if err := s.queue.Enqueue(ctx, j); err != nil {
		return ScheduledJob{}, err
	}
	if err := s.alarm.Set(ctx, now.Add(s.armSoon)); err != nil {
		return ScheduledJob{}, err
	}
	return j, nil
}

// HandleAlarm 闹钟处理器：取出到期 Job 并逐个执行，失败的 Job 同样移除（至多一次）；
// 之后把闹钟重置为剩余 Job 的最小 FireAt，无剩余则解除。返回执行的 Job 数。
func (s *Scheduler) HandleAlarm(ctx context.Context, exec Executor) (int, error) {
	due, remaining, err := s.queue.Drain(ctx, s.now())
	if err != nil {
		// 队列不可读写时保留闹钟，稍后重试，避免 Job 永久滞留
		if aerr := s.alarm.Set(ctx, s.now().Add(s.armSoon)); aerr != nil {
			s.logger.Error("drain 失败后重置闹钟失败", "error", aerr)
		}
		return 0, err
	}
	for _, j := range due {
		s.run(ctx, exec, j)
	}
	if next, ok := NextFireAt(remaining); ok {
		if err := s.alarm.Set(ctx, next); err != nil {
			return len(due), err
		}
	} else if err := s.alarm.Clear(ctx); err != nil {
		return len(due), err
	}
	return len(due), nil
}

// Restore 启动时恢复闹钟；若有待执行 Job 但没有闹钟则设到最小 FireAt
func (s *Scheduler) Restore(ctx context.Context) error {
	ok, err := s.alarm.Restore(ctx)
	if err != nil || ok {
		return err
	}
	jobs, err := s.queue.Load(ctx)
	if err != nil {
		return err
	}
	if next, ok := NextFireAt(jobs); ok {
		return s.alarm.Set(ctx, next)
	}
	return nil
}

// Pending 返回待执行 Job
func (s *Scheduler) Pending(ctx context.Context) ([]ScheduledJob, error) {
	return s.queue.Load(ctx)
}

// Stop 停止进程内 timer
func (s *Scheduler) Stop() {
	s.alarm.Stop()
}

func (s *Scheduler) run(ctx context.Context, exec Executor, j ScheduledJob) {
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "error"
			s.logger.Error("job 执行 panic", "job_id", j.ID, "kind", j.Kind, "panic", fmt.Sprint(r))
		}
		metrics.JobsExecutedTotal.WithLabelValues(string(j.Kind), outcome).Inc()
	}()
	if err := exec(ctx, j); err != nil {
		outcome = "error"
		s.logger.Warn("job 执行失败，已移除不重试", "job_id", j.ID, "kind", j.Kind, "error", err)
	}
}
