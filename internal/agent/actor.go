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
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"rag-agent/internal/agent/job"
	"rag-agent/internal/model/llm"
	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/runtime/session"
	"rag-agent/internal/storage/kv"
	"rag-agent/internal/tool/dispatch"
	"rag-agent/pkg/errors"
	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
	"rag-agent/pkg/tracing"
)

// NoMemorySentinel 检索为空时的上下文文本
const NoMemorySentinel = "no memory retrieved"

// Memory 长期记忆能力
type Memory interface {
	SearchContext(ctx context.Context, ownerID, query string, k int) []string
	UpsertNote(ctx context.Context, ownerID, text, id string) rag.NoteOutcome
}

// Tools 斜杠命令执行能力
type Tools interface {
	Execute(ctx context.Context, call dispatch.Call, ownerID string) (string, error)
}

// Deps Actor 的外部协作者
type Deps struct {
	LLM    llm.Client
	Memory Memory
	Tools  Tools
	Logger *log.Logger
}

// Option Actor 可选项
type Option func(*actorOptions)

type actorOptions struct {
	now func() time.Time
}

// WithClock 替换时间源，作用于消息时间戳、任务调度与唤醒
func WithClock(now func() time.Time) Option {
	return func(o *actorOptions) { o.now = now }
}

// ChatResult 一轮对话的结果；ToolErr 非空表示工具命令校验失败（回复仍已写入日志）
type ChatResult struct {
	Reply   string
	Tool    bool
	ToolErr error
}

// ScheduleRequest 定时任务请求；Seconds 为 nil 时取默认值
type ScheduleRequest struct {
	Seconds *int
	Note    string
	Kind    string
	OwnerID string
}

// Actor 单个会话的串行执行单元
//
// 所有会改动状态的操作（追加消息、入队、处理唤醒、清空）都在 mu 下执行，
// 包括等待补全服务期间，因此同一会话的两轮对话不会交错写入日志。
type Actor struct {
	id        string
	cfg       Config
	deps      Deps
	logger    *log.Logger
	now       func() time.Time
	mu        sync.Mutex
	log       *session.Log
	scheduler *job.Scheduler
}

// NewActor 创建 Actor 并恢复持久化的唤醒
func NewActor(ctx context.Context, id string, store kv.Store, cfg Config, deps Deps, opts ...Option) (*Actor, error) {
	o := actorOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Nop()
	}
	a := &Actor{
		id:     id,
		cfg:    cfg,
		deps:   deps,
		logger: &log.Logger{Logger: logger.With("actor_id", id)},
		now:    o.now,
		log:    session.NewLog(store, cfg.Window).WithClock(o.now),
	}
	alarm := job.NewAlarm(store, a.onAlarm).WithClock(o.now)
	a.scheduler = job.NewScheduler(job.NewQueue(store), alarm, job.SchedulerConfig{ArmSoon: cfg.ArmSoon}, a.logger).WithClock(o.now)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.scheduler.Restore(ctx); err != nil {
		a.scheduler.Stop()
		return nil, fmt.Errorf("restore alarm for %s: %w", id, err)
	}
	return a, nil
}

// ID 返回会话标识
func (a *Actor) ID() string { return a.id }

// Chat 处理一轮用户输入：先记录用户消息，命令走工具，否则检索后调用补全
//
// 调用方断开不会中止本轮，回复照常写入日志。仅存储错误会以 error 返回。
func (a *Actor) Chat(ctx context.Context, ownerID, text string) (ChatResult, error) {
	ctx = context.WithoutCancel(ctx)
	ownerID = a.owner(ownerID)

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := tracing.StartTurnSpan(ctx, a.id, "chat")
	defer span.End()

	if _, err := a.log.Append(ctx, session.RoleUser, text); err != nil {
		return ChatResult{}, err
	}

	if call, ok := dispatch.Recognize(text); ok {
		span.SetAttributes(attribute.String("tool", call.Tool))
		return a.toolTurnLocked(ctx, call, ownerID)
	}

	snippets := a.deps.Memory.SearchContext(ctx, ownerID, text, a.cfg.RetrievalK)
	span.SetAttributes(attribute.Int("retrieved", len(snippets)))
	reply := a.completeLocked(ctx, text, snippets)
	if _, err := a.log.Append(ctx, session.RoleAssistant, reply); err != nil {
		return ChatResult{}, err
	}
	metrics.ChatTurnsTotal.WithLabelValues("completion").Inc()
	return ChatResult{Reply: reply}, nil
}

func (a *Actor) toolTurnLocked(ctx context.Context, call dispatch.Call, ownerID string) (ChatResult, error) {
	reply, err := a.deps.Tools.Execute(ctx, call, ownerID)
	if err != nil {
		a.logger.Warn("工具执行失败", "tool", call.Tool, "error", err)
		reply = "Tool error: " + err.Error()
	}
	if _, appendErr := a.log.Append(ctx, session.RoleAssistant, reply); appendErr != nil {
		return ChatResult{}, appendErr
	}
	metrics.ChatTurnsTotal.WithLabelValues("tool").Inc()
	return ChatResult{Reply: reply, Tool: true, ToolErr: err}, nil
}

// completeLocked 补全失败或响应无法识别时返回固定致歉文本
func (a *Actor) completeLocked(ctx context.Context, text string, snippets []string) string {
	messages := []llm.Message{
		{Role: "system", Content: a.cfg.SystemPrompt},
		{Role: "system", Content: "Relevant memory:\n" + ContextBlock(snippets)},
		{Role: "user", Content: text},
	}
	start := time.Now()
	res, err := a.deps.LLM.Complete(ctx, messages, llm.GenerateOptions{
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	})
	metrics.CompletionDuration.WithLabelValues(a.deps.LLM.Provider()).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		a.logger.Warn("补全调用失败，使用致歉回复", "error", err)
		metrics.CompletionFallbackTotal.WithLabelValues("error").Inc()
		return a.cfg.Apology
	case !res.Recognized:
		metrics.CompletionFallbackTotal.WithLabelValues("unrecognized").Inc()
		return a.cfg.Apology
	}
	return res.Text
}

// ContextBlock 把检索片段编号拼接为上下文；为空时返回 NoMemorySentinel
func ContextBlock(snippets []string) string {
	if len(snippets) == 0 {
		return NoMemorySentinel
	}
	var b strings.Builder
	for i, s := range snippets {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, s)
	}
	return b.String()
}

// History 返回消息日志快照，不等待进行中的对话
func (a *Actor) History(ctx context.Context) ([]session.Turn, error) {
	return a.log.Snapshot(ctx)
}

// Clear 清空消息日志
func (a *Actor) Clear(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.log.Clear(ctx)
}

// Note 直接写入一条记忆笔记
func (a *Actor) Note(ctx context.Context, ownerID, text string) (rag.NoteOutcome, error) {
	if strings.TrimSpace(text) == "" {
		return rag.NoteOutcome{}, errors.Wrap(errors.ErrInvalidArg, "note text is empty")
	}
	return a.deps.Memory.UpsertNote(context.WithoutCancel(ctx), a.owner(ownerID), text, ""), nil
}

// Schedule 入队一个定时任务，返回任务与实际延迟秒数
func (a *Actor) Schedule(ctx context.Context, req ScheduleRequest) (job.ScheduledJob, int, error) {
	seconds := a.cfg.DefaultSeconds
	if req.Seconds != nil {
		seconds = *req.Seconds
	}
	if seconds < 0 {
		return job.ScheduledJob{}, 0, errors.Wrapf(errors.ErrInvalidArg, "seconds must be >= 0, got %d", seconds)
	}
	kind := a.cfg.DefaultKind
	if req.Kind != "" {
		kind = job.Kind(req.Kind)
	}
	note := req.Note
	if note == "" {
		note = a.cfg.DefaultNote
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	j, err := a.scheduler.Enqueue(ctx, job.ScheduledJob{
		FireAt:  a.now().Add(time.Duration(seconds) * time.Second).UnixMilli(),
		Kind:    kind,
		Note:    note,
		OwnerID: a.owner(req.OwnerID),
	})
	if err != nil {
		return job.ScheduledJob{}, 0, err
	}
	return j, seconds, nil
}

// Pending 返回尚未执行的任务
func (a *Actor) Pending(ctx context.Context) ([]job.ScheduledJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler.Pending(ctx)
}

// HandleAlarm 执行到期任务并重置唤醒，返回执行的任务数
func (a *Actor) HandleAlarm(ctx context.Context) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	metrics.AlarmFiresTotal.WithLabelValues(a.id).Inc()
	ctx, span := tracing.StartAlarmSpan(ctx, a.id, 0)
	defer span.End()
	n, err := a.scheduler.HandleAlarm(ctx, a.runJobLocked)
	span.SetAttributes(attribute.Int("jobs.due", n))
	return n, err
}

func (a *Actor) onAlarm() {
	if _, err := a.HandleAlarm(context.Background()); err != nil {
		a.logger.Error("处理唤醒失败", "error", err)
	}
}

// runJobLocked 执行单个任务的副作用；调用方已持有 mu
func (a *Actor) runJobLocked(ctx context.Context, j job.ScheduledJob) error {
	switch j.Kind {
	case job.KindResearch:
		call := dispatch.Call{Command: "/search", Tool: "fetch", Arg: j.Note}
		snippet, err := a.deps.Tools.Execute(ctx, call, j.OwnerID)
		if err != nil {
			if _, appendErr := a.log.Append(ctx, session.RoleAssistant, "Research failed: "+err.Error()); appendErr != nil {
				return appendErr
			}
			return err
		}
		if _, err := a.log.Append(ctx, session.RoleAssistant, "Research: "+snippet); err != nil {
			return err
		}
		if out := a.deps.Memory.UpsertNote(ctx, a.owner(j.OwnerID), snippet, ""); !out.Vectorized {
			return fmt.Errorf("store research note: %s", out.Saved)
		}
		return nil
	default:
		_, err := a.log.Append(ctx, session.RoleAssistant, fmt.Sprintf("Follow-up: %s 👋", j.Note))
		return err
	}
}

// Stop 停止唤醒计时器，持久化的唤醒保留
func (a *Actor) Stop() {
	a.scheduler.Stop()
}

func (a *Actor) owner(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return a.cfg.DefaultUser
}
