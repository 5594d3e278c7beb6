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

// Package dispatch 识别斜杠命令并同步执行对应工具。
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"rag-agent/internal/tool/registry"
	"rag-agent/pkg/errors"
	"rag-agent/pkg/metrics"
	"rag-agent/pkg/tracing"
)

// Call 识别出的工具调用
type Call struct {
	Command string // 用户输入的命令，如 "/search"
	Tool    string // 注册表中的工具名
	Arg     string // 命令后的参数原文
}

// commands 命令到工具名的映射
var commands = map[string]string{
	"/search": "fetch",
	"/note":   "note",
}

// Recognize 识别 "/search <url>" 与 "/note <text>"；命令大小写不敏感，参数为空不视为命令
func Recognize(text string) (Call, bool) {
	trimmed := strings.TrimSpace(text)
	head, rest, _ := strings.Cut(trimmed, " ")
	name, ok := commands[strings.ToLower(head)]
	if !ok {
		return Call{}, false
	}
	arg := strings.TrimSpace(rest)
	if arg == "" {
		return Call{}, false
	}
	return Call{Command: strings.ToLower(head), Tool: name, Arg: arg}, true
}

// Dispatcher 执行识别出的工具调用
type Dispatcher struct {
	reg *registry.Registry
}

func New(reg *registry.Registry) *Dispatcher {
	return &Dispatcher{reg: reg}
}

// Execute 同步执行工具并返回文本；ownerID 用于 note 工具
func (d *Dispatcher) Execute(ctx context.Context, call Call, ownerID string) (string, error) {
	t, ok := d.reg.Get(call.Tool)
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "tool %s", call.Tool)
	}
	ctx, span := tracing.StartToolSpan(ctx, call.Tool)
	defer span.End()
	start := time.Now()

	res, err := t.Execute(ctx, inputFor(call, ownerID))
	metrics.ToolDuration.WithLabelValues(call.Tool).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(call.Tool, outcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%s: %w", call.Command, err)
	}
	metrics.ToolCallsTotal.WithLabelValues(call.Tool, "ok").Inc()
	return res.Content, nil
}

func inputFor(call Call, ownerID string) map[string]any {
	switch call.Tool {
	case "fetch":
		return map[string]any{"url": call.Arg}
	default:
		return map[string]any{"text": call.Arg, "owner_id": ownerID}
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, errors.ErrDomainNotAllowed):
		return "denied"
	case errors.Is(err, errors.ErrInvalidArg):
		return "invalid"
	default:
		return "error"
	}
}
