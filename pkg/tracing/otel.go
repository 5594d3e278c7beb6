// Copyright 2026 fanjia1024
// OpenTelemetry integration for distributed tracing

package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// 全局 TracerProvider 由 API 进程通过 hertz-contrib/obs-opentelemetry 的 provider 安装；
// 未安装时以下 span 均为 no-op。
const tracerName = "rag-agent"

// StartTurnSpan 开始一次对话轮次 span
func StartTurnSpan(ctx context.Context, actorID string, source string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.turn",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.String("turn.source", source),
		),
	)
}

// StartAlarmSpan 开始闹钟处理 span
func StartAlarmSpan(ctx context.Context, actorID string, due int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "agent.alarm",
		trace.WithAttributes(
			attribute.String("actor.id", actorID),
			attribute.Int("jobs.due", due),
		),
	)
}

// StartToolSpan 开始 tool invocation span
func StartToolSpan(ctx context.Context, toolName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.invoke",
		trace.WithAttributes(
			attribute.String("tool.name", toolName),
		),
	)
}
