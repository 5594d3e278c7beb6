package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		ChatTurnsTotal, CompletionFallbackTotal, CompletionDuration,
		EmbeddingAttemptsTotal, NoteUpsertTotal,
		ToolCallsTotal, ToolDuration,
		AlarmFiresTotal, JobsExecutedTotal,
		RealtimeConnections, RateLimitWaitSeconds,
	)
}

// ChatTurnsTotal 对话轮次（按路径）
var ChatTurnsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_chat_turns_total",
		Help: "对话轮次总数",
	},
	[]string{"path"}, // tool | completion
)

// CompletionFallbackTotal completion 失败或返回无法识别时使用道歉文案的次数
var CompletionFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_completion_fallback_total",
		Help: "completion 回退为固定道歉文案的次数",
	},
	[]string{"reason"}, // error | unrecognized
)

// CompletionDuration completion 调用耗时（秒）
var CompletionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agent_completion_duration_seconds",
		Help:    "completion 调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

// EmbeddingAttemptsTotal 向量化尝试（按模型与结果）
var EmbeddingAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_embedding_attempts_total",
		Help: "向量化尝试次数",
	},
	[]string{"model", "outcome"}, // ok | error | invalid | cached
)

// NoteUpsertTotal 记忆写入结果
var NoteUpsertTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_note_upsert_total",
		Help: "记忆写入次数（按结果）",
	},
	[]string{"outcome"}, // stored | no-embed | vectorize-error
)

// ToolCallsTotal 工具调用次数
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_tool_calls_total",
		Help: "工具调用次数",
	},
	[]string{"tool", "outcome"}, // ok | error
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agent_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool"},
)

// AlarmFiresTotal 闹钟触发次数
var AlarmFiresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_alarm_fires_total",
		Help: "闹钟触发次数",
	},
	[]string{"actor"},
)

// JobsExecutedTotal 到期 Job 执行次数（按类型与结果）
var JobsExecutedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agent_jobs_executed_total",
		Help: "到期 Job 执行次数",
	},
	[]string{"kind", "outcome"}, // ok | error
)

// RealtimeConnections 当前实时连接数
var RealtimeConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "agent_realtime_connections",
		Help: "当前 WebSocket 连接数",
	},
)

// RateLimitWaitSeconds 限流等待时长
var RateLimitWaitSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "agent_rate_limit_wait_seconds",
		Help:    "限流等待时长（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"kind", "provider"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
