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

package http

import (
	"bytes"
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"

	"rag-agent/internal/agent"
	"rag-agent/internal/agent/relay"
	"rag-agent/internal/runtime/session"
	"rag-agent/pkg/errors"
	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
)

const defaultWSReadLimit = 64 << 10

// ActorSource 按会话 ID 取得 Actor，*agent.Manager 实现该接口
type ActorSource interface {
	Get(ctx context.Context, id string) (*agent.Actor, error)
}

// HandlerConfig Handler 配置
type HandlerConfig struct {
	DefaultActor string
	WSReadLimit  int64
}

// Handler HTTP 处理器
type Handler struct {
	actors       ActorSource
	defaultActor string
	wsReadLimit  int64
	upgrader     websocket.HertzUpgrader
	logger       *log.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(actors ActorSource, cfg HandlerConfig, logger *log.Logger) *Handler {
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = "primary"
	}
	if cfg.WSReadLimit <= 0 {
		cfg.WSReadLimit = defaultWSReadLimit
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		actors:       actors,
		defaultActor: cfg.DefaultActor,
		wsReadLimit:  cfg.WSReadLimit,
		upgrader: websocket.HertzUpgrader{
			CheckOrigin: func(*app.RequestContext) bool { return true },
		},
		logger: logger,
	}
}

type chatRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId"`
}

type scheduleRequest struct {
	Seconds *int   `json:"seconds"`
	Note    string `json:"note"`
	UserID  string `json:"userId"`
	Kind    string `json:"kind"`
}

type noteRequest struct {
	Text   string `json:"text"`
	UserID string `json:"userId"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics 输出 Prometheus 文本格式指标
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		c.String(consts.StatusInternalServerError, err.Error())
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Chat POST /chat
func (h *Handler) Chat(ctx context.Context, c *app.RequestContext) {
	var req chatRequest
	if !h.bind(c, &req) {
		return
	}
	if req.Prompt == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	res, err := actor.Chat(ctx, req.UserID, req.Prompt)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	resp := map[string]any{"reply": res.Reply}
	if res.ToolErr != nil {
		resp["error"] = res.ToolErr.Error()
	}
	c.JSON(consts.StatusOK, resp)
}

// History GET /history
func (h *Handler) History(ctx context.Context, c *app.RequestContext) {
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	turns, err := actor.History(ctx)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	c.JSON(consts.StatusOK, map[string]any{"messages": turns})
}

// Schedule POST /schedule；空 body 按全部默认值处理
func (h *Handler) Schedule(ctx context.Context, c *app.RequestContext) {
	var req scheduleRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	_, in, err := actor.Schedule(ctx, agent.ScheduleRequest{
		Seconds: req.Seconds,
		Note:    req.Note,
		Kind:    req.Kind,
		OwnerID: req.UserID,
	})
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]any{"scheduled": true, "in": in})
}

// Note POST /note
func (h *Handler) Note(ctx context.Context, c *app.RequestContext) {
	var req noteRequest
	if !h.bind(c, &req) {
		return
	}
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	out, err := actor.Note(ctx, req.UserID, req.Text)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, out)
}

// Clear POST /clear
func (h *Handler) Clear(ctx context.Context, c *app.RequestContext) {
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	if err := actor.Clear(ctx); err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, map[string]bool{"cleared": true})
}

// WebSocket GET /ws 升级为实时连接
func (h *Handler) WebSocket(ctx context.Context, c *app.RequestContext) {
	actor, ok := h.actor(ctx, c)
	if !ok {
		return
	}
	r := relay.New(actor, h.logger)
	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.SetReadLimit(h.wsReadLimit)
		r.Serve(context.WithoutCancel(ctx), conn)
	})
	if err != nil {
		hlog.CtxWarnf(ctx, "websocket upgrade failed: %v", err)
	}
}

// actor 取 ?actor= 指定的会话，缺省为默认会话
func (h *Handler) actor(ctx context.Context, c *app.RequestContext) (*agent.Actor, bool) {
	id := c.DefaultQuery("actor", h.defaultActor)
	a, err := h.actors.Get(ctx, id)
	if err != nil {
		h.fail(ctx, c, err)
		return nil, false
	}
	return a, true
}

// bind 空 body 视为全部缺省；非空时必须是合法 JSON
func (h *Handler) bind(c *app.RequestContext, dst any) bool {
	if len(bytes.TrimSpace(c.Request.Body())) == 0 {
		return true
	}
	if err := c.BindJSON(dst); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (h *Handler) fail(ctx context.Context, c *app.RequestContext, err error) {
	if errors.Is(err, errors.ErrInvalidArg) || errors.Is(err, errors.ErrDomainNotAllowed) {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	hlog.CtxErrorf(ctx, "request failed: %v", err)
	c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
}
