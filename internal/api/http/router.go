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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/route"

	"rag-agent/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	enableWS   bool
}

// NewRouter 创建 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: middleware, enableWS: true}
}

// SetWebSocketEnabled 是否注册 /ws
func (r *Router) SetWebSocketEnabled(enable bool) {
	r.enableWS = enable
}

// Build 创建 Hertz 服务并注册路由；同一组路由同时挂在根路径与 /api 下
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)
	h.Use(r.middleware.AccessLog(), r.middleware.CORS())

	h.GET("/health", r.handler.HealthCheck)
	h.GET("/metrics", r.handler.Metrics)

	r.register(&h.RouterGroup)
	r.register(h.Group("/api"))
	return h
}

func (r *Router) register(g *route.RouterGroup) {
	g.POST("/chat", r.handler.Chat)
	g.GET("/history", r.handler.History)
	g.POST("/schedule", r.handler.Schedule)
	g.POST("/note", r.handler.Note)
	g.POST("/clear", r.handler.Clear)
	if r.enableWS {
		g.GET("/ws", r.handler.WebSocket)
	}
}
