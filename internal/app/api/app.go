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

package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"rag-agent/internal/api/http"
	"rag-agent/internal/api/http/middleware"
	"rag-agent/internal/app"
	"rag-agent/pkg/log"
	"rag-agent/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用：装配 Router、Handler、Middleware，持有 Bootstrap 的生命周期
type App struct {
	bootstrap    *app.Bootstrap
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Actors == nil {
		return nil, fmt.Errorf("bootstrap is not initialized")
	}
	cfg := bootstrap.Config
	handler := http.NewHandler(bootstrap.Actors, http.HandlerConfig{
		DefaultActor: cfg.Agent.DefaultActor,
		WSReadLimit:  cfg.API.WS.ReadLimit,
	}, bootstrap.Logger)
	router := http.NewRouter(handler, middleware.NewMiddleware(cfg.API.CORS))
	if cfg.API.WS.Enable != nil {
		router.SetWebSocketEnabled(*cfg.API.WS.Enable)
	}
	return &App{bootstrap: bootstrap, router: router}, nil
}

// Run 启动 HTTP 服务（阻塞）
func (a *App) Run(addr string) error {
	cfg := a.bootstrap.Config

	var output io.Writer = os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	opts := []hertzconfig.Option{}
	if cfg.API.Timeout != "" {
		opts = append(opts, server.WithReadTimeout(utils.ParseDuration(cfg.API.Timeout, 0)))
	}

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	endpoint := utils.CoalesceString(tracing.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if tracing.Enable && endpoint != "" {
		serviceName := utils.CoalesceString(tracing.ServiceName, "rag-agent")
		popts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(endpoint),
		}
		if tracing.Insecure {
			popts = append(popts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(popts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, append(opts, tracerOpt)...)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.bootstrap.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", endpoint)
	} else {
		a.hertz = a.router.Build(addr, opts...)
	}

	a.bootstrap.Logger.Info("API 服务启动", "addr", addr)
	return a.hertz.Run()
}

// Shutdown 优雅关闭：先停 HTTP，再停 Actor 计时器与存储
func (a *App) Shutdown(ctx context.Context) error {
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	return a.bootstrap.Close()
}
