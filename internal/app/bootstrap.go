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

package app

import (
	"context"
	"fmt"

	"rag-agent/internal/agent"
	"rag-agent/internal/einoext"
	"rag-agent/internal/model"
	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/storage/kv"
	"rag-agent/internal/tool/builtin"
	"rag-agent/internal/tool/dispatch"
	"rag-agent/internal/tool/registry"
	"rag-agent/pkg/config"
	"rag-agent/pkg/log"
	"rag-agent/pkg/secrets"
)

// Bootstrap 统一初始化存储、模型、记忆与工具，cmd 层只负责进程生命周期
type Bootstrap struct {
	Config   *config.Config
	Logger   *log.Logger
	KV       kv.Backend
	Memory   *einoext.MemoryIndex
	Pipeline *rag.Pipeline
	Tools    *dispatch.Dispatcher
	Actors   *agent.Manager
}

// NewBootstrap 根据配置创建 Bootstrap
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	ctx := context.Background()
	if err := resolveSecrets(ctx, cfg); err != nil {
		return nil, fmt.Errorf("解析密钥失败: %w", err)
	}

	chat, err := model.NewLLM(ctx, cfg.Model, model.RateLimiterFromConfig(cfg.RateLimits))
	if err != nil {
		return nil, fmt.Errorf("初始化补全模型失败: %w", err)
	}
	primary, fallback, err := model.NewEmbedders(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("初始化 embedding 模型失败: %w", err)
	}
	embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
		Primary:   primary,
		Fallback:  fallback,
		Dimension: cfg.Storage.Vector.Dimension,
		CacheSize: cfg.Storage.EmbedCache.Size,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	memory, err := einoext.NewMemoryIndex(ctx, cfg.Storage.Vector, embedder)
	if err != nil {
		return nil, fmt.Errorf("初始化向量索引失败: %w", err)
	}
	pipeline := rag.NewPipeline(embedder, memory.Indexer, memory.Retriever, logger)

	reg := registry.New()
	builtin.RegisterBuiltin(reg, cfg.Tools.Fetch, pipeline)
	tools := dispatch.New(reg)

	backend, err := kv.NewBackend(ctx, cfg.Storage.KV)
	if err != nil {
		_ = memory.Close()
		return nil, fmt.Errorf("初始化 KV 存储失败: %w", err)
	}

	actors := agent.NewManager(backend, agent.ConfigFromAgent(cfg.Agent), agent.Deps{
		LLM:    chat,
		Memory: pipeline,
		Tools:  tools,
		Logger: logger,
	})
	restored, err := actors.RestoreAll(ctx, cfg.Agent.DefaultActor)
	if err != nil {
		_ = actors.Close()
		_ = memory.Close()
		return nil, fmt.Errorf("恢复 Actor 唤醒失败: %w", err)
	}

	logger.Info("初始化完成",
		"llm", chat.Model(),
		"kv", cfg.Storage.KV.Type,
		"vector", cfg.Storage.Vector.Type,
		"tools", reg.Names(),
		"restored_actors", restored,
	)
	return &Bootstrap{
		Config:   cfg,
		Logger:   logger,
		KV:       backend,
		Memory:   memory,
		Pipeline: pipeline,
		Tools:    tools,
		Actors:   actors,
	}, nil
}

// Close 停止所有 Actor 计时器并关闭存储连接
func (b *Bootstrap) Close() error {
	err := b.Actors.Close()
	if cerr := b.Memory.Close(); err == nil {
		err = cerr
	}
	return err
}

// resolveSecrets 将 provider api_key 中的 secret 引用替换为实际值
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	store, err := secrets.NewStore(cfg.Secrets)
	if err != nil {
		return err
	}
	for _, providers := range []map[string]config.ProviderConfig{cfg.Model.LLM.Providers, cfg.Model.Embedding.Providers} {
		for name, pc := range providers {
			key, err := secrets.Resolve(ctx, store, pc.APIKey)
			if err != nil {
				return fmt.Errorf("provider %s: %w", name, err)
			}
			pc.APIKey = key
			providers[name] = pc
		}
	}
	return nil
}
