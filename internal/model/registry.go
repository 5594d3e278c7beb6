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

package model

import (
	"context"
	"fmt"
	"strings"

	"rag-agent/internal/model/embedding"
	"rag-agent/internal/model/llm"
	"rag-agent/pkg/config"
)

// Ref 解析后的模型引用，来自 "provider.model_key"
type Ref struct {
	Provider string
	Key      string
	Config   config.ProviderConfig
	Info     config.ModelInfo
}

// Resolve 在 providers 中查找 "provider.model_key"
func Resolve(providers map[string]config.ProviderConfig, ref string) (Ref, error) {
	provider, key, ok := strings.Cut(ref, ".")
	if !ok || provider == "" || key == "" {
		return Ref{}, fmt.Errorf("model ref %q must be provider.model_key", ref)
	}
	pc, ok := providers[provider]
	if !ok {
		return Ref{}, fmt.Errorf("provider not registered: %s", provider)
	}
	info, ok := pc.Models[key]
	if !ok {
		return Ref{}, fmt.Errorf("model not registered: %s", ref)
	}
	if info.Name == "" {
		info.Name = key
	}
	return Ref{Provider: provider, Key: key, Config: pc, Info: info}, nil
}

// NewLLM 按 defaults.llm 创建补全客户端；limiter 非空时包一层限流
func NewLLM(ctx context.Context, cfg config.ModelConfig, limiter *llm.LLMRateLimiter) (llm.Client, error) {
	ref, err := Resolve(cfg.LLM.Providers, cfg.Defaults.LLM)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, ref.Config.Type, ref.Info.Name, ref.Config.APIKey, ref.Config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create llm %s: %w", cfg.Defaults.LLM, err)
	}
	if limiter == nil {
		return client, nil
	}
	return llm.NewRateLimitedClient(client, limiter), nil
}

// NewEmbedders 按 defaults.embedding / embedding_fallback 创建主备 embedding 客户端；未配置的一侧为 nil
func NewEmbedders(cfg config.ModelConfig) (primary, fallback embedding.Client, err error) {
	build := func(refStr string) (embedding.Client, error) {
		if refStr == "" {
			return nil, nil
		}
		ref, err := Resolve(cfg.Embedding.Providers, refStr)
		if err != nil {
			return nil, err
		}
		return embedding.NewClient(ref.Config.Type, ref.Info.Name, ref.Config.APIKey, ref.Config.BaseURL)
	}
	if primary, err = build(cfg.Defaults.Embedding); err != nil {
		return nil, nil, fmt.Errorf("primary embedding: %w", err)
	}
	if fallback, err = build(cfg.Defaults.EmbeddingFallback); err != nil {
		return nil, nil, fmt.Errorf("fallback embedding: %w", err)
	}
	return primary, fallback, nil
}

// RateLimiterFromConfig 将 rate_limits.llm 转为 LLMRateLimiter；未配置时返回 nil
func RateLimiterFromConfig(cfg config.RateLimitsConfig) *llm.LLMRateLimiter {
	if len(cfg.LLM) == 0 {
		return nil
	}
	limits := make(map[string]llm.LLMLimitConfig, len(cfg.LLM))
	for provider, c := range cfg.LLM {
		limits[provider] = llm.LLMLimitConfig{
			TokensPerMinute:   c.TokensPerMinute,
			RequestsPerMinute: c.RequestsPerMinute,
			MaxConcurrent:     c.MaxConcurrent,
		}
	}
	return llm.NewLLMRateLimiter(limits, nil)
}
