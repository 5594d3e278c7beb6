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

package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LLMLimitConfig 单个 provider 的限流参数
type LLMLimitConfig struct {
	TokensPerMinute   int
	RequestsPerMinute float64
	MaxConcurrent     int
}

// LLMRateLimiter 按 provider 维度做请求数、token 预算与并发三重限流
type LLMRateLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*llmLimiter
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
	config    LLMLimitConfig

	mu          sync.Mutex
	usedMinute  int
	minuteStart time.Time
}

// NewLLMRateLimiter 创建限流器；defaults 为 nil 时未配置的 provider 使用宽松默认值
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	l := &LLMRateLimiter{
		limiters: make(map[string]*llmLimiter),
		defaults: LLMLimitConfig{TokensPerMinute: 90000, RequestsPerMinute: 3500, MaxConcurrent: 50},
	}
	if defaults != nil {
		l.defaults = *defaults
	}
	for provider, cfg := range configs {
		l.limiters[provider] = newLLMLimiter(cfg)
	}
	return l
}

func newLLMLimiter(cfg LLMLimitConfig) *llmLimiter {
	lim := &llmLimiter{config: cfg, minuteStart: time.Now()}
	// burst 为 2 秒的配额
	if cfg.RequestsPerMinute > 0 {
		lim.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60.0), max(int(cfg.RequestsPerMinute/30.0), 1))
	}
	if cfg.TokensPerMinute > 0 {
		lim.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60.0), max(cfg.TokensPerMinute/30, 1))
	}
	if cfg.MaxConcurrent > 0 {
		lim.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return lim
}

func (l *LLMRateLimiter) get(provider string, create bool) *llmLimiter {
	l.mu.RLock()
	lim, ok := l.limiters[provider]
	l.mu.RUnlock()
	if ok || !create {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.limiters[provider]; !ok {
		lim = newLLMLimiter(l.defaults)
		l.limiters[provider] = lim
	}
	return lim
}

// Wait 阻塞直到请求、token 预算与并发槽位均可用；成功后须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	lim := l.get(provider, true)
	if lim.requests != nil {
		if err := lim.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if lim.tokens != nil && estimatedTokens > 0 {
		n := min(estimatedTokens, lim.tokens.Burst())
		if err := lim.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if lim.semaphore != nil {
		select {
		case lim.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 归还并发槽位
func (l *LLMRateLimiter) Release(provider string) {
	lim := l.get(provider, false)
	if lim == nil || lim.semaphore == nil {
		return
	}
	select {
	case <-lim.semaphore:
	default:
	}
}

// RecordTokenUsage 记录当前分钟内的 token 用量
func (l *LLMRateLimiter) RecordTokenUsage(provider string, tokens int) {
	lim := l.get(provider, false)
	if lim == nil {
		return
	}
	lim.mu.Lock()
	defer lim.mu.Unlock()
	if now := time.Now(); now.Sub(lim.minuteStart) > time.Minute {
		lim.usedMinute = 0
		lim.minuteStart = now
	}
	lim.usedMinute += tokens
}

// GetStats 返回 provider 的限流快照，未知 provider 返回 nil
func (l *LLMRateLimiter) GetStats(provider string) map[string]interface{} {
	lim := l.get(provider, false)
	if lim == nil {
		return nil
	}
	lim.mu.Lock()
	used := lim.usedMinute
	lim.mu.Unlock()
	stats := map[string]interface{}{
		"requests_per_minute": lim.config.RequestsPerMinute,
		"tokens_per_minute":   lim.config.TokensPerMinute,
		"tokens_used_minute":  used,
		"max_concurrent":      lim.config.MaxConcurrent,
	}
	if lim.semaphore != nil {
		stats["current_concurrent"] = len(lim.semaphore)
	}
	return stats
}
