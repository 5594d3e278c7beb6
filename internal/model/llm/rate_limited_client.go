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
	"time"

	"rag-agent/pkg/metrics"
)

// RateLimitedClient 包装任意 Client，在补全调用前后执行 provider 级限流
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

// NewRateLimitedClient 创建带限流的 Client；rateLimiter 为 nil 时直通
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// Complete 实现 Client
func (c *RateLimitedClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (CompletionResult, error) {
	if c.rateLimiter == nil {
		return c.inner.Complete(ctx, messages, options)
	}
	provider := c.inner.Provider()
	estimated := estimateTokens(messagesText(messages), options.MaxTokens)
	start := time.Now()
	if err := c.rateLimiter.Wait(ctx, provider, estimated); err != nil {
		return CompletionResult{}, err
	}
	if waited := time.Since(start); waited > 100*time.Millisecond {
		metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
	}
	defer c.rateLimiter.Release(provider)

	result, err := c.inner.Complete(ctx, messages, options)
	if err != nil {
		return CompletionResult{}, err
	}
	// 以 MaxTokens 近似实际用量
	c.rateLimiter.RecordTokenUsage(provider, options.MaxTokens)
	return result, nil
}

func (c *RateLimitedClient) Model() string { return c.inner.Model() }

func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 按 4 字符约 1 token 估算，并预留输出上限
func estimateTokens(text string, maxTokens int) int {
	estimated := len(text)/4 + max(maxTokens, 0)
	return max(estimated, 1)
}

func messagesText(msgs []Message) string {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	buf := make([]byte, 0, n)
	for _, m := range msgs {
		buf = append(buf, m.Content...)
	}
	return string(buf)
}
