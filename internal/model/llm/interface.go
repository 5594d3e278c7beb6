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
)

// Client 文本补全客户端接口；实现方负责把服务端响应一次性解码为 CompletionResult
type Client interface {
	// Complete 以多轮消息调用补全服务
	Complete(ctx context.Context, messages []Message, options GenerateOptions) (CompletionResult, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stop        []string `json:"stop,omitempty"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// NewClient 按 provider 类型创建客户端：openai（默认，resty）、workers（Workers AI REST）、eino（eino-ext ChatModel）
func NewClient(ctx context.Context, providerType, model, apiKey, baseURL string) (Client, error) {
	switch providerType {
	case "", "openai", "qwen":
		c, err := NewOpenAIClientWithBaseURL(model, apiKey, baseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "workers":
		c, err := NewWorkersAIClient(model, apiKey, baseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "eino":
		c, err := NewEinoClient(ctx, model, apiKey, baseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %s", providerType)
	}
}
