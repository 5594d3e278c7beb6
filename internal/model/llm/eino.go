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

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient 通过 Eino ChatModel 调用补全
type EinoClient struct {
	chat  einomodel.BaseChatModel
	model string
}

// NewEinoClient 使用 eino-ext OpenAI ChatModel 创建客户端
func NewEinoClient(ctx context.Context, model, apiKey, baseURL string) (*EinoClient, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   model,
		APIKey:  apiKey,
		BaseURL: baseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 ChatModel 失败: %w", err)
	}
	return NewEinoClientWithModel(chatModel, model), nil
}

// NewEinoClientWithModel 包装任意 Eino ChatModel
func NewEinoClientWithModel(chat einomodel.BaseChatModel, model string) *EinoClient {
	return &EinoClient{chat: chat, model: model}
}

// Complete 实现 Client；空内容视为无法识别
func (c *EinoClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (CompletionResult, error) {
	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			in = append(in, schema.SystemMessage(m.Content))
		case "assistant":
			in = append(in, schema.AssistantMessage(m.Content, nil))
		default:
			in = append(in, schema.UserMessage(m.Content))
		}
	}
	opts := []einomodel.Option{einomodel.WithTemperature(float32(options.Temperature))}
	if options.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(options.MaxTokens))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, einomodel.WithStop(options.Stop))
	}
	out, err := c.chat.Generate(ctx, in, opts...)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("eino generate: %w", err)
	}
	if out == nil {
		return CompletionResult{}, nil
	}
	return textResult(out.Content), nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string { return c.model }

// Provider 返回提供商名称
func (c *EinoClient) Provider() string { return "eino" }
