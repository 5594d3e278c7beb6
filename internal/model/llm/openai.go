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
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OpenAIClient OpenAI 兼容的补全客户端，也用于 Workers AI REST 端点
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
	endpoint func() string
}

// NewOpenAIClient 创建新的 OpenAI 客户端（base 优先用 OPENAI_BASE_URL 环境变量）
func NewOpenAIClient(model, apiKey string) (*OpenAIClient, error) {
	return NewOpenAIClientWithBaseURL(model, apiKey, "")
}

// NewOpenAIClientWithBaseURL 创建 OpenAI 兼容客户端；baseURL 为空时用默认或 OPENAI_BASE_URL
func NewOpenAIClientWithBaseURL(model, apiKey, baseURL string) (*OpenAIClient, error) {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
		if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}
	c := newRestyClient(model, apiKey, strings.TrimRight(baseURL, "/"))
	c.provider = "openai"
	c.endpoint = func() string { return c.baseURL + "/chat/completions" }
	return c, nil
}

// NewWorkersAIClient 创建 Workers AI 客户端，请求发往 {baseURL}/{model}，响应为 {result:{response}}
func NewWorkersAIClient(model, apiKey, baseURL string) (*OpenAIClient, error) {
	if model == "" {
		return nil, fmt.Errorf("workers ai client requires model")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("workers ai client requires base_url")
	}
	c := newRestyClient(model, apiKey, strings.TrimRight(baseURL, "/"))
	c.provider = "workers"
	c.endpoint = func() string { return c.baseURL + "/" + c.model }
	return c, nil
}

func newRestyClient(model, apiKey, baseURL string) *OpenAIClient {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)
	return &OpenAIClient{model: model, apiKey: apiKey, baseURL: baseURL, client: client}
}

// Complete 调用补全端点；非 200 返回错误，响应体交给 DecodeCompletion
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, options GenerateOptions) (CompletionResult, error) {
	request := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": options.Temperature,
		"max_tokens":  options.MaxTokens,
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}

	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(request)
	if c.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+c.apiKey)
	}
	response, err := req.Post(c.endpoint())
	if err != nil {
		return CompletionResult{}, fmt.Errorf("调用 %s API failed: %w", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		return CompletionResult{}, fmt.Errorf("%s API 返回错误: %d %s", c.provider, response.StatusCode(), response.String())
	}
	return DecodeCompletion(response.Body()), nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}
