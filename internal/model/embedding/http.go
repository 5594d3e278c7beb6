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

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPEmbedder 基于 resty 的 embedding 客户端
type HTTPEmbedder struct {
	provider string
	model    string
	apiKey   string
	url      string
	body     func(text string) map[string]interface{}
	client   *resty.Client
}

// NewWorkersAIEmbedder 请求 {baseURL}/{model}，body 为 {text:[text]}
func NewWorkersAIEmbedder(model, apiKey, baseURL string) (*HTTPEmbedder, error) {
	if model == "" || baseURL == "" {
		return nil, fmt.Errorf("workers ai embedder requires model and base_url")
	}
	return &HTTPEmbedder{
		provider: "workers",
		model:    model,
		apiKey:   apiKey,
		url:      strings.TrimRight(baseURL, "/") + "/" + model,
		body: func(text string) map[string]interface{} {
			return map[string]interface{}{"text": []string{text}}
		},
		client: newRestyClient(),
	}, nil
}

// NewOpenAIEmbedder 请求 {baseURL}/embeddings，body 为 {model, input}
func NewOpenAIEmbedder(model, apiKey, baseURL string) (*HTTPEmbedder, error) {
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	e := &HTTPEmbedder{
		provider: "openai",
		model:    model,
		apiKey:   apiKey,
		url:      strings.TrimRight(baseURL, "/") + "/embeddings",
		client:   newRestyClient(),
	}
	e.body = func(text string) map[string]interface{} {
		return map[string]interface{}{"model": e.model, "input": []string{text}}
	}
	return e, nil
}

// 主备回退由上层负责，这里不重试
func newRestyClient() *resty.Client {
	return resty.New().SetTimeout(15 * time.Second)
}

// Embed 实现 Client
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(e.body(text))
	if e.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := req.Post(e.url)
	if err != nil {
		return nil, fmt.Errorf("调用 embedding API failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("embedding API 返回错误: %d %s", resp.StatusCode(), resp.String())
	}
	return DecodeVector(resp.Body())
}

// Model 返回模型名称
func (e *HTTPEmbedder) Model() string { return e.model }
