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
)

// Client 单模型向量化接口；维度与有限性校验由调用方负责
type Client interface {
	// Embed 对单条文本向量化
	Embed(ctx context.Context, text string) ([]float64, error)
	// Model 返回模型名称
	Model() string
}

// NewClient 按 provider 类型创建客户端：workers（Workers AI REST，默认）或 openai（/embeddings）
func NewClient(providerType, model, apiKey, baseURL string) (Client, error) {
	var (
		e   *HTTPEmbedder
		err error
	)
	switch providerType {
	case "", "workers":
		e, err = NewWorkersAIEmbedder(model, apiKey, baseURL)
	case "openai":
		e, err = NewOpenAIEmbedder(model, apiKey, baseURL)
	default:
		return nil, fmt.Errorf("unsupported embedding provider type: %s", providerType)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
