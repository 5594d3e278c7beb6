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


package einoext

import (
	"context"
	"strings"
	"unicode"

	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// RediSearch TAG 查询中需要转义的字符
const tagSpecials = `,.<>{}[]"':;!@#$%^&*()-+=~|/\`

// OwnerFilterQuery 生成按 owner_id 过滤的 RediSearch 查询；owner 为空时返回空串
func OwnerFilterQuery(owner string) string {
	if owner == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range owner {
		if strings.ContainsRune(tagSpecials, r) || unicode.IsSpace(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return "@" + fieldOwner + ":{" + b.String() + "}"
}

// ownerScopedRetriever 把 DSLInfo 中的 owner_id 转成 redis FilterQuery，
// 使 KNN 在 owner 范围内取 TopK
type ownerScopedRetriever struct {
	inner einoretriever.Retriever
}

// Retrieve 实现 einoretriever.Retriever
func (r *ownerScopedRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	co := einoretriever.GetCommonOptions(nil, opts...)
	if owner, _ := co.DSLInfo[fieldOwner].(string); owner != "" {
		opts = append(opts[:len(opts):len(opts)], redisretriever.WithFilterQuery(OwnerFilterQuery(owner)))
	}
	return r.inner.Retrieve(ctx, query, opts...)
}
