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

package tool

import (
	"context"
)

// ToolResult 工具执行结果，Content 直接作为 assistant 回复
type ToolResult struct {
	Content string `json:"content"`
}

// Tool 由斜杠命令触发的内置工具
type Tool interface {
	Name() string
	Description() string
	// Execute 同步执行；校验类失败（如域名不在白名单）以 error 返回
	Execute(ctx context.Context, input map[string]any) (ToolResult, error)
}
