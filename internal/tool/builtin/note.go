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

package builtin

import (
	"context"
	"fmt"
	"strings"

	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/tool"
	"rag-agent/pkg/errors"
)

// NoteSaver 笔记写入能力，由检索管线提供
type NoteSaver interface {
	UpsertNote(ctx context.Context, ownerID, text, id string) rag.NoteOutcome
}

// NoteTool 把文本写入当前用户的长期记忆
type NoteTool struct {
	saver NoteSaver
}

func NewNoteTool(saver NoteSaver) *NoteTool {
	return &NoteTool{saver: saver}
}

func (t *NoteTool) Name() string { return "note" }

func (t *NoteTool) Description() string {
	return "保存一条笔记到长期记忆。参数 text、owner_id。"
}

// Execute 输入 {"text": string, "owner_id": string}
func (t *NoteTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	text, _ := input["text"].(string)
	owner, _ := input["owner_id"].(string)
	if strings.TrimSpace(text) == "" {
		return tool.ToolResult{}, errors.Wrap(errors.ErrInvalidArg, "note text is empty")
	}
	out := t.saver.UpsertNote(ctx, owner, text, "")
	return tool.ToolResult{Content: NoteConfirmation(out)}, nil
}

// NoteConfirmation 笔记写入结果的用户可读文本
func NoteConfirmation(out rag.NoteOutcome) string {
	if out.Vectorized {
		return fmt.Sprintf("Saved to memory (%s).", out.Saved)
	}
	return fmt.Sprintf("Couldn't save that note (%s).", out.Saved)
}
