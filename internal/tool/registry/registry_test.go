package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"rag-agent/internal/tool"
)

type namedTool string

func (n namedTool) Name() string        { return string(n) }
func (n namedTool) Description() string { return "" }
func (n namedTool) Execute(context.Context, map[string]any) (tool.ToolResult, error) {
	return tool.ToolResult{Content: string(n)}, nil
}

func TestRegistry(t *testing.T) {
	r := New()
	r.Register(namedTool("note"))
	r.Register(namedTool("fetch"))

	got, ok := r.Get("note")
	assert.True(t, ok)
	assert.Equal(t, "note", got.Name())
	_, ok = r.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"fetch", "note"}, r.Names())
}
