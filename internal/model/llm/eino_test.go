package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatModel struct {
	reply *schema.Message
	err   error
	input []*schema.Message
	opts  *einomodel.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.input = input
	f.opts = einomodel.GetCommonOptions(&einomodel.Options{}, opts...)
	return f.reply, f.err
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not supported")
}

func TestEinoClient_Complete(t *testing.T) {
	fake := &fakeChatModel{reply: schema.AssistantMessage("eino says hi", nil)}
	c := NewEinoClientWithModel(fake, "gpt-4o-mini")

	res, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}, GenerateOptions{Temperature: 0.4, MaxTokens: 256})
	require.NoError(t, err)
	assert.Equal(t, CompletionResult{Text: "eino says hi", Recognized: true}, res)

	require.Len(t, fake.input, 2)
	assert.Equal(t, schema.System, fake.input[0].Role)
	assert.Equal(t, schema.User, fake.input[1].Role)
	require.NotNil(t, fake.opts.Temperature)
	assert.InDelta(t, 0.4, *fake.opts.Temperature, 1e-6)
	require.NotNil(t, fake.opts.MaxTokens)
	assert.Equal(t, 256, *fake.opts.MaxTokens)
	assert.Equal(t, "eino", c.Provider())
}

func TestEinoClient_EmptyContentUnrecognized(t *testing.T) {
	c := NewEinoClientWithModel(&fakeChatModel{reply: schema.AssistantMessage("", nil)}, "m")
	res, err := c.Complete(context.Background(), nil, GenerateOptions{})
	require.NoError(t, err)
	assert.False(t, res.Recognized)
}

func TestEinoClient_Error(t *testing.T) {
	c := NewEinoClientWithModel(&fakeChatModel{err: errors.New("down")}, "m")
	_, err := c.Complete(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}
