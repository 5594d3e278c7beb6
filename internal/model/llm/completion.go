package llm

import (
	"encoding/json"
	"strings"
)

// CompletionResult 补全结果；Recognized 为 false 表示响应形态无法识别
type CompletionResult struct {
	Text       string
	Recognized bool
}

// TextOr 可识别时返回文本，否则返回 fallback
func (r CompletionResult) TextOr(fallback string) string {
	if r.Recognized {
		return r.Text
	}
	return fallback
}

type completionEnvelope struct {
	Response *string `json:"response"`
	Result   *struct {
		Response *string `json:"response"`
	} `json:"result"`
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Text *string `json:"text"`
	} `json:"choices"`
}

// DecodeCompletion 在服务边界一次性解码补全响应
//
// 可识别：JSON 字符串；{response}；{result:{response}}；OpenAI choices[0].message.content 或 choices[0].text；
// 非 JSON 的纯文本。空文本视为无法识别。
func DecodeCompletion(body []byte) CompletionResult {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return CompletionResult{}
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return CompletionResult{}
		}
		return textResult(s)
	case '{':
		var env completionEnvelope
		if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
			return CompletionResult{}
		}
		switch {
		case env.Response != nil:
			return textResult(*env.Response)
		case env.Result != nil && env.Result.Response != nil:
			return textResult(*env.Result.Response)
		case len(env.Choices) > 0 && env.Choices[0].Message != nil:
			return textResult(env.Choices[0].Message.Content)
		case len(env.Choices) > 0 && env.Choices[0].Text != nil:
			return textResult(*env.Choices[0].Text)
		}
		return CompletionResult{}
	case '[':
		return CompletionResult{}
	}
	if json.Valid([]byte(trimmed)) {
		// 数字、布尔、null
		return CompletionResult{}
	}
	return textResult(trimmed)
}

func textResult(s string) CompletionResult {
	if strings.TrimSpace(s) == "" {
		return CompletionResult{}
	}
	return CompletionResult{Text: s, Recognized: true}
}
