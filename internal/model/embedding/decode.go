package embedding

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeVector 从 embedding 服务响应中取出第一条向量
//
// 支持的形态：{data:[{embedding:[...]}]}、{data:[[...]]}、{data:[...]}、{embeddings:[[...]]}、
// 以上任一包在 {result:...} 中，以及整体被序列化为 JSON 字符串的响应体。
func DecodeVector(body []byte) ([]float64, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return vectorFrom(raw, 0)
}

func vectorFrom(v any, depth int) ([]float64, error) {
	if depth > 3 {
		return nil, fmt.Errorf("embedding response nested too deep")
	}
	switch val := v.(type) {
	case string:
		var inner any
		if err := json.Unmarshal([]byte(strings.TrimSpace(val)), &inner); err != nil {
			return nil, fmt.Errorf("embedding response is a non-JSON string")
		}
		return vectorFrom(inner, depth+1)
	case map[string]any:
		if res, ok := val["result"]; ok {
			return vectorFrom(res, depth+1)
		}
		if data, ok := val["data"].([]any); ok {
			return firstVector(data)
		}
		if embs, ok := val["embeddings"].([]any); ok {
			return firstVector(embs)
		}
		if emb, ok := val["embedding"].([]any); ok {
			return numbers(emb)
		}
	}
	return nil, fmt.Errorf("unrecognized embedding response shape")
}

// firstVector data 既可能是向量列表，也可能直接是一条扁平向量
func firstVector(items []any) ([]float64, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("embedding response has no vectors")
	}
	switch first := items[0].(type) {
	case float64:
		return numbers(items)
	case []any:
		return numbers(first)
	case map[string]any:
		if emb, ok := first["embedding"].([]any); ok {
			return numbers(emb)
		}
	}
	return nil, fmt.Errorf("unrecognized embedding item shape")
}

func numbers(items []any) ([]float64, error) {
	out := make([]float64, len(items))
	for i, it := range items {
		f, ok := it.(float64)
		if !ok {
			return nil, fmt.Errorf("embedding entry %d is not a number", i)
		}
		out[i] = f
	}
	return out, nil
}
