// Package utils 提供与业务无关的小工具函数
package utils

import "time"

// CoalesceString 返回第一个非空字符串
func CoalesceString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// DefaultInt 为 0 时返回默认值
func DefaultInt(v, defaultVal int) int {
	if v == 0 {
		return defaultVal
	}
	return v
}

// DefaultFloat 为 0 时返回默认值
func DefaultFloat(v, defaultVal float64) float64 {
	if v == 0 {
		return defaultVal
	}
	return v
}

// ParseDuration 解析时长字符串，无效或空时返回 defaultVal
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
