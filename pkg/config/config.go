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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"rag-agent/pkg/secrets"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Tools      ToolsConfig      `mapstructure:"tools"`
	Model      ModelConfig      `mapstructure:"model"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    secrets.Config   `mapstructure:"secrets"`
	RateLimits RateLimitsConfig `mapstructure:"rate_limits"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port    int        `mapstructure:"port"`
	Host    string     `mapstructure:"host"`
	Timeout string     `mapstructure:"timeout"`
	CORS    CORSConfig `mapstructure:"cors"`
	WS      WSConfig   `mapstructure:"ws"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// WSConfig 实时连接配置
type WSConfig struct {
	Enable    *bool `mapstructure:"enable"`     // 未配置时默认开启
	ReadLimit int64 `mapstructure:"read_limit"` // 单帧最大字节数，<=0 默认 64KB
}

// AgentConfig 会话 Actor 配置
type AgentConfig struct {
	DefaultActor string         `mapstructure:"default_actor"` // 默认 "primary"
	DefaultUser  string         `mapstructure:"default_user"`  // 请求未带 userId 时的记忆 owner，默认 "anon"
	Window       int            `mapstructure:"window"`        // 消息窗口，默认 120
	RetrievalK   int            `mapstructure:"retrieval_k"`   // 检索条数，默认 3
	SystemPrompt string         `mapstructure:"system_prompt"`
	Temperature  float64        `mapstructure:"temperature"`
	MaxTokens    int            `mapstructure:"max_tokens"`
	Apology      string         `mapstructure:"apology"` // completion 无法识别时的固定回复
	Schedule     ScheduleConfig `mapstructure:"schedule"`
}

// ScheduleConfig 定时任务默认值
type ScheduleConfig struct {
	DefaultSeconds int    `mapstructure:"default_seconds"` // 默认 15
	DefaultNote    string `mapstructure:"default_note"`    // 默认 "Ping!"
	DefaultKind    string `mapstructure:"default_kind"`    // 默认 followup
	ArmSoon        string `mapstructure:"arm_soon"`        // enqueue 后的粗粒度唤醒延迟，默认 "1s"
}

// ToolsConfig 工具配置
type ToolsConfig struct {
	Fetch FetchConfig `mapstructure:"fetch"`
}

// FetchConfig web 抓取工具配置
type FetchConfig struct {
	AllowHosts []string `mapstructure:"allow_hosts"`
	MaxChars   int      `mapstructure:"max_chars"`  // 默认 3000
	UserAgent  string   `mapstructure:"user_agent"` // 默认 cf-agent-demo
	Timeout    string   `mapstructure:"timeout"`
}

// AllowMap 白名单转换为 host -> true，注入给抓取工具
func (c FetchConfig) AllowMap() map[string]bool {
	out := make(map[string]bool, len(c.AllowHosts))
	for _, h := range c.AllowHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			out[h] = true
		}
	}
	return out
}

// RateLimitsConfig 限流配置
type RateLimitsConfig struct {
	LLM map[string]LLMRateLimitConfig `mapstructure:"llm"`
}

// LLMRateLimitConfig 单个 LLM Provider 的限流配置
type LLMRateLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// ModelConfig 模型配置
type ModelConfig struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
}

// LLMConfig LLM 模型配置
type LLMConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// EmbeddingConfig Embedding 模型配置
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

// ProviderConfig 模型提供商配置
type ProviderConfig struct {
	Type    string               `mapstructure:"type"` // openai（resty）| eino（eino-ext ChatModel），空为 openai
	APIKey  string               `mapstructure:"api_key"`
	BaseURL string               `mapstructure:"base_url"`
	Models  map[string]ModelInfo `mapstructure:"models"`
}

// ModelInfo 模型信息
type ModelInfo struct {
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	Dimension   int     `mapstructure:"dimension"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// DefaultsConfig 默认模型配置，格式 provider.model_key
type DefaultsConfig struct {
	LLM               string `mapstructure:"llm"`
	Embedding         string `mapstructure:"embedding"`
	EmbeddingFallback string `mapstructure:"embedding_fallback"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	KV         KVConfig         `mapstructure:"kv"`
	Vector     VectorConfig     `mapstructure:"vector"`
	EmbedCache EmbedCacheConfig `mapstructure:"embed_cache"`
}

// KVConfig Actor 持久化存储配置
type KVConfig struct {
	Type      string `mapstructure:"type"` // memory | redis | postgres
	Addr      string `mapstructure:"addr"`
	DB        int    `mapstructure:"db"`
	Password  string `mapstructure:"password"`
	DSN       string `mapstructure:"dsn"`        // type=postgres 时必填
	KeyPrefix string `mapstructure:"key_prefix"` // redis key 前缀，默认 "actor"
}

// VectorConfig 向量存储配置（memory 为内置内存；redis 使用 eino-ext）
type VectorConfig struct {
	Type       string `mapstructure:"type"`
	Addr       string `mapstructure:"addr"`
	DB         string `mapstructure:"db"`
	Collection string `mapstructure:"collection"` // 索引名，默认 "notes"
	Password   string `mapstructure:"password"`
	Dimension  int    `mapstructure:"dimension"` // 默认 768
}

// EmbedCacheConfig 向量缓存配置
type EmbedCacheConfig struct {
	Size int `mapstructure:"size"` // <=0 关闭
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// Default 未提供配置文件时使用的默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("agent.default_actor", "primary")
	v.SetDefault("agent.default_user", "anon")
	v.SetDefault("agent.window", 120)
	v.SetDefault("agent.retrieval_k", 3)
	v.SetDefault("agent.system_prompt", "Be concise and helpful.")
	v.SetDefault("agent.temperature", 0.4)
	v.SetDefault("agent.max_tokens", 256)
	v.SetDefault("agent.apology", "Sorry, I couldn't draft a reply.")
	v.SetDefault("agent.schedule.default_seconds", 15)
	v.SetDefault("agent.schedule.default_note", "Ping!")
	v.SetDefault("agent.schedule.default_kind", "followup")
	v.SetDefault("agent.schedule.arm_soon", "1s")
	v.SetDefault("tools.fetch.allow_hosts", []string{
		"blog.cloudflare.com", "developers.cloudflare.com", "news.ycombinator.com",
	})
	v.SetDefault("tools.fetch.max_chars", 3000)
	v.SetDefault("tools.fetch.user_agent", "cf-agent-demo")
	v.SetDefault("tools.fetch.timeout", "10s")
	v.SetDefault("storage.kv.type", "memory")
	v.SetDefault("storage.vector.type", "memory")
	v.SetDefault("storage.vector.collection", "notes")
	v.SetDefault("storage.vector.dimension", 768)
	v.SetDefault("storage.embed_cache.size", 512)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// replaceEnvVars 替换配置中形如 ${VAR} 的 API Key，并展开 base_url 中的环境变量
func replaceEnvVars(config *Config) {
	expand := func(providers map[string]ProviderConfig) {
		for name, pc := range providers {
			if strings.HasPrefix(pc.APIKey, "$") {
				envVar := strings.TrimPrefix(strings.TrimSuffix(pc.APIKey, "}"), "${")
				if val := os.Getenv(envVar); val != "" {
					pc.APIKey = val
				}
			}
			pc.BaseURL = os.ExpandEnv(pc.BaseURL)
			providers[name] = pc
		}
	}
	expand(config.Model.LLM.Providers)
	expand(config.Model.Embedding.Providers)
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadAPIConfigWithModel 加载 API 配置并合并 configs/model.yaml 中的 model 段
func LoadAPIConfigWithModel() (*Config, error) {
	cfg, err := LoadConfig("configs/api.yaml")
	if err != nil {
		return nil, err
	}
	modelCfg, err := LoadConfig("configs/model.yaml")
	if err == nil {
		cfg.Model = modelCfg.Model
	}
	return cfg, nil
}
