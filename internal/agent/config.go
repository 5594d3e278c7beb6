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

package agent

import (
	"time"

	"rag-agent/internal/agent/job"
	"rag-agent/pkg/config"
	"rag-agent/pkg/utils"
)

// Config 会话 Actor 的行为参数
type Config struct {
	DefaultUser  string
	Window       int
	RetrievalK   int
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	Apology      string

	DefaultSeconds int
	DefaultNote    string
	DefaultKind    job.Kind
	ArmSoon        time.Duration
}

// ConfigFromAgent 由 agent 配置段构造，缺省值与配置默认值一致
func ConfigFromAgent(c config.AgentConfig) Config {
	return Config{
		DefaultUser:    utils.CoalesceString(c.DefaultUser, "anon"),
		Window:         utils.DefaultInt(c.Window, 120),
		RetrievalK:     utils.DefaultInt(c.RetrievalK, 3),
		SystemPrompt:   utils.CoalesceString(c.SystemPrompt, "Be concise and helpful."),
		Temperature:    utils.DefaultFloat(c.Temperature, 0.4),
		MaxTokens:      utils.DefaultInt(c.MaxTokens, 256),
		Apology:        utils.CoalesceString(c.Apology, "Sorry, I couldn't draft a reply."),
		DefaultSeconds: utils.DefaultInt(c.Schedule.DefaultSeconds, 15),
		DefaultNote:    utils.CoalesceString(c.Schedule.DefaultNote, "Ping!"),
		DefaultKind:    job.Kind(utils.CoalesceString(c.Schedule.DefaultKind, string(job.KindFollowUp))),
		ArmSoon:        utils.ParseDuration(c.Schedule.ArmSoon, time.Second),
	}
}
