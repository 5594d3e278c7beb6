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

package relay

import (
	"context"
	"encoding/json"
	"strings"

	"rag-agent/internal/agent"
	"rag-agent/internal/pipeline/rag"
	"rag-agent/internal/tool/builtin"
	"rag-agent/pkg/log"
	"rag-agent/pkg/metrics"
)

// TextMessage 文本帧类型，与 websocket 包取值一致
const TextMessage = 1

// Conn 实时双工连接；*websocket.Conn 满足该接口
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Session 连接背后的会话，由 *agent.Actor 实现
type Session interface {
	Chat(ctx context.Context, ownerID, text string) (agent.ChatResult, error)
	Note(ctx context.Context, ownerID, text string) (rag.NoteOutcome, error)
}

// Event 入站事件
type Event struct {
	Type   string `json:"type"`
	UserID string `json:"userId,omitempty"`
	Text   string `json:"text"`
}

// Outbound 出站事件
type Outbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Relay 把连接上的事件转交会话，回复只写回同一连接
type Relay struct {
	session Session
	logger  *log.Logger
}

// New 创建 Relay
func New(session Session, logger *log.Logger) *Relay {
	if logger == nil {
		logger = log.Nop()
	}
	return &Relay{session: session, logger: logger}
}

// Serve 读循环，连接关闭或读出错时返回
func (r *Relay) Serve(ctx context.Context, conn Conn) {
	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			r.logger.Debug("实时连接结束", "error", err)
			return
		}
		if mt != TextMessage {
			continue
		}
		if reply, ok := r.Handle(ctx, data); ok {
			r.send(conn, reply)
		}
	}
}

// Handle 处理一帧；格式错误或未知类型的帧返回 false，不回复
func (r *Relay) Handle(ctx context.Context, data []byte) (string, bool) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return "", false
	}
	if strings.TrimSpace(ev.Text) == "" {
		return "", false
	}
	switch ev.Type {
	case "chat":
		res, err := r.session.Chat(ctx, ev.UserID, ev.Text)
		if err != nil {
			r.logger.Error("实时对话失败", "error", err)
			return "", false
		}
		return res.Reply, true
	case "note":
		out, err := r.session.Note(ctx, ev.UserID, ev.Text)
		if err != nil {
			return "", false
		}
		return builtin.NoteConfirmation(out), true
	}
	return "", false
}

// send 写失败只记录日志，已写入日志的状态不受影响
func (r *Relay) send(conn Conn, text string) {
	payload, err := json.Marshal(Outbound{Type: "assistant_message", Text: text})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(TextMessage, payload); err != nil {
		r.logger.Debug("实时推送失败，已忽略", "error", err)
	}
}
