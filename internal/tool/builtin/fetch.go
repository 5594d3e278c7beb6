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
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"rag-agent/internal/tool"
	"rag-agent/pkg/errors"
)

const (
	defaultMaxChars  = 3000
	defaultUserAgent = "cf-agent-demo"
)

// FetchTool 受白名单约束的网页抓取工具，只返回正文前 maxChars 个字符
type FetchTool struct {
	allow     map[string]bool
	maxChars  int
	userAgent string
	client    *resty.Client
}

// FetchOption FetchTool 可选项
type FetchOption func(*FetchTool)

// WithMaxChars 设置截断长度
func WithMaxChars(n int) FetchOption {
	return func(t *FetchTool) {
		if n > 0 {
			t.maxChars = n
		}
	}
}

// WithUserAgent 设置 User-Agent
func WithUserAgent(ua string) FetchOption {
	return func(t *FetchTool) {
		if ua != "" {
			t.userAgent = ua
		}
	}
}

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) FetchOption {
	return func(t *FetchTool) {
		if d > 0 {
			t.client.SetTimeout(d)
		}
	}
}

// NewFetchTool 创建抓取工具；allow 为 host -> true 的白名单
func NewFetchTool(allow map[string]bool, opts ...FetchOption) *FetchTool {
	t := &FetchTool{
		allow:     make(map[string]bool, len(allow)),
		maxChars:  defaultMaxChars,
		userAgent: defaultUserAgent,
		client:    resty.New().SetTimeout(10 * time.Second),
	}
	for h, ok := range allow {
		if ok {
			t.allow[strings.ToLower(h)] = true
		}
	}
	// 重定向同样受白名单约束
	t.client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if !t.allowed(req.URL) {
			return errors.Wrapf(errors.ErrDomainNotAllowed, "redirect to %s", req.URL.Hostname())
		}
		if len(via) >= 5 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		return nil
	}))
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return "抓取白名单域名下的网页，返回截断后的正文。参数 url。"
}

// Execute 输入 {"url": string}
func (t *FetchTool) Execute(ctx context.Context, input map[string]any) (tool.ToolResult, error) {
	raw, _ := input["url"].(string)
	text, err := t.Fetch(ctx, raw)
	if err != nil {
		return tool.ToolResult{}, err
	}
	return tool.ToolResult{Content: text}, nil
}

// Fetch 校验白名单后 GET 目标地址；不在白名单时不发起任何请求
func (t *FetchTool) Fetch(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", errors.Wrapf(errors.ErrInvalidArg, "invalid url %q", raw)
	}
	if !t.allowed(u) {
		return "", errors.Wrapf(errors.ErrDomainNotAllowed, "%s", u.Hostname())
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", t.userAgent).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u.Hostname(), err)
	}
	body := resp.RawBody()
	defer body.Close()
	// 每个字符至多 UTFMax 字节，读满上限即可覆盖 maxChars 个字符
	data, err := io.ReadAll(io.LimitReader(body, int64(t.maxChars)*utf8.UTFMax))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u.Hostname(), err)
	}
	return truncate(string(data), t.maxChars), nil
}

func (t *FetchTool) allowed(u *url.URL) bool {
	return t.allow[strings.ToLower(u.Hostname())]
}

// truncate 按字符截断，不切断多字节字符
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
