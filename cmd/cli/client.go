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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

func apiBaseURL() string {
	if u := os.Getenv("AGENT_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func newClient() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL()).
		SetTimeout(60 * time.Second).
		SetHeader("Content-Type", "application/json")
}

// post 发送 JSON 请求；非 JSON 响应按 {nonJson, status, body} 返回，便于 eval 原样打印
func post(path string, body any) (map[string]any, error) {
	resp, err := newClient().R().SetBody(body).Post(path)
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp), nil
}

func get(path string) (map[string]any, error) {
	resp, err := newClient().R().Get(path)
	if err != nil {
		return nil, err
	}
	out := decodeResponse(resp)
	if resp.StatusCode() != http.StatusOK {
		return out, fmt.Errorf("GET %s: %s", path, resp.String())
	}
	return out, nil
}

func decodeResponse(resp *resty.Response) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return map[string]any{"nonJson": true, "status": resp.StatusCode(), "body": resp.String()}
	}
	return out
}

func chat(userID, prompt string) (string, error) {
	body := map[string]string{"prompt": prompt}
	if userID != "" {
		body["userId"] = userID
	}
	out, err := post("/api/chat", body)
	if err != nil {
		return "", err
	}
	if e, ok := out["error"].(string); ok && out["reply"] == nil {
		return "", fmt.Errorf("%s", e)
	}
	reply, _ := out["reply"].(string)
	return reply, nil
}

func schedule(seconds int, note, kind string) (map[string]any, error) {
	body := map[string]any{"seconds": seconds}
	if note != "" {
		body["note"] = note
	}
	if kind != "" {
		body["kind"] = kind
	}
	return post("/api/schedule", body)
}

func prettyJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
