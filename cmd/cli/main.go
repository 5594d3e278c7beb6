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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}
	cmd := os.Args[1]
	args := os.Args[2:]
	switch cmd {
	case "version":
		fmt.Println("rag-agent cli 0.1.0")
	case "health":
		runHealth()
	case "chat":
		runChat(os.Stdin, os.Stdout, args)
	case "history":
		runHistory()
	case "schedule":
		runSchedule(args)
	case "note":
		if len(args) < 1 {
			fmt.Fprintf(os.Stderr, "Usage: agentctl note <text> [user_id]\n")
			os.Exit(1)
		}
		runNote(args)
	case "clear":
		printOrExit(post("/api/clear", map[string]any{}))
	case "eval":
		if err := runEval(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "eval: %v\n", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: agentctl <command> [args]")
	fmt.Println("  version                        - 显示版本")
	fmt.Println("  health                         - 健康检查")
	fmt.Println("  chat [user_id]                 - 交互式对话（/note、/search 命令直接执行工具）")
	fmt.Println("  history                        - 输出消息日志")
	fmt.Println("  schedule [seconds] [note] [kind] - 定时任务，kind 为 followup 或 research")
	fmt.Println("  note <text> [user_id]          - 写入一条记忆")
	fmt.Println("  clear                          - 清空消息日志")
	fmt.Println("  eval                           - 运行 hi/note/rag/search 四个场景")
	fmt.Println("环境变量 AGENT_API_URL 指定服务地址，默认 http://localhost:8080")
}

func printOrExit(out map[string]any, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "请求失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(prettyJSON(out))
}

func runHealth() {
	out, err := get("/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "服务不可用: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(out["status"])
}

func runChat(in io.Reader, w io.Writer, args []string) {
	userID := ""
	if len(args) > 0 {
		userID = args[0]
	}
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(w, "> ")
		line, err := reader.ReadString('\n')
		msg := strings.TrimSpace(line)
		if msg == "exit" || msg == "quit" {
			return
		}
		if msg != "" {
			reply, cerr := chat(userID, msg)
			if cerr != nil {
				fmt.Fprintf(w, "错误: %v\n", cerr)
			} else {
				fmt.Fprintln(w, reply)
			}
		}
		if err != nil {
			return
		}
	}
}

func runHistory() {
	out, err := get("/api/history")
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取历史失败: %v\n", err)
		os.Exit(1)
	}
	msgs, _ := out["messages"].([]any)
	for _, m := range msgs {
		turn, _ := m.(map[string]any)
		fmt.Printf("[%v] %v\n", turn["role"], turn["text"])
	}
}

func runSchedule(args []string) {
	seconds := 15
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "seconds 需为整数: %v\n", err)
			os.Exit(1)
		}
		seconds = n
	}
	note, kind := "", ""
	if len(args) > 1 {
		note = args[1]
	}
	if len(args) > 2 {
		kind = args[2]
	}
	printOrExit(schedule(seconds, note, kind))
}

func runNote(args []string) {
	body := map[string]string{"text": args[0]}
	if len(args) > 1 {
		body["userId"] = args[1]
	}
	printOrExit(post("/api/note", body))
}

// evalScenario 一个端到端场景
type evalScenario struct {
	Name string
	Path string
	Body map[string]string
}

func evalScenarios() []evalScenario {
	return []evalScenario{
		{Name: "hi", Path: "/api/chat", Body: map[string]string{"prompt": "Introduce yourself in one sentence."}},
		{Name: "note", Path: "/api/note", Body: map[string]string{"userId": "eval", "text": "The eval user won a hackathon; mention it in replies."}},
		{Name: "rag", Path: "/api/chat", Body: map[string]string{"userId": "eval", "prompt": "What do you remember about my achievements?"}},
		{Name: "search", Path: "/api/chat", Body: map[string]string{"prompt": "/search https://blog.cloudflare.com/"}},
	}
}

func runEval(w io.Writer) error {
	for _, s := range evalScenarios() {
		out, err := post(s.Path, s.Body)
		if err != nil {
			return fmt.Errorf("[%s] %w", s.Name, err)
		}
		fmt.Fprintf(w, "\n[%s] %s\n", s.Name, prettyJSON(out))
	}
	return nil
}
