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

package job

import "time"

// Kind Job 类型
type Kind string

const (
	// KindFollowUp 到期后追加一条跟进消息
	KindFollowUp Kind = "followup"
	// KindResearch 到期后抓取 note 中的 URL，追加摘要并写入记忆
	KindResearch Kind = "research"
)

// Valid 是否为已知类型
func (k Kind) Valid() bool {
	return k == KindFollowUp || k == KindResearch
}

// ScheduledJob 定时任务；插入后不再修改，到期由闹钟处理器读取并移除
type ScheduledJob struct {
	ID      string `json:"id"`
	FireAt  int64  `json:"fireAt"` // unix 毫秒
	Kind    Kind   `json:"kind"`
	Note    string `json:"note"`
	OwnerID string `json:"ownerId"`
}

// FireTime 返回触发时间
func (j ScheduledJob) FireTime() time.Time {
	return time.UnixMilli(j.FireAt)
}

// DueAt 在 now 时是否到期
func (j ScheduledJob) DueAt(now time.Time) bool {
	return j.FireAt <= now.UnixMilli()
}
