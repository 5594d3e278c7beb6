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

package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // Vault server address (e.g., http://vault:8200)
	Token      string // Vault token
	PathPrefix string // KV v2 mount (e.g., "secret")
}

type vaultStore struct {
	client     *vault.Client
	pathPrefix string
	mu         sync.RWMutex
	cache      map[string]string
}

// NewVaultStore 创建 Vault secret store（KV v2）
func NewVaultStore(config VaultConfig) (Store, error) {
	if config.Address == "" {
		config.Address = "http://localhost:8200"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = config.Address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	if config.Token != "" {
		client.SetToken(config.Token)
	}

	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}

	prefix := "secret"
	if config.PathPrefix != "" {
		prefix = config.PathPrefix
	}

	return &vaultStore{
		client:     client,
		pathPrefix: prefix,
		cache:      make(map[string]string),
	}, nil
}

// Get key 形如 "llm#api_key"；省略 field 时取 "value"
func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	v.mu.RLock()
	if val, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return val, nil
	}
	v.mu.RUnlock()

	path, field := splitKey(key)
	secret, err := v.client.Logical().ReadWithContext(ctx, v.dataPath(path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("secret %s is not a kv v2 entry", path)
	}
	val, ok := data[field].(string)
	if !ok {
		return "", fmt.Errorf("secret value not found: %s", key)
	}

	v.mu.Lock()
	v.cache[key] = val
	v.mu.Unlock()
	return val, nil
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	path, field := splitKey(key)
	_, err := v.client.Logical().WriteWithContext(ctx, v.dataPath(path), map[string]interface{}{
		"data": map[string]interface{}{field: value},
	})
	if err != nil {
		return fmt.Errorf("failed to write secret to vault: %w", err)
	}

	v.mu.Lock()
	v.cache[key] = value
	v.mu.Unlock()
	return nil
}

func (v *vaultStore) dataPath(path string) string {
	return fmt.Sprintf("%s/data/%s", v.pathPrefix, path)
}

func splitKey(key string) (path, field string) {
	path, field, found := strings.Cut(key, "#")
	if !found || field == "" {
		field = "value"
	}
	return path, field
}
