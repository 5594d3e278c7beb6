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

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS actor_kv (
	actor_id   TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (actor_id, key)
);
CREATE TABLE IF NOT EXISTS actor_alarms (
	actor_id TEXT PRIMARY KEY,
	fire_at  TIMESTAMPTZ NOT NULL
);`

// PostgresBackend PostgreSQL 后端；所有 Actor 共用两张表
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend 创建连接池并确保表存在
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Scope 实现 Backend
func (b *PostgresBackend) Scope(actorID string) Store {
	return &PostgresStore{pool: b.pool, actorID: actorID}
}

// AlarmedActors 实现 Backend
func (b *PostgresBackend) AlarmedActors(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT actor_id FROM actor_alarms ORDER BY actor_id`)
	if err != nil {
		return nil, fmt.Errorf("select alarms: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan alarms: %w", err)
	}
	return ids, nil
}

// Close 关闭连接池
func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

// PostgresStore 单个 Actor 的 Postgres 视图
type PostgresStore struct {
	pool    *pgxpool.Pool
	actorID string
}

// Get 实现 Store
func (s *PostgresStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM actor_kv WHERE actor_id = $1 AND key = $2`,
		s.actorID, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select kv %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value %s: %w", key, err)
	}
	return true, nil
}

// Put 实现 Store；单条 upsert
func (s *PostgresStore) Put(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO actor_kv (actor_id, key, value, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (actor_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.actorID, key, raw)
	if err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

// Delete 实现 Store
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM actor_kv WHERE actor_id = $1 AND key = $2`, s.actorID, key)
	return err
}

// GetAlarm 实现 Store
func (s *PostgresStore) GetAlarm(ctx context.Context) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT fire_at FROM actor_alarms WHERE actor_id = $1`, s.actorID).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("select alarm: %w", err)
	}
	return at, true, nil
}

// SetAlarm 实现 Store
func (s *PostgresStore) SetAlarm(ctx context.Context, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO actor_alarms (actor_id, fire_at) VALUES ($1, $2)
		 ON CONFLICT (actor_id) DO UPDATE SET fire_at = EXCLUDED.fire_at`,
		s.actorID, at)
	return err
}

// DeleteAlarm 实现 Store
func (s *PostgresStore) DeleteAlarm(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM actor_alarms WHERE actor_id = $1`, s.actorID)
	return err
}
