// Package store provides the optional run archive. Completed run reports are
// written once and expire after the configured TTL; the engine never reads
// them back.
package store

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/quillworks/scout/config"
	"github.com/redis/go-redis/v9"
)

type RedisArchive struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisArchive connects and pings the configured Redis instance.
func NewRedisArchive(cfg config.RedisConfig) (*RedisArchive, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisArchive{client: client, ttl: cfg.TTL}, nil
}

// SaveRun stores the serialized run report and registers the run id.
func (a *RedisArchive) SaveRun(ctx context.Context, runID string, report []byte) error {
	key := fmt.Sprintf("run:%s:report", runID)
	if err := a.client.Set(ctx, key, report, a.ttl).Err(); err != nil {
		return fmt.Errorf("storing run report: %w", err)
	}
	if err := a.client.ZAdd(ctx, "runs:index", redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: runID,
	}).Err(); err != nil {
		return fmt.Errorf("indexing run: %w", err)
	}
	return nil
}

// RecentRuns lists the newest n run ids.
func (a *RedisArchive) RecentRuns(ctx context.Context, n int64) ([]string, error) {
	return a.client.ZRevRange(ctx, "runs:index", 0, n-1).Result()
}

// LoadRun fetches an archived run report by id.
func (a *RedisArchive) LoadRun(ctx context.Context, runID string) ([]byte, error) {
	key := fmt.Sprintf("run:%s:report", runID)
	data, err := a.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run report: %w", err)
	}
	return data, nil
}

// Close releases the underlying connection pool.
func (a *RedisArchive) Close() error { return a.client.Close() }
