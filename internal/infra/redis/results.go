// Package redis persists validation results for the downstream report
// generator. It is optional: without a configured URL the orchestrator
// keeps results in memory only.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gardentiller/tiller/internal/core/domain"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// resultTTL bounds how long run data survives; reports are generated
// shortly after a run, stale runs are noise.
const resultTTL = 24 * time.Hour

// Client wraps Redis operations for validation results.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func runKey(runID string) string {
	return fmt.Sprintf("tiller:run:%s", runID)
}

func hostsKey(runID string) string {
	return fmt.Sprintf("tiller:run:%s:hosts", runID)
}

// SaveRun stores the run record as JSON.
func (c *Client) SaveRun(ctx context.Context, run *domain.ValidationRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := c.rdb.Set(ctx, runKey(run.ID), data, resultTTL).Err(); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveHostResult stores one host's result under the run's hash. One
// writer per host key, so a plain HSET is race-free.
func (c *Client) SaveHostResult(ctx context.Context, runID string, res *domain.HostResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal host result: %w", err)
	}
	key := hostsKey(runID)
	if err := c.rdb.HSet(ctx, key, res.Host, data).Err(); err != nil {
		return fmt.Errorf("save host result %s/%s: %w", runID, res.Host, err)
	}
	c.rdb.Expire(ctx, key, resultTTL)
	return nil
}

// HostResults loads every host result stored for a run.
func (c *Client) HostResults(ctx context.Context, runID string) (map[string]*domain.HostResult, error) {
	raw, err := c.rdb.HGetAll(ctx, hostsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load host results for %s: %w", runID, err)
	}
	out := make(map[string]*domain.HostResult, len(raw))
	for host, data := range raw {
		var res domain.HostResult
		if err := json.Unmarshal([]byte(data), &res); err != nil {
			return nil, fmt.Errorf("decode host result %s/%s: %w", runID, host, err)
		}
		out[host] = &res
	}
	return out, nil
}
