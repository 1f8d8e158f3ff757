// Package cache keeps a rolling decision history and counters in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/bilal/switchify-netai/internal/models"
)

const (
	// LatestDecisionsKey holds the newest decisions, newest first.
	LatestDecisionsKey = "decisions:latest"
	// DecisionKeyPrefix prefixes individually addressable decisions.
	DecisionKeyPrefix = "decision:"

	TotalKey        = "decisions:total"
	StatusKeyPrefix = "status:"
	SpikeKey        = "anomalies:spike"
	DDoSKey         = "anomalies:ddos"

	DecisionTTL = 1 * time.Hour
)

// ErrNotFound is returned by Decision for unknown or expired ids.
var ErrNotFound = errors.New("decision not found")

// KnownStatuses are the counters reported by Stats even when zero.
var KnownStatuses = []string{"Normal", "Degraded", "Network Congestion", "Critical"}

type RedisCache struct {
	client      *redis.Client
	historySize int64
}

func NewRedisCache(ctx context.Context, addr, password string, db int, historySize int64) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if historySize <= 0 {
		historySize = 1000
	}
	return &RedisCache{client: client, historySize: historySize}, nil
}

// RecordDecision stores the event in the history list and bumps counters in
// a single pipeline.
func (r *RedisCache) RecordDecision(ctx context.Context, ev models.DecisionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, DecisionKeyPrefix+ev.ID, data, DecisionTTL)
	pipe.LPush(ctx, LatestDecisionsKey, data)
	pipe.LTrim(ctx, LatestDecisionsKey, 0, r.historySize-1)
	pipe.Incr(ctx, TotalKey)
	pipe.Incr(ctx, StatusKeyPrefix+ev.Status)
	if ev.Spike {
		pipe.Incr(ctx, SpikeKey)
	}
	if ev.DDoSSuspected {
		pipe.Incr(ctx, DDoSKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// LatestDecisions returns up to count decisions, newest first. Entries that
// no longer decode are skipped.
func (r *RedisCache) LatestDecisions(ctx context.Context, count int64) ([]models.DecisionEvent, error) {
	data, err := r.client.LRange(ctx, LatestDecisionsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest decisions: %w", err)
	}

	out := make([]models.DecisionEvent, 0, len(data))
	for _, d := range data {
		var ev models.DecisionEvent
		if err := json.Unmarshal([]byte(d), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Decision fetches one decision by id.
func (r *RedisCache) Decision(ctx context.Context, id string) (models.DecisionEvent, error) {
	var ev models.DecisionEvent
	data, err := r.client.Get(ctx, DecisionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return ev, ErrNotFound
	}
	if err != nil {
		return ev, fmt.Errorf("failed to get decision: %w", err)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("failed to unmarshal decision: %w", err)
	}
	return ev, nil
}

func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Counters collects the decision counters for GET /stats.
func (r *RedisCache) Counters(ctx context.Context) (total, spikes, ddos int64, byStatus map[string]int64, err error) {
	byStatus = make(map[string]int64, len(KnownStatuses))
	if total, err = r.GetCounter(ctx, TotalKey); err != nil {
		return
	}
	if spikes, err = r.GetCounter(ctx, SpikeKey); err != nil {
		return
	}
	if ddos, err = r.GetCounter(ctx, DDoSKey); err != nil {
		return
	}
	for _, s := range KnownStatuses {
		var n int64
		if n, err = r.GetCounter(ctx, StatusKeyPrefix+s); err != nil {
			return
		}
		byStatus[s] = n
	}
	return
}

// Ping checks the connection.
func (r *RedisCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// FlushDB wipes the database (tests only).
func (r *RedisCache) FlushDB(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}
