// Package redisboard coordinates a seed sweep across multiple worker
// processes through Redis. Each worker claims seeds with SETNX so every
// seed runs exactly once, publishes its result as JSON, and the board
// can be read back for aggregation from any process.
package redisboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/softphys/tensegrity/pkg/sweep"
)

// Board is one sweep's shared coordination state in Redis. Keys are
// namespaced by sweep name so concurrent sweeps don't collide.
type Board struct {
	client *redis.Client
	name   string
}

// New creates a board for the named sweep.
func New(client *redis.Client, name string) *Board {
	return &Board{client: client, name: name}
}

func (b *Board) claimKey(seed int64) string {
	return fmt.Sprintf("tensegrity:sweep:%s:claim:%d", b.name, seed)
}

func (b *Board) resultKey(seed int64) string {
	return fmt.Sprintf("tensegrity:sweep:%s:result:%d", b.name, seed)
}

func (b *Board) resultsSet() string {
	return fmt.Sprintf("tensegrity:sweep:%s:results", b.name)
}

// ClaimSeed attempts to claim a seed for workerID. Returns true when
// the claim succeeded or when this worker already holds it, so a
// restarted worker can resume its own claims. The TTL bounds how long a
// crashed worker blocks a seed.
func (b *Board) ClaimSeed(ctx context.Context, seed int64, workerID string, ttl time.Duration) (bool, error) {
	key := b.claimKey(seed)

	ok, err := b.client.SetNX(ctx, key, workerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim seed %d: %w", seed, err)
	}
	if ok {
		return true, nil
	}

	holder, err := b.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Claim expired between SETNX and GET; let the caller retry.
			return false, nil
		}
		return false, fmt.Errorf("failed to check seed %d claim: %w", seed, err)
	}
	return holder == workerID, nil
}

// PublishResult records a finished seed's result and registers it in
// the results set. Publishing also clears the claim TTL so the seed
// stays visibly done.
func (b *Board) PublishResult(ctx context.Context, res sweep.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal result for seed %d: %w", res.Seed, err)
	}

	key := b.resultKey(res.Seed)
	if err := b.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to publish result for seed %d: %w", res.Seed, err)
	}
	if err := b.client.SAdd(ctx, b.resultsSet(), key).Err(); err != nil {
		return fmt.Errorf("failed to register result for seed %d: %w", res.Seed, err)
	}
	if err := b.client.Persist(ctx, b.claimKey(res.Seed)).Err(); err != nil {
		return fmt.Errorf("failed to persist claim for seed %d: %w", res.Seed, err)
	}
	return nil
}

// Results returns every published result of the sweep.
func (b *Board) Results(ctx context.Context) ([]sweep.Result, error) {
	keys, err := b.client.SMembers(ctx, b.resultsSet()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	if len(keys) == 0 {
		return []sweep.Result{}, nil
	}

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}

	var out []sweep.Result
	for i, val := range values {
		if val == nil {
			continue
		}
		str, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("result key %s holds non-string value", keys[i])
		}
		var res sweep.Result
		if err := json.Unmarshal([]byte(str), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result key %s: %w", keys[i], err)
		}
		out = append(out, res)
	}
	return out, nil
}

// Clear deletes every key of this sweep.
func (b *Board) Clear(ctx context.Context) error {
	keys, err := b.client.SMembers(ctx, b.resultsSet()).Result()
	if err != nil {
		return fmt.Errorf("failed to list results during clear: %w", err)
	}
	for _, key := range keys {
		if err := b.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	if err := b.client.Del(ctx, b.resultsSet()).Err(); err != nil {
		return fmt.Errorf("failed to delete results set: %w", err)
	}
	return nil
}

// RunWorker claims and runs seeds until none are left unclaimed,
// publishing each result. It returns the seeds this worker completed.
func (b *Board) RunWorker(ctx context.Context, runner *sweep.Runner, seeds []int64, workerID string, claimTTL time.Duration) ([]int64, error) {
	var done []int64
	for _, seed := range seeds {
		claimed, err := b.ClaimSeed(ctx, seed, workerID, claimTTL)
		if err != nil {
			return done, err
		}
		if !claimed {
			slog.Debug("Seed already claimed", "sweep", b.name, "seed", seed, "workerID", workerID)
			continue
		}
		slog.Info("Seed claimed", "sweep", b.name, "seed", seed, "workerID", workerID)

		results, err := runner.Run(ctx, []int64{seed})
		if err != nil {
			return done, err
		}
		if err := b.PublishResult(ctx, results[0]); err != nil {
			return done, err
		}
		slog.Info("Seed result published", "sweep", b.name, "seed", seed,
			"finalH", results[0].FinalH, "incidents", results[0].IncidentCount)
		done = append(done, seed)
	}
	return done, nil
}
