// Package queue is the small redis surface shared by the API and the worker:
// a nudge list that wakes the dispatcher early, and a run lock that keeps
// overlapping dispatcher invocations from racing.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockKey guards the dispatcher run. The TTL keeps a crashed worker from
// holding the lock forever.
const lockKey = "dealercast:dispatch:lock"

type Queue struct {
	client *redis.Client
	name   string
}

func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

// Nudge signals the worker that new jobs were admitted so it can dispatch
// ahead of the next cron tick.
func (q *Queue) Nudge(ctx context.Context, batchID string) error {
	if err := q.client.LPush(ctx, q.name, batchID).Err(); err != nil {
		return fmt.Errorf("nudge dispatch: %w", err)
	}
	return nil
}

// Wait blocks until a nudge arrives or timeout elapses. Returns the nudged
// batch id, or "" on timeout.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	vals, err := q.client.BRPop(ctx, timeout, q.name).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("wait for nudge: %w", err)
	}
	// BRPop returns [key, value].
	if len(vals) < 2 {
		return "", nil
	}
	return vals[1], nil
}

// AcquireRunLock takes the dispatcher run lock for ttl. Returns false when
// another run already holds it.
func (q *Queue) AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	ok, err := q.client.SetNX(ctx, lockKey, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// ReleaseRunLock drops the run lock if owner still holds it.
func (q *Queue) ReleaseRunLock(ctx context.Context, owner string) error {
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0`
	return q.client.Eval(ctx, script, []string{lockKey}, owner).Err()
}

// Ping reports redis reachability for health checks.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}
