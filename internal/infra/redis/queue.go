package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Minute

// Queue is a FIFO of export job IDs kept in a sorted set scored by enqueue
// time. A popped job holds a processing lock until it is acked.
type Queue struct {
	client  *Client
	lockTTL time.Duration
	now     func() time.Time
}

// NewQueue creates a queue on top of client.
func NewQueue(client *Client, lockTTL time.Duration) *Queue {
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Queue{client: client, lockTTL: lockTTL, now: time.Now}
}

// Push adds a job. Pushing a job that is already queued keeps its position.
func (q *Queue) Push(ctx context.Context, jobID string) error {
	z := redis.Z{Score: float64(q.now().UnixNano()), Member: jobID}
	if err := q.client.rdb.ZAddNX(ctx, q.client.queueKey(), z).Err(); err != nil {
		return fmt.Errorf("zadd failed: %w", err)
	}
	return nil
}

// popScript removes the oldest job and takes its processing lock in one
// step, so a job never leaves the set without a lock attempt.
// Returns false when empty, otherwise {id, 1} when locked or {id, 0} when
// another worker already holds the lock.
var popScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1])
if #popped == 0 then
	return false
end
local id = popped[1]
if redis.call('SET', ARGV[1] .. id, 'locked', 'NX', 'PX', ARGV[2]) then
	return {id, 1}
end
return {id, 0}
`)

// Pop removes the oldest job. found is false when the queue is empty or the
// popped job is already locked by another worker.
func (q *Queue) Pop(ctx context.Context) (string, bool, error) {
	res, err := popScript.Run(ctx, q.client.rdb,
		[]string{q.client.queueKey()},
		q.client.lockKey(""),
		q.lockTTL.Milliseconds(),
	).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pop failed: %w", err)
	}

	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return "", false, fmt.Errorf("unexpected pop result %v", res)
	}
	jobID, ok := pair[0].(string)
	if !ok {
		return "", false, fmt.Errorf("unexpected queue member %v", pair[0])
	}
	if locked, _ := pair[1].(int64); locked != 1 {
		return "", false, nil
	}
	return jobID, true, nil
}

// RefreshLock extends the processing lock of a popped job.
func (q *Queue) RefreshLock(ctx context.Context, jobID string) error {
	if err := q.client.RefreshLock(ctx, jobID, q.lockTTL); err != nil {
		return fmt.Errorf("refresh lock failed: %w", err)
	}
	return nil
}

// LockTTL returns how long a processing lock lives without a refresh.
func (q *Queue) LockTTL() time.Duration {
	return q.lockTTL
}

// Ack releases the processing lock of a popped job.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	if err := q.client.ReleaseLock(ctx, jobID); err != nil {
		return fmt.Errorf("release lock failed: %w", err)
	}
	return nil
}

// Len returns the number of queued jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.rdb.ZCard(ctx, q.client.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return n, nil
}
