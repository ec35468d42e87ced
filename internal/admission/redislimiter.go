// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a HourlyLimiter backed by Redis, for deployments running
// more than one control-plane replica: every replica INCRs the same
// per-tenant, per-hour key, so a tenant's MaxJobsPerHour cap holds across
// the whole fleet instead of resetting per process. cmd/flowengine installs
// this via Controller.SetHourlyLimiter when flowconfig.Config.RedisAddr is
// set, and leaves the in-process default otherwise.
type RedisLimiter struct {
	client *redis.Client
}

// NewRedisLimiter wraps an already-constructed client. Callers own the
// client's lifecycle (Close it on shutdown).
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Increment bumps the counter for tenantID's current hour bucket and
// returns the post-increment count. The key expires on its own an hour
// after first write, so idle tenants leave no residue in Redis.
func (l *RedisLimiter) Increment(ctx context.Context, tenantID string) (int, error) {
	key := hourBucketKey(tenantID, time.Now())

	n, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("admission: redis incr %s: %w", key, err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, key, time.Hour).Err(); err != nil {
			return 0, fmt.Errorf("admission: redis expire %s: %w", key, err)
		}
	}
	return int(n), nil
}

func hourBucketKey(tenantID string, now time.Time) string {
	return fmt.Sprintf("flowengine:admission:rate:%s:%d", tenantID, now.Unix()/int64(time.Hour/time.Second))
}
