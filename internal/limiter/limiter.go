// Package limiter provides a redis-backed QPS and concurrency guard applied
// to the scoring route before any upstream dispatch. Budgets are tracked per
// model version so two deployed versions of the same model never share a
// window.
package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "scoregate:"

// concTTL bounds how long a leaked slot (a crashed proxy that never
// released) can starve a model version.
const concTTL = 60 * time.Second

type Limiter struct {
	Redis *redis.Client
	QPS   int
	Conc  int
}

func New(client *redis.Client, qps, conc int) *Limiter {
	return &Limiter{Redis: client, QPS: qps, Conc: conc}
}

// qpsKey buckets requests into one-second windows. Two calls within the same
// UTC second land on the same key.
func qpsKey(model, version string, now time.Time) string {
	return keyPrefix + "qps:" + model + ":" + version + ":" + now.UTC().Format("20060102150405")
}

func concKey(model, version string) string {
	return keyPrefix + "conc:" + model + ":" + version
}

// Allow checks the per-second request budget for the model version.
func (l *Limiter) Allow(ctx context.Context, model, version string) (bool, error) {
	key := qpsKey(model, version, time.Now())
	pipe := l.Redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return int(incr.Val()) <= l.QPS, nil
}

// Acquire claims a concurrency slot for the model version. Callers must pair
// a successful Acquire with Release; a rejected Acquire already gave the
// slot back.
func (l *Limiter) Acquire(ctx context.Context, model, version string) (bool, error) {
	key := concKey(model, version)
	val, err := l.Redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if val == 1 {
		l.Redis.Expire(ctx, key, concTTL)
	}
	if int(val) > l.Conc {
		l.Redis.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

func (l *Limiter) Release(ctx context.Context, model, version string) {
	_ = l.Redis.Decr(ctx, concKey(model, version)).Err()
}
