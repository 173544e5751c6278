// Package ratelimit throttles mutating requests per caller with a token
// bucket, shared through Redis when available and in-process otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Config describes one bucket: Capacity tokens, refilled by RefillTokens
// every RefillInterval.
type Config struct {
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter takes one token for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

var bucketScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// RedisLimiter keeps buckets in Redis so replicas share them.
type RedisLimiter struct {
	rdb redis.Scripter
	cfg Config
	now func() time.Time
}

func NewRedisLimiter(rdb redis.Scripter, cfg Config) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, cfg: withDefaults(cfg), now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	args := []interface{}{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}
	vals, err := bucketScript.Run(ctx, l.rdb, []string{l.cfg.Prefix + ":" + key}, args...).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit script: unexpected result %v", vals)
	}
	return Result{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LocalLimiter keeps one x/time/rate limiter per key in memory.
type LocalLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      Config
	now      func() time.Time
}

func NewLocalLimiter(cfg Config) *LocalLimiter {
	return &LocalLimiter{visitors: make(map[string]*visitor), cfg: withDefaults(cfg), now: time.Now}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok {
		every := l.cfg.RefillInterval / time.Duration(l.cfg.RefillTokens)
		v = &visitor{limiter: rate.NewLimiter(rate.Every(every), l.cfg.Capacity)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay}, nil
	}
	return Result{Allowed: true, Remaining: int64(v.limiter.TokensAt(now))}, nil
}

// Sweep forgets keys idle for longer than the configured TTL.
func (l *LocalLimiter) Sweep() {
	cutoff := l.now().Add(-l.cfg.TTL)
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, k)
		}
	}
}

// Fallback uses primary and degrades to secondary when primary errors.
type Fallback struct {
	Primary   Limiter
	Secondary Limiter
}

func (f Fallback) Allow(ctx context.Context, key string) (Result, error) {
	res, err := f.Primary.Allow(ctx, key)
	if err == nil {
		return res, nil
	}
	return f.Secondary.Allow(ctx, key)
}

func withDefaults(cfg Config) Config {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 20
	}
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return cfg
}

// RetryAfterSeconds renders d for a Retry-After header.
func RetryAfterSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
