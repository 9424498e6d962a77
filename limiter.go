package cmsblog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter rate-limits attempts per key (a client IP plus a scope such as
// "contact" or "login").
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

var (
	_ Limiter = (*WindowLimiter)(nil)
	_ Limiter = (*RedisLimiter)(nil)
)

// WindowLimiter is an in-memory sliding window limiter.
type WindowLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewWindowLimiter creates a WindowLimiter that allows max attempts per window.
// Call Close to stop its cleanup goroutine.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	l := &WindowLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *WindowLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		cutoff := time.Now().Add(-l.window)
		l.mu.Lock()
		for key, hits := range l.attempts {
			kept := prune(hits, cutoff)
			if len(kept) == 0 {
				delete(l.attempts, key)
			} else {
				l.attempts[key] = kept
			}
		}
		l.mu.Unlock()
	}
}

// Close stops the cleanup goroutine.
func (l *WindowLimiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// Allow checks if key has not exceeded the rate limit and records the attempt.
func (l *WindowLimiter) Allow(_ context.Context, key string) bool {
	if !l.Check(key) {
		return false
	}
	l.Record(key)
	return true
}

// Check returns true if key has not exceeded the rate limit.
// It does not record an attempt.
func (l *WindowLimiter) Check(key string) bool {
	cutoff := time.Now().Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := prune(l.attempts[key], cutoff)
	l.attempts[key] = kept
	return len(kept) < l.max
}

// Record registers an attempt for key.
func (l *WindowLimiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], time.Now())
	l.mu.Unlock()
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

const rateLimitPrefix = "cmsblog:ratelimit:"

// tokenBucketScript refills and takes one token atomically.
// KEYS[1] bucket; ARGV rate (tokens/s), burst, now (s), ttl (s).
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	tokens = math.min(burst, tokens + ((now - last_update) * rate))

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)
	return allowed
`)

// RedisLimiter is a token bucket shared by every process using the same
// Redis. It allows bursts of max and refills max tokens per window.
// Redis errors fail open.
type RedisLimiter struct {
	client *redis.Client
	rate   float64
	burst  int
	ttl    int
	log    *slog.Logger
}

// NewRedisLimiter returns a limiter backed by client.
func NewRedisLimiter(client *redis.Client, max int, window time.Duration, log *slog.Logger) *RedisLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RedisLimiter{
		client: client,
		rate:   float64(max) / window.Seconds(),
		burst:  max,
		ttl:    int(math.Ceil(window.Seconds())) * 2,
		log:    log,
	}
}

// Allow takes one token for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	now := float64(time.Now().UnixMilli()) / 1000
	allowed, err := tokenBucketScript.Run(ctx, l.client,
		[]string{rateLimitPrefix + hashKey(key)},
		l.rate, l.burst, now, l.ttl,
	).Int()
	if err != nil {
		l.log.WarnContext(ctx, "rate limiter unavailable, allowing request", "error", err)
		return true
	}
	return allowed == 1
}

// NewRedisClient parses url and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opt.PoolSize = 10
	opt.MinIdleConns = 1
	opt.PoolTimeout = 4 * time.Second
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// hashKey keeps raw client IPs out of Redis.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:8])
}
