package sequencer

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ConnGetter yields Redis connections. *redis.Pool satisfies it.
type ConnGetter interface {
	Get() redis.Conn
}

// Redis issues positions from a shared Redis counter via INCR.
//
// Failover caveat: after a Redis failover the counter may restart below the
// true high-water mark and reissue numbers. By default this implementation
// relies on the storage layer's uniqueness constraint to reject the duplicate
// write, and the caller retries with a freshly issued number. Callers that
// detect a regression can instead call Resync with the stream's high-water
// mark before resuming issuance.
type Redis struct {
	pool ConnGetter
	key  string
}

// NewRedis returns a Redis sequencer incrementing the given key.
func NewRedis(pool ConnGetter, key string) *Redis {
	return &Redis{pool: pool, key: key}
}

// NewRedisPool builds a redigo pool for addr with conservative defaults.
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr) },
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Next implements Sequencer. INCR returns the count of issued positions, so
// the issued position is the reply minus one.
func (r *Redis) Next(ctx context.Context) (uint64, error) {
	conn := r.pool.Get()
	defer conn.Close()
	n, err := redis.Int64(conn.Do("INCR", r.key))
	if err != nil {
		return 0, fmt.Errorf("sequencer: incr %s: %w", r.key, err)
	}
	if n <= 0 {
		return 0, ErrSequenceExhausted
	}
	return uint64(n) - 1, nil
}

// resyncScript raises the counter to ARGV[1] if it is lower, atomically.
// Never lowers it, so a racing resync and INCR cannot lose issued numbers.
const resyncScript = `local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local want = tonumber(ARGV[1])
if want > cur then redis.call('SET', KEYS[1], ARGV[1]) end
return redis.call('GET', KEYS[1])`

// Resync ensures the counter is at least highWater+1, so the next issued
// position is strictly above every assigned position. Call after detecting a
// counter regression (for example ErrPositionTaken storms following a Redis
// failover).
func (r *Redis) Resync(ctx context.Context, highWater uint64) error {
	conn := r.pool.Get()
	defer conn.Close()
	_, err := conn.Do("EVAL", resyncScript, 1, r.key, highWater+1)
	if err != nil {
		return fmt.Errorf("sequencer: resync %s: %w", r.key, err)
	}
	return nil
}
