package sequencer

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/gomodule/redigo/redis"
)

// fakeConn implements redis.Conn over an in-memory counter, enough for the
// INCR/EVAL traffic the sequencer generates.
type fakeConn struct {
	st *fakeState
}

type fakeState struct {
	mu      sync.Mutex
	counter int64
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }

func (c *fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	switch cmd {
	case "INCR":
		c.st.counter++
		return c.st.counter, nil
	case "EVAL":
		// args: script, numkeys, key, want
		want := toInt64(args[3])
		if want > c.st.counter {
			c.st.counter = want
		}
		return []byte(strconv.FormatInt(c.st.counter, 10)), nil
	case "PING":
		return "PONG", nil
	}
	return nil, nil
}

func (c *fakeConn) Send(cmd string, args ...interface{}) error { return nil }
func (c *fakeConn) Flush() error                               { return nil }
func (c *fakeConn) Receive() (interface{}, error)              { return nil, nil }

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	}
	return 0
}

type fakePool struct{ st *fakeState }

func (p fakePool) Get() redis.Conn { return &fakeConn{st: p.st} }

func TestRedisNextIssuesFromZero(t *testing.T) {
	st := &fakeState{}
	s := NewRedis(fakePool{st: st}, "ledger:app")
	ctx := context.Background()

	for want := uint64(0); want < 3; want++ {
		got, err := s.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got != want {
			t.Fatalf("want %d, got %d", want, got)
		}
	}
}

func TestRedisResyncAfterFailover(t *testing.T) {
	st := &fakeState{}
	s := NewRedis(fakePool{st: st}, "ledger:app")
	ctx := context.Background()

	// issue a few, then simulate failover losing counter state
	for i := 0; i < 5; i++ {
		if _, err := s.Next(ctx); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	st.mu.Lock()
	st.counter = 0
	st.mu.Unlock()

	// counter restarted; resync to the stream high-water mark (position 4)
	if err := s.Resync(ctx, 4); err != nil {
		t.Fatalf("resync: %v", err)
	}
	got, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != 5 {
		t.Fatalf("post-resync position: want 5, got %d", got)
	}
}

func TestRedisResyncNeverLowers(t *testing.T) {
	st := &fakeState{counter: 100}
	s := NewRedis(fakePool{st: st}, "ledger:app")
	if err := s.Resync(context.Background(), 4); err != nil {
		t.Fatalf("resync: %v", err)
	}
	got, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != 100 {
		t.Fatalf("resync lowered the counter: got %d", got)
	}
}
