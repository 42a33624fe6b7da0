package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type waitCall struct {
	key    string
	limit  int
	window time.Duration
}

type fakeLimiter struct {
	calls []waitCall
}

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (f *fakeLimiter) Wait(_ context.Context, key string, limit int, window time.Duration) error {
	f.calls = append(f.calls, waitCall{key, limit, window})
	return nil
}

func TestPacerUsesBoundBudget(t *testing.T) {
	fl := &fakeLimiter{}
	p := NewPacer(fl, "alchemy", 5, time.Second)

	require.NoError(t, p.Wait(context.Background()))
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, []waitCall{
		{"alchemy", 5, time.Second},
		{"alchemy", 5, time.Second},
	}, fl.calls)
}

func TestKeyNamespace(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:0"})
	defer rdb.Close()

	c := NewFromClient(rdb, "")
	assert.Equal(t, "nftsales:lock:0xabc:1-9", c.key("lock", "0xabc:1-9"))

	custom := NewFromClient(rdb, "staging:")
	assert.Equal(t, "staging:ratelimit:alchemy", custom.key("ratelimit", "alchemy"))
}
