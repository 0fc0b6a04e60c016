package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishimitra/api/internal/events"
	"krishimitra/api/internal/ratelimit"
)

func TestScheduler_RegistersOnlyConfiguredJobs(t *testing.T) {
	s := NewScheduler(nil, nil, time.Minute, zerolog.Nop())
	require.NoError(t, s.Start())
	assert.Equal(t, 0, s.Entries())
	<-s.Stop().Done()

	s = NewScheduler(nil, ratelimit.NewMemoryCounter(), time.Minute, zerolog.Nop())
	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.Entries())
	<-s.Stop().Done()
}

func TestScheduler_EnqueueCleanup(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub := events.NewStreamPublisher(client, "auth:events", 100)
	s := NewScheduler(pub, nil, time.Minute, zerolog.Nop())
	s.enqueueCleanup()

	msgs, err := client.XRange(context.Background(), "auth:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TaskCleanup, msgs[0].Values["type"])
}

func TestScheduler_PruneLimiter(t *testing.T) {
	counter := ratelimit.NewMemoryCounter()
	_, _, err := counter.Hit(context.Background(), "k", time.Millisecond)
	require.NoError(t, err)

	s := NewScheduler(nil, counter, 0, zerolog.Nop())
	time.Sleep(2 * time.Millisecond)
	s.pruneLimiter()

	assert.Equal(t, 0, counter.Len())
}
