package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"taskdeck-api/internal/observability/logger"
)

// blockingHook stalls every command until released, without needing a redis
// server behind it.
type blockingHook struct {
	enterOnce sync.Once
	entered   chan struct{}
	release   chan struct{}
}

func newBlockingHook() *blockingHook {
	return &blockingHook{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (h *blockingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *blockingHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.enterOnce.Do(func() { close(h.entered) })
		<-h.release
		return errors.New("redis unavailable")
	}
}

func (h *blockingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisPublisherDoesNotBlockCaller(t *testing.T) {
	log, err := logger.New("test", "error")
	require.NoError(t, err)

	hook := newBlockingHook()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	client.AddHook(hook)
	p := NewRedisPublisher(client, log)

	done := make(chan struct{})
	go func() {
		p.Publish(context.Background(), []string{AdminChannel}, Event{Type: TaskCreated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a stalled transport")
	}

	// Delivery still happens, just on its own goroutine.
	select {
	case <-hook.entered:
	case <-time.After(time.Second):
		t.Fatal("delivery goroutine never attempted the publish")
	}
	close(hook.release)
}
