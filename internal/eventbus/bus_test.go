package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFillsTimeAndDropsWhenFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "job.started"})
	b.Publish(Event{Type: "job.finished"}) // buffer full, dropped

	e := <-ch
	assert.Equal(t, "job.started", e.Type)
	assert.False(t, e.Time.IsZero())
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %q", e.Type)
	default:
	}
}

func TestUnsubscribeWhilePublishing(t *testing.T) {
	b := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, unsub := b.Subscribe(1)
			unsub()
			unsub() // idempotent
		}()
	}
	for i := 0; i < 100; i++ {
		b.Publish(Event{Type: "x"})
	}
	wg.Wait()
}

func TestConsumeFiltersByPrefix(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, b, 16, func(e Event) {
			mu.Lock()
			got = append(got, e.Type)
			mu.Unlock()
		}, "job.")
	}()

	require.Eventually(t, func() bool {
		b.Publish(Event{Type: "other"})
		b.Publish(Event{Type: "job.failed"})
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for _, typ := range got {
		assert.Equal(t, "job.failed", typ)
	}
}
