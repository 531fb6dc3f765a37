package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_PublishNotifiesSubscribers(t *testing.T) {
	t.Parallel()

	initial := DefaultConfig()
	feed := NewFeed(initial)

	first, cancelFirst := feed.Subscribe()
	defer cancelFirst()

	second, cancelSecond := feed.Subscribe()
	defer cancelSecond()

	assert.Same(t, initial, feed.Current())

	next := DefaultConfig()
	require.NoError(t, feed.Publish(next))

	assert.Same(t, next, <-first)
	assert.Same(t, next, <-second)
	assert.Same(t, next, feed.Current())
}

func TestFeed_SlowSubscriberSeesLatest(t *testing.T) {
	t.Parallel()

	feed := NewFeed(DefaultConfig())

	ch, cancel := feed.Subscribe()
	defer cancel()

	var last *Config

	for i := 0; i < 5; i++ {
		last = DefaultConfig()
		require.NoError(t, feed.Publish(last))
	}

	assert.Same(t, last, <-ch)

	select {
	case cfg := <-ch:
		t.Fatalf("unexpected pending snapshot %p", cfg)
	default:
	}
}

func TestFeed_Close(t *testing.T) {
	t.Parallel()

	feed := NewFeed(DefaultConfig())

	ch, cancel := feed.Subscribe()

	feed.Close()
	feed.Close()

	_, ok := <-ch
	assert.False(t, ok)

	// cancel after close is a no-op
	cancel()

	require.ErrorIs(t, feed.Publish(DefaultConfig()), ErrFeedClosed)

	late, _ := feed.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}

func TestFeed_Unsubscribe(t *testing.T) {
	t.Parallel()

	feed := NewFeed(DefaultConfig())

	ch, cancel := feed.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, feed.Publish(DefaultConfig()))
}
