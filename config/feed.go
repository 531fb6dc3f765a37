package config

import (
	"errors"
	"sync"
)

var ErrFeedClosed = errors.New("config feed closed")

// Feed broadcasts full configuration snapshots to its subscribers. A published
// snapshot is shared between all readers and must never be mutated.
type Feed struct {
	lock    sync.Mutex
	current *Config
	subs    map[uint64]chan *Config
	nextID  uint64
	closed  bool
}

// NewFeed creates a feed holding the initial snapshot
func NewFeed(initial *Config) *Feed {
	return &Feed{
		current: initial,
		subs:    make(map[uint64]chan *Config),
	}
}

// Current returns the latest published snapshot
func (f *Feed) Current() *Config {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.current
}

// Publish replaces the current snapshot and notifies every subscriber.
// A subscriber that has not consumed the previous notification only sees the latest one.
func (f *Feed) Publish(cfg *Config) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return ErrFeedClosed
	}

	f.current = cfg

	for _, ch := range f.subs {
		select {
		case ch <- cfg:
		default:
			// drop the stale pending snapshot
			select {
			case <-ch:
			default:
			}

			ch <- cfg
		}
	}

	return nil
}

// Subscribe registers a new subscriber. The returned channel is closed when the
// feed is closed or the returned cancel function is called.
func (f *Feed) Subscribe() (<-chan *Config, func()) {
	f.lock.Lock()
	defer f.lock.Unlock()

	ch := make(chan *Config, 1)

	if f.closed {
		close(ch)

		return ch, func() {}
	}

	id := f.nextID
	f.nextID++
	f.subs[id] = ch

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			f.unsubscribe(id)
		})
	}
}

func (f *Feed) unsubscribe(id uint64) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

// Close closes every subscriber channel. Subscribers treat it as the end of the stream.
func (f *Feed) Close() {
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.closed {
		return
	}

	f.closed = true

	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
