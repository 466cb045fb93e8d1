package events

import (
	"context"
	"sync"
	"time"
)

const (
	defaultCapacity   = 1024
	defaultSubscriber = 64
)

// Bus stores recent events in a bounded ring and fans them out to subscribers.
// Delivery is at-least-once from the consumer's point of view: a subscriber
// that falls behind loses events from its channel and must catch up through
// Since or resync full state when Since reports the window no longer covers it.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	subs     map[*Subscription]struct{}
	now      func() time.Time
}

// NewBus constructs a bus retaining up to capacity events.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	b := &Bus{
		capacity: capacity,
		subs:     make(map[*Subscription]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish assigns the next sequence number and timestamp, buffers the event,
// and offers it to every subscriber without blocking.
func (b *Bus) Publish(evt Event) Event {
	if b == nil {
		return evt
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	evt.Seq = b.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = b.now()
	}

	if len(b.buffer) == b.capacity {
		copy(b.buffer, b.buffer[1:])
		b.buffer = b.buffer[:b.capacity-1]
	}
	b.buffer = append(b.buffer, evt)

	for sub := range b.subs {
		select {
		case sub.ch <- evt:
		default:
			sub.dropped++
		}
	}
	b.cond.Broadcast()
	return evt
}

// Subscription is a live feed of published events.
type Subscription struct {
	bus     *Bus
	ch      chan Event
	dropped uint64
	closed  bool
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriber
	}
	sub := &Subscription{bus: b, ch: make(chan Event, buffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// C returns the receive channel. It is closed by Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped reports how many events were discarded because the channel was full.
func (s *Subscription) Dropped() uint64 {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.bus.subs, s)
	close(s.ch)
}

// Since returns buffered events with sequence greater than since. The boolean
// is false when events after since have already been evicted (or since comes
// from a different bus lifetime), in which case the caller must re-fetch full
// state instead of replaying.
func (b *Bus) Since(since uint64) ([]Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	covered := b.coversLocked(since)
	events, _ := b.snapshotLocked(since, b.capacity)
	return events, covered
}

// Covers reports whether the buffer still holds every event after since.
func (b *Bus) Covers(since uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coversLocked(since)
}

// LastSequence reports the most recently assigned sequence number.
func (b *Bus) LastSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}

// Fetch returns events with sequence greater than since, at most limit, plus
// the cursor to pass as since on the next call. When wait is true, Fetch
// blocks until at least one event is available or the context ends.
func (b *Bus) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if b == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				b.mu.Lock()
				b.cond.Broadcast()
				b.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		events, next := b.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		b.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

func (b *Bus) coversLocked(since uint64) bool {
	if since > b.nextSeq {
		return false
	}
	if len(b.buffer) == 0 {
		return true
	}
	return since+1 >= b.buffer[0].Seq
}

func (b *Bus) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	startIdx := -1
	for i, evt := range b.buffer {
		if evt.Seq > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, b.nextSeq
	}
	end := min(startIdx+limit, len(b.buffer))
	out := make([]Event, end-startIdx)
	copy(out, b.buffer[startIdx:end])
	return out, out[len(out)-1].Seq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
