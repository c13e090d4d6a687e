package core

import (
	"sync"
	"time"
)

type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
	EventFaulted EventType = "faulted"
)

// Event is a proxy run state transition.
type Event struct {
	Type         EventType
	RunID        string
	Port         int
	PatternCount int
	Err          error
	At           time.Time
}

// EventBus fans run events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type EventBus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that unsubscribes and closes it.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber and returns how many received it.
func (b *EventBus) Publish(e Event) int {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- e:
			delivered++
		default:
		}
	}
	return delivered
}
