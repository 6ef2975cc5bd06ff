package contest

import (
	"sync"
	"time"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// Event kinds published over the broker, in lifecycle order.
const (
	EventAgentRegistered    = "agent_registered"
	EventContestStarted     = "contest_started"
	EventRoundStarted       = "round_started"
	EventSubmissionReceived = "submission_received"
	EventRoundCompleted     = "round_completed"
	EventContestEnded       = "contest_ended"
)

// Event is one observability record. Payload shape depends on Kind; it is
// always JSON-serializable.
type Event struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// EventBroker fans contest events out to subscribers. It is safe for
// concurrent use. Publishing never blocks the contest: slow subscribers
// lose events rather than stalling a round.
type EventBroker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel that receives future events and an unsubscribe
// function. If the broker is already closed, the returned channel is
// immediately closed.
func (b *EventBroker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish sends an event to all subscribers. The timestamp is stamped here so
// callers only provide kind and payload.
func (b *EventBroker) Publish(kind string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	ev := Event{Kind: kind, Timestamp: time.Now().UTC(), Payload: payload}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Drop for slow subscribers to avoid blocking the round.
		}
	}
}

// Close signals that no more events will be published. All subscriber
// channels are closed and future Subscribe calls return a closed channel.
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
