package discord

import (
	"sync"

	"github.com/vietddude/guildctl/internal/core/domain"
)

// Broker fans gateway events out to predicate-filtered subscribers. Each
// subscription is a buffered channel plus a cancel func; cancellation must
// not leak the handler, and publishing must never block the dispatch loop.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	pred func(domain.MemberJoin) bool
	ch   chan domain.MemberJoin
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]*subscription)}
}

// Subscribe registers a predicate-filtered subscriber. The returned cancel
// func removes the subscription; calling it more than once is safe.
func (b *Broker) Subscribe(pred func(domain.MemberJoin) bool) (<-chan domain.MemberJoin, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{pred: pred, ch: make(chan domain.MemberJoin, 1)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
	return sub.ch, cancel
}

// Publish delivers an event to every matching subscriber. Subscribers that
// are not draining their channel miss extra events instead of stalling the
// dispatcher.
func (b *Broker) Publish(ev domain.MemberJoin) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.pred(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Len reports the number of active subscriptions.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
