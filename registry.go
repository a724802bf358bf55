package procbus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/shalefield/procbus/matcher"
)

// Subscription is a pair of a TopicMatcher and the callback invoked when a
// published envelope's header topic matches it. id is a uuid minted at
// subscribe time, used only for diagnostics and as the Unsubscribe key.
type Subscription struct {
	id      uuid.UUID
	matcher matcher.TopicMatcher
	onMsg   func(TransferEnvelope)
}

// ID is the subscription's diagnostic identity.
func (s Subscription) ID() uuid.UUID { return s.id }

// Unsubscriber removes a single subscription. Calling Unsubscribe more than
// once is a harmless no-op.
type Unsubscriber interface {
	Unsubscribe()
}

type registryUnsubscriber struct {
	reg *SubscriberRegistry
	id  uuid.UUID
}

func (u registryUnsubscriber) Unsubscribe() { u.reg.remove(u.id) }

// SubscriberRegistry is a thread-safe collection of Subscriptions guarded by
// a single sync.RWMutex. Publish takes the read lock only long enough to
// snapshot the subscriber slice — the "route-first" pattern — then invokes
// callbacks outside any lock, so a subscriber that unsubscribes itself from
// its own callback cannot deadlock against the registry.
type SubscriberRegistry struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

// NewSubscriberRegistry constructs an empty registry.
func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{subs: make(map[uuid.UUID]Subscription)}
}

// Subscribe registers m/onMsg as a new Subscription and returns a handle to
// remove it.
func (r *SubscriberRegistry) Subscribe(m matcher.TopicMatcher, onMsg func(TransferEnvelope)) Unsubscriber {
	sub := Subscription{id: uuid.New(), matcher: m, onMsg: onMsg}
	r.mu.Lock()
	r.subs[sub.id] = sub
	r.mu.Unlock()
	return registryUnsubscriber{reg: r, id: sub.id}
}

func (r *SubscriberRegistry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.subs, id)
	r.mu.Unlock()
}

// Publish snapshots every subscription whose matcher matches env's topic,
// releases the lock, then invokes each onMsg outside the lock. It returns
// true if at least one subscription matched.
func (r *SubscriberRegistry) Publish(env TransferEnvelope) bool {
	r.mu.RLock()
	var matched []Subscription
	for _, s := range r.subs {
		if s.matcher.IsMatch(env.Header.Topic()) {
			matched = append(matched, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range matched {
		s.onMsg(env)
	}
	return len(matched) > 0
}

// Len returns the number of currently registered subscriptions.
func (r *SubscriberRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// MatchesAny reports whether topic matches at least one currently
// registered subscription. Used by ProcessBus to build the "any of mine"
// matcher it registers itself under on the shared MessageBus.
func (r *SubscriberRegistry) MatchesAny(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subs {
		if s.matcher.IsMatch(topic) {
			return true
		}
	}
	return false
}
