// Package matcher provides pure, side-effect-free predicates over topic
// strings, used by the SubscriberRegistry to decide whether a published
// envelope routes to a given subscription.
package matcher

import "strings"

// TopicMatcher decides whether a topic should route to a subscription.
// Implementations must be safe to call concurrently from the bus thread and
// must not block or mutate external state.
type TopicMatcher interface {
	IsMatch(topic string) bool
}

// Exact matches a topic string exactly.
type Exact string

func (e Exact) IsMatch(topic string) bool { return topic == string(e) }

// Prefix matches any topic with the given prefix.
type Prefix string

func (p Prefix) IsMatch(topic string) bool { return strings.HasPrefix(topic, string(p)) }

// Predicate adapts an arbitrary func(string) bool into a TopicMatcher.
type Predicate func(topic string) bool

func (p Predicate) IsMatch(topic string) bool { return p(topic) }

// Any matches every topic.
type Any struct{}

func (Any) IsMatch(string) bool { return true }
