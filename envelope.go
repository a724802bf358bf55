package procbus

import (
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
)

// MessageHeader is the immutable metadata carried alongside every envelope.
// It is never constructed directly outside this package; callers only ever
// observe one through its accessors.
type MessageHeader struct {
	id         uuid.UUID
	topic      string
	replyTo    string
	hasReplyTo bool
	senderID   uuid.UUID
	producedAt time.Time
}

// ID is the envelope's own identity, minted once at construction.
func (h MessageHeader) ID() uuid.UUID { return h.id }

// Topic is the topic the envelope was published on.
func (h MessageHeader) Topic() string { return h.topic }

// ReplyTo returns the reply-to topic and whether one was set.
func (h MessageHeader) ReplyTo() (string, bool) { return h.replyTo, h.hasReplyTo }

// SenderID identifies the ProcessBus that produced the envelope.
func (h MessageHeader) SenderID() uuid.UUID { return h.senderID }

// ProducedAt is the clock reading at construction time.
func (h MessageHeader) ProducedAt() time.Time { return h.producedAt }

// TransferEnvelope pairs an immutable Header with an arbitrary Message
// payload. It is built exclusively through TransferEnvelopeFactory.Create and
// never mutated after construction.
type TransferEnvelope struct {
	Header  MessageHeader
	Message any
}

// TransferEnvelopeFactory stamps envelopes with a uuid-based ID and the
// injected clock's current reading. Each ProcessBus owns one, stamped with
// that ProcessBus's ID as sender; ProcessBuses minted by the same
// ProcessContextFactory are given the same clock, so their ProducedAt values
// are comparable across senders.
type TransferEnvelopeFactory struct {
	clock    xclock.Clock
	senderID uuid.UUID
}

// NewTransferEnvelopeFactory constructs a factory stamping envelopes as
// produced by senderID, using clock for ProducedAt. clock may be nil, in
// which case xclock.Default() is used.
func NewTransferEnvelopeFactory(senderID uuid.UUID, clock xclock.Clock) *TransferEnvelopeFactory {
	if clock == nil {
		clock = xclock.Default()
	}
	return &TransferEnvelopeFactory{clock: clock, senderID: senderID}
}

// Create builds a TransferEnvelope for topic carrying msg, with an optional
// reply-to topic.
func (f *TransferEnvelopeFactory) Create(topic string, msg any, replyTo *string) TransferEnvelope {
	h := MessageHeader{
		id:         uuid.New(),
		topic:      topic,
		senderID:   f.senderID,
		producedAt: f.clock.Now(),
	}
	if replyTo != nil {
		h.replyTo = *replyTo
		h.hasReplyTo = true
	}
	return TransferEnvelope{Header: h, Message: msg}
}
