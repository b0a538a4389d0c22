package reconcile

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Domain event topics published after a notification commits (SPEC_FULL.md
// §6.bis). In-process only — no NATS/Kafka transport is wired, matching
// spec.md's non-goal of real-time streaming out. Grounded on the teacher's
// eventbus.go ring buffer, generalized to use watermill's gochannel pubsub
// instead of a hand-rolled ring.
const (
	TopicEpochOpened   = "epoch.opened"
	TopicEpochClosed   = "epoch.closed"
	TopicSessionClosed = "session.closed"
)

// eventBus wraps a watermill gochannel pubsub for fire-and-forget internal
// notifications (metrics collectors, debug tooling) about state the engine
// just committed. Publish errors are discarded, never surfaced to Ingest's
// caller — the domain event bus is observability, not part of the
// transaction.
type eventBus struct {
	pub *gochannel.GoChannel
}

func newEventBus() *eventBus {
	pub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermill.NewStdLogger(false, false),
	)
	return &eventBus{pub: pub}
}

// Subscriber exposes the underlying gochannel so internal/metrics or
// internal/api can subscribe to domain events without importing watermill
// directly in this package's public surface.
func (b *eventBus) Subscriber() message.Subscriber {
	return b.pub
}

func (b *eventBus) publish(topic string, payload []byte) {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	// gochannel.Publish only errors if the bus is closed; the engine
	// doesn't hold a reference past Close, so this is safe to ignore.
	_ = b.pub.Publish(topic, msg)
}

func (b *eventBus) Close() error {
	return b.pub.Close()
}
