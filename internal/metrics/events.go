package metrics

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"golang.org/x/sync/errgroup"
)

// ConsumeDomainEvents subscribes to sub on each of topics and keeps
// EventsConsumedTotal current (SPEC_FULL.md §6.bis). Each message is acked
// immediately: this is a metrics tap, not a durable consumer, so there is
// nothing to gain by withholding the ack. Blocks until ctx is cancelled or a
// subscription errors; callers run it in its own goroutine.
func ConsumeDomainEvents(ctx context.Context, sub message.Subscriber, topics ...string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-messages:
					if !ok {
						return nil
					}
					EventsConsumedTotal.WithLabelValues(topic).Inc()
					msg.Ack()
				}
			}
		})
	}
	return g.Wait()
}
