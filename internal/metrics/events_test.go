package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConsumeDomainEventsIncrementsCounterPerTopic(t *testing.T) {
	pub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = ConsumeDomainEvents(ctx, pub, "epoch.opened", "epoch.closed")
		close(done)
	}()

	if err := pub.Publish("epoch.opened", message.NewMessage(watermill.NewUUID(), nil)); err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish("epoch.closed", message.NewMessage(watermill.NewUUID(), nil)); err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish("epoch.closed", message.NewMessage(watermill.NewUUID(), nil)); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		opened := testutil.ToFloat64(EventsConsumedTotal.WithLabelValues("epoch.opened"))
		closed := testutil.ToFloat64(EventsConsumedTotal.WithLabelValues("epoch.closed"))
		if opened >= 1 && closed >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for counters, got opened=%v closed=%v", opened, closed)
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
