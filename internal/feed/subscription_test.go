package feed

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/careerlink/notifications/internal/model"
)

func newTestSubscription(cancel context.CancelFunc) *Subscription {
	if cancel == nil {
		cancel = func() {}
	}
	return newSubscription("u1", model.VisibleChannels(nil), cancel, slog.New(slog.DiscardHandler))
}

func event(userID string, channel model.Channel) model.ChangeEvent {
	return model.ChangeEvent{
		Type: model.EventInsert,
		Row:  model.Notification{ID: "n1", UserID: userID, Channel: channel},
	}
}

func TestSubscriptionWants(t *testing.T) {
	sub := newTestSubscription(nil)

	tests := []struct {
		name string
		ev   model.ChangeEvent
		want bool
	}{
		{"own in_app row", event("u1", model.ChannelInApp), true},
		{"own both row", event("u1", model.ChannelBoth), true},
		{"own email-only row", event("u1", model.ChannelEmail), false},
		{"someone else's row", event("u2", model.ChannelInApp), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sub.wants(tt.ev))
		})
	}
}

func TestSubscriptionDeliverFilters(t *testing.T) {
	sub := newTestSubscription(nil)
	ctx := context.Background()

	sub.deliver(ctx, event("u2", model.ChannelInApp))
	sub.deliver(ctx, event("u1", model.ChannelEmail))
	sub.deliver(ctx, event("u1", model.ChannelInApp))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, "u1", ev.Row.UserID)
		assert.Equal(t, model.ChannelInApp, ev.Row.Channel)
	default:
		t.Fatal("expected one delivered event")
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestSubscriptionDeliverStopsOnCancelledContext(t *testing.T) {
	sub := newTestSubscription(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Fill the buffer so the send path would block.
	for i := 0; i < cap(sub.events); i++ {
		sub.events <- event("u1", model.ChannelInApp)
	}

	done := make(chan struct{})
	go func() {
		sub.deliver(ctx, event("u1", model.ChannelInApp))
		close(done)
	}()
	<-done
}

func TestSubscriptionUnsubscribeIsIdempotent(t *testing.T) {
	cancels := 0
	sub := newTestSubscription(func() { cancels++ })
	close(sub.done)

	sub.Unsubscribe()
	sub.Unsubscribe()

	assert.Equal(t, 1, cancels)
}

func TestSubscriptionReconnectSignalCoalesces(t *testing.T) {
	sub := newTestSubscription(nil)

	sub.signalReconnect()
	sub.signalReconnect()
	sub.signalReconnect()

	<-sub.Reconnects()
	select {
	case <-sub.Reconnects():
		t.Fatal("reconnect signals should coalesce into one")
	default:
	}
}
