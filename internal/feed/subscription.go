package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/careerlink/notifications/internal/metrics"
	"github.com/careerlink/notifications/internal/model"
)

// Subscription is one session's live view of the change stream. Events are
// at-least-once and unordered; consumers must treat each one as a
// possibly-duplicate upsert.
type Subscription struct {
	userID   string
	channels []model.Channel

	events     chan model.ChangeEvent
	reconnects chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
	closeOnce  sync.Once
	log        *slog.Logger
}

func newSubscription(userID string, channels []model.Channel, cancel context.CancelFunc, log *slog.Logger) *Subscription {
	return &Subscription{
		userID:     userID,
		channels:   channels,
		events:     make(chan model.ChangeEvent, 64),
		reconnects: make(chan struct{}, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Events delivers the filtered change events. The channel is closed after
// Unsubscribe returns.
func (s *Subscription) Events() <-chan model.ChangeEvent {
	return s.events
}

// Reconnects signals every time the underlying consumer session is
// (re)established, including the first connect. Sessions use it to run a
// reconciliation pass, since events missed while disconnected cannot be
// recovered from the stream itself.
func (s *Subscription) Reconnects() <-chan struct{} {
	return s.reconnects
}

// Unsubscribe tears the subscription down and waits for its background work
// to finish. It is idempotent and always safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

// wants applies the visible-channel and ownership predicate. It must match
// the read API's predicate exactly; both sides derive their channel set from
// model.VisibleChannels.
func (s *Subscription) wants(ev model.ChangeEvent) bool {
	if ev.Row.UserID != s.userID {
		return false
	}
	for _, c := range s.channels {
		if ev.Row.Channel == c {
			return true
		}
	}
	return false
}

func (s *Subscription) deliver(ctx context.Context, ev model.ChangeEvent) {
	if !s.wants(ev) {
		return
	}
	select {
	case s.events <- ev:
		metrics.FeedEventsConsumed.WithLabelValues(string(ev.Type)).Inc()
	case <-ctx.Done():
	}
}

func (s *Subscription) signalReconnect() {
	select {
	case s.reconnects <- struct{}{}:
	default:
	}
}
