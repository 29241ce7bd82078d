package merge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/service"
)

// ReadAPI is the authoritative pull side of a session.
type ReadAPI interface {
	List(ctx context.Context, q service.ListQuery) (*service.Page, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Events is one live subscription as a session sees it.
type Events interface {
	Events() <-chan model.ChangeEvent
	Reconnects() <-chan struct{}
	Unsubscribe()
}

// Feed opens live subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, userID string, channels []model.Channel) (Events, error)
}

// Session owns one user's merged notification state for the lifetime of a
// connection: it loads pages on demand, folds live events in as they arrive,
// and repairs drift after every reconnect with an authoritative unread count
// and a fresh first page.
type Session struct {
	userID   string
	channels []model.Channel
	pageSize int
	api      ReadAPI
	feed     Feed
	log      *slog.Logger

	mu   sync.Mutex
	view *View

	sub       Events
	changes   chan struct{}
	closeOnce sync.Once
}

func NewSession(api ReadAPI, feed Feed, userID string, channels []model.Channel, log *slog.Logger) *Session {
	return &Session{
		userID:   userID,
		channels: model.VisibleChannels(channels),
		pageSize: service.DefaultPageSize,
		api:      api,
		feed:     feed,
		log:      log.With("component", "mergeSession", "user_id", userID),
		view:     NewView(),
		changes:  make(chan struct{}, 1),
	}
}

// Start subscribes to the live feed, then loads the initial state. The
// session's background work stops when ctx is cancelled or Close is called.
func (s *Session) Start(ctx context.Context) error {
	// Subscribing first closes the gap between the initial page fetch and
	// the consumer session being established: rows created in that window
	// are repaired by the reconcile the first connect signal triggers.
	sub, err := s.feed.Subscribe(ctx, s.userID, s.channels)
	if err != nil {
		return err
	}
	s.sub = sub

	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		sub.Unsubscribe()
		return err
	}
	page, err := s.api.List(ctx, service.ListQuery{Limit: s.pageSize, Channels: s.channels})
	if err != nil {
		sub.Unsubscribe()
		return err
	}

	s.mu.Lock()
	s.view.AppendPage(page)
	s.view.SetUnread(count)
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *Session) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.sub.Events():
			if !ok {
				return
			}
			s.mu.Lock()
			s.view.Apply(ev)
			s.mu.Unlock()
			s.notify()
		case <-s.sub.Reconnects():
			// Every connect signal, the first included, runs a repair pass:
			// events before the consumer session was established cannot be
			// recovered from the stream itself.
			s.reconcile(ctx)
		}
	}
}

// reconcile repairs state drift accumulated while disconnected. On failure
// the existing state is left untouched: no update this cycle.
func (s *Session) reconcile(ctx context.Context) {
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		s.log.Warn("reconcile skipped, unread count unavailable", slog.Any("error", err))
		return
	}
	page, err := s.api.List(ctx, service.ListQuery{Limit: s.pageSize, Channels: s.channels})
	if err != nil {
		s.log.Warn("reconcile skipped, first page unavailable", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.view.Reconcile(page, count)
	s.mu.Unlock()
	s.notify()
	s.log.Info("session reconciled", slog.Int("unread", count))
}

// LoadMore fetches the next page below the current pagination position.
func (s *Session) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	exhausted := s.view.Exhausted()
	cursor := s.view.NextCursor()
	s.mu.Unlock()
	if exhausted {
		return nil
	}

	page, err := s.api.List(ctx, service.ListQuery{
		Limit:    s.pageSize,
		Before:   cursor,
		Channels: s.channels,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.view.AppendPage(page)
	s.mu.Unlock()
	s.notify()
	return nil
}

// Snapshot returns the merged rows and the tracked unread count.
func (s *Session) Snapshot() ([]model.Notification, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.Rows(), s.view.Unread()
}

// Changes signals, coalesced, whenever the merged state moved.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

// Close tears down the subscription. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			s.sub.Unsubscribe()
		}
	})
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
