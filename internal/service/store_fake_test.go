package service

import (
	"context"
	"sort"
	"sync"
	"time"

	appErr "github.com/careerlink/notifications/internal/errors"
	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/store"
)

// memStore is an in-memory NotificationStore with the same ordering and
// guard semantics as the Postgres implementation.
type memStore struct {
	mu      sync.Mutex
	rows    map[string]*model.Notification
	claimed map[string]bool
	now     time.Time

	listErr error
}

func newMemStore() *memStore {
	return &memStore{
		rows:    make(map[string]*model.Notification),
		claimed: make(map[string]bool),
		now:     time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC),
	}
}

// seed inserts a row with a created_at one second later than the previous
// seed, so insertion order is oldest-first.
func (m *memStore) seed(n model.Notification) model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.CreatedAt.IsZero() {
		m.now = m.now.Add(time.Second)
		n.CreatedAt = m.now
	}
	if n.Channel == "" {
		n.Channel = model.ChannelInApp
	}
	if n.SendStatus == "" {
		n.SendStatus = model.SendPending
	}
	cp := n
	m.rows[n.ID] = &cp
	return n
}

func (m *memStore) get(id string) model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memStore) Create(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Second)
	n.CreatedAt = m.now
	cp := *n
	m.rows[n.ID] = &cp
	return nil
}

func channelMatch(c model.Channel, channels []model.Channel) bool {
	for _, want := range channels {
		if c == want {
			return true
		}
	}
	return false
}

func (m *memStore) List(ctx context.Context, q store.ListQuery) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []model.Notification
	for _, r := range m.rows {
		if r.UserID != q.UserID || !channelMatch(r.Channel, q.Channels) {
			continue
		}
		if q.Before != nil {
			cur := model.CursorOf(*r)
			// Strictly older than the cursor under the composite key.
			if !model.NewerThan(model.Notification{CreatedAt: q.Before.CreatedAt, ID: q.Before.ID},
				model.Notification{CreatedAt: cur.CreatedAt, ID: cur.ID}) {
				continue
			}
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return model.NewerThan(out[i], out[j])
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) CountUnread(ctx context.Context, userID string, channels []model.Channel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, r := range m.rows {
		if r.UserID == userID && !r.IsRead && channelMatch(r.Channel, channels) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MarkRead(ctx context.Context, userID, id string) (*model.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.UserID != userID {
		return nil, false, appErr.NewNotFound("notification %s not found", id)
	}
	if r.IsRead {
		cp := *r
		return &cp, false, nil
	}
	r.IsRead = true
	cp := *r
	return &cp, true, nil
}

func (m *memStore) MarkAllRead(ctx context.Context, userID string, channels []model.Channel) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []model.Notification
	for _, r := range m.rows {
		if r.UserID == userID && !r.IsRead && channelMatch(r.Channel, channels) {
			r.IsRead = true
			changed = append(changed, *r)
		}
	}
	return changed, nil
}

func (m *memStore) MarkManyRead(ctx context.Context, userID string, ids []string) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed []model.Notification
	for _, id := range ids {
		r, ok := m.rows[id]
		if !ok || r.UserID != userID || r.IsRead {
			continue
		}
		r.IsRead = true
		changed = append(changed, *r)
	}
	return changed, nil
}

func (m *memStore) PendingDispatch(ctx context.Context, limit int) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, r := range m.rows {
		if r.SendStatus != model.SendPending || m.claimed[r.ID] || !r.Channel.NeedsDispatch() {
			continue
		}
		if r.SendAfter != nil && r.SendAfter.After(m.now) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		return model.NewerThan(out[j], out[i])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	// The fetch is the claim.
	for _, r := range out {
		m.claimed[r.ID] = true
	}
	return out, nil
}

func (m *memStore) ReleaseDispatch(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok && r.SendStatus == model.SendPending {
		delete(m.claimed, id)
	}
	return nil
}

func (m *memStore) MarkDispatched(ctx context.Context, id string, status model.SendStatus, reason string) (*model.Notification, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.SendStatus != model.SendPending {
		// Terminal states stick.
		return nil, false, nil
	}
	r.SendStatus = status
	r.ErrorReason = reason
	delete(m.claimed, id)
	cp := *r
	return &cp, true, nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

// recordingPublisher captures every published change event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, ev model.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []model.ChangeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ChangeEvent, len(p.events))
	copy(out, p.events)
	return out
}
