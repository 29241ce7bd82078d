// Package merge reconciles paginated snapshots with the live change feed
// into one consistent, ordered, deduplicated per-session view.
package merge

import (
	"sort"

	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/service"
)

// View is the canonical client-side state: a sequence unique by id, ordered
// by (created_at DESC, id DESC), plus a tracked unread counter. The counter
// is responsive, not authoritative; it is corrected by SetUnread during
// reconciliation. View is not safe for concurrent use; Session serializes
// access.
type View struct {
	rows       []model.Notification
	index      map[string]int
	nextCursor *model.Cursor
	exhausted  bool
	unread     int
}

func NewView() *View {
	return &View{index: make(map[string]int)}
}

// AppendPage merges one fetched page and records its pagination position.
// Rows already held (a live insert can race the page that contains it) are
// refreshed in place, the store being authoritative over any cached guess.
func (v *View) AppendPage(p *service.Page) {
	if p == nil {
		return
	}
	for _, n := range p.Items {
		v.upsert(n)
	}
	v.nextCursor = p.NextCursor
	v.exhausted = p.NextCursor == nil
}

// Apply folds one live change event into the view.
func (v *View) Apply(ev model.ChangeEvent) {
	switch ev.Type {
	case model.EventInsert:
		v.applyInsert(ev.Row)
	case model.EventUpdate:
		v.applyUpdate(ev.Row)
	}
}

func (v *View) applyInsert(n model.Notification) {
	if _, ok := v.index[n.ID]; ok {
		// Duplicate delivery from reconnect replay.
		return
	}
	v.insertSorted(n)
	if !n.IsRead {
		v.unread++
	}
}

func (v *View) applyUpdate(n model.Notification) {
	idx, ok := v.index[n.ID]
	if !ok {
		// Never materialize a ghost row for content not yet paginated into
		// view; the row picks up its latest fields when its page is fetched.
		return
	}
	old := v.rows[idx]
	if !old.IsRead && n.IsRead {
		v.decUnread()
	}
	// The ordering key is immutable post-creation, so the row's position
	// never moves.
	n.CreatedAt = old.CreatedAt
	n.ID = old.ID
	v.rows[idx] = n
}

// Reconcile folds a fresh authoritative first page and unread count into the
// view after a disconnection, without disturbing the pagination position.
func (v *View) Reconcile(p *service.Page, unread int) {
	if p != nil {
		for _, n := range p.Items {
			v.upsert(n)
		}
	}
	v.unread = unread
}

// upsert refreshes a held row's fields or inserts an absent row at its
// sorted position.
func (v *View) upsert(n model.Notification) {
	if idx, ok := v.index[n.ID]; ok {
		old := v.rows[idx]
		if !old.IsRead && n.IsRead {
			v.decUnread()
		}
		v.rows[idx] = n
		return
	}
	v.insertSorted(n)
}

// insertSorted places n at the position implied by (created_at DESC, id
// DESC). The common case is the head, but a retroactive insert with an older
// timestamp lands at its correct position, never blindly prepended.
func (v *View) insertSorted(n model.Notification) {
	pos := sort.Search(len(v.rows), func(i int) bool {
		return !model.NewerThan(v.rows[i], n)
	})
	v.rows = append(v.rows, model.Notification{})
	copy(v.rows[pos+1:], v.rows[pos:])
	v.rows[pos] = n
	for i := pos; i < len(v.rows); i++ {
		v.index[v.rows[i].ID] = i
	}
}

func (v *View) decUnread() {
	if v.unread > 0 {
		v.unread--
	}
}

// SetUnread overwrites the tracked counter with an authoritative count.
func (v *View) SetUnread(count int) {
	if count < 0 {
		count = 0
	}
	v.unread = count
}

// Rows returns a copy of the ordered sequence.
func (v *View) Rows() []model.Notification {
	out := make([]model.Notification, len(v.rows))
	copy(out, v.rows)
	return out
}

// Unread returns the tracked unread counter.
func (v *View) Unread() int {
	return v.unread
}

// NextCursor returns the position for the next page fetch, nil when the end
// of the data has been reached.
func (v *View) NextCursor() *model.Cursor {
	return v.nextCursor
}

// Exhausted reports whether every page has been fetched.
func (v *View) Exhausted() bool {
	return v.exhausted
}
