package merge

import (
	"testing"
	"time"

	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/service"
)

var viewBase = time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

func row(id string, offset time.Duration, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		UserID:    "u1",
		Title:     "t-" + id,
		Channel:   model.ChannelInApp,
		IsRead:    read,
		CreatedAt: viewBase.Add(offset),
	}
}

func ids(rows []model.Notification) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pageOf(next *model.Cursor, rows ...model.Notification) *service.Page {
	return &service.Page{Items: rows, NextCursor: next}
}

func TestViewInsertAtHead(t *testing.T) {
	v := NewView()
	v.AppendPage(pageOf(nil, row("a", -time.Minute, true), row("b", -2*time.Minute, true)))

	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: row("z", time.Minute, false)})

	if got := ids(v.Rows()); !equalIDs(got, []string{"z", "a", "b"}) {
		t.Errorf("rows = %v, want [z a b]", got)
	}
	if v.Unread() != 1 {
		t.Errorf("unread = %d, want 1", v.Unread())
	}
}

func TestViewRetroactiveInsertIsSorted(t *testing.T) {
	// W's timestamp falls between the held rows; a blind prepend would break
	// the global ordering invariant.
	v := NewView()
	cursor := model.Cursor{CreatedAt: viewBase.Add(-2 * time.Minute), ID: "b"}
	v.AppendPage(pageOf(&cursor, row("a", -time.Minute, true), row("b", -2*time.Minute, true)))

	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: row("w", -90*time.Second, false)})

	if got := ids(v.Rows()); !equalIDs(got, []string{"a", "w", "b"}) {
		t.Errorf("rows = %v, want [a w b]", got)
	}
}

func TestViewDuplicateInsertIsNoOp(t *testing.T) {
	v := NewView()
	a := row("a", 0, false)
	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: a})
	before := v.Rows()
	unread := v.Unread()

	// Reconnect replay delivers the same event again.
	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: a})

	if got := v.Rows(); len(got) != len(before) {
		t.Errorf("rows = %d, want %d", len(got), len(before))
	}
	if v.Unread() != unread {
		t.Errorf("unread = %d, want %d", v.Unread(), unread)
	}
}

func TestViewUpdateForAbsentIDIsNoOp(t *testing.T) {
	v := NewView()
	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: row("a", 0, false)})

	ghost := row("ghost", -time.Hour, true)
	v.Apply(model.ChangeEvent{Type: model.EventUpdate, Row: ghost})

	if got := ids(v.Rows()); !equalIDs(got, []string{"a"}) {
		t.Errorf("rows = %v, want [a]; the engine must not materialize ghost rows", got)
	}
	if v.Unread() != 1 {
		t.Errorf("unread = %d, want 1", v.Unread())
	}

	// Once the row's page is fetched, its fields reflect the store, not any
	// earlier cached guess.
	v.AppendPage(pageOf(nil, ghost))
	rows := v.Rows()
	if rows[len(rows)-1].ID != "ghost" || !rows[len(rows)-1].IsRead {
		t.Errorf("fetched page should surface the store's latest row state")
	}
}

func TestViewUpdateReplacesInPlace(t *testing.T) {
	v := NewView()
	a := row("a", 0, false)
	b := row("b", -time.Minute, false)
	v.AppendPage(pageOf(nil, a, b))
	v.SetUnread(2)

	updated := a
	updated.IsRead = true
	updated.Title = "changed"
	// A stale ordering key on the event must not move the row.
	updated.CreatedAt = viewBase.Add(-time.Hour)
	v.Apply(model.ChangeEvent{Type: model.EventUpdate, Row: updated})

	rows := v.Rows()
	if !equalIDs(ids(rows), []string{"a", "b"}) {
		t.Fatalf("rows = %v, want [a b]; position must not change on update", ids(rows))
	}
	if rows[0].Title != "changed" || !rows[0].IsRead {
		t.Errorf("row fields were not replaced: %+v", rows[0])
	}
	if !rows[0].CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("ordering key must stay immutable")
	}
	if v.Unread() != 1 {
		t.Errorf("unread = %d, want 1 after read transition", v.Unread())
	}
}

func TestViewUnreadNeverNegative(t *testing.T) {
	v := NewView()
	a := row("a", 0, false)
	v.AppendPage(pageOf(nil, a))
	// Counter was never initialized from the authoritative count.

	read := a
	read.IsRead = true
	v.Apply(model.ChangeEvent{Type: model.EventUpdate, Row: read})
	v.Apply(model.ChangeEvent{Type: model.EventUpdate, Row: read})

	if v.Unread() != 0 {
		t.Errorf("unread = %d, want 0", v.Unread())
	}
}

func TestViewPageAppendDeduplicates(t *testing.T) {
	// A live insert raced pagination: the row is already held when its page
	// arrives.
	v := NewView()
	cursor := model.Cursor{CreatedAt: viewBase, ID: "a"}
	v.AppendPage(pageOf(&cursor, row("a", 0, true)))
	v.Apply(model.ChangeEvent{Type: model.EventInsert, Row: row("w", -30*time.Second, false)})

	v.AppendPage(pageOf(nil, row("w", -30*time.Second, false), row("c", -time.Minute, true)))

	if got := ids(v.Rows()); !equalIDs(got, []string{"a", "w", "c"}) {
		t.Errorf("rows = %v, want [a w c] with no duplicate w", got)
	}
	if !v.Exhausted() {
		t.Error("view should be exhausted after a short page")
	}
}

func TestViewReconcileCorrectsCounter(t *testing.T) {
	v := NewView()
	v.AppendPage(pageOf(nil, row("a", 0, false)))
	v.SetUnread(1)

	// While disconnected the store gained a row and 'a' was read elsewhere.
	fresh := row("a", 0, true)
	newRow := row("z", time.Minute, false)
	v.Reconcile(pageOf(nil, newRow, fresh), 1)

	if got := ids(v.Rows()); !equalIDs(got, []string{"z", "a"}) {
		t.Errorf("rows = %v, want [z a]", got)
	}
	if v.Unread() != 1 {
		t.Errorf("unread = %d, want authoritative 1", v.Unread())
	}
	if rows := v.Rows(); !rows[1].IsRead {
		t.Error("reconcile must refresh held rows from the store")
	}
}
