package model

import (
	"testing"
	"time"
)

func TestCursorEncodeDecode(t *testing.T) {
	created := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	c := Cursor{CreatedAt: created, ID: "n-5"}

	decoded, err := DecodeCursor(c.Encode())
	if err != nil {
		t.Fatalf("DecodeCursor() error = %v", err)
	}
	if !decoded.CreatedAt.Equal(created) || decoded.ID != "n-5" {
		t.Errorf("DecodeCursor() = %+v, want %+v", decoded, c)
	}
}

func TestDecodeCursorInvalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "not base64", token: "%%%"},
		{name: "not json", token: "bm90LWpzb24"},
		{name: "missing id", token: Cursor{CreatedAt: time.Now()}.Encode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCursor(tt.token); err == nil {
				t.Errorf("DecodeCursor(%q) expected error", tt.token)
			}
		})
	}
}

func TestNewerThan(t *testing.T) {
	base := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    Notification
		b    Notification
		want bool
	}{
		{
			name: "later timestamp wins",
			a:    Notification{ID: "1", CreatedAt: base.Add(time.Minute)},
			b:    Notification{ID: "9", CreatedAt: base},
			want: true,
		},
		{
			name: "earlier timestamp loses",
			a:    Notification{ID: "9", CreatedAt: base},
			b:    Notification{ID: "1", CreatedAt: base.Add(time.Minute)},
			want: false,
		},
		{
			name: "timestamp tie broken by id",
			a:    Notification{ID: "b", CreatedAt: base},
			b:    Notification{ID: "a", CreatedAt: base},
			want: true,
		},
		{
			name: "equal key is not newer",
			a:    Notification{ID: "a", CreatedAt: base},
			b:    Notification{ID: "a", CreatedAt: base},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewerThan(tt.a, tt.b); got != tt.want {
				t.Errorf("NewerThan() = %v, want %v", got, tt.want)
			}
		})
	}
}
