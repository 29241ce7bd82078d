package model

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor marks a pagination boundary in the composite ordering
// (created_at DESC, id DESC). A page fetched with a cursor contains only rows
// strictly older than the cursor position.
type Cursor struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}

// CursorOf returns the cursor positioned at n.
func CursorOf(n Notification) Cursor {
	return Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a token produced by Encode.
func DecodeCursor(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	if c.ID == "" {
		return Cursor{}, fmt.Errorf("invalid cursor: missing id")
	}
	return c, nil
}

// NewerThan reports whether a sorts strictly before b in view order, i.e. a
// is newer by created_at with id as the deterministic tie breaker.
func NewerThan(a, b Notification) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
