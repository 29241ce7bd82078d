package model

import "time"

// Channel classifies the delivery medium of a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelBoth  Channel = "both"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	return c == ChannelInApp || c == ChannelEmail || c == ChannelBoth
}

// InAppVisible reports whether rows on this channel show up in in-app
// surfaces (badge, list, live feed).
func (c Channel) InAppVisible() bool {
	return c == ChannelInApp || c == ChannelBoth
}

// NeedsDispatch reports whether rows on this channel require out-of-band
// email delivery.
func (c Channel) NeedsDispatch() bool {
	return c == ChannelEmail || c == ChannelBoth
}

// SendStatus tracks the out-of-band delivery outcome. It is independent of
// the read state.
type SendStatus string

const (
	SendPending SendStatus = "pending"
	SendSent    SendStatus = "sent"
	SendFailed  SendStatus = "failed"
)

// Notification is one persisted user-facing alert.
type Notification struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Title       string     `db:"title" json:"title"`
	Message     string     `db:"message" json:"message"`
	Type        string     `db:"notification_type" json:"notification_type"`
	RelatedID   string     `db:"related_id" json:"related_id,omitempty"`
	URL         string     `db:"url" json:"url,omitempty"`
	Channel     Channel    `db:"channel" json:"channel"`
	IsRead      bool       `db:"is_read" json:"is_read"`
	SendStatus  SendStatus `db:"send_status" json:"send_status"`
	ErrorReason string     `db:"error_reason" json:"error_reason,omitempty"`
	SendAfter   *time.Time `db:"send_after" json:"send_after,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// VisibleChannels sanitizes a requested channel filter down to channels that
// are visible in-app. An empty or nil request means the default predicate
// {in_app, both}. Both the read queries and the live feed filter go through
// this function so the badge count and the list can never disagree about
// which rows are relevant.
func VisibleChannels(requested []Channel) []Channel {
	if len(requested) == 0 {
		return []Channel{ChannelInApp, ChannelBoth}
	}
	out := make([]Channel, 0, len(requested))
	for _, c := range requested {
		if c.Valid() && c.InAppVisible() && !containsChannel(out, c) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return []Channel{ChannelInApp, ChannelBoth}
	}
	return out
}

func containsChannel(set []Channel, c Channel) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

// ChannelStrings converts a channel set for use as a SQL array parameter.
func ChannelStrings(channels []Channel) []string {
	out := make([]string, len(channels))
	for i, c := range channels {
		out[i] = string(c)
	}
	return out
}
