package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/careerlink/notifications/internal/feed"
	"github.com/careerlink/notifications/internal/merge"
	"github.com/careerlink/notifications/internal/middleware"
	"github.com/careerlink/notifications/internal/model"
)

// StreamHandler serves the merged per-session notification state over
// server-sent events: one snapshot on connect, then one on every change.
type StreamHandler struct {
	api    merge.ReadAPI
	feed   *feed.Feed
	logger *slog.Logger
}

func NewStreamHandler(api merge.ReadAPI, f *feed.Feed, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{api: api, feed: f, logger: logger}
}

// liveFeed adapts the Kafka feed to the merge engine's Feed contract.
type liveFeed struct {
	f *feed.Feed
}

func (l liveFeed) Subscribe(ctx context.Context, userID string, channels []model.Channel) (merge.Events, error) {
	return l.f.Subscribe(ctx, userID, channels)
}

type snapshotPayload struct {
	Items  []model.Notification `json:"items"`
	Unread int                  `json:"unread"`
}

// Stream serves GET /notifications/stream.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	session := merge.NewSession(h.api, liveFeed{h.feed}, userID, nil, h.logger)
	if err := session.Start(r.Context()); err != nil {
		h.logger.Error("failed to start stream session",
			slog.String("user_id", userID), slog.Any("error", err))
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}
	defer session.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSnapshot(w, session)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.Changes():
			writeSnapshot(w, session)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSnapshot(w http.ResponseWriter, session *merge.Session) {
	items, unread := session.Snapshot()
	data, err := json.Marshal(snapshotPayload{Items: items, Unread: unread})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
}
