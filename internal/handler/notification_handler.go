package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	appErr "github.com/careerlink/notifications/internal/errors"
	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/service"
)

type NotificationHandler struct {
	svc    service.NotificationService
	logger *slog.Logger
}

func NewNotificationHandler(svc service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

type listResponse struct {
	Items      []model.Notification `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// List serves GET /notifications?limit=&before=&channels=.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	q := service.ListQuery{}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}
	if v := r.URL.Query().Get("before"); v != "" {
		cursor, err := model.DecodeCursor(v)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		q.Before = &cursor
	}
	if v := r.URL.Query().Get("channels"); v != "" {
		for _, c := range strings.Split(v, ",") {
			q.Channels = append(q.Channels, model.Channel(c))
		}
	}

	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	resp := listResponse{Items: page.Items}
	if page.NextCursor != nil {
		resp.NextCursor = page.NextCursor.Encode()
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnreadCount serves GET /notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.UnreadCount(r.Context())
	if err != nil {
		h.writeError(w, "UnreadCount", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead serves PUT /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "notification id required", http.StatusBadRequest)
		return
	}

	if err := h.svc.MarkRead(r.Context(), id); err != nil {
		h.writeError(w, "MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// MarkAllRead serves PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.MarkAllRead(r.Context())
	if err != nil {
		h.writeError(w, "MarkAllRead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkPageRead serves PUT /notifications/read with the ids of the rows a
// surface just displayed.
func (h *NotificationHandler) MarkPageRead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	count, err := h.svc.MarkPageRead(r.Context(), body.IDs)
	if err != nil {
		h.writeError(w, "MarkPageRead", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

type createRequest struct {
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Type      string     `json:"notification_type"`
	RelatedID string     `json:"related_id"`
	URL       string     `json:"url"`
	Channel   string     `json:"channel"`
	SendAfter *time.Time `json:"send_after"`
}

// Create serves POST /internal/notifications, the upstream producer
// boundary.
func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	n, err := h.svc.Create(r.Context(), service.CreateInput{
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		RelatedID: req.RelatedID,
		URL:       req.URL,
		Channel:   model.Channel(req.Channel),
		SendAfter: req.SendAfter,
	})
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case appErr.IsNotFound(err):
		h.logger.Warn(op+" target not found", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusNotFound)
	case appErr.IsUnauthorized(err):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case appErr.IsInvalid(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
