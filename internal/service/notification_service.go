package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appErr "github.com/careerlink/notifications/internal/errors"
	"github.com/careerlink/notifications/internal/metrics"
	"github.com/careerlink/notifications/internal/middleware"
	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/store"
)

// DefaultPageSize is the page size used when the caller does not ask for one.
const DefaultPageSize = 20

// MaxPageSize caps a single page fetch.
const MaxPageSize = 100

// ListQuery is a caller-facing page request; the user id comes from the
// request context, never from the query itself.
type ListQuery struct {
	Limit    int
	Before   *model.Cursor
	Channels []model.Channel
}

// Page is one fetched page. NextCursor is nil at the end of the data.
type Page struct {
	Items      []model.Notification
	NextCursor *model.Cursor
}

// ChangePublisher publishes row-level change events to the live feed topic.
type ChangePublisher interface {
	Publish(ctx context.Context, ev model.ChangeEvent) error
}

// CreateInput is the upstream producer contract for inserting a row.
type CreateInput struct {
	UserID    string
	Title     string
	Message   string
	Type      string
	RelatedID string
	URL       string
	Channel   model.Channel
	SendAfter *time.Time
}

// NotificationService is the read API plus the insertion boundary. Every
// operation is scoped to the authenticated caller except Create, which is
// invoked by trusted upstream producers.
type NotificationService interface {
	List(ctx context.Context, q ListQuery) (*Page, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) (int, error)
	// MarkPageRead transitions the unread rows of one displayed page as a
	// single batch and returns how many actually changed.
	MarkPageRead(ctx context.Context, ids []string) (int, error)
	Create(ctx context.Context, in CreateInput) (*model.Notification, error)
}

type notificationService struct {
	store     store.NotificationStore
	publisher ChangePublisher
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewNotificationService(st store.NotificationStore, publisher ChangePublisher, logger *slog.Logger) NotificationService {
	l := logger.With("layer", "service", "component", "notificationService")
	return &notificationService{
		store:     st,
		publisher: publisher,
		logger:    l,
		tracer:    otel.Tracer("notification-service"),
	}
}

func getUserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return "", appErr.NewUnauthorized("context missing user_id")
	}
	return userID, nil
}

func (s *notificationService) List(ctx context.Context, q ListQuery) (*Page, error) {
	ctx, span := s.tracer.Start(ctx, "List")
	defer span.End()

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	items, err := s.store.List(ctx, store.ListQuery{
		UserID:   userID,
		Limit:    limit,
		Before:   q.Before,
		Channels: model.VisibleChannels(q.Channels),
	})
	if err != nil {
		s.logger.Error("failed to list notifications",
			slog.String("user_id", userID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, appErr.NewInternal("failed to list notifications: %v", err)
	}

	page := &Page{Items: items}
	if len(items) == limit {
		c := model.CursorOf(items[len(items)-1])
		page.NextCursor = &c
	}

	span.SetAttributes(attribute.Int("notifications.count", len(items)))
	return page, nil
}

func (s *notificationService) UnreadCount(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "UnreadCount")
	defer span.End()

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return 0, err
	}

	count, err := s.store.CountUnread(ctx, userID, model.VisibleChannels(nil))
	if err != nil {
		s.logger.Error("failed to count unread notifications",
			slog.String("user_id", userID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, appErr.NewInternal("failed to count unread notifications: %v", err)
	}
	return count, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "MarkRead")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", id))

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return err
	}

	n, changed, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		if appErr.IsNotFound(err) {
			s.logger.Warn("notification not found for mark read",
				slog.String("id", id), slog.String("user_id", userID))
			return err
		}
		s.logger.Error("failed to mark notification read",
			slog.String("id", id), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return appErr.NewInternal("failed to mark notification read: %v", err)
	}

	// Already-read rows are a no-op success and publish nothing, so a
	// repeated call can never double-decrement anyone's unread counter.
	if changed {
		s.publishUpdate(ctx, *n)
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "MarkAllRead")
	defer span.End()

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return 0, err
	}

	changedRows, err := s.store.MarkAllRead(ctx, userID, model.VisibleChannels(nil))
	if err != nil {
		s.logger.Error("failed to mark all notifications read",
			slog.String("user_id", userID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, appErr.NewInternal("failed to mark all notifications read: %v", err)
	}

	for _, n := range changedRows {
		s.publishUpdate(ctx, n)
	}
	s.logger.Info("marked all notifications read",
		slog.String("user_id", userID), slog.Int("count", len(changedRows)))
	return len(changedRows), nil
}

func (s *notificationService) MarkPageRead(ctx context.Context, ids []string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "MarkPageRead")
	defer span.End()

	userID, err := getUserIDFromContext(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	changedRows, err := s.store.MarkManyRead(ctx, userID, ids)
	if err != nil {
		s.logger.Error("failed to mark page read",
			slog.String("user_id", userID), slog.Int("ids", len(ids)), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, appErr.NewInternal("failed to mark page read: %v", err)
	}

	for _, n := range changedRows {
		s.publishUpdate(ctx, n)
	}
	return len(changedRows), nil
}

func (s *notificationService) Create(ctx context.Context, in CreateInput) (*model.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "Create")
	defer span.End()

	if in.UserID == "" || in.Title == "" || in.Message == "" {
		return nil, appErr.NewInvalid("user_id, title and message are required")
	}
	channel := in.Channel
	if channel == "" {
		channel = model.ChannelInApp
	}
	if !channel.Valid() {
		return nil, appErr.NewInvalid("unknown channel %q", channel)
	}

	n := &model.Notification{
		ID:         uuid.New().String(),
		UserID:     in.UserID,
		Title:      in.Title,
		Message:    in.Message,
		Type:       in.Type,
		RelatedID:  in.RelatedID,
		URL:        in.URL,
		Channel:    channel,
		SendStatus: model.SendPending,
		SendAfter:  in.SendAfter,
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("user_id", in.UserID), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, appErr.NewInternal("failed to create notification: %v", err)
	}

	s.publish(ctx, model.ChangeEvent{Type: model.EventInsert, Row: *n})
	s.logger.Info("notification created",
		slog.String("id", n.ID),
		slog.String("user_id", n.UserID),
		slog.String("channel", string(n.Channel)))
	span.SetAttributes(attribute.String("notification.id", n.ID))
	return n, nil
}

func (s *notificationService) publishUpdate(ctx context.Context, n model.Notification) {
	s.publish(ctx, model.ChangeEvent{Type: model.EventUpdate, Row: n})
}

// publish is best effort: the store is authoritative and sessions repair any
// missed event on their next reconcile, so a publish failure is logged and
// never surfaced to the caller.
func (s *notificationService) publish(ctx context.Context, ev model.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Error("failed to publish change event",
			slog.String("type", string(ev.Type)),
			slog.String("id", ev.Row.ID),
			slog.Any("error", err))
		return
	}
	metrics.ChangeEventsPublished.WithLabelValues(string(ev.Type)).Inc()
}
