package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	appErr "github.com/careerlink/notifications/internal/errors"
	"github.com/careerlink/notifications/internal/metrics"
	"github.com/careerlink/notifications/internal/model"
	"github.com/careerlink/notifications/internal/store"
)

// ReasonRecipientNotFound is the terminal error_reason recorded when the
// recipient lookup resolves to nobody. Repeating the lookup cannot change the
// outcome, so the row fails permanently instead of staying pending.
const ReasonRecipientNotFound = "recipient not found"

// RecipientResolver resolves a user id to a deliverable email address.
type RecipientResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// Mailer hands one notification to the mail provider.
type Mailer interface {
	Send(ctx context.Context, to string, n *model.Notification) error
}

// DispatchService drives out-of-band email delivery for rows whose channel
// requires it. It runs decoupled from the request path and only ever touches
// send_status and error_reason.
type DispatchService interface {
	// Start runs the dispatch loop until the context is cancelled.
	Start(ctx context.Context) error
	// Dispatch performs the single delivery attempt for one row.
	Dispatch(ctx context.Context, n *model.Notification) error
}

type dispatchService struct {
	store       store.NotificationStore
	resolver    RecipientResolver
	mailer      Mailer
	publisher   ChangePublisher
	workerLimit int
	interval    time.Duration
	batchSize   int
	l           *slog.Logger
}

func NewDispatchService(
	st store.NotificationStore,
	resolver RecipientResolver,
	mailer Mailer,
	publisher ChangePublisher,
	workerLimit int,
	interval time.Duration,
	batchSize int,
	logger *slog.Logger,
) DispatchService {
	return &dispatchService{
		store:       st,
		resolver:    resolver,
		mailer:      mailer,
		publisher:   publisher,
		workerLimit: workerLimit,
		interval:    interval,
		batchSize:   batchSize,
		l:           logger.With("layer", "service", "component", "dispatchService"),
	}
}

// Start begins periodic processing of pending email rows.
func (s *dispatchService) Start(ctx context.Context) error {
	s.l.InfoContext(ctx, "Starting dispatch worker", slog.Int("max_workers", s.workerLimit))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.l.InfoContext(ctx, "Dispatch service shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.processBatch(ctx); err != nil {
				s.l.Error("Error processing dispatch batch", slog.Any("error", err))
			}
		}
	}
}

// processBatch fetches due pending rows and dispatches them concurrently.
func (s *dispatchService) processBatch(ctx context.Context) error {
	notifs, err := s.store.PendingDispatch(ctx, s.batchSize)
	if err != nil {
		s.l.ErrorContext(ctx, "Error fetching pending dispatches", slog.Any("error", err))
		return err
	}
	if len(notifs) == 0 {
		return nil
	}

	s.l.InfoContext(ctx, "Processing dispatch batch", slog.Int("count", len(notifs)))

	// Outcomes are per-row, never batch-fatal: one row's transient failure
	// must not cancel its siblings mid-send, so the group carries no shared
	// context.
	var eg errgroup.Group
	eg.SetLimit(s.workerLimit)

	for _, notif := range notifs {
		notif := notif
		eg.Go(func() error {
			return s.Dispatch(ctx, &notif)
		})
	}
	return eg.Wait()
}

// Dispatch performs at most one delivery attempt and records the terminal
// outcome. There is no retry loop here: re-delivery is a separate
// reconciliation concern that would enqueue a fresh attempt.
func (s *dispatchService) Dispatch(ctx context.Context, n *model.Notification) error {
	if !n.Channel.NeedsDispatch() || n.SendStatus != model.SendPending {
		return nil
	}

	to, err := s.resolver.Resolve(ctx, n.UserID)
	if err != nil {
		if appErr.IsNotFound(err) {
			// Permanent: the lookup result will not change.
			return s.finish(ctx, n, model.SendFailed, ReasonRecipientNotFound)
		}
		// The directory was unreachable; no attempt was made. Releasing the
		// claim puts the row back in front of the next tick.
		s.l.ErrorContext(ctx, "Recipient lookup failed",
			slog.String("id", n.ID), slog.String("user_id", n.UserID), slog.Any("error", err))
		if relErr := s.store.ReleaseDispatch(ctx, n.ID); relErr != nil {
			s.l.ErrorContext(ctx, "Failed to release dispatch claim",
				slog.String("id", n.ID), slog.Any("error", relErr))
		}
		return err
	}

	start := time.Now()
	if err := s.mailer.Send(ctx, to, n); err != nil {
		s.l.ErrorContext(ctx, "Email dispatch failed",
			slog.String("id", n.ID), slog.Any("error", err))
		// Provider error captured verbatim for operational inspection.
		return s.finish(ctx, n, model.SendFailed, err.Error())
	}

	s.l.InfoContext(ctx, "Email dispatch succeeded",
		slog.String("id", n.ID),
		slog.Duration("duration", time.Since(start)))
	return s.finish(ctx, n, model.SendSent, "")
}

func (s *dispatchService) finish(ctx context.Context, n *model.Notification, status model.SendStatus, reason string) error {
	updated, changed, err := s.store.MarkDispatched(ctx, n.ID, status, reason)
	if err != nil {
		s.l.ErrorContext(ctx, "Failed to record dispatch outcome",
			slog.String("id", n.ID), slog.String("status", string(status)), slog.Any("error", err))
		return err
	}
	if !changed {
		// Another worker already recorded a terminal state; drop this one.
		s.l.Warn("Dispatch outcome dropped, row already terminal", slog.String("id", n.ID))
		return nil
	}

	metrics.DispatchTotal.WithLabelValues(string(status)).Inc()
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, model.ChangeEvent{Type: model.EventUpdate, Row: *updated}); err != nil {
			s.l.Error("failed to publish dispatch change event",
				slog.String("id", n.ID), slog.Any("error", err))
		}
	}
	return nil
}
