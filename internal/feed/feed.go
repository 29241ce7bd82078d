// Package feed provides per-session subscriptions to the row-level change
// stream. One session owns exactly one subscription; there is no process-wide
// shared feed, so lifecycle is an explicit contract: subscribe on session
// start, unsubscribe on teardown.
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/careerlink/notifications/internal/config"
	"github.com/careerlink/notifications/internal/kafka"
	"github.com/careerlink/notifications/internal/model"
)

// Feed creates live subscriptions to the change topic.
type Feed struct {
	brokers     []string
	topic       string
	groupPrefix string
	log         *slog.Logger
}

func New(cfg config.KafkaConfig, log *slog.Logger) *Feed {
	return &Feed{
		brokers:     cfg.Brokers,
		topic:       cfg.ChangeTopic,
		groupPrefix: cfg.GroupPrefix,
		log:         log,
	}
}

// Subscribe opens a long-lived subscription delivering the given user's
// change events, filtered by the same visible-channel predicate the read API
// uses. Each subscription is its own consumer group starting at the newest
// offset; history is recovered through reconciliation, not replay.
func (f *Feed) Subscribe(ctx context.Context, userID string, channels []model.Channel) (*Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("subscribe: user id is required")
	}
	channels = model.VisibleChannels(channels)

	saramaCfg := sarama.NewConfig()
	saramaCfg.Version = sarama.V2_1_0_0
	saramaCfg.Consumer.Return.Errors = true
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	groupID := fmt.Sprintf("%s-%s", f.groupPrefix, uuid.New().String())
	group, err := sarama.NewConsumerGroup(f.brokers, groupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed consumer group: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(userID, channels, cancel, f.log)

	consumer := kafka.NewConsumer(f.topic, group, sub.deliver, sub.signalReconnect, f.log)
	go func() {
		defer close(sub.done)
		defer close(sub.events)
		if err := consumer.Start(runCtx); err != nil && runCtx.Err() == nil {
			f.log.Error("Feed consumer stopped with error",
				slog.String("user_id", userID), slog.Any("error", err))
		}
	}()

	return sub, nil
}
