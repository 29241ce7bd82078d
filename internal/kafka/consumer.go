package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/careerlink/notifications/internal/model"
)

// EventHandler receives each decoded change event.
type EventHandler func(ctx context.Context, ev model.ChangeEvent)

// Consumer consumes change events from the change topic using a consumer
// group. Delivery is at-least-once: a rebalance or reconnect can replay
// events the handler has already seen.
type Consumer struct {
	topic         string
	consumerGroup sarama.ConsumerGroup
	handler       EventHandler
	// onSetup fires on every (re)established session, including the first.
	onSetup func()
	log     *slog.Logger
}

// NewConsumer constructs a consumer. onSetup may be nil; when set it is the
// reconnect hook sessions use to trigger a reconciliation pass.
func NewConsumer(
	topic string,
	consumerGroup sarama.ConsumerGroup,
	handler EventHandler,
	onSetup func(),
	log *slog.Logger,
) *Consumer {
	return &Consumer{
		topic:         topic,
		consumerGroup: consumerGroup,
		handler:       handler,
		onSetup:       onSetup,
		log:           log,
	}
}

// Start begins the consume loop and blocks until the context is cancelled or
// the consumer group is closed. Transient errors back off exponentially.
func (c *Consumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.consumerGroup.Close(); err != nil {
			c.log.Warn("Failed to close consumer group", slog.Any("error", err))
		}
	}()

	c.log.Info("Kafka change consumer started", slog.String("topic", c.topic))

	backoff := 1 * time.Second
	for {
		err := c.consumerGroup.Consume(ctx, []string{c.topic}, c)
		if err != nil {
			c.log.Error("Error consuming change events", slog.Any("error", err))

			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			// Cancellation must win over the backoff, or an unsubscriber
			// waiting on this loop blocks for as long as the broker errors.
			select {
			case <-ctx.Done():
				c.log.Info("Context cancelled, stopping consumer")
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}

		if ctx.Err() != nil {
			c.log.Info("Context cancelled, stopping consumer")
			return ctx.Err()
		}
	}
}

// Setup is called once when a new consumer session starts.
func (c *Consumer) Setup(session sarama.ConsumerGroupSession) error {
	for topic, partitions := range session.Claims() {
		c.log.Info("Partition assignment",
			slog.String("topic", topic),
			slog.Any("partitions", partitions),
		)
	}
	if c.onSetup != nil {
		c.onSetup()
	}
	return nil
}

// Cleanup is called once when the consumer session ends.
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	c.log.Debug("Kafka session cleanup complete")
	return nil
}

// ConsumeClaim decodes and forwards each message of one assigned partition.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var ev model.ChangeEvent
		if err := json.Unmarshal(message.Value, &ev); err != nil {
			c.log.Error("Failed to decode change event", slog.Any("error", err))
			// skip undecodable messages
			session.MarkMessage(message, "")
			continue
		}

		c.handler(session.Context(), ev)
		session.MarkMessage(message, "")
	}
	return nil
}
