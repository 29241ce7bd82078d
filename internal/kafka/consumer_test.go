package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careerlink/notifications/internal/model"
)

// brokenConsumerGroup fails every Consume call, simulating a broker outage.
type brokenConsumerGroup struct {
	consumeErr error
	consumes   atomic.Int64
	closed     atomic.Bool
}

func (g *brokenConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	g.consumes.Add(1)
	return g.consumeErr
}

func (g *brokenConsumerGroup) Errors() <-chan error { return nil }

func (g *brokenConsumerGroup) Close() error {
	g.closed.Store(true)
	return nil
}

func (g *brokenConsumerGroup) Pause(map[string][]int32)  {}
func (g *brokenConsumerGroup) Resume(map[string][]int32) {}
func (g *brokenConsumerGroup) PauseAll()                 {}
func (g *brokenConsumerGroup) ResumeAll()                {}

func TestStartReturnsOnCancelDuringBrokerOutage(t *testing.T) {
	group := &brokenConsumerGroup{consumeErr: errors.New("broker unreachable")}
	c := NewConsumer("topic", group, func(context.Context, model.ChangeEvent) {}, nil, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
	assert.True(t, group.closed.Load())
}

func TestStartReturnsOnClosedConsumerGroup(t *testing.T) {
	group := &brokenConsumerGroup{consumeErr: sarama.ErrClosedConsumerGroup}
	c := NewConsumer("topic", group, func(context.Context, model.ChangeEvent) {}, nil, slog.New(slog.DiscardHandler))

	err := c.Start(context.Background())
	assert.ErrorIs(t, err, sarama.ErrClosedConsumerGroup)
	assert.Equal(t, int64(1), group.consumes.Load())
}
