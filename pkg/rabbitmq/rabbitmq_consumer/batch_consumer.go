package rabbitmq_consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// BatchMessageHandler processes a batch and returns one disposition per
// delivery, in the same order. A missing entry is treated as Retry. ctx is the
// consumer's context and is already cancelled for the batch flushed on
// shutdown.
type BatchMessageHandler func(ctx context.Context, deliveries []Delivery) []Disposition

// BatchConsumer accumulates deliveries until batchSize is reached or
// batchTimeout elapses after the first message, then hands them over at once.
type BatchConsumer struct {
	baseConsumer *baseConsumer
	handler      BatchMessageHandler
	batchSize    int
	batchTimeout time.Duration
}

// NewBatchConsumer declares the topology and returns a consumer ready to start.
func NewBatchConsumer(cfg ConsumerConfig, handler BatchMessageHandler, batchSize int, batchTimeout time.Duration, connManager *rabbitmq_common.ConnectionManager) (*BatchConsumer, error) {
	if handler == nil {
		return nil, fmt.Errorf("batch consumer: message handler is required")
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	if cfg.PrefetchCount < batchSize {
		cfg.PrefetchCount = batchSize
	}

	bc, err := newBaseConsumer(cfg, connManager)
	if err != nil {
		return nil, fmt.Errorf("batch consumer: %w", err)
	}

	return &BatchConsumer{
		baseConsumer: bc,
		handler:      handler,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}, nil
}

// QueueName is the name of the consumed queue as reported by the broker.
func (c *BatchConsumer) QueueName() string {
	return c.baseConsumer.actualQueueName
}

// StartConsuming blocks until ctx is cancelled or the connection drops.
func (c *BatchConsumer) StartConsuming(ctx context.Context) error {
	if c.baseConsumer.channel == nil || c.baseConsumer.connection.IsClosed() {
		return fmt.Errorf("batch consumer: not connected")
	}

	msgs, err := c.baseConsumer.channel.Consume(
		c.baseConsumer.actualQueueName,
		c.baseConsumer.config.ConsumerTag,
		false, // auto-ack
		c.baseConsumer.config.ExclusiveConsumer,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("batch consumer: failed to register a consumer: %w", err)
	}

	c.baseConsumer.Logger.Info("[*] Waiting for messages",
		"queue_name", c.baseConsumer.actualQueueName,
		"batch_size", c.batchSize,
		"batch_timeout", c.batchTimeout.String())

	c.baseConsumer.wg.Add(1)
	go func() {
		defer c.baseConsumer.wg.Done()
		c.loop(ctx, msgs)
	}()

	notifyClose := c.baseConsumer.connection.NotifyClose(make(chan *amqp.Error, 1))

	select {
	case <-ctx.Done():
		c.baseConsumer.Logger.Info("Context cancelled, consumer shutting down",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		return nil
	case err := <-notifyClose:
		c.baseConsumer.Logger.Error(err, "Connection closed for consumer",
			"consumer_tag", c.baseConsumer.config.ConsumerTag)
		if err == nil {
			return fmt.Errorf("batch consumer: connection closed")
		}
		return err
	}
}

func (c *BatchConsumer) loop(ctx context.Context, msgs <-chan amqp.Delivery) {
	batch := make([]Delivery, 0, c.batchSize)
	timer := time.NewTimer(c.batchTimeout)
	if !timer.Stop() {
		<-timer.C
	}

	flush := func(reason string) {
		if len(batch) == 0 {
			return
		}
		c.baseConsumer.Logger.Debug("Processing batch", "batch_size", len(batch), "reason", reason)
		c.processBatch(ctx, batch)
		batch = make([]Delivery, 0, c.batchSize)
	}

	for {
		select {
		case <-ctx.Done():
			flush("shutdown")
			return

		case msg, ok := <-msgs:
			if !ok {
				flush("channel closed")
				return
			}
			if len(batch) == 0 {
				timer.Reset(c.batchTimeout)
			}
			batch = append(batch, Delivery{
				Delivery: msg,
				Attempt:  Attempt(msg, c.baseConsumer.actualQueueName),
			})
			if len(batch) >= c.batchSize {
				if !timer.Stop() {
					<-timer.C
				}
				flush("size")
			}

		case <-timer.C:
			flush("timeout")
		}
	}
}

func (c *BatchConsumer) processBatch(ctx context.Context, batch []Delivery) {
	dispositions := c.handler(ctx, batch)

	acked, retried, requeued := 0, 0, 0
	for i, d := range batch {
		disposition := Retry
		if i < len(dispositions) {
			disposition = dispositions[i]
		}
		c.baseConsumer.settle(d, disposition)
		switch disposition {
		case Ack:
			acked++
		case Requeue:
			requeued++
		default:
			retried++
		}
	}

	c.baseConsumer.Logger.Info("Batch settled",
		"batch_size", len(batch),
		"acked", acked,
		"retried", retried,
		"requeued", requeued)
}

// Close waits for the current batch and closes the channel.
func (c *BatchConsumer) Close() error {
	c.baseConsumer.Logger.Info("Closing consumer")
	return c.baseConsumer.Close()
}
