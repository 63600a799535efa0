package rabbitmq_consumer

import (
	"fmt"
	"sync"

	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Disposition is the handler's verdict for one delivery.
type Disposition int

const (
	// Ack removes the message from the queue.
	Ack Disposition = iota
	// Retry dead-letters the message into the delayed retry loop.
	Retry
	// Requeue puts the message straight back on the queue. It does not count
	// as an attempt.
	Requeue
)

func (d Disposition) String() string {
	switch d {
	case Ack:
		return "ack"
	case Retry:
		return "retry"
	case Requeue:
		return "requeue"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Delivery is an AMQP delivery plus the 1-based attempt number derived from
// the x-death history of the consumed queue.
type Delivery struct {
	amqp.Delivery
	Attempt int
}

// ConsumerConfig configures a consumer, its queue and the retry topology.
type ConsumerConfig struct {
	rabbitmq_common.Config

	QueueName       string
	DeclareQueue    bool
	DurableQueue    bool
	ExclusiveQueue  bool
	AutoDeleteQueue bool
	QueueArgs       amqp.Table

	ExchangeNameForBind    string // empty means no binding
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	ExchangeArgsForBind    amqp.Table

	RoutingKeyForBind string
	BindingArgs       amqp.Table

	PrefetchCount int // <= 0 means unlimited
	PrefetchSize  int
	QosGlobal     bool

	ConsumerTag       string
	ExclusiveConsumer bool

	// Retry topology: rejected messages go to RetryExchange (fanout), wait
	// RetryTTL milliseconds in RetryQueue and are dead-lettered back into
	// ExchangeNameForBind with their original routing key.
	EnableRetryMechanism bool
	RetryExchange        string
	RetryQueue           string
	RetryTTL             int

	Logger rabbitmq_common.Logger
}

type baseConsumer struct {
	config          ConsumerConfig
	connection      *amqp.Connection
	channel         *amqp.Channel
	actualQueueName string
	wg              sync.WaitGroup

	Logger rabbitmq_common.Logger
}

func newBaseConsumer(cfg ConsumerConfig, connManager *rabbitmq_common.ConnectionManager) (*baseConsumer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("base consumer: invalid base config: %w", err)
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return nil, fmt.Errorf("base consumer: queue name is required if DeclareQueue is false")
	}
	if cfg.ExchangeNameForBind != "" && cfg.ExchangeTypeForBind == "" && cfg.DeclareExchangeForBind {
		return nil, fmt.Errorf("base consumer: exchange type is required if declaring an exchange for binding")
	}
	if cfg.EnableRetryMechanism {
		if cfg.RetryExchange == "" || cfg.RetryQueue == "" {
			return nil, fmt.Errorf("base consumer: retry exchange and retry queue are required when retries are enabled")
		}
		if cfg.ExchangeNameForBind == "" {
			return nil, fmt.Errorf("base consumer: retries need an exchange to return messages to")
		}
	}

	c := &baseConsumer{
		config: cfg,
		Logger: logger,
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("base consumer: failed to get channel from manager: %w", err)
	}
	c.connection = conn
	c.channel = ch

	if err := c.setup(); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("base consumer: setup failed: %w", err)
	}
	return c, nil
}

// setup declares QoS, the queue, its binding and the retry topology.
func (c *baseConsumer) setup() error {
	if c.config.PrefetchCount > 0 || c.config.PrefetchSize > 0 {
		c.Logger.Debug("Setting QoS",
			"prefetch_count", c.config.PrefetchCount,
			"prefetch_size", c.config.PrefetchSize,
			"global", c.config.QosGlobal,
		)
		if err := c.channel.Qos(c.config.PrefetchCount, c.config.PrefetchSize, c.config.QosGlobal); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	if c.config.EnableRetryMechanism {
		args := amqp.Table{}
		for k, v := range c.config.QueueArgs {
			args[k] = v
		}
		args["x-dead-letter-exchange"] = c.config.RetryExchange
		c.config.QueueArgs = args
	}

	if c.config.DeclareExchangeForBind {
		c.Logger.Debug("Declaring exchange",
			"name", c.config.ExchangeNameForBind,
			"type", c.config.ExchangeTypeForBind,
		)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // auto-deleted
			false, // internal
			false, // no-wait
			c.config.ExchangeArgsForBind,
		)
		if err != nil {
			return fmt.Errorf("failed to declare exchange '%s': %w", c.config.ExchangeNameForBind, err)
		}
	}

	c.actualQueueName = c.config.QueueName
	if c.config.DeclareQueue {
		c.Logger.Debug("Declaring queue", "name", c.config.QueueName, "durable", c.config.DurableQueue)
		q, err := c.channel.QueueDeclare(
			c.config.QueueName,
			c.config.DurableQueue,
			c.config.AutoDeleteQueue,
			c.config.ExclusiveQueue,
			false, // no-wait
			c.config.QueueArgs,
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue '%s': %w", c.config.QueueName, err)
		}
		c.actualQueueName = q.Name
	}

	if c.config.ExchangeNameForBind != "" {
		c.Logger.Debug("Binding queue",
			"queue_name", c.actualQueueName,
			"exchange_name", c.config.ExchangeNameForBind,
			"routing_key", c.config.RoutingKeyForBind,
		)
		err := c.channel.QueueBind(
			c.actualQueueName,
			c.config.RoutingKeyForBind,
			c.config.ExchangeNameForBind,
			false,
			c.config.BindingArgs,
		)
		if err != nil {
			return fmt.Errorf("failed to bind queue '%s' to exchange '%s': %w", c.actualQueueName, c.config.ExchangeNameForBind, err)
		}
	}

	if !c.config.EnableRetryMechanism {
		c.Logger.Debug("Setup complete", "queue", c.actualQueueName)
		return nil
	}

	c.Logger.Debug("Declaring retry exchange", "name", c.config.RetryExchange)
	if err := c.channel.ExchangeDeclare(c.config.RetryExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare retry exchange: %w", err)
	}

	c.Logger.Debug("Declaring retry wait queue", "name", c.config.RetryQueue, "ttl_ms", c.config.RetryTTL)
	_, err := c.channel.QueueDeclare(
		c.config.RetryQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-message-ttl":          int32(c.config.RetryTTL),
			"x-dead-letter-exchange": c.config.ExchangeNameForBind,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry wait queue: %w", err)
	}
	if err := c.channel.QueueBind(c.config.RetryQueue, "", c.config.RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind retry wait queue: %w", err)
	}

	c.Logger.Debug("Setup complete", "queue", c.actualQueueName, "retry_queue", c.config.RetryQueue)
	return nil
}

// DeathCount returns how many times d was rejected from queueName, according
// to the x-death header the broker maintains.
func DeathCount(d amqp.Delivery, queueName string) int64 {
	if d.Headers == nil {
		return 0
	}
	deaths, ok := d.Headers["x-death"].([]interface{})
	if !ok {
		return 0
	}

	// x-death holds one entry per (queue, reason); only the consumed queue counts
	for _, death := range deaths {
		tbl, ok := death.(amqp.Table)
		if !ok {
			continue
		}
		if queue, _ := tbl["queue"].(string); queue != queueName {
			continue
		}
		switch count := tbl["count"].(type) {
		case int64:
			return count
		case int32:
			return int64(count)
		case int:
			return int64(count)
		}
	}
	return 0
}

// Attempt returns the 1-based delivery attempt of d on queueName.
func Attempt(d amqp.Delivery, queueName string) int {
	return int(DeathCount(d, queueName)) + 1
}

func (c *baseConsumer) settle(d Delivery, disposition Disposition) {
	switch disposition {
	case Ack:
		if err := d.Ack(false); err != nil {
			c.Logger.Error(err, "Failed to ack message", "delivery_tag", d.DeliveryTag)
		}
	case Retry:
		// requeue=false sends the message through the retry exchange; without a
		// retry topology it is discarded by the broker
		if !c.config.EnableRetryMechanism {
			c.Logger.Warn("Retry requested but retry mechanism is disabled, message is discarded",
				"delivery_tag", d.DeliveryTag)
		}
		if err := d.Nack(false, false); err != nil {
			c.Logger.Error(err, "Failed to nack message", "delivery_tag", d.DeliveryTag)
		}
	case Requeue:
		if err := d.Nack(false, true); err != nil {
			c.Logger.Error(err, "Failed to requeue message", "delivery_tag", d.DeliveryTag)
		}
	}
}

// Close waits for in-flight handlers and closes the consumer channel.
func (c *baseConsumer) Close() error {
	c.Logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()

	if c.channel == nil {
		return nil
	}
	err := c.channel.Close()
	c.channel = nil
	if err != nil {
		c.Logger.Error(err, "Error closing channel")
		return err
	}
	c.Logger.Info("Consumer closed")
	return nil
}
