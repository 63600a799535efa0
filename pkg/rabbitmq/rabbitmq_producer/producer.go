package rabbitmq_producer

import (
	"context"
	"fmt"
	"sync"

	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublisherConfig configures a publisher bound to one exchange.
type PublisherConfig struct {
	rabbitmq_common.Config
	ExchangeName       string // empty string means the default exchange
	ExchangeType       string // direct, fanout, topic, headers
	DurableExchange    bool
	AutoDeleteExchange bool
	InternalExchange   bool
	ExchangeArgs       amqp.Table

	// DeclareExchangeIfMissing declares the exchange on start. When false the
	// exchange must already exist.
	DeclareExchangeIfMissing bool

	// ConfirmDelivery puts the channel into confirm mode; every publish then
	// waits for the broker ack.
	ConfirmDelivery bool

	Logger rabbitmq_common.Logger
}

// Message is one entry of a batch publish.
type Message struct {
	RoutingKey string
	Publishing amqp.Publishing
}

// Publisher publishes to a single exchange over its own channel.
type Publisher struct {
	config     PublisherConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.Mutex // amqp channels are not safe for concurrent publishing

	Logger rabbitmq_common.Logger
}

// NewPublisher opens a channel from connManager and optionally declares the exchange.
func NewPublisher(cfg PublisherConfig, connManager *rabbitmq_common.ConnectionManager) (*Publisher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = rabbitmq_common.NewNoopLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("producer: invalid base config: %w", err)
	}
	if cfg.DeclareExchangeIfMissing && cfg.ExchangeName == "" && cfg.ExchangeType != "" {
		return nil, fmt.Errorf("producer: exchange name is required if ExchangeType is specified and DeclareExchangeIfMissing is true")
	}
	if cfg.DeclareExchangeIfMissing && cfg.ExchangeType == "" && cfg.ExchangeName != "" {
		return nil, fmt.Errorf("producer: exchange type is required if ExchangeName is specified and DeclareExchangeIfMissing is true")
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("producer: failed to get channel from manager: %w", err)
	}

	p := &Publisher{
		config:     cfg,
		connection: conn,
		channel:    ch,
		Logger:     logger,
	}

	if cfg.DeclareExchangeIfMissing {
		p.Logger.Debug("Declaring exchange",
			"name", cfg.ExchangeName,
			"type", cfg.ExchangeType,
		)
		err = ch.ExchangeDeclare(
			cfg.ExchangeName,
			cfg.ExchangeType,
			cfg.DurableExchange,
			cfg.AutoDeleteExchange,
			cfg.InternalExchange,
			false, // no-wait
			cfg.ExchangeArgs,
		)
		if err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to declare exchange '%s': %w", cfg.ExchangeName, err)
		}
	}

	if cfg.ConfirmDelivery {
		if err := ch.Confirm(false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("producer: failed to enable confirm mode: %w", err)
		}
	}

	p.Logger.Debug("Publisher ready", "exchange", cfg.ExchangeName, "confirm", cfg.ConfirmDelivery)
	return p, nil
}

// Publish sends one message.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	return p.PublishBatch(ctx, []Message{{RoutingKey: routingKey, Publishing: msg}})
}

// PublishBatch sends all messages and, in confirm mode, waits until the broker
// has acknowledged every one of them.
func (p *Publisher) PublishBatch(ctx context.Context, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil || p.connection == nil || p.connection.IsClosed() {
		return fmt.Errorf("producer: not connected or channel/connection is closed")
	}

	confirms := make([]*amqp.DeferredConfirmation, 0, len(messages))
	for _, m := range messages {
		confirm, err := p.channel.PublishWithDeferredConfirmWithContext(
			ctx,
			p.config.ExchangeName,
			m.RoutingKey,
			false, // mandatory
			false, // immediate
			m.Publishing,
		)
		if err != nil {
			return fmt.Errorf("producer: failed to publish message: %w", err)
		}
		// confirm is nil when the channel is not in confirm mode
		if confirm != nil {
			confirms = append(confirms, confirm)
		}
	}

	for _, confirm := range confirms {
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("producer: waiting for publish confirm: %w", err)
		}
		if !acked {
			return fmt.Errorf("producer: broker nacked message %d", confirm.DeliveryTag)
		}
	}
	return nil
}

// Close closes the publisher channel. The shared connection stays open.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Logger.Debug("Producer: closing")
	if p.channel == nil {
		return nil
	}
	err := p.channel.Close()
	p.channel = nil
	if err != nil {
		p.Logger.Error(err, "Error closing channel")
		return err
	}
	p.Logger.Info("Producer closed")
	return nil
}
