package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/contracts"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_producer"
)

const publishTimeout = 10 * time.Second

// BatchPublisher is the part of rabbitmq_producer.Publisher the adapter needs.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, messages []rabbitmq_producer.Message) error
}

// RabbitMQCrawlJobQueueAdapter publishes crawl jobs to the crawl exchange.
type RabbitMQCrawlJobQueueAdapter struct {
	producer         BatchPublisher
	listRoutingKey   string
	detailRoutingKey string
	now              func() time.Time
}

var _ port.CrawlJobQueuePort = (*RabbitMQCrawlJobQueueAdapter)(nil)

func NewRabbitMQCrawlJobQueueAdapter(producer BatchPublisher, listRoutingKey, detailRoutingKey string) (*RabbitMQCrawlJobQueueAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if listRoutingKey == "" || detailRoutingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routing keys cannot be empty")
	}
	return &RabbitMQCrawlJobQueueAdapter{
		producer:         producer,
		listRoutingKey:   listRoutingKey,
		detailRoutingKey: detailRoutingKey,
		now:              time.Now,
	}, nil
}

func (a *RabbitMQCrawlJobQueueAdapter) EnqueueListCrawl(ctx context.Context, job domain.ListCrawlJob) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "RabbitMQCrawlJobQueueAdapter",
		"routing_key": a.listRoutingKey,
		"product_id":  job.ProductID,
	})

	msg, err := a.publishing(ctx, contracts.ListCrawlEvent, ListCrawlDTO{ProductID: job.ProductID})
	if err != nil {
		adapterLogger.Error("Failed to marshal list crawl job", err, nil)
		return err
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.producer.PublishBatch(publishCtx, []rabbitmq_producer.Message{{RoutingKey: a.listRoutingKey, Publishing: msg}}); err != nil {
		adapterLogger.Error("Failed to publish list crawl job", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish list crawl for product %d: %w", job.ProductID, err)
	}

	adapterLogger.Debug("List crawl job published", nil)
	return nil
}

// EnqueueDetailCrawls publishes every job in one batch. An empty slice is a
// no-op.
func (a *RabbitMQCrawlJobQueueAdapter) EnqueueDetailCrawls(ctx context.Context, jobs []domain.DetailCrawlJob) error {
	if len(jobs) == 0 {
		return nil
	}
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "RabbitMQCrawlJobQueueAdapter",
		"routing_key": a.detailRoutingKey,
	})

	messages := make([]rabbitmq_producer.Message, 0, len(jobs))
	for _, job := range jobs {
		msg, err := a.publishing(ctx, contracts.DetailCrawlEvent, DetailCrawlDTO{MercariCrawlResultID: job.SnapshotID})
		if err != nil {
			adapterLogger.Error("Failed to marshal detail crawl job", err, port.Fields{"snapshot_id": job.SnapshotID})
			return err
		}
		messages = append(messages, rabbitmq_producer.Message{RoutingKey: a.detailRoutingKey, Publishing: msg})
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := a.producer.PublishBatch(publishCtx, messages); err != nil {
		adapterLogger.Error("Failed to publish detail crawl jobs", err, port.Fields{"count": len(jobs)})
		return fmt.Errorf("rabbitmq adapter: failed to publish %d detail crawl jobs: %w", len(jobs), err)
	}

	adapterLogger.Debug("Detail crawl jobs published", port.Fields{"count": len(jobs)})
	return nil
}

func (a *RabbitMQCrawlJobQueueAdapter) publishing(ctx context.Context, eventType string, body interface{}) (amqp.Publishing, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq adapter: marshal %s: %w", eventType, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    a.now(),
		Headers: amqp.Table{
			contracts.HeaderEventType:    eventType,
			contracts.HeaderEventVersion: contracts.VersionV1,
		},
	}
	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}
	return msg, nil
}
