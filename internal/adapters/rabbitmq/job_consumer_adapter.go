package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kuroweb/crawlflare/internal/constants"
	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/contracts"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/port/usecases_port"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_common"
	"github.com/kuroweb/crawlflare/pkg/rabbitmq/rabbitmq_consumer"
)

// PayloadValidator checks a message body against the schema of its event.
type PayloadValidator interface {
	Validate(eventType, eventVersion string, body []byte) error
}

// JobConsumerAdapter listens on one crawl queue, turns every delivery into a
// job and settles it according to the dispatcher's verdict.
type JobConsumerAdapter struct {
	consumer *rabbitmq_consumer.BatchConsumer
	handler  *jobHandler
}

func NewJobConsumerAdapter(
	consumerCfg rabbitmq_consumer.ConsumerConfig,
	batchSize int,
	batchTimeout time.Duration,
	maxAttempts int,
	dispatcher usecases_port.DispatchJobPort,
	validator PayloadValidator,
	logger port.LoggerPort,
	connManager *rabbitmq_common.ConnectionManager,
) (*JobConsumerAdapter, error) {
	handler, err := newJobHandler(consumerCfg.QueueName, maxAttempts, dispatcher, validator, logger)
	if err != nil {
		return nil, err
	}

	pkgLogger := logger.WithFields(port.Fields{
		"component":    "rabbitmq_batch_consumer",
		"consumer_tag": consumerCfg.ConsumerTag,
	})
	consumerCfg.Logger = NewPkgLoggerBridge(pkgLogger)

	consumer, err := rabbitmq_consumer.NewBatchConsumer(consumerCfg, handler.handleBatch, batchSize, batchTimeout, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for %s: %w", consumerCfg.QueueName, err)
	}

	return &JobConsumerAdapter{consumer: consumer, handler: handler}, nil
}

// Start blocks until ctx is cancelled or the broker connection drops.
func (a *JobConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

func (a *JobConsumerAdapter) Close() error {
	return a.consumer.Close()
}

type jobHandler struct {
	queue       string
	maxAttempts int
	dispatcher  usecases_port.DispatchJobPort
	validator   PayloadValidator
	logger      port.LoggerPort
}

func newJobHandler(queue string, maxAttempts int, dispatcher usecases_port.DispatchJobPort, validator PayloadValidator, logger port.LoggerPort) (*jobHandler, error) {
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("job consumer: max attempts must be positive, got %d", maxAttempts)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("job consumer: dispatcher cannot be nil")
	}
	if validator == nil {
		return nil, fmt.Errorf("job consumer: validator cannot be nil")
	}
	return &jobHandler{
		queue:       queue,
		maxAttempts: maxAttempts,
		dispatcher:  dispatcher,
		validator:   validator,
		logger:      logger.WithFields(port.Fields{"component": "JobConsumerAdapter", "queue": queue}),
	}, nil
}

// handleBatch processes deliveries one after another. A failing message never
// affects its siblings. Once ctx is cancelled the rest of the batch goes back
// to the queue untouched.
func (h *jobHandler) handleBatch(ctx context.Context, batch []rabbitmq_consumer.Delivery) []rabbitmq_consumer.Disposition {
	out := make([]rabbitmq_consumer.Disposition, len(batch))
	for i, d := range batch {
		if ctx.Err() != nil {
			out[i] = rabbitmq_consumer.Requeue
			continue
		}
		out[i] = h.handle(ctx, d)
	}
	return out
}

func (h *jobHandler) handle(parent context.Context, d rabbitmq_consumer.Delivery) (disposition rabbitmq_consumer.Disposition) {
	traceID, ok := d.Headers["x-trace-id"].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := h.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
		"consumer_tag": d.ConsumerTag,
		"attempt":      d.Attempt,
	})

	ctx := contextkeys.ContextWithLogger(parent, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if d.Attempt >= h.maxAttempts {
			msgLogger.Error("Handler panicked on last attempt, dropping", fmt.Errorf("panic: %v", r),
				port.Fields{"max_attempts": h.maxAttempts})
			disposition = rabbitmq_consumer.Ack
			return
		}
		msgLogger.Error("Handler panicked, scheduling retry", fmt.Errorf("panic: %v", r), nil)
		disposition = rabbitmq_consumer.Retry
	}()

	job, err := h.decode(d)
	if err != nil {
		return toDisposition(h.dispatcher.Reject(ctx, err))
	}

	jobLogger := msgLogger.WithFields(port.Fields{"job": job.String()})
	ctx = contextkeys.ContextWithLogger(ctx, jobLogger)
	jobLogger.Info("Received crawl job", nil)

	verdict := h.dispatcher.Dispatch(ctx, job, d.Attempt)
	if parent.Err() != nil {
		// interrupted by shutdown; the attempt does not count
		jobLogger.Warn("Job interrupted by shutdown, returning it to the queue", nil)
		return rabbitmq_consumer.Requeue
	}
	return toDisposition(verdict)
}

// decode resolves the job variant from the event-type header, falling back
// to the routing key and then to the consumed queue.
func (h *jobHandler) decode(d rabbitmq_consumer.Delivery) (domain.Job, error) {
	eventType, _ := d.Headers[contracts.HeaderEventType].(string)
	if eventType == "" {
		eventType = inferEventType(d.RoutingKey, h.queue)
	}
	eventVersion, _ := d.Headers[contracts.HeaderEventVersion].(string)
	if eventVersion == "" {
		eventVersion = contracts.VersionV1
	}

	switch eventType {
	case contracts.ListCrawlEvent, contracts.DetailCrawlEvent:
	default:
		return nil, fmt.Errorf("%w: routing key %q on queue %q", domain.ErrUnknownJob, d.RoutingKey, h.queue)
	}

	if err := h.validator.Validate(eventType, eventVersion, d.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
	}

	switch eventType {
	case contracts.ListCrawlEvent:
		var dto ListCrawlDTO
		if err := json.Unmarshal(d.Body, &dto); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
		}
		return domain.ListCrawlJob{ProductID: dto.ProductID}, nil
	default:
		var dto DetailCrawlDTO
		if err := json.Unmarshal(d.Body, &dto); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidJob, err)
		}
		return domain.DetailCrawlJob{SnapshotID: dto.MercariCrawlResultID}, nil
	}
}

func inferEventType(routingKey, queue string) string {
	switch routingKey {
	case constants.ListCrawlRoutingKey:
		return contracts.ListCrawlEvent
	case constants.DetailCrawlRoutingKey:
		return contracts.DetailCrawlEvent
	}
	switch queue {
	case constants.ListCrawlQueue:
		return contracts.ListCrawlEvent
	case constants.DetailCrawlQueue:
		return contracts.DetailCrawlEvent
	}
	return ""
}

func toDisposition(v domain.JobVerdict) rabbitmq_consumer.Disposition {
	if v == domain.VerdictRetry {
		return rabbitmq_consumer.Retry
	}
	return rabbitmq_consumer.Ack
}
