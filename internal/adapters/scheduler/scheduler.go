// Package scheduler periodically enqueues list crawls for every enabled
// crawl setting.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/port/usecases_port"
)

type CrawlScheduler struct {
	requestCrawl usecases_port.RequestCrawlPort
	interval     time.Duration
	logger       port.LoggerPort
}

func NewCrawlScheduler(requestCrawl usecases_port.RequestCrawlPort, interval time.Duration, logger port.LoggerPort) *CrawlScheduler {
	return &CrawlScheduler{
		requestCrawl: requestCrawl,
		interval:     interval,
		logger:       logger.WithFields(port.Fields{"component": "CrawlScheduler"}),
	}
}

// Run enqueues once per interval until ctx is cancelled. The first round
// runs one interval after the start.
func (s *CrawlScheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Scheduler disabled", nil)
		return
	}
	s.logger.Info("Scheduler started", port.Fields{"interval": s.interval.String()})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped", nil)
			return
		}
	}
}

func (s *CrawlScheduler) tick(ctx context.Context) {
	traceID := uuid.New().String()
	tickLogger := s.logger.WithFields(port.Fields{"trace_id": traceID})
	ctx = contextkeys.ContextWithLogger(ctx, tickLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	n, err := s.requestCrawl.RequestAllEnabled(ctx)
	if err != nil {
		tickLogger.Error("Scheduled enqueue failed", err, port.Fields{"enqueued": n})
		return
	}
	tickLogger.Info("Scheduled list crawls enqueued", port.Fields{"enqueued": n})
}
