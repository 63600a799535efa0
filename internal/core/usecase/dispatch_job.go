package usecase

import (
	"context"
	"fmt"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
	"github.com/kuroweb/crawlflare/internal/core/port/usecases_port"
)

// DefaultMaxAttempts is the number of deliveries a failing job gets before it
// is dropped.
const DefaultMaxAttempts = 3

// DispatchJobUseCase runs crawl jobs and turns their outcome into an ack or
// retry decision.
type DispatchJobUseCase struct {
	syncList    usecases_port.SyncListPort
	syncDetail  usecases_port.SyncDetailPort
	maxAttempts int
}

func NewDispatchJobUseCase(syncList usecases_port.SyncListPort, syncDetail usecases_port.SyncDetailPort, maxAttempts int) *DispatchJobUseCase {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &DispatchJobUseCase{
		syncList:    syncList,
		syncDetail:  syncDetail,
		maxAttempts: maxAttempts,
	}
}

func (uc *DispatchJobUseCase) Dispatch(ctx context.Context, job domain.Job, attempt int) domain.JobVerdict {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "DispatchJob",
		"job":      job.String(),
		"attempt":  attempt,
	})

	err := uc.run(ctx, job)
	if err == nil {
		logger.Debug("Job done", nil)
		return domain.VerdictAck
	}

	if domain.IsTerminal(err) {
		logger.Warn("Job cannot succeed, dropping without retry", port.Fields{"error": err.Error()})
		return domain.VerdictAck
	}
	if attempt >= uc.maxAttempts {
		logger.Warn("Job failed on last attempt, dropping", port.Fields{
			"error":        err.Error(),
			"max_attempts": uc.maxAttempts,
		})
		return domain.VerdictAck
	}

	logger.Error("Job failed, scheduling retry", err, nil)
	return domain.VerdictRetry
}

// run converts a panic in a job into an ordinary retryable error, so it is
// bound by the same attempt ceiling.
func (uc *DispatchJobUseCase) run(ctx context.Context, job domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	switch j := job.(type) {
	case domain.ListCrawlJob:
		_, err := uc.syncList.Execute(ctx, j.ProductID)
		return err
	case domain.DetailCrawlJob:
		res := uc.syncDetail.Execute(ctx, j.SnapshotID)
		if res.Success() {
			return nil
		}
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("detail sync of snapshot %d: %s", j.SnapshotID, res.Message)
	default:
		return fmt.Errorf("%w: %T", domain.ErrUnknownJob, job)
	}
}

// Reject drops a delivery that never became a job. Redelivering it would not
// make the payload any more readable.
func (uc *DispatchJobUseCase) Reject(ctx context.Context, err error) domain.JobVerdict {
	contextkeys.LoggerFromContext(ctx).Warn("Dropping unprocessable message", port.Fields{
		"use_case": "DispatchJob",
		"error":    err.Error(),
	})
	return domain.VerdictAck
}
