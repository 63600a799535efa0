package usecases_port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// DispatchJobPort runs a job and decides whether the delivery is acked or
// retried. attempt is 1-based.
type DispatchJobPort interface {
	Dispatch(ctx context.Context, job domain.Job, attempt int) domain.JobVerdict
	// Reject handles a delivery that could not be turned into a job.
	Reject(ctx context.Context, err error) domain.JobVerdict
}
