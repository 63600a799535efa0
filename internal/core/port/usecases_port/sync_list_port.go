package usecases_port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// SyncListPort crawls one product's search results and reconciles them with
// the stored snapshots.
type SyncListPort interface {
	Execute(ctx context.Context, productID int64) (domain.SyncListReport, error)
}
