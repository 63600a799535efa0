package usecases_port

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// SyncDetailPort fetches one listing's item page and applies it. Failures are
// reported through the result, never returned.
type SyncDetailPort interface {
	Execute(ctx context.Context, snapshotID int64) domain.DetailResult
}
