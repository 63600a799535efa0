package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

// DefaultUpsertBatchSize bounds the number of rows written per store call.
const DefaultUpsertBatchSize = 10

// SyncListOptions tunes the reconciliation run.
type SyncListOptions struct {
	BatchSize   int
	StalePolicy domain.StalePolicy
}

// SyncListUseCase crawls the search results of a product and reconciles them
// with the stored snapshots.
type SyncListUseCase struct {
	products port.ProductRepositoryPort
	results  port.ResultStorePort
	crawler  port.ListCrawlerPort
	jobs     port.CrawlJobQueuePort
	opts     SyncListOptions
}

func NewSyncListUseCase(
	products port.ProductRepositoryPort,
	results port.ResultStorePort,
	crawler port.ListCrawlerPort,
	jobs port.CrawlJobQueuePort,
	opts SyncListOptions,
) *SyncListUseCase {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultUpsertBatchSize
	}
	if opts.StalePolicy == "" {
		opts.StalePolicy = domain.StalePolicyDelete
	}
	return &SyncListUseCase{
		products: products,
		results:  results,
		crawler:  crawler,
		jobs:     jobs,
		opts:     opts,
	}
}

// Execute runs one list crawl for productID. A missing product or a missing or
// disabled setting is returned as the matching domain error.
func (uc *SyncListUseCase) Execute(ctx context.Context, productID int64) (domain.SyncListReport, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "SyncList",
		"product_id": productID,
	})
	report := domain.SyncListReport{ProductID: productID}

	if _, err := uc.products.FindProductByID(ctx, productID); err != nil {
		return report, fmt.Errorf("load product: %w", err)
	}
	setting, err := uc.products.FindCrawlConfiguration(ctx, productID)
	if err != nil {
		return report, fmt.Errorf("load crawl setting: %w", err)
	}
	if !setting.Enabled {
		return report, domain.ErrCrawlDisabled
	}

	existing, err := uc.results.FindByProductID(ctx, productID)
	if err != nil {
		return report, fmt.Errorf("load stored snapshots: %w", err)
	}
	report.FirstRun = len(existing) == 0

	observations, err := uc.crawler.CrawlList(ctx, setting, report.FirstRun)
	if err != nil {
		return report, fmt.Errorf("crawl list: %w", err)
	}
	report.Observed = len(observations)
	logger.Info("List crawl finished", port.Fields{"observed": report.Observed, "first_run": report.FirstRun})

	// upsert, cleanup and detection must run in this order: the last two read
	// the post-upsert state
	if report.Upserted, err = uc.upsert(ctx, productID, observations); err != nil {
		return report, err
	}

	observed := make(map[string]struct{}, len(observations))
	for _, o := range observations {
		observed[o.ExternalID] = struct{}{}
	}

	if report.Deleted, err = uc.cleanupStale(ctx, productID, observed); err != nil {
		return report, err
	}

	pending, err := uc.collectDetailTargets(ctx, productID, observed)
	if err != nil {
		return report, err
	}

	if len(pending) > 0 {
		jobs := make([]domain.DetailCrawlJob, 0, len(pending))
		for _, id := range pending {
			jobs = append(jobs, domain.DetailCrawlJob{SnapshotID: id})
		}
		if err := uc.jobs.EnqueueDetailCrawls(ctx, jobs); err != nil {
			return report, fmt.Errorf("enqueue detail crawls: %w", err)
		}
	}
	report.DetailJobs = len(pending)

	logger.Info("List reconciliation complete", port.Fields{
		"upserted":    report.Upserted,
		"deleted":     report.Deleted,
		"detail_jobs": report.DetailJobs,
	})
	return report, nil
}

func (uc *SyncListUseCase) upsert(ctx context.Context, productID int64, observations []domain.ListingObservation) (int, error) {
	written := 0
	for start := 0; start < len(observations); start += uc.opts.BatchSize {
		end := start + uc.opts.BatchSize
		if end > len(observations) {
			end = len(observations)
		}
		if err := uc.results.UpsertBatch(ctx, productID, observations[start:end]); err != nil {
			return written, fmt.Errorf("upsert observations [%d:%d]: %w", start, end, err)
		}
		written += end - start
	}
	return written, nil
}

// cleanupStale removes stored rows that the crawl no longer sees. Under the
// verify policy only rows with nothing left to resolve are removed.
func (uc *SyncListUseCase) cleanupStale(ctx context.Context, productID int64, observed map[string]struct{}) (int, error) {
	stored, err := uc.results.FindByProductID(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("load snapshots for cleanup: %w", err)
	}

	deleted := 0
	for _, s := range stored {
		if _, ok := observed[s.ExternalID]; ok {
			continue
		}
		if uc.opts.StalePolicy == domain.StalePolicyVerify && !isSettled(s) {
			continue
		}
		err := uc.results.DeleteByID(ctx, s.ID)
		if errors.Is(err, domain.ErrListingNotFound) {
			// a detail job removed it after FindByProductID
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("delete stale snapshot %d: %w", s.ID, err)
		}
		deleted++
	}
	return deleted, nil
}

// isSettled reports a sold out row whose date is known; a detail fetch has
// nothing to add to it.
func isSettled(s domain.ListingSnapshot) bool {
	return s.Status == domain.StatusSoldOut && s.SoldOutAt != nil
}

// collectDetailTargets returns the snapshot ids that need a detail fetch, in
// first-seen order without duplicates.
func (uc *SyncListUseCase) collectDetailTargets(ctx context.Context, productID int64, observed map[string]struct{}) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]struct{})
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	// selling rows the crawl did not reach; always empty under the delete
	// policy because cleanup already removed them
	selling, err := uc.results.FindSellingByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load selling snapshots: %w", err)
	}
	for _, s := range selling {
		if _, ok := observed[s.ExternalID]; !ok {
			add(s.ID)
		}
	}

	undated, err := uc.results.FindSoldOutWithoutDateByProductID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load undated sold out snapshots: %w", err)
	}
	for _, s := range undated {
		add(s.ID)
	}

	return ids, nil
}
