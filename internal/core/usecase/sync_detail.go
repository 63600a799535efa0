package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

// SyncDetailUseCase fetches the item page of one stored snapshot and applies
// what it finds.
type SyncDetailUseCase struct {
	results port.ResultStorePort
	fetcher port.DetailFetcherPort
	now     func() time.Time
}

func NewSyncDetailUseCase(results port.ResultStorePort, fetcher port.DetailFetcherPort) *SyncDetailUseCase {
	return &SyncDetailUseCase{
		results: results,
		fetcher: fetcher,
		now:     time.Now,
	}
}

// Execute never returns an error; failures are reported as ActionError with
// Err set.
func (uc *SyncDetailUseCase) Execute(ctx context.Context, snapshotID int64) (result domain.DetailResult) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":    "SyncDetail",
		"snapshot_id": snapshotID,
	})
	result.SnapshotID = snapshotID

	// a panicking parser must not take the batch handler down with it
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("detail sync panicked: %v", r)
			logger.Error("Recovered from panic", err, nil)
			result = errorResult(snapshotID, err)
		}
	}()

	stored, err := uc.results.FindByID(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, domain.ErrListingNotFound) {
			logger.Warn("Snapshot no longer exists", nil)
		}
		return errorResult(snapshotID, fmt.Errorf("load snapshot: %w", err))
	}
	logger = logger.WithFields(port.Fields{"external_id": stored.ExternalID})

	detail, err := uc.fetcher.FetchDetail(ctx, stored.SellingURL)
	if err != nil {
		return errorResult(snapshotID, fmt.Errorf("fetch detail %s: %w", stored.SellingURL, err))
	}

	if !detail.Exists {
		if err := uc.results.DeleteByID(ctx, snapshotID); err != nil {
			return errorResult(snapshotID, fmt.Errorf("delete removed listing: %w", err))
		}
		logger.Info("Listing removed from marketplace, snapshot deleted", nil)
		return domain.DetailResult{SnapshotID: snapshotID, Action: domain.ActionDeleted, Message: "listing removed"}
	}

	patch, action := planDetailUpdate(stored, detail, uc.now())
	if action == domain.ActionNoChange {
		logger.Debug("Snapshot unchanged", nil)
		return domain.DetailResult{SnapshotID: snapshotID, Action: domain.ActionNoChange}
	}

	if err := uc.results.UpdateByID(ctx, snapshotID, patch); err != nil {
		return errorResult(snapshotID, fmt.Errorf("update snapshot: %w", err))
	}
	logger.Info("Snapshot updated from item page", port.Fields{"status": detail.Status.String()})
	return domain.DetailResult{SnapshotID: snapshotID, Action: domain.ActionUpdated, Message: describePatch(patch)}
}

func errorResult(snapshotID int64, err error) domain.DetailResult {
	return domain.DetailResult{
		SnapshotID: snapshotID,
		Action:     domain.ActionError,
		Message:    err.Error(),
		Err:        err,
	}
}

// planDetailUpdate decides how an existing item page changes the stored row.
// The returned patch is empty unless the action is ActionUpdated.
func planDetailUpdate(stored domain.ListingSnapshot, detail domain.ListingDetail, now time.Time) (domain.ListingPatch, domain.DetailAction) {
	switch {
	case stored.Status == domain.StatusSelling && detail.Status == domain.StatusSoldOut:
		patch := refreshedFields(stored, detail)
		status := domain.StatusSoldOut
		patch.Status = &status
		patch.SoldOutAt = soldOutDateOrNow(detail, now)
		return patch, domain.ActionUpdated

	case stored.Status == domain.StatusSelling:
		patch := refreshedFields(stored, detail)
		if patch.IsEmpty() {
			return domain.ListingPatch{}, domain.ActionNoChange
		}
		return patch, domain.ActionUpdated

	case stored.NeedsSoldOutDate():
		patch := refreshedFields(stored, detail)
		patch.SoldOutAt = soldOutDateOrNow(detail, now)
		return patch, domain.ActionUpdated
	}

	return domain.ListingPatch{}, domain.ActionNoChange
}

// refreshedFields holds the observed values that differ from the stored row.
// Values the page did not yield are skipped.
func refreshedFields(stored domain.ListingSnapshot, detail domain.ListingDetail) domain.ListingPatch {
	var patch domain.ListingPatch
	if detail.Name != "" && detail.Name != stored.Name {
		name := detail.Name
		patch.Name = &name
	}
	if detail.Price > 0 && detail.Price != stored.Price {
		price := detail.Price
		patch.Price = &price
	}
	if detail.ImageURL != "" && detail.ImageURL != stored.ImageURL {
		image := detail.ImageURL
		patch.ImageURL = &image
	}
	return patch
}

func soldOutDateOrNow(detail domain.ListingDetail, now time.Time) *time.Time {
	if detail.SoldOutAt != nil {
		at := *detail.SoldOutAt
		return &at
	}
	return &now
}

func describePatch(p domain.ListingPatch) string {
	msg := "updated"
	if p.Status != nil {
		msg += " status=" + p.Status.String()
	}
	if p.SoldOutAt != nil {
		msg += " sold_out_at=" + p.SoldOutAt.Format(time.RFC3339)
	}
	if p.Price != nil {
		msg += fmt.Sprintf(" price=%d", *p.Price)
	}
	if p.Name != nil {
		msg += " name"
	}
	if p.ImageURL != nil {
		msg += " image"
	}
	return msg
}
