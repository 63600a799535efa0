package domain

import "time"

// ListingDetail is what an item page says about one listing. Zero Name, Price
// and ImageURL mean the value could not be read and must not be compared.
type ListingDetail struct {
	Exists    bool
	Name      string
	Price     int
	ImageURL  string
	Status    SellingStatus
	SoldOutAt *time.Time
}

// DetailAction is the outcome of applying a detail fetch.
type DetailAction string

const (
	ActionUpdated  DetailAction = "UPDATED"
	ActionDeleted  DetailAction = "DELETED"
	ActionNoChange DetailAction = "NO_CHANGE"
	ActionError    DetailAction = "ERROR"
)

// DetailResult reports one detail job. Err is set only for ActionError.
type DetailResult struct {
	SnapshotID int64
	Action     DetailAction
	Message    string
	Err        error
}

// Success reports whether the job can be acknowledged as done.
func (r DetailResult) Success() bool {
	return r.Action != ActionError
}

// SyncListReport summarises one reconciliation run.
type SyncListReport struct {
	ProductID  int64
	FirstRun   bool
	Observed   int
	Upserted   int
	Deleted    int
	DetailJobs int
}
