package domain

import "fmt"

// Job is a unit of work delivered by the queue. The set of variants is closed:
// ListCrawlJob and DetailCrawlJob.
type Job interface {
	isJob()
	fmt.Stringer
}

// ListCrawlJob asks for the search results of one product to be crawled and
// reconciled.
type ListCrawlJob struct {
	ProductID int64
}

func (ListCrawlJob) isJob() {}

func (j ListCrawlJob) String() string {
	return fmt.Sprintf("list-crawl(product=%d)", j.ProductID)
}

// DetailCrawlJob asks for the item page of one stored snapshot to be fetched
// and applied.
type DetailCrawlJob struct {
	SnapshotID int64
}

func (DetailCrawlJob) isJob() {}

func (j DetailCrawlJob) String() string {
	return fmt.Sprintf("detail-crawl(snapshot=%d)", j.SnapshotID)
}

// JobVerdict is the dispatcher decision for one delivery.
type JobVerdict int

const (
	VerdictAck JobVerdict = iota
	VerdictRetry
)

func (v JobVerdict) String() string {
	if v == VerdictRetry {
		return "retry"
	}
	return "ack"
}

// StalePolicy decides what a list crawl does with stored rows that are no
// longer in the search results.
type StalePolicy string

const (
	// StalePolicyDelete removes absent rows immediately.
	StalePolicyDelete StalePolicy = "delete"
	// StalePolicyVerify keeps absent selling rows and lets a detail fetch
	// decide whether they are gone.
	StalePolicyVerify StalePolicy = "verify"
)

// ParseStalePolicy maps a configuration string onto a policy.
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch StalePolicy(s) {
	case StalePolicyDelete, "":
		return StalePolicyDelete, nil
	case StalePolicyVerify:
		return StalePolicyVerify, nil
	default:
		return "", fmt.Errorf("unknown stale policy %q", s)
	}
}
