package domain

import "errors"

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrCrawlSettingNotFound = errors.New("crawl setting not found")
	ErrCrawlDisabled        = errors.New("crawl setting is disabled")
	ErrListingNotFound      = errors.New("listing snapshot not found")

	// ErrUnknownJob is returned for a message that maps to no job variant.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidJob is returned for a message whose payload cannot be decoded.
	ErrInvalidJob = errors.New("invalid job payload")
)

// IsTerminal reports whether a job that failed with err can never succeed on
// redelivery.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCrawlSettingNotFound) ||
		errors.Is(err, ErrCrawlDisabled) ||
		errors.Is(err, ErrListingNotFound) ||
		errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, ErrInvalidJob)
}
