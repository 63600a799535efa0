package domain

import "time"

// Product is a tracked product. It is owned by the admin layer; the crawler
// only reads it.
type Product struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrawlConfiguration is the search definition of a product. A crawl treats it
// as an immutable snapshot.
type CrawlConfiguration struct {
	ID        int64
	ProductID int64
	Keyword   string
	// CategoryID is nil when the search is not restricted to a category.
	CategoryID *int64
	// MinPrice and MaxPrice use 0 for "unbounded"; only positive bounds are
	// sent to the marketplace.
	MinPrice int
	MaxPrice int
	Enabled  bool
}

// HasMinPrice reports whether the lower price bound is applied.
func (c CrawlConfiguration) HasMinPrice() bool { return c.MinPrice > 0 }

// HasMaxPrice reports whether the upper price bound is applied.
func (c CrawlConfiguration) HasMaxPrice() bool { return c.MaxPrice > 0 }
