package usecases_port

import "context"

type RequestCrawlPort interface {
	// RequestProduct validates the product and its enabled setting, then
	// enqueues one list crawl.
	RequestProduct(ctx context.Context, productID int64) error
	// RequestAllEnabled enqueues a list crawl for every enabled setting and
	// returns how many were enqueued.
	RequestAllEnabled(ctx context.Context) (int, error)
}
