package constants

// Exchange and queues
const (
	CrawlExchange = "crawlflare_exchange"

	ListCrawlQueue   = "mercari-list-crawl-queue"
	DetailCrawlQueue = "mercari-detail-crawl-queue"
)

// Routing keys
const (
	ListCrawlRoutingKey   = "mercari.crawl.list"
	DetailCrawlRoutingKey = "mercari.crawl.detail"
)

// Retry topology, derived from the queue name the way the consumers declare it.
func RetryExchangeFor(queue string) string { return queue + "_retry_ex" }

func RetryQueueFor(queue string) string { return queue + "_retry_wait" }

// Consumer tags
const (
	ListCrawlConsumerTag   = "crawlflare_list_consumer"
	DetailCrawlConsumerTag = "crawlflare_detail_consumer"
)
