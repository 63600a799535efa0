package rabbitmq

type ListCrawlDTO struct {
	ProductID int64 `json:"productId"`
}

type DetailCrawlDTO struct {
	MercariCrawlResultID int64 `json:"mercariCrawlResultId"`
}
