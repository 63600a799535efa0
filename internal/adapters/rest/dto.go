package rest

import (
	"time"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// ExecuteCrawlRequest is the body of POST /api/crawl/execute. Without a
// product id every enabled setting is crawled.
type ExecuteCrawlRequest struct {
	ProductID *int64 `json:"productId" validate:"omitempty,gt=0"`
}

type ExecuteCrawlResponse struct {
	Enqueued  int    `json:"enqueued"`
	ProductID *int64 `json:"productId,omitempty"`
}

type resultPathParams struct {
	ProductID  int64  `param:"productId" validate:"gt=0"`
	ExternalID string `param:"externalId" validate:"omitempty,max=64,alphanum"`
}

type ResultResponse struct {
	ID         int64   `json:"id"`
	ProductID  int64   `json:"productId"`
	ExternalID string  `json:"externalId"`
	Name       string  `json:"name"`
	Price      int     `json:"price"`
	SellingURL string  `json:"sellingUrl"`
	ImageURL   string  `json:"imageUrl"`
	Status     string  `json:"sellingStatus"`
	SellerType string  `json:"sellerType"`
	SellerID   string  `json:"sellerId,omitempty"`
	SoldOutAt  *string `json:"soldOutAt,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

type ResultsResponse struct {
	ProductID int64            `json:"productId"`
	Total     int              `json:"total"`
	Data      []ResultResponse `json:"data"`
}

type PurgeResponse struct {
	ProductID int64 `json:"productId"`
	Deleted   int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toResultResponse(s domain.ListingSnapshot) ResultResponse {
	resp := ResultResponse{
		ID:         s.ID,
		ProductID:  s.ProductID,
		ExternalID: s.ExternalID,
		Name:       s.Name,
		Price:      s.Price,
		SellingURL: s.SellingURL,
		ImageURL:   s.ImageURL,
		Status:     s.Status.String(),
		SellerType: s.SellerKind.String(),
		SellerID:   s.SellerID,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
	if s.SoldOutAt != nil {
		soldOutAt := s.SoldOutAt.Format(time.RFC3339)
		resp.SoldOutAt = &soldOutAt
	}
	return resp
}
