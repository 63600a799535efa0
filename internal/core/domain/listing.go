package domain

import "time"

// SellingStatus values match the integers stored in the results table.
type SellingStatus int

const (
	StatusSelling SellingStatus = 1
	StatusSoldOut SellingStatus = 2
)

func (s SellingStatus) String() string {
	switch s {
	case StatusSelling:
		return "SELLING"
	case StatusSoldOut:
		return "SOLD_OUT"
	default:
		return "UNKNOWN"
	}
}

// SellerKind values match the integers stored in the results table.
type SellerKind int

const (
	SellerIndividual SellerKind = 1
	SellerShop       SellerKind = 2
)

func (k SellerKind) String() string {
	switch k {
	case SellerIndividual:
		return "INDIVIDUAL"
	case SellerShop:
		return "SHOP"
	default:
		return "UNKNOWN"
	}
}

// ListingObservation is one listing card as seen on a search results page.
type ListingObservation struct {
	ExternalID string
	Name       string
	Price      int
	SellingURL string
	ImageURL   string
	Status     SellingStatus
	SellerKind SellerKind
	SellerID   string
}

// ListingSnapshot is the stored state of one listing of one product, unique
// per (ProductID, ExternalID).
type ListingSnapshot struct {
	ID         int64
	ProductID  int64
	ExternalID string
	Name       string
	Price      int
	SellingURL string
	ImageURL   string
	Status     SellingStatus
	SellerKind SellerKind
	SellerID   string
	// SoldOutAt may be nil for a SOLD_OUT row whose date is not resolved yet.
	// Once set it is never cleared.
	SoldOutAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NeedsSoldOutDate reports a sold out row whose date is still unknown.
func (s ListingSnapshot) NeedsSoldOutDate() bool {
	return s.Status == StatusSoldOut && s.SoldOutAt == nil
}

// ListingPatch is a partial update. Nil fields are left untouched. There is
// deliberately no way to clear SoldOutAt.
type ListingPatch struct {
	Name      *string
	Price     *int
	ImageURL  *string
	Status    *SellingStatus
	SoldOutAt *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p ListingPatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.ImageURL == nil && p.Status == nil && p.SoldOutAt == nil
}
