package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/kuroweb/crawlflare/internal/core/domain"
)

// memoryStore mirrors the postgres repository semantics closely enough for
// reconciliation tests.
type memoryStore struct {
	rows     map[int64]domain.ListingSnapshot
	nextID   int64
	upserts  [][]domain.ListingObservation
	deleted  []int64
	failOnOp string

	// beforeDelete runs ahead of every DeleteByID, e.g. to remove the row as
	// a concurrent job would.
	beforeDelete func(id int64)
}

func newMemoryStore(rows ...domain.ListingSnapshot) *memoryStore {
	s := &memoryStore{rows: map[int64]domain.ListingSnapshot{}, nextID: 1}
	for _, r := range rows {
		s.rows[r.ID] = r
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return s
}

var errStoreDown = errors.New("store unavailable")

func (s *memoryStore) fail(op string) error {
	if s.failOnOp == op {
		return errStoreDown
	}
	return nil
}

func (s *memoryStore) UpsertBatch(ctx context.Context, productID int64, observations []domain.ListingObservation) error {
	if err := s.fail("upsert"); err != nil {
		return err
	}
	s.upserts = append(s.upserts, append([]domain.ListingObservation(nil), observations...))
	for _, o := range observations {
		existing, err := s.FindByExternalID(ctx, productID, o.ExternalID)
		row := domain.ListingSnapshot{
			ProductID:  productID,
			ExternalID: o.ExternalID,
			Name:       o.Name,
			Price:      o.Price,
			SellingURL: o.SellingURL,
			ImageURL:   o.ImageURL,
			Status:     o.Status,
			SellerKind: o.SellerKind,
			SellerID:   o.SellerID,
		}
		if err == nil {
			row.ID = existing.ID
			row.SoldOutAt = existing.SoldOutAt
			row.CreatedAt = existing.CreatedAt
			if existing.Status == domain.StatusSoldOut {
				row.Status = domain.StatusSoldOut
			}
		} else {
			row.ID = s.nextID
			s.nextID++
		}
		s.rows[row.ID] = row
	}
	return nil
}

func (s *memoryStore) sorted(keep func(domain.ListingSnapshot) bool) []domain.ListingSnapshot {
	var out []domain.ListingSnapshot
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) FindByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	if err := s.fail("find"); err != nil {
		return nil, err
	}
	return s.sorted(func(r domain.ListingSnapshot) bool { return r.ProductID == productID }), nil
}

func (s *memoryStore) FindByID(ctx context.Context, id int64) (domain.ListingSnapshot, error) {
	if err := s.fail("find"); err != nil {
		return domain.ListingSnapshot{}, err
	}
	r, ok := s.rows[id]
	if !ok {
		return domain.ListingSnapshot{}, domain.ErrListingNotFound
	}
	return r, nil
}

func (s *memoryStore) FindByExternalID(ctx context.Context, productID int64, externalID string) (domain.ListingSnapshot, error) {
	for _, r := range s.rows {
		if r.ProductID == productID && r.ExternalID == externalID {
			return r, nil
		}
	}
	return domain.ListingSnapshot{}, domain.ErrListingNotFound
}

func (s *memoryStore) FindSellingByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	return s.sorted(func(r domain.ListingSnapshot) bool {
		return r.ProductID == productID && r.Status == domain.StatusSelling
	}), nil
}

func (s *memoryStore) FindSoldOutWithoutDateByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	return s.sorted(func(r domain.ListingSnapshot) bool {
		return r.ProductID == productID && r.NeedsSoldOutDate()
	}), nil
}

func (s *memoryStore) UpdateByID(ctx context.Context, id int64, patch domain.ListingPatch) error {
	if err := s.fail("update"); err != nil {
		return err
	}
	r, ok := s.rows[id]
	if !ok {
		return domain.ErrListingNotFound
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Price != nil {
		r.Price = *patch.Price
	}
	if patch.ImageURL != nil {
		r.ImageURL = *patch.ImageURL
	}
	if patch.Status != nil {
		r.Status = *patch.Status
	}
	if patch.SoldOutAt != nil {
		at := *patch.SoldOutAt
		r.SoldOutAt = &at
	}
	s.rows[id] = r
	return nil
}

func (s *memoryStore) DeleteByID(ctx context.Context, id int64) error {
	if s.beforeDelete != nil {
		s.beforeDelete(id)
	}
	if err := s.fail("delete"); err != nil {
		return err
	}
	if _, ok := s.rows[id]; !ok {
		return domain.ErrListingNotFound
	}
	delete(s.rows, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *memoryStore) DeleteByProductID(ctx context.Context, productID int64) (int64, error) {
	var n int64
	for id, r := range s.rows {
		if r.ProductID == productID {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeProducts struct {
	products map[int64]domain.Product
	settings map[int64]domain.CrawlConfiguration
}

func newFakeProducts(settings ...domain.CrawlConfiguration) *fakeProducts {
	f := &fakeProducts{products: map[int64]domain.Product{}, settings: map[int64]domain.CrawlConfiguration{}}
	for _, s := range settings {
		f.products[s.ProductID] = domain.Product{ID: s.ProductID, Name: "product"}
		f.settings[s.ProductID] = s
	}
	return f
}

func (f *fakeProducts) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProducts) FindCrawlConfiguration(ctx context.Context, productID int64) (domain.CrawlConfiguration, error) {
	s, ok := f.settings[productID]
	if !ok {
		return domain.CrawlConfiguration{}, domain.ErrCrawlSettingNotFound
	}
	return s, nil
}

func (f *fakeProducts) FindEnabledCrawlConfigurations(ctx context.Context) ([]domain.CrawlConfiguration, error) {
	var out []domain.CrawlConfiguration
	for _, s := range f.settings {
		if s.Enabled {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

type fakeCrawler struct {
	observations []domain.ListingObservation
	err          error
	calls        []bool
}

func (f *fakeCrawler) CrawlList(ctx context.Context, cfg domain.CrawlConfiguration, isFirstRun bool) ([]domain.ListingObservation, error) {
	f.calls = append(f.calls, isFirstRun)
	return f.observations, f.err
}

type fakeQueue struct {
	list    []domain.ListCrawlJob
	batches [][]domain.DetailCrawlJob
	err     error
}

func (f *fakeQueue) EnqueueListCrawl(ctx context.Context, job domain.ListCrawlJob) error {
	if f.err != nil {
		return f.err
	}
	f.list = append(f.list, job)
	return nil
}

func (f *fakeQueue) EnqueueDetailCrawls(ctx context.Context, jobs []domain.DetailCrawlJob) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, jobs)
	return nil
}

type fakeFetcher struct {
	detail domain.ListingDetail
	err    error
	urls   []string
	panics bool
}

func (f *fakeFetcher) FetchDetail(ctx context.Context, listingURL string) (domain.ListingDetail, error) {
	f.urls = append(f.urls, listingURL)
	if f.panics {
		panic("selector exploded")
	}
	return f.detail, f.err
}

func observation(id string, price int) domain.ListingObservation {
	return domain.ListingObservation{
		ExternalID: id,
		Name:       "item " + id,
		Price:      price,
		SellingURL: "https://jp.mercari.com/item/" + id,
		Status:     domain.StatusSelling,
		SellerKind: domain.SellerIndividual,
	}
}

func snapshot(id int64, productID int64, externalID string, status domain.SellingStatus) domain.ListingSnapshot {
	return domain.ListingSnapshot{
		ID:         id,
		ProductID:  productID,
		ExternalID: externalID,
		Name:       "item " + externalID,
		Price:      1000,
		SellingURL: "https://jp.mercari.com/item/" + externalID,
		Status:     status,
		SellerKind: domain.SellerIndividual,
	}
}

func timePtr(t time.Time) *time.Time { return &t }
