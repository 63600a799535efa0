package postgres_adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuroweb/crawlflare/internal/contextkeys"
	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

const snapshotColumns = `id, product_id, external_id, name, price, selling_url, image_url,
	selling_status, seller_type, seller_id, sold_out_at, created_at, updated_at`

// A sold out row stays sold out: GREATEST keeps status 2 over 1. sold_out_at
// is only ever written by UpdateByID.
const upsertSnapshotQuery = `
	INSERT INTO mercari_crawl_results
		(product_id, external_id, name, price, selling_url, image_url, selling_status, seller_type, seller_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (product_id, external_id) DO UPDATE SET
		name           = EXCLUDED.name,
		price          = EXCLUDED.price,
		selling_url    = EXCLUDED.selling_url,
		image_url      = EXCLUDED.image_url,
		selling_status = GREATEST(mercari_crawl_results.selling_status, EXCLUDED.selling_status),
		seller_type    = EXCLUDED.seller_type,
		seller_id      = EXCLUDED.seller_id,
		updated_at     = now()`

// PostgresResultRepository stores listing snapshots in mercari_crawl_results.
type PostgresResultRepository struct {
	pool *pgxpool.Pool
}

var _ port.ResultStorePort = (*PostgresResultRepository)(nil)

func NewPostgresResultRepository(pool *pgxpool.Pool) (*PostgresResultRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresResultRepository{pool: pool}, nil
}

func (r *PostgresResultRepository) logger(ctx context.Context, method string) port.LoggerPort {
	return contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresResultRepository",
		"method":    method,
	})
}

// UpsertBatch sends one statement per observation in a single round trip.
// Repeated external ids within one batch are applied in order.
func (r *PostgresResultRepository) UpsertBatch(ctx context.Context, productID int64, observations []domain.ListingObservation) error {
	if len(observations) == 0 {
		return nil
	}
	repoLogger := r.logger(ctx, "UpsertBatch")

	b := &pgx.Batch{}
	for _, o := range observations {
		b.Queue(upsertSnapshotQuery,
			productID, o.ExternalID, o.Name, o.Price, o.SellingURL, o.ImageURL,
			int(o.Status), int(o.SellerKind), o.SellerID,
		)
	}

	br := r.pool.SendBatch(ctx, b)
	for i := range observations {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			repoLogger.Error("Upsert failed", err, port.Fields{"external_id": observations[i].ExternalID})
			return fmt.Errorf("upsert snapshot %q: %w", observations[i].ExternalID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}

	repoLogger.Debug("Snapshots upserted", port.Fields{"product_id": productID, "count": len(observations)})
	return nil
}

func (r *PostgresResultRepository) FindByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	return r.query(ctx, "FindByProductID",
		`SELECT `+snapshotColumns+` FROM mercari_crawl_results WHERE product_id = $1 ORDER BY id`, productID)
}

func (r *PostgresResultRepository) FindSellingByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	return r.query(ctx, "FindSellingByProductID",
		`SELECT `+snapshotColumns+` FROM mercari_crawl_results
		 WHERE product_id = $1 AND selling_status = $2 ORDER BY id`,
		productID, int(domain.StatusSelling))
}

func (r *PostgresResultRepository) FindSoldOutWithoutDateByProductID(ctx context.Context, productID int64) ([]domain.ListingSnapshot, error) {
	return r.query(ctx, "FindSoldOutWithoutDateByProductID",
		`SELECT `+snapshotColumns+` FROM mercari_crawl_results
		 WHERE product_id = $1 AND selling_status = $2 AND sold_out_at IS NULL ORDER BY id`,
		productID, int(domain.StatusSoldOut))
}

func (r *PostgresResultRepository) FindByID(ctx context.Context, id int64) (domain.ListingSnapshot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM mercari_crawl_results WHERE id = $1`, id)
	s, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListingSnapshot{}, domain.ErrListingNotFound
		}
		return domain.ListingSnapshot{}, fmt.Errorf("find snapshot %d: %w", id, err)
	}
	return s, nil
}

func (r *PostgresResultRepository) FindByExternalID(ctx context.Context, productID int64, externalID string) (domain.ListingSnapshot, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM mercari_crawl_results WHERE product_id = $1 AND external_id = $2`,
		productID, externalID)
	s, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ListingSnapshot{}, domain.ErrListingNotFound
		}
		return domain.ListingSnapshot{}, fmt.Errorf("find snapshot %q: %w", externalID, err)
	}
	return s, nil
}

// UpdateByID writes only the fields set in patch and always bumps updated_at.
func (r *PostgresResultRepository) UpdateByID(ctx context.Context, id int64, patch domain.ListingPatch) error {
	repoLogger := r.logger(ctx, "UpdateByID").WithFields(port.Fields{"snapshot_id": id})

	sets := []string{"updated_at = now()"}
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Price != nil {
		add("price", *patch.Price)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.Status != nil {
		add("selling_status", int(*patch.Status))
	}
	if patch.SoldOutAt != nil {
		add("sold_out_at", *patch.SoldOutAt)
	}

	query := `UPDATE mercari_crawl_results SET ` + strings.Join(sets, ", ") + ` WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		repoLogger.Error("Failed to update snapshot", err, port.Fields{"query": query})
		return fmt.Errorf("update snapshot %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *PostgresResultRepository) DeleteByID(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mercari_crawl_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrListingNotFound
	}
	return nil
}

func (r *PostgresResultRepository) DeleteByProductID(ctx context.Context, productID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM mercari_crawl_results WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots of product %d: %w", productID, err)
	}
	r.logger(ctx, "DeleteByProductID").Info("Snapshots deleted", port.Fields{
		"product_id": productID,
		"deleted":    tag.RowsAffected(),
	})
	return tag.RowsAffected(), nil
}

func (r *PostgresResultRepository) query(ctx context.Context, method, sql string, args ...interface{}) ([]domain.ListingSnapshot, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		r.logger(ctx, method).Error("Query failed", err, nil)
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer rows.Close()

	var out []domain.ListingSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", method, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func scanSnapshot(row pgx.Row) (domain.ListingSnapshot, error) {
	var (
		s                  domain.ListingSnapshot
		status, sellerKind int16
	)
	err := row.Scan(
		&s.ID, &s.ProductID, &s.ExternalID, &s.Name, &s.Price, &s.SellingURL, &s.ImageURL,
		&status, &sellerKind, &s.SellerID, &s.SoldOutAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.ListingSnapshot{}, err
	}
	s.Status = domain.SellingStatus(status)
	s.SellerKind = domain.SellerKind(sellerKind)
	return s, nil
}
