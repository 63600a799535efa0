package postgres_adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuroweb/crawlflare/internal/core/domain"
	"github.com/kuroweb/crawlflare/internal/core/port"
)

const settingColumns = `id, product_id, keyword, category_id, min_price, max_price, enabled`

// PostgresProductRepository reads products and their Mercari crawl settings.
// Both tables are maintained by the admin side.
type PostgresProductRepository struct {
	pool *pgxpool.Pool
}

var _ port.ProductRepositoryPort = (*PostgresProductRepository)(nil)

func NewPostgresProductRepository(pool *pgxpool.Pool) (*PostgresProductRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresProductRepository{pool: pool}, nil
}

func (r *PostgresProductRepository) FindProductByID(ctx context.Context, id int64) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("find product %d: %w", id, err)
	}
	return p, nil
}

// FindCrawlConfiguration returns the newest setting of a product.
func (r *PostgresProductRepository) FindCrawlConfiguration(ctx context.Context, productID int64) (domain.CrawlConfiguration, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+settingColumns+` FROM mercari_crawl_settings
		 WHERE product_id = $1 ORDER BY id DESC LIMIT 1`, productID)
	c, err := scanSetting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CrawlConfiguration{}, domain.ErrCrawlSettingNotFound
		}
		return domain.CrawlConfiguration{}, fmt.Errorf("find crawl setting of product %d: %w", productID, err)
	}
	return c, nil
}

// FindEnabledCrawlConfigurations returns one enabled setting per product.
func (r *PostgresProductRepository) FindEnabledCrawlConfigurations(ctx context.Context) ([]domain.CrawlConfiguration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (product_id) `+settingColumns+`
		 FROM mercari_crawl_settings
		 WHERE enabled
		 ORDER BY product_id, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("find enabled crawl settings: %w", err)
	}
	defer rows.Close()

	var out []domain.CrawlConfiguration
	for rows.Next() {
		c, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crawl setting: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanSetting(row pgx.Row) (domain.CrawlConfiguration, error) {
	var c domain.CrawlConfiguration
	err := row.Scan(&c.ID, &c.ProductID, &c.Keyword, &c.CategoryID, &c.MinPrice, &c.MaxPrice, &c.Enabled)
	return c, err
}
