package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/caseymorris321/waterslab/internal/domain"
)

type ProductCatalog struct {
	db *sql.DB
}

// NewProductCatalog создаёт PostgreSQL-реализацию ProductCatalog.
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{db: store.DB()}
}

// Lookup возвращает товар по идентификатору.
func (c *ProductCatalog) Lookup(ctx context.Context, productID string) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var product domain.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor
		FROM products
		WHERE id = $1
	`, productID).Scan(&product.ID, &product.Name, &product.PriceMinor)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.Product{}, domain.StoreUnavailable("select product", err)
	}

	return product, nil
}

// UpsertProduct добавляет или обновляет товар. Используется сидированием
// каталога и интеграционными тестами.
func (c *ProductCatalog) UpsertProduct(ctx context.Context, product domain.Product) error {
	if product.ID == "" {
		return domain.ErrProductIDRequired
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := c.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price_minor)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    price_minor = EXCLUDED.price_minor
	`, product.ID, product.Name, product.PriceMinor); err != nil {
		return domain.StoreUnavailable("upsert product", err)
	}
	return nil
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)
