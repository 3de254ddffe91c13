package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/caseymorris321/waterslab/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

// Get возвращает корзину владельца. Отсутствующая корзина — это пустая
// корзина, а не ошибка.
func (r *cartRepository) Get(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cart := domain.NewCart(owner)

	err := r.db.QueryRowContext(ctx, `
		SELECT updated_at
		FROM carts
		WHERE owner_key = $1
	`, owner.Key()).Scan(&cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cart, nil
	}
	if err != nil {
		return domain.Cart{}, domain.StoreUnavailable("select cart", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, qty, price_minor, added_at
		FROM cart_lines
		WHERE owner_key = $1
		ORDER BY added_at ASC, product_id ASC
	`, owner.Key())
	if err != nil {
		return domain.Cart{}, domain.StoreUnavailable("select cart lines", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Qty, &line.PriceMinor, &line.AddedAt); err != nil {
			return domain.Cart{}, domain.StoreUnavailable("scan cart line", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return domain.Cart{}, domain.StoreUnavailable("iterate cart lines", err)
	}

	return cart, nil
}

// Put сохраняет корзину целиком в одной транзакции: upsert заголовка,
// удаление старых позиций и вставка актуальных.
func (r *cartRepository) Put(ctx context.Context, cart domain.Cart) error {
	if err := cart.Owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreUnavailable("begin tx", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO carts (owner_key, owner_kind, owner_id, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_key) DO UPDATE
		SET updated_at = EXCLUDED.updated_at
	`, cart.Owner.Key(), string(cart.Owner.Kind), cart.Owner.ID, cart.UpdatedAt)
	if err != nil {
		return domain.StoreUnavailable("upsert cart", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE owner_key = $1
	`, cart.Owner.Key())
	if err != nil {
		return domain.StoreUnavailable("delete stale cart lines", err)
	}

	for _, line := range cart.Lines {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO cart_lines (owner_key, product_id, qty, price_minor, added_at)
			VALUES ($1, $2, $3, $4, $5)
		`, cart.Owner.Key(), line.ProductID, line.Qty, line.PriceMinor, line.AddedAt); err != nil {
			return domain.StoreUnavailable("insert cart line", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.StoreUnavailable("commit put cart", err)
	}

	return nil
}

// Delete удаляет корзину владельца. Отсутствие корзины — не ошибка.
func (r *cartRepository) Delete(ctx context.Context, owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM carts WHERE owner_key = $1
	`, owner.Key()); err != nil {
		return domain.StoreUnavailable("delete cart", err)
	}
	return nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
