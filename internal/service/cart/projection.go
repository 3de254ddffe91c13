package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/caseymorris321/waterslab/internal/domain"
)

// Projection — производное представление корзины для витрины.
type Projection struct {
	ItemCount     int32
	SubtotalMinor int64
	ShippingMinor int64
	TotalMinor    int64
}

// Project вычисляет счётчик, подитог и итог корзины владельца. Подитог
// считается по текущим ценам каталога, а не по снимкам в позициях: позиция
// с удалённым товаром — нарушение целостности данных, а не тихий ноль.
func (s *Service) Project(ctx context.Context, owner domain.CartOwner) (Projection, error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordProjectionDuration(time.Since(start))
		}
	}()

	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		return Projection{}, err
	}
	return s.projectCart(ctx, cart)
}

// Snapshot возвращает текущую корзину вместе с проекцией — авторитетное
// состояние, которым вызывающий обновляет свои кэши после мутации.
func (s *Service) Snapshot(ctx context.Context, owner domain.CartOwner) (domain.Cart, Projection, error) {
	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		return domain.Cart{}, Projection{}, err
	}
	proj, err := s.projectCart(ctx, cart)
	if err != nil {
		return domain.Cart{}, Projection{}, err
	}
	return cart, proj, nil
}

func (s *Service) projectCart(ctx context.Context, cart domain.Cart) (Projection, error) {
	var proj Projection
	for _, line := range cart.Lines {
		product, err := s.catalog.Lookup(ctx, line.ProductID)
		if err != nil {
			return Projection{}, fmt.Errorf("project line %s: %w", line.ProductID, err)
		}
		proj.ItemCount += line.Qty
		proj.SubtotalMinor += int64(line.Qty) * product.PriceMinor
	}
	if proj.ItemCount > 0 {
		proj.ShippingMinor = s.cfg.ShippingFeeMinor
	}
	proj.TotalMinor = proj.SubtotalMinor + proj.ShippingMinor
	return proj, nil
}
