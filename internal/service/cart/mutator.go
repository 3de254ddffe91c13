package cart

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/messaging/kafka"
)

// Op — тег операции мутации корзины.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// Mutation описывает одну операцию над корзиной.
type Mutation struct {
	Op        Op
	ProductID string
	Qty       int32
}

// Apply выполняет одну мутацию как полный read-modify-write: читает текущую
// корзину владельца, применяет операцию к копии и сохраняет результат.
// Последовательность сериализована по владельцу; при любой ошибке сохранённая
// корзина остаётся в последнем зафиксированном состоянии.
func (s *Service) Apply(ctx context.Context, owner domain.CartOwner, m Mutation) (domain.Cart, error) {
	start := time.Now()
	cart, err := s.apply(ctx, owner, m)
	if s.metrics != nil {
		s.metrics.RecordMutationDuration(string(m.Op), time.Since(start))
		if err != nil {
			s.metrics.RecordMutationFailure(string(m.Op), failureReason(err))
		} else {
			s.metrics.RecordMutation(string(m.Op))
		}
	}
	return cart, err
}

func (s *Service) apply(ctx context.Context, owner domain.CartOwner, m Mutation) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	unlock := s.locks.Lock(owner.Key())
	defer unlock()

	cart, err := s.repo.Get(ctx, owner)
	if err != nil {
		return domain.Cart{}, err
	}

	var changed bool
	switch m.Op {
	case OpAdd:
		changed, err = s.applyAdd(ctx, &cart, m)
	case OpUpdate:
		changed, err = s.applyUpdate(&cart, m)
	case OpRemove:
		changed = cart.RemoveLine(m.ProductID)
	case OpClear:
		changed = !cart.IsEmpty()
		cart.Lines = cart.Lines[:0]
	default:
		err = fmt.Errorf("unknown cart operation %q", m.Op)
	}
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": string(m.Op),
			"owner":     owner.Key(),
			"product":   m.ProductID,
		}).Warn("cart mutation rejected")
		return domain.Cart{}, err
	}

	// Удаление отсутствующей позиции и clear пустой корзины — успешные no-op:
	// состояние и lastModifiedAt не трогаем.
	if !changed {
		return cart, nil
	}

	cart.UpdatedAt = time.Now().UTC()
	if err := s.repo.Put(ctx, cart); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": string(m.Op),
			"owner":     owner.Key(),
		}).Error("failed to persist cart")
		return domain.Cart{}, err
	}

	eventType := kafka.EventTypeCartMutated
	if m.Op == OpClear {
		eventType = kafka.EventTypeCartCleared
	}
	s.publishCartEvent(eventType, owner.Key(), cart.ItemCount(), map[string]interface{}{
		"operation":  string(m.Op),
		"product_id": m.ProductID,
	})

	return cart, nil
}

// applyAdd накапливает количество существующей позиции либо создаёт новую,
// предварительно проверив товар в каталоге. Количество обрезается к MaxQtyPerLine.
func (s *Service) applyAdd(ctx context.Context, cart *domain.Cart, m Mutation) (bool, error) {
	if m.Qty <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	product, err := s.catalog.Lookup(ctx, m.ProductID)
	if err != nil {
		return false, err
	}

	if line, ok := cart.Line(m.ProductID); ok {
		line.Qty = s.clampQty(int64(line.Qty) + int64(m.Qty))
		cart.SetLine(line)
		return true, nil
	}

	cart.SetLine(domain.CartLine{
		ProductID:  product.ID,
		Qty:        s.clampQty(int64(m.Qty)),
		PriceMinor: product.PriceMinor,
		AddedAt:    time.Now().UTC(),
	})
	return true, nil
}

// applyUpdate выставляет точное количество существующей позиции.
// Ноль и отрицательные значения отклоняются: удаление — через OpRemove.
func (s *Service) applyUpdate(cart *domain.Cart, m Mutation) (bool, error) {
	if m.Qty <= 0 {
		return false, domain.ErrInvalidQuantity
	}

	line, ok := cart.Line(m.ProductID)
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrLineNotFound, m.ProductID)
	}

	line.Qty = s.clampQty(int64(m.Qty))
	cart.SetLine(line)
	return true, nil
}

// Add добавляет qty единиц товара в корзину владельца.
func (s *Service) Add(ctx context.Context, owner domain.CartOwner, productID string, qty int32) (domain.Cart, error) {
	return s.Apply(ctx, owner, Mutation{Op: OpAdd, ProductID: productID, Qty: qty})
}

// Update выставляет точное количество позиции.
func (s *Service) Update(ctx context.Context, owner domain.CartOwner, productID string, qty int32) (domain.Cart, error) {
	return s.Apply(ctx, owner, Mutation{Op: OpUpdate, ProductID: productID, Qty: qty})
}

// Remove удаляет позицию; отсутствие позиции — успешный no-op.
func (s *Service) Remove(ctx context.Context, owner domain.CartOwner, productID string) (domain.Cart, error) {
	return s.Apply(ctx, owner, Mutation{Op: OpRemove, ProductID: productID})
}

// Clear удаляет все позиции; корзина владельца продолжает существовать пустой.
func (s *Service) Clear(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	return s.Apply(ctx, owner, Mutation{Op: OpClear})
}
