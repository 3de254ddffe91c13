package memory

import (
	"context"
	"sync"

	"github.com/caseymorris321/waterslab/internal/domain"
)

// cartRepositoryInMemory — простая in-memory реализация CartRepository.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository возвращает in-memory хранилище корзин для локальной разработки и тестов.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{
		items: make(map[string]domain.Cart),
	}
}

// Get возвращает корзину владельца; для отсутствующего владельца — пустую корзину.
func (r *cartRepositoryInMemory) Get(_ context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if err := owner.Validate(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[owner.Key()]
	if !ok {
		return domain.NewCart(owner), nil
	}
	// Отдаём копию, чтобы избежать непредсказуемых мутаций извне.
	return cart.Clone(), nil
}

// Put перезаписывает корзину владельца целиком.
func (r *cartRepositoryInMemory) Put(_ context.Context, cart domain.Cart) error {
	if err := cart.Owner.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[cart.Owner.Key()] = cart.Clone()
	return nil
}

// Delete удаляет корзину владельца; отсутствующая корзина — no-op.
func (r *cartRepositoryInMemory) Delete(_ context.Context, owner domain.CartOwner) error {
	if err := owner.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, owner.Key())
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
