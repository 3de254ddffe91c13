package domain

import "context"

// CartRepository описывает требования к хранилищу корзин.
// Это единственная I/O-граница подсистемы; все операции ключуются владельцем.
type CartRepository interface {
	// Get возвращает текущую корзину владельца. Для владельца без записи
	// возвращается пустая корзина, а не ошибка.
	Get(ctx context.Context, owner CartOwner) (Cart, error)
	// Put атомарно перезаписывает корзину владельца. Частичная запись запрещена.
	Put(ctx context.Context, cart Cart) error
	// Delete удаляет корзину владельца. Удаление отсутствующей корзины — no-op.
	Delete(ctx context.Context, owner CartOwner) error
}

// Product — товар каталога в объёме, нужном корзине.
type Product struct {
	ID         string
	Name       string
	PriceMinor int64
}

// ProductCatalog описывает взаимодействие с каталогом товаров (внешний коллаборатор).
type ProductCatalog interface {
	// Lookup возвращает товар и его текущую цену или ErrProductNotFound.
	Lookup(ctx context.Context, productID string) (Product, error)
}
