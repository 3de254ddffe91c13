package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity — количество не является положительным целым числом.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrProductNotFound — товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrLineNotFound — позиция для товара в корзине не существует.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrStoreUnavailable — временная ошибка ввода-вывода хранилища корзин.
	// Корзина гарантированно не изменена; повтор — на усмотрение вызывающего.
	ErrStoreUnavailable = errors.New("cart store unavailable")
	// ErrMergeConflict зарезервирован под будущие неаддитивные политики слияния.
	// Аддитивная политика его не возвращает.
	ErrMergeConflict = errors.New("cart merge conflict")
	// ErrCartOwnerRequired — идентичность владельца корзины не заполнена.
	ErrCartOwnerRequired = errors.New("cart owner is required")
	// ErrProductIDRequired — позиция без идентификатора товара.
	ErrProductIDRequired = errors.New("product_id is required")
	// ErrLinePriceInvalid — отрицательный снимок цены позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// ErrDuplicateLine — в корзине больше одной позиции на товар.
	ErrDuplicateLine = errors.New("cart contains duplicate product line")
)

// StoreUnavailable оборачивает ошибку I/O хранилища так, чтобы вызывающий код
// распознавал её через errors.Is(err, ErrStoreUnavailable).
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// IsStoreUnavailable проверяет, является ли ошибка временной ошибкой хранилища.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
