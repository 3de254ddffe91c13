package domain

import (
	"fmt"
	"time"
)

// OwnerKind различает два вида владельцев корзины.
type OwnerKind string

const (
	// OwnerKindGuest — анонимный посетитель, идентифицируемый opaque-токеном на клиенте.
	OwnerKindGuest OwnerKind = "guest"
	// OwnerKindUser — аутентифицированный пользователь со стабильным идентификатором.
	OwnerKindUser OwnerKind = "user"
)

// CartOwner — дискриминированная идентичность владельца корзины.
// У каждого владельца в любой момент существует не более одной корзины.
type CartOwner struct {
	Kind OwnerKind
	// ID — guest-токен либо user id, в зависимости от Kind.
	ID string
}

// GuestOwner создаёт идентичность гостевой корзины по токену.
func GuestOwner(token string) CartOwner {
	return CartOwner{Kind: OwnerKindGuest, ID: token}
}

// UserOwner создаёт идентичность пользовательской корзины.
func UserOwner(userID string) CartOwner {
	return CartOwner{Kind: OwnerKindUser, ID: userID}
}

// Key возвращает ключ хранения. Полный порядок по ключам используется
// для упорядочивания блокировок при merge.
func (o CartOwner) Key() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}

// Validate проверяет, что идентичность владельца заполнена корректно.
func (o CartOwner) Validate() error {
	if o.ID == "" {
		return ErrCartOwnerRequired
	}
	if o.Kind != OwnerKindGuest && o.Kind != OwnerKindUser {
		return ErrCartOwnerRequired
	}
	return nil
}

// CartLine представляет одну позицию корзины: товар и его количество.
type CartLine struct {
	// ProductID — внешний идентификатор товара в каталоге.
	ProductID string
	// Qty — количество единиц товара, всегда >= 1 (позиция с нулём не существует).
	Qty int32
	// PriceMinor — снимок цены на момент добавления, в минимальных денежных единицах.
	// Справочное поле для отображения; на чекауте не авторитетно.
	PriceMinor int64
	// AddedAt фиксирует момент появления позиции в корзине.
	AddedAt time.Time
}

// Cart агрегирует позиции одного владельца.
// Порядок позиций не несёт смысла; внутри корзины ProductID уникален.
type Cart struct {
	Owner     CartOwner
	Lines     []CartLine
	UpdatedAt time.Time
}

// NewCart возвращает пустую корзину владельца. Корзина создаётся лениво:
// хранилище отдаёт её и для владельцев без единой записи.
func NewCart(owner CartOwner) Cart {
	return Cart{Owner: owner, Lines: []CartLine{}}
}

// Line возвращает позицию по товару, если она есть.
func (c *Cart) Line(productID string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// SetLine заменяет позицию с тем же ProductID или добавляет новую.
func (c *Cart) SetLine(line CartLine) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == line.ProductID {
			c.Lines[i] = line
			return
		}
	}
	c.Lines = append(c.Lines, line)
}

// RemoveLine удаляет позицию; возвращает false, если её не было.
func (c *Cart) RemoveLine(productID string) bool {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return true
		}
	}
	return false
}

// ItemCount возвращает суммарное количество единиц товара в корзине.
func (c *Cart) ItemCount() int32 {
	var count int32
	for _, line := range c.Lines {
		count += line.Qty
	}
	return count
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Clone возвращает глубокую копию корзины. Хранилища оперируют копиями,
// чтобы вызывающий код не мог мутировать сохранённое состояние.
func (c Cart) Clone() Cart {
	clone := c
	clone.Lines = make([]CartLine, len(c.Lines))
	copy(clone.Lines, c.Lines)
	return clone
}

// ValidateInvariants проверяет базовые инварианты корзины и возвращает список замечаний.
func (c *Cart) ValidateInvariants() []error {
	var errs []error

	if err := c.Owner.Validate(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(c.Lines))
	for _, line := range c.Lines {
		if line.ProductID == "" {
			errs = append(errs, ErrProductIDRequired)
		}
		if line.Qty <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[line.ProductID] = struct{}{}
	}

	return errs
}
