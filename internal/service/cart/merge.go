package cart

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/messaging/kafka"
)

const (
	// guestDeleteAttempts ограничивает повтор удаления гостевой корзины после
	// успешной записи пользовательской. Сами шаги слияния не повторяются.
	guestDeleteAttempts = 3
	guestDeleteBackoff  = 50 * time.Millisecond
)

// Merge складывает гостевую корзину в пользовательскую при входе в аккаунт.
// Количества совпадающих товаров суммируются (намерение гостя аддитивно) и
// обрезаются к MaxQtyPerLine; новые позиции переносятся как есть. После записи
// пользовательской корзины гостевая удаляется, поэтому повторный вызов для того
// же токена находит пустую гостевую корзину и становится безопасным no-op —
// идемпотентность обеспечивается сервером, а не one-shot флагом клиента.
func (s *Service) Merge(ctx context.Context, guestToken, userID string) error {
	start := time.Now()
	err := s.merge(ctx, guestToken, userID)
	if s.metrics != nil {
		s.metrics.RecordMergeDuration(time.Since(start))
	}
	return err
}

func (s *Service) merge(ctx context.Context, guestToken, userID string) error {
	guest := domain.GuestOwner(guestToken)
	user := domain.UserOwner(userID)
	if err := guest.Validate(); err != nil {
		return err
	}
	if err := user.Validate(); err != nil {
		return err
	}

	logger := s.logger.WithFields(log.Fields{
		"guest": guest.Key(),
		"user":  user.Key(),
	})

	// Оба ключа захватываются в фиксированном глобальном порядке.
	unlock := s.locks.LockPair(guest.Key(), user.Key())
	defer unlock()

	guestCart, err := s.repo.Get(ctx, guest)
	if err != nil {
		return err
	}
	if guestCart.IsEmpty() {
		// Гостевой корзины нет (или merge уже состоялся) — ничего не делаем.
		if s.metrics != nil {
			s.metrics.RecordMergeNoop()
		}
		logger.Debug("guest cart empty, merge is a no-op")
		return nil
	}

	userCart, err := s.repo.Get(ctx, user)
	if err != nil {
		return err
	}

	merged := s.foldLines(&userCart, guestCart.Lines)
	userCart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Put(ctx, userCart); err != nil {
		// Пользовательская корзина не записана — слияние не состоялось,
		// гостевую не трогаем.
		logger.WithError(err).Error("failed to persist merged cart")
		return err
	}

	// Пользовательская корзина записана и с этого момента авторитетна.
	// Шаги слияния выше не повторяются, иначе количества задвоятся;
	// повторяется только удаление гостевой записи.
	if err := s.deleteGuestCart(ctx, guest); err != nil {
		logger.WithError(err).Error("failed to delete guest cart after merge")
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordMerge(merged)
	}
	s.publishCartEvent(kafka.EventTypeCartMerged, user.Key(), userCart.ItemCount(), map[string]interface{}{
		"guest":        guest.Key(),
		"merged_lines": merged,
	})
	logger.WithField("merged_lines", merged).Info("guest cart merged into user cart")

	return nil
}

// foldLines вливает позиции гостя в пользовательскую корзину и возвращает
// число обработанных позиций. Порядок обхода детерминирован по ProductID.
func (s *Service) foldLines(userCart *domain.Cart, guestLines []domain.CartLine) int {
	lines := make([]domain.CartLine, len(guestLines))
	copy(lines, guestLines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	for _, guestLine := range lines {
		if userLine, ok := userCart.Line(guestLine.ProductID); ok {
			userLine.Qty = s.clampQty(int64(userLine.Qty) + int64(guestLine.Qty))
			userCart.SetLine(userLine)
			continue
		}
		userCart.SetLine(guestLine)
	}
	return len(lines)
}

func (s *Service) deleteGuestCart(ctx context.Context, guest domain.CartOwner) error {
	var err error
	for attempt := 1; attempt <= guestDeleteAttempts; attempt++ {
		if err = s.repo.Delete(ctx, guest); err == nil {
			return nil
		}
		if attempt < guestDeleteAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(guestDeleteBackoff):
			}
		}
	}
	return err
}
