package cart

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/caseymorris321/waterslab/internal/domain"
	"github.com/caseymorris321/waterslab/internal/messaging/kafka"
	"github.com/caseymorris321/waterslab/internal/metrics"
)

// Config задаёт бизнес-параметры корзины.
type Config struct {
	// MaxQtyPerLine — верхняя граница количества в одной позиции.
	// Политика — clamp: превышение обрезается до максимума, а не отклоняется,
	// потому что merge складывает количества и обязан обрезать их к тому же пределу.
	MaxQtyPerLine int32
	// ShippingFeeMinor — фиксированная стоимость доставки при непустой корзине.
	ShippingFeeMinor int64
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		MaxQtyPerLine:    99,
		ShippingFeeMinor: 800,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxQtyPerLine <= 0 {
		c.MaxQtyPerLine = DefaultConfig().MaxQtyPerLine
	}
	if c.ShippingFeeMinor < 0 {
		c.ShippingFeeMinor = DefaultConfig().ShippingFeeMinor
	}
	return c
}

// Service реализует мутатор корзины, координатор слияния и проекцию
// поверх CartRepository. Все мутации одного владельца сериализуются
// keyed-локом; операции разных владельцев независимы.
type Service struct {
	repo     domain.CartRepository
	catalog  domain.ProductCatalog
	cfg      Config
	locks    *ownerLocker
	logger   *log.Entry
	metrics  *metrics.CartMetrics
	producer *kafka.Producer // опциональный Kafka producer для событий корзины
}

// NewService создаёт рабочий экземпляр сервиса корзины.
func NewService(
	repo domain.CartRepository,
	catalog domain.ProductCatalog,
	cfg Config,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "cart")
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		cfg:     cfg.withDefaults(),
		locks:   newOwnerLocker(),
		logger:  logger,
		metrics: metrics.NewCartMetrics(),
	}
}

// NewServiceWithKafka создаёт сервис, публикующий события корзины в Kafka.
func NewServiceWithKafka(
	repo domain.CartRepository,
	catalog domain.ProductCatalog,
	cfg Config,
	producer *kafka.Producer,
	logger *log.Entry,
) *Service {
	svc := NewService(repo, catalog, cfg, logger)
	svc.producer = producer
	return svc
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	repo domain.CartRepository,
	catalog domain.ProductCatalog,
	cfg Config,
	logger *log.Entry,
) *Service {
	svc := NewService(repo, catalog, cfg, logger)
	svc.metrics = nil
	return svc
}

// clampQty обрезает количество к настроенному максимуму на позицию.
func (s *Service) clampQty(qty int64) int32 {
	maxQty := int64(s.cfg.MaxQtyPerLine)
	if qty > maxQty {
		return s.cfg.MaxQtyPerLine
	}
	return int32(qty)
}

// publishCartEvent отправляет событие в Kafka, если producer настроен.
// Событие справочное: инвалидация UI-кэшей делается повторным чтением, не шиной.
func (s *Service) publishCartEvent(eventType kafka.EventType, ownerKey string, itemCount int32, metadata map[string]interface{}) {
	if s.producer == nil {
		return
	}
	event := kafka.NewCartEvent(eventType, ownerKey, itemCount, metadata)
	if err := s.producer.PublishEvent(kafka.TopicCartEvents, ownerKey, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"event_type": string(eventType),
			"owner":      ownerKey,
		}).Warn("failed to publish cart event")
	}
}

// failureReason приводит ошибку мутации к метке метрик.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, domain.ErrLineNotFound):
		return "line_not_found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, domain.ErrCartOwnerRequired):
		return "owner_required"
	default:
		return "internal"
	}
}
