package kafka

import "time"

// EventType определяет тип события корзины.
type EventType string

const (
	// Мутации корзины
	EventTypeCartMutated EventType = "cart.mutated"
	EventTypeCartCleared EventType = "cart.cleared"

	// Слияние гостевой корзины при входе
	EventTypeCartMerged EventType = "cart.merged"
)

// Topics для Kafka
const (
	TopicCartEvents = "storefront.cart.events"
)

// CartEvent представляет событие корзины. События справочные (аналитика,
// аудит); консистентность UI обеспечивается повторным чтением, а не шиной.
type CartEvent struct {
	EventType EventType              `json:"event_type"`
	OwnerKey  string                 `json:"owner_key"`
	ItemCount int32                  `json:"item_count"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewCartEvent создает новое событие корзины.
func NewCartEvent(eventType EventType, ownerKey string, itemCount int32, metadata map[string]interface{}) *CartEvent {
	return &CartEvent{
		EventType: eventType,
		OwnerKey:  ownerKey,
		ItemCount: itemCount,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}
