package catalog

import (
	"context"
	"sync"

	"github.com/caseymorris321/waterslab/internal/domain"
)

// MockService — конфигурируемая заглушка ProductCatalog для тестов и локальной
// разработки. Реальный каталог — внешний коллаборатор витрины.
type MockService struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	LookupErr error

	LookupCalls int
}

// NewMockService возвращает mock с небольшим ассортиментом по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		products: map[string]domain.Product{
			"sku-7":  {ID: "sku-7", Name: "Reef Tumbler", PriceMinor: 2400},
			"sku-11": {ID: "sku-11", Name: "Tidal Bottle", PriceMinor: 3200},
			"sku-13": {ID: "sku-13", Name: "Droplet Carafe", PriceMinor: 4500},
		},
	}
}

// NewEmptyMockService возвращает mock без товаров.
func NewEmptyMockService() *MockService {
	return &MockService{products: make(map[string]domain.Product)}
}

// SetProduct добавляет или заменяет товар в каталоге.
func (m *MockService) SetProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// RemoveProduct удаляет товар — для сценариев с нарушенной целостностью данных.
func (m *MockService) RemoveProduct(productID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, productID)
}

// Lookup возвращает товар, заранее настроенную ошибку или ErrProductNotFound.
func (m *MockService) Lookup(_ context.Context, productID string) (domain.Product, error) {
	m.mu.Lock()
	m.LookupCalls++
	m.mu.Unlock()

	if m.LookupErr != nil {
		return domain.Product{}, m.LookupErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	product, ok := m.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

var _ domain.ProductCatalog = (*MockService)(nil)
