package sale

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/pos-service/internal/domain"
)

// mockBackend keeps sales in memory and records every request it receives.
type mockBackend struct {
	m         sync.Mutex
	sales     map[string]*domain.Sale
	requests  []*domain.SaleRequest
	deleted   []string
	createErr error
	fetchErr  error
	deleteErr error
	// totals overrides the totals echoed back on create when set
	totals *domain.Totals
	seq    int
}

func newMockBackend() *mockBackend {
	return &mockBackend{sales: make(map[string]*domain.Sale)}
}

func (m *mockBackend) CreateSale(_ context.Context, req *domain.SaleRequest) (*domain.Sale, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.requests = append(m.requests, req)
	if m.createErr != nil {
		return nil, m.createErr
	}

	m.seq++
	s := &domain.Sale{
		ID:         fmt.Sprintf("sale-%d", m.seq),
		Reference:  req.Order.Reference,
		Status:     req.Status,
		Order:      req.Order,
		StoreID:    req.StoreID,
		CustomerID: req.CustomerID,
		Discount:   req.Discount,
		Payments:   req.Payments,
		Totals:     req.Estimated,
	}
	if req.Status == domain.SaleStatusCompleted {
		s.InvoiceNumber = fmt.Sprintf("INV-%04d", m.seq)
	}
	if m.totals != nil {
		s.Totals = *m.totals
	}
	for _, it := range req.Items {
		s.Items = append(s.Items, domain.SaleItem{
			UnitID:    it.UnitID,
			Name:      "item " + it.UnitID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   it.TaxRate,
		})
	}
	m.sales[s.ID] = s
	return s, nil
}

func (m *mockBackend) FetchSale(_ context.Context, saleID string) (*domain.Sale, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	s, ok := m.sales[saleID]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	cp := *s
	cp.Items = append([]domain.SaleItem(nil), s.Items...)
	return &cp, nil
}

func (m *mockBackend) DeleteSale(_ context.Context, saleID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.sales[saleID]; !ok {
		return domain.ErrSaleNotFound
	}
	delete(m.sales, saleID)
	m.deleted = append(m.deleted, saleID)
	return nil
}

func (m *mockBackend) requestCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.requests)
}

func (m *mockBackend) lastRequest() *domain.SaleRequest {
	m.m.Lock()
	defer m.m.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

type mockCatalog struct {
	storeID string
	units   map[string]domain.SellableUnit
}

func newMockCatalog(units ...domain.SellableUnit) *mockCatalog {
	c := &mockCatalog{storeID: "store-1", units: make(map[string]domain.SellableUnit)}
	for _, u := range units {
		c.units[u.ID] = u
	}
	return c
}

func (c *mockCatalog) StoreID() string {
	return c.storeID
}

func (c *mockCatalog) LookupByID(id string) (domain.SellableUnit, bool) {
	u, ok := c.units[id]
	return u, ok
}

func (c *mockCatalog) LookupByBarcode(code string) (domain.SellableUnit, bool) {
	for _, u := range c.units {
		if u.Active && u.Barcode == code {
			return u, true
		}
	}
	return domain.SellableUnit{}, false
}
