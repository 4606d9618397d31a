package http

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/pos-service/internal/domain"
)

type stubSource struct {
	units []domain.SellableUnit
	err   error
}

func (s *stubSource) FetchCatalog(_ context.Context, _ string) ([]domain.SellableUnit, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.units, nil
}

type mockBackend struct {
	m         sync.Mutex
	sales     map[string]*domain.Sale
	calls     int
	createErr error
	seq       int
}

func newMockBackend() *mockBackend {
	return &mockBackend{sales: make(map[string]*domain.Sale)}
}

func (b *mockBackend) CreateSale(_ context.Context, req *domain.SaleRequest) (*domain.Sale, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.calls++
	if b.createErr != nil {
		return nil, b.createErr
	}

	b.seq++
	s := &domain.Sale{
		ID:       fmt.Sprintf("sale-%d", b.seq),
		Status:   req.Status,
		Order:    req.Order,
		StoreID:  req.StoreID,
		Discount: req.Discount,
		Payments: req.Payments,
		Totals:   req.Estimated,
	}
	if req.Status == domain.SaleStatusCompleted {
		s.InvoiceNumber = fmt.Sprintf("INV-%04d", b.seq)
	}
	for _, it := range req.Items {
		s.Items = append(s.Items, domain.SaleItem{
			UnitID:    it.UnitID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			TaxRate:   it.TaxRate,
		})
	}
	b.sales[s.ID] = s
	return s, nil
}

func (b *mockBackend) FetchSale(_ context.Context, saleID string) (*domain.Sale, error) {
	b.m.Lock()
	defer b.m.Unlock()
	b.calls++
	s, ok := b.sales[saleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	}
	cp := *s
	cp.Items = append([]domain.SaleItem(nil), s.Items...)
	return &cp, nil
}

func (b *mockBackend) DeleteSale(_ context.Context, saleID string) error {
	b.m.Lock()
	defer b.m.Unlock()
	b.calls++
	if _, ok := b.sales[saleID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
	}
	delete(b.sales, saleID)
	return nil
}

func (b *mockBackend) callCount() int {
	b.m.Lock()
	defer b.m.Unlock()
	return b.calls
}
