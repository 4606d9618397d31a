package sale

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/pos-service/internal/cart"
	"github.com/fjod/go_cart/pos-service/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Shortfall is a resumed line whose sold quantity is above current stock.
type Shortfall struct {
	UnitID    string `json:"unit_id"`
	Quantity  int64  `json:"quantity"`
	Available int64  `json:"available"`
}

type ResumeResult struct {
	Sale       *domain.Sale `json:"sale"`
	Shortfalls []Shortfall  `json:"shortfalls,omitempty"`
}

// Controller drives the sale being built on one register. Every operation
// either applies fully or leaves the cart and state as they were.
type Controller struct {
	engine      *cart.Engine
	catalog     Catalog
	backend     Backend
	logger      *zap.Logger
	state       domain.SaleState
	resumedFrom string
}

func NewController(engine *cart.Engine, catalog Catalog, backend Backend, logger *zap.Logger) *Controller {
	return &Controller{
		engine:  engine,
		catalog: catalog,
		backend: backend,
		logger:  logger,
		state:   domain.SaleStateBuilding,
	}
}

func (c *Controller) State() domain.SaleState {
	return c.state
}

// ResumedFrom is the id of the parked sale the current cart came from.
func (c *Controller) ResumedFrom() string {
	return c.resumedFrom
}

func (c *Controller) Cart() domain.Cart {
	return c.engine.Snapshot()
}

func (c *Controller) AddUnit(unit domain.SellableUnit, qty int64) error {
	return c.edit(func() error { return c.engine.AddUnit(unit, qty) })
}

func (c *Controller) AddByID(unitID string, qty int64) error {
	if err := c.checkCatalogStore(); err != nil {
		return err
	}
	unit, ok := c.catalog.LookupByID(unitID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	return c.AddUnit(unit, qty)
}

func (c *Controller) AddByBarcode(code string, qty int64) error {
	if err := c.checkCatalogStore(); err != nil {
		return err
	}
	unit, ok := c.catalog.LookupByBarcode(code)
	if !ok {
		return fmt.Errorf("%w: barcode %s", ErrUnitNotFound, code)
	}
	return c.AddUnit(unit, qty)
}

// checkCatalogStore rejects catalog lookups while the loaded catalog belongs
// to a different store than the cart, since its stock would be the wrong one.
// An empty catalog is left to the lookup to report.
func (c *Controller) checkCatalogStore() error {
	catalogStore := c.catalog.StoreID()
	if catalogStore == "" || catalogStore == c.engine.StoreID() {
		return nil
	}
	return fmt.Errorf("%w: catalog is for store %s, cart is for store %s",
		ErrStoreMismatch, catalogStore, c.engine.StoreID())
}

func (c *Controller) ChangeQuantity(unitID string, delta int64) error {
	return c.edit(func() error { return c.engine.ChangeQuantity(unitID, delta) })
}

func (c *Controller) RemoveLine(unitID string) {
	_ = c.edit(func() error {
		c.engine.RemoveLine(unitID)
		return nil
	})
}

func (c *Controller) ApplyDiscount(amount int64) error {
	return c.edit(func() error { return c.engine.ApplyDiscount(amount) })
}

func (c *Controller) SetCustomer(customerID string) {
	_ = c.edit(func() error {
		c.engine.SetCustomer(customerID)
		return nil
	})
}

func (c *Controller) SetStore(storeID string) error {
	return c.edit(func() error { return c.engine.SetStore(storeID) })
}

// Clear empties the cart and forgets which parked sale it was resumed from.
func (c *Controller) Clear() {
	_ = c.edit(func() error {
		c.engine.Clear()
		c.resumedFrom = ""
		return nil
	})
}

// BeginPayment moves the sale into the paying state while the payment is
// being captured. The cart stays editable.
func (c *Controller) BeginPayment() error {
	if c.engine.IsEmpty() {
		return ErrEmptySale
	}
	if !domain.CanTransitionTo(c.state, domain.SaleStatePaying) {
		return ErrIllegalTransition
	}
	c.state = domain.SaleStatePaying
	return nil
}

func (c *Controller) CancelPayment() error {
	if c.state != domain.SaleStatePaying {
		return ErrIllegalTransition
	}
	c.state = domain.SaleStateBuilding
	return nil
}

// ParkSale stores the cart as a pending sale and starts a fresh one.
func (c *Controller) ParkSale(ctx context.Context, ref domain.OrderRef) (*domain.Sale, error) {
	if c.engine.IsEmpty() {
		return nil, ErrEmptySale
	}
	if !domain.CanTransitionTo(c.state, domain.SaleStateParked) {
		return nil, ErrIllegalTransition
	}

	req := c.buildRequest(ref, domain.SaleStatusPending, nil)
	parked, err := c.backend.CreateSale(ctx, req)
	if err != nil {
		c.logger.Warn("park sale failed", zap.String("reference", ref.Reference), zap.Error(err))
		return nil, &BackendError{Op: "park", Err: err}
	}

	c.logger.Info("sale parked",
		zap.String("sale_id", parked.ID),
		zap.String("reference", ref.Reference),
		zap.Int("lines", len(req.Items)))

	c.startNewSale()
	return parked, nil
}

// ResumeSale replaces the whole cart with the lines of a parked sale. Lines
// keep the price and tax stored with the sale. Lines whose sold quantity is
// above current stock are resumed anyway and reported as shortfalls.
func (c *Controller) ResumeSale(ctx context.Context, saleID string) (*ResumeResult, error) {
	if c.state == domain.SaleStatePaying {
		return nil, ErrIllegalTransition
	}

	parked, err := c.backend.FetchSale(ctx, saleID)
	if err != nil {
		return nil, &BackendError{Op: "fetch", Err: err}
	}
	if parked.Status != domain.SaleStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrSaleNotParked, saleID, parked.Status)
	}

	lines, shortfalls := c.reconstruct(parked, c.resumeStore(parked))
	if len(lines) == 0 {
		return nil, ErrNoResumableItems
	}

	if err := c.engine.Restore(lines, parked.Discount, c.resumeStore(parked), parked.CustomerID); err != nil {
		return nil, fmt.Errorf("restore sale %s: %w", saleID, err)
	}

	c.state = domain.SaleStateBuilding
	c.resumedFrom = parked.ID
	if len(shortfalls) > 0 {
		c.logger.Warn("resumed sale exceeds current stock",
			zap.String("sale_id", parked.ID),
			zap.Int("lines", len(shortfalls)))
	}
	c.logger.Info("sale resumed", zap.String("sale_id", parked.ID), zap.Int("lines", len(lines)))

	return &ResumeResult{Sale: parked, Shortfalls: shortfalls}, nil
}

// ProcessPayment submits the cart as a completed sale. On success the cart is
// cleared and the backend's record, with its authoritative totals, is returned.
func (c *Controller) ProcessPayment(ctx context.Context, ref domain.OrderRef, payment domain.Payment) (*domain.Sale, error) {
	if c.engine.IsEmpty() {
		return nil, ErrEmptySale
	}
	if !validPayment(payment, c.engine.ComputeTotals().Total) {
		return nil, ErrInvalidPayment
	}
	if !domain.CanTransitionTo(c.state, domain.SaleStateCompleted) {
		return nil, ErrIllegalTransition
	}

	req := c.buildRequest(ref, domain.SaleStatusCompleted, []domain.Payment{payment})
	completed, err := c.backend.CreateSale(ctx, req)
	if err != nil {
		c.logger.Warn("payment failed", zap.String("reference", ref.Reference), zap.Error(err))
		return nil, &BackendError{Op: "pay", Err: err}
	}

	if completed.Totals != req.Estimated {
		c.logger.Warn("backend totals differ from cart estimate",
			zap.String("sale_id", completed.ID),
			zap.Int64("estimated_total", req.Estimated.Total),
			zap.Int64("backend_total", completed.Totals.Total),
			zap.Int64("estimated_tax", req.Estimated.Tax),
			zap.Int64("backend_tax", completed.Totals.Tax))
	}
	c.logger.Info("sale completed",
		zap.String("sale_id", completed.ID),
		zap.String("invoice", completed.InvoiceNumber),
		zap.Int64("total", completed.Totals.Total))

	c.engine.Reset(c.engine.StoreID())
	c.resumedFrom = ""
	c.state = domain.SaleStateCompleted
	return completed, nil
}

// RemoveParkedSale deletes a pending sale. A sale that is already gone counts
// as removed.
func (c *Controller) RemoveParkedSale(ctx context.Context, saleID string) error {
	err := c.backend.DeleteSale(ctx, saleID)
	if errors.Is(err, domain.ErrSaleNotFound) {
		c.logger.Info("parked sale already removed", zap.String("sale_id", saleID))
		err = nil
	}
	if err != nil {
		return &BackendError{Op: "remove", Err: err}
	}

	if c.resumedFrom == saleID {
		c.resumedFrom = ""
	}
	c.logger.Info("parked sale removed", zap.String("sale_id", saleID))
	return nil
}

// validPayment needs a method and a positive amount. A sale discounted down
// to nothing may be settled with a zero amount.
func validPayment(p domain.Payment, total int64) bool {
	if p.Method == "" || p.Amount < 0 {
		return false
	}
	return p.Amount > 0 || total <= 0
}

func (c *Controller) edit(fn func() error) error {
	if err := fn(); err != nil {
		return err
	}
	if c.state == domain.SaleStateCompleted {
		c.state = domain.SaleStateBuilding
	}
	return nil
}

func (c *Controller) startNewSale() {
	c.engine.Reset(c.engine.StoreID())
	c.resumedFrom = ""
	c.state = domain.SaleStateBuilding
}

func (c *Controller) buildRequest(ref domain.OrderRef, status domain.SaleStatus, payments []domain.Payment) *domain.SaleRequest {
	lines := c.engine.Lines()
	items := make([]domain.SaleRequestItem, len(lines))
	for i, l := range lines {
		items[i] = domain.SaleRequestItem{
			UnitID:    l.UnitID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			TaxRate:   l.TaxRate,
		}
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	if ref.Type == "" {
		ref.Type = domain.OrderTypeRetail
	}

	return &domain.SaleRequest{
		Order:       ref,
		Status:      status,
		StoreID:     c.engine.StoreID(),
		CustomerID:  c.engine.CustomerID(),
		Items:       items,
		Discount:    c.engine.Discount(),
		Payments:    payments,
		ResumedFrom: c.resumedFrom,
		Estimated:   c.engine.ComputeTotals(),
	}
}

// reconstruct turns sale items into cart lines. Items without a unit id, with
// no quantity, or naming a unit that neither the sale nor the catalog can
// describe any more are dropped. Repeated units are merged. Catalog stock is
// only trusted when the catalog is loaded for storeID.
func (c *Controller) reconstruct(s *domain.Sale, storeID string) ([]domain.CartLine, []Shortfall) {
	lines := make([]domain.CartLine, 0, len(s.Items))
	pos := make(map[string]int, len(s.Items))

	for _, item := range s.Items {
		if item.UnitID == "" || item.Quantity < 1 {
			continue
		}
		unit, known := c.catalog.LookupByID(item.UnitID)
		if !known && item.Name == "" {
			continue
		}

		if i, ok := pos[item.UnitID]; ok {
			if lines[i].UnitPrice != item.UnitPrice || !sameRate(lines[i].TaxRate, item.TaxRate) {
				c.logger.Warn("repeated sale item disagrees on price or tax, keeping the first",
					zap.String("sale_id", s.ID),
					zap.String("unit_id", item.UnitID),
					zap.Int64("kept_price", lines[i].UnitPrice),
					zap.Int64("dropped_price", item.UnitPrice))
			}
			lines[i].Quantity = cart.SaturatingAdd(lines[i].Quantity, item.Quantity)
			continue
		}

		line := domain.CartLine{
			UnitID:     item.UnitID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TaxRate:    item.TaxRate,
			Attributes: domain.CloneAttributes(item.Attributes),
		}
		if known {
			if line.Name == "" {
				line.Name = unit.Name
			}
			if len(line.Attributes) == 0 {
				line.Attributes = unit.Attributes
			}
		}
		switch {
		case item.AvailableQuantity != nil:
			line.AvailableQuantity = *item.AvailableQuantity
		case known && storeID == c.catalog.StoreID():
			line.AvailableQuantity = unit.AvailableQuantity
		default:
			line.AvailableQuantity = item.Quantity
		}

		pos[item.UnitID] = len(lines)
		lines = append(lines, line)
	}

	var shortfalls []Shortfall
	for _, l := range lines {
		if l.Quantity > l.AvailableQuantity {
			shortfalls = append(shortfalls, Shortfall{UnitID: l.UnitID, Quantity: l.Quantity, Available: l.AvailableQuantity})
		}
	}
	return lines, shortfalls
}

func (c *Controller) resumeStore(s *domain.Sale) string {
	if s.StoreID != "" {
		return s.StoreID
	}
	return c.engine.StoreID()
}

func sameRate(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
