package cart

import (
	"math"

	"github.com/fjod/go_cart/pos-service/internal/domain"
)

// Engine holds the cart of the sale currently being built on one register.
// It is not safe for concurrent use; callers serialize access per session.
type Engine struct {
	lines      []domain.CartLine
	discount   int64
	storeID    string
	customerID string
}

func NewEngine(storeID string) *Engine {
	return &Engine{storeID: storeID}
}

// AddUnit adds qty of unit to the cart, merging into an existing line for the
// same unit. The line's price, tax, attributes and availability are taken
// from unit at this moment.
func (e *Engine) AddUnit(unit domain.SellableUnit, qty int64) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if unit.AvailableQuantity <= 0 {
		return &StockError{UnitID: unit.ID, Requested: qty, Available: unit.AvailableQuantity, Err: ErrOutOfStock}
	}

	i := e.find(unit.ID)
	var existing int64
	if i >= 0 {
		existing = e.lines[i].Quantity
	}
	// compare before adding so a huge qty cannot wrap around
	if qty > unit.AvailableQuantity-existing {
		return &StockError{UnitID: unit.ID, Requested: SaturatingAdd(existing, qty), Available: unit.AvailableQuantity, Err: ErrInsufficientStock}
	}
	newQty := existing + qty

	line := domain.CartLine{
		UnitID:            unit.ID,
		Name:              unit.Name,
		Quantity:          newQty,
		UnitPrice:         unit.UnitPrice,
		TaxRate:           unit.TaxRate,
		Attributes:        domain.CloneAttributes(unit.Attributes),
		AvailableQuantity: unit.AvailableQuantity,
	}
	if i >= 0 {
		e.lines[i] = line
		return nil
	}
	e.lines = append(e.lines, line)
	return nil
}

// ChangeQuantity applies delta to a line, never going below 1. Increments
// past the captured availability are rejected.
func (e *Engine) ChangeQuantity(unitID string, delta int64) error {
	i := e.find(unitID)
	if i < 0 {
		return ErrLineNotFound
	}
	line := &e.lines[i]

	if delta > 0 && delta > line.AvailableQuantity-line.Quantity {
		return &StockError{UnitID: unitID, Requested: SaturatingAdd(line.Quantity, delta), Available: line.AvailableQuantity, Err: ErrInsufficientStock}
	}
	// quantity is at least 1, so adding a negative delta cannot overflow
	newQty := line.Quantity + delta
	if newQty < 1 {
		newQty = 1
	}
	line.Quantity = newQty
	return nil
}

// RemoveLine is a no-op for unknown units.
func (e *Engine) RemoveLine(unitID string) {
	i := e.find(unitID)
	if i < 0 {
		return
	}
	e.lines = append(e.lines[:i], e.lines[i+1:]...)
}

func (e *Engine) ApplyDiscount(amount int64) error {
	if amount < 0 {
		return ErrInvalidDiscount
	}
	e.discount = amount
	return nil
}

// Clear drops all lines and the discount. Store and customer are kept.
func (e *Engine) Clear() {
	e.lines = nil
	e.discount = 0
}

// Reset clears the cart and also forgets the customer and switches store.
func (e *Engine) Reset(storeID string) {
	e.Clear()
	e.customerID = ""
	e.storeID = storeID
}

func (e *Engine) SetCustomer(customerID string) {
	e.customerID = customerID
}

func (e *Engine) SetStore(storeID string) error {
	if storeID == e.storeID {
		return nil
	}
	if len(e.lines) > 0 {
		return ErrStoreLocked
	}
	e.storeID = storeID
	return nil
}

// Restore replaces the whole cart with lines rebuilt from a parked sale.
// Availability is not enforced; the sold quantities are trusted. The cart is
// left untouched when the lines are invalid.
func (e *Engine) Restore(lines []domain.CartLine, discount int64, storeID, customerID string) error {
	if discount < 0 {
		return ErrInvalidDiscount
	}
	seen := make(map[string]struct{}, len(lines))
	restored := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if _, dup := seen[l.UnitID]; dup {
			return ErrDuplicateLine
		}
		seen[l.UnitID] = struct{}{}
		l.Attributes = domain.CloneAttributes(l.Attributes)
		restored = append(restored, l)
	}

	e.lines = restored
	e.discount = discount
	e.storeID = storeID
	e.customerID = customerID
	return nil
}

func (e *Engine) ComputeTotals() domain.Totals {
	return ComputeTotals(e.lines, e.discount)
}

func (e *Engine) IsEmpty() bool {
	return len(e.lines) == 0
}

func (e *Engine) Discount() int64 {
	return e.discount
}

func (e *Engine) StoreID() string {
	return e.storeID
}

func (e *Engine) CustomerID() string {
	return e.customerID
}

// Lines returns a copy of the lines in display order.
func (e *Engine) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(e.lines))
	for i, l := range e.lines {
		l.Attributes = domain.CloneAttributes(l.Attributes)
		out[i] = l
	}
	return out
}

func (e *Engine) Line(unitID string) (domain.CartLine, bool) {
	i := e.find(unitID)
	if i < 0 {
		return domain.CartLine{}, false
	}
	return e.lines[i], true
}

func (e *Engine) Snapshot() domain.Cart {
	return domain.Cart{
		Lines:      e.Lines(),
		Discount:   e.discount,
		StoreID:    e.storeID,
		CustomerID: e.customerID,
		Totals:     e.ComputeTotals(),
	}
}

func (e *Engine) find(unitID string) int {
	for i := range e.lines {
		if e.lines[i].UnitID == unitID {
			return i
		}
	}
	return -1
}

// SaturatingAdd adds two non-negative quantities, capping at math.MaxInt64.
func SaturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
