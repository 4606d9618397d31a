package cart

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfStock        = errors.New("unit is out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidDiscount   = errors.New("discount cannot be negative")
	ErrDuplicateLine     = errors.New("duplicate cart line")
	ErrStoreLocked       = errors.New("store cannot change while the cart has items")
)

// StockError describes a rejected add or increment. It unwraps to
// ErrOutOfStock or ErrInsufficientStock.
type StockError struct {
	UnitID    string
	Requested int64
	Available int64
	Err       error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: unit %s requested %d, available %d", e.Err, e.UnitID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Err
}
