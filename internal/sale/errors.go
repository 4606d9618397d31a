package sale

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySale         = errors.New("cart is empty, nothing to park or pay")
	ErrNoResumableItems  = errors.New("parked sale has no resumable items")
	ErrInvalidPayment    = errors.New("payment needs a method and a positive amount")
	ErrUnitNotFound      = errors.New("unit not found in catalog")
	ErrSaleNotParked     = errors.New("sale is not parked")
	ErrIllegalTransition = errors.New("illegal transition of sale state")
	ErrStoreMismatch     = errors.New("catalog is loaded for another store")
	ErrBackend           = errors.New("backend request failed")
)

// BackendError wraps a failed call to the sales backend. errors.Is matches
// both ErrBackend and the underlying cause.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s sale: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
