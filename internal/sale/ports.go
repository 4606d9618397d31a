package sale

import (
	"context"

	"github.com/fjod/go_cart/pos-service/internal/domain"
)

// Backend persists parked and completed sales.
type Backend interface {
	CreateSale(ctx context.Context, req *domain.SaleRequest) (*domain.Sale, error)
	FetchSale(ctx context.Context, saleID string) (*domain.Sale, error)
	DeleteSale(ctx context.Context, saleID string) error
}

// Catalog is the read side of the catalog index used by a session. StoreID
// is the store whose stock the lookups report.
type Catalog interface {
	StoreID() string
	LookupByID(id string) (domain.SellableUnit, bool)
	LookupByBarcode(code string) (domain.SellableUnit, bool)
}
