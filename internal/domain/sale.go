package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrSaleNotFound = errors.New("sale not found")

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
)

type OrderType string

const (
	OrderTypeRetail   OrderType = "retail"
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
)

// OrderRef is the order metadata submitted alongside a parked or paid cart.
type OrderRef struct {
	Reference string    `json:"reference"`
	Type      OrderType `json:"order_type"`
	Covers    int       `json:"covers"`
	Channel   string    `json:"channel"`
}

type Payment struct {
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// SaleRequestItem is a cart line as sent to the backend.
type SaleRequestItem struct {
	UnitID    string           `json:"unit_id"`
	Quantity  int64            `json:"quantity"`
	UnitPrice int64            `json:"unit_price"`
	TaxRate   *decimal.Decimal `json:"tax_rate,omitempty"`
}

// SaleRequest creates either a pending (parked) sale with no payments or a
// completed sale with at least one payment.
type SaleRequest struct {
	Order       OrderRef          `json:"order"`
	Status      SaleStatus        `json:"status"`
	StoreID     string            `json:"store_id"`
	CustomerID  string            `json:"customer_id,omitempty"`
	Items       []SaleRequestItem `json:"items"`
	Discount    int64             `json:"discount"`
	Payments    []Payment         `json:"payments"`
	ResumedFrom string            `json:"resumed_from,omitempty"`
	Estimated   Totals            `json:"estimated_totals"`
}

// SaleItem is an item of a persisted sale. AvailableQuantity is the current
// stock reading reported by the backend when the sale is fetched.
type SaleItem struct {
	UnitID            string           `json:"unit_id"`
	Name              string           `json:"name"`
	Quantity          int64            `json:"quantity"`
	UnitPrice         int64            `json:"unit_price"`
	TaxRate           *decimal.Decimal `json:"tax_rate,omitempty"`
	Attributes        []Attribute      `json:"attributes,omitempty"`
	AvailableQuantity *int64           `json:"available_quantity,omitempty"`
}

// Sale is the backend's canonical record; its totals are authoritative.
type Sale struct {
	ID            string     `json:"id"`
	Reference     string     `json:"reference"`
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	Status        SaleStatus `json:"status"`
	Order         OrderRef   `json:"order"`
	StoreID       string     `json:"store_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Items         []SaleItem `json:"items"`
	Discount      int64      `json:"discount"`
	Payments      []Payment  `json:"payments"`
	Totals        Totals     `json:"totals"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
