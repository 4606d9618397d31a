package domain

import "github.com/shopspring/decimal"

// CartLine is one unit in the cart with the price, tax and availability
// captured when it was added.
type CartLine struct {
	UnitID            string           `json:"unit_id"`
	Name              string           `json:"name"`
	Quantity          int64            `json:"quantity"`
	UnitPrice         int64            `json:"unit_price"`
	TaxRate           *decimal.Decimal `json:"tax_rate,omitempty"`
	Attributes        []Attribute      `json:"attributes,omitempty"`
	AvailableQuantity int64            `json:"available_quantity"`
}

// Totals are always derived from the lines and the discount, never stored.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Cart is a read-only view of the sale being built.
type Cart struct {
	Lines      []CartLine `json:"lines"`
	Discount   int64      `json:"discount"`
	StoreID    string     `json:"store_id"`
	CustomerID string     `json:"customer_id,omitempty"`
	Totals     Totals     `json:"totals"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
