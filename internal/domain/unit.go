package domain

import "github.com/shopspring/decimal"

// Attribute is a single descriptive key/value pair of a unit, e.g. size=L.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SellableUnit is a purchasable product variant with its price, tax and stock
// at the selected store. Prices are in minor currency units.
type SellableUnit struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Barcode           string           `json:"barcode"`
	Active            bool             `json:"active"`
	UnitPrice         int64            `json:"unit_price"`
	TaxRate           *decimal.Decimal `json:"tax_rate,omitempty"` // nil means untaxed
	Attributes        []Attribute      `json:"attributes,omitempty"`
	AvailableQuantity int64            `json:"available_quantity"`
}

// CloneAttributes returns a copy so callers can't alias catalog data.
func CloneAttributes(attrs []Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
