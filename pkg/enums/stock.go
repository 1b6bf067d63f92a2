package enums

import "fmt"

// StockStatus is derived from quantity; it is never set independently.
type StockStatus string

const (
	StockStatusAvailable  StockStatus = "AVAILABLE"
	StockStatusOutOfStock StockStatus = "OUT_OF_STOCK"
)

// StockStatusFor returns the status implied by quantity.
func StockStatusFor(quantity int) StockStatus {
	if quantity <= 0 {
		return StockStatusOutOfStock
	}
	return StockStatusAvailable
}

// StockKind separates pharmacy and medical lab catalogs.
type StockKind string

const (
	StockKindPharmacy StockKind = "pharmacy"
	StockKindMedLab   StockKind = "medlab"
)

var validStockKinds = []StockKind{StockKindPharmacy, StockKindMedLab}

func (k StockKind) IsValid() bool {
	for _, candidate := range validStockKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseStockKind converts raw input into StockKind.
func ParseStockKind(value string) (StockKind, error) {
	for _, candidate := range validStockKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock kind %q", value)
}
