package models

import "github.com/shopspring/decimal"

// Product represents a catalog product. The order core only reads it to check line items.
type Product struct {
	ID        uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string          `json:"name" gorm:"type:varchar(255);not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	PackSizes string          `json:"pack_sizes" gorm:"type:text"` // comma separated, e.g. "100g,250g"
}
