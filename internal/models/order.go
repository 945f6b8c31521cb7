package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the payment state of an order.
type OrderStatus string

// Only New -> Paid is a valid transition. Pending is a legacy column default and means New.
const (
	OrderStatusNew     OrderStatus = "New"
	OrderStatusPaid    OrderStatus = "Paid"
	OrderStatusPending OrderStatus = "Pending"
)

// ToOrderStatus parses a stored status, folding the legacy Pending value into New.
func ToOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusNew, OrderStatusPending, "":
		return OrderStatusNew, nil
	case OrderStatusPaid:
		return OrderStatusPaid, nil
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodCash is cash on delivery.
	PaymentMethodCash PaymentMethod = "cash"
)

// LineItem represents a single item within an order, as the customer's cart sent it.
type LineItem struct {
	ProductID uint            `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	PackSize  string          `json:"packSize,omitempty"`
}

// LineItems is stored as an opaque JSON blob.
type LineItems []LineItem

// Order represents a customer order.
type Order struct {
	ID           uint            `json:"id" gorm:"primaryKey;autoIncrement"`
	Name         string          `json:"name" gorm:"type:varchar(255);not null"`
	Phone        string          `json:"phone" gorm:"type:varchar(64);not null"`
	City         string          `json:"city" gorm:"type:varchar(255)"`
	CityRef      string          `json:"city_ref" gorm:"type:varchar(64)"`
	Warehouse    string          `json:"warehouse" gorm:"type:varchar(255)"`
	WarehouseRef string          `json:"warehouse_ref" gorm:"type:varchar(64)"`
	Items        string          `json:"-" gorm:"type:text"`
	TotalAmount  decimal.Decimal `json:"total_amount" gorm:"type:numeric(12,2);not null"`
	// PaymentMethod is either card or cash.
	PaymentMethod    PaymentMethod `json:"payment_method" gorm:"type:varchar(16);not null"`
	Status           OrderStatus   `json:"status" gorm:"type:varchar(16);not null;default:New;index"`
	InvoiceReference *string       `json:"invoice_reference" gorm:"type:varchar(128);uniqueIndex"`
	CreatedAt        time.Time     `json:"created_at"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
}

// SetLineItems serializes items into the order's blob column.
func (o *Order) SetLineItems(items LineItems) error {
	if items == nil {
		items = LineItems{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("json.Marshal line items: %w", err)
	}
	o.Items = string(raw)
	return nil
}

// LineItems decodes the order's blob column. An empty blob yields no items.
func (o *Order) LineItems() (LineItems, error) {
	if o.Items == "" {
		return nil, nil
	}
	var items LineItems
	if err := json.Unmarshal([]byte(o.Items), &items); err != nil {
		return nil, fmt.Errorf("json.Unmarshal line items: %w", err)
	}
	return items, nil
}

// IsPaid reports whether the order reached its terminal state.
func (o *Order) IsPaid() bool {
	status, err := ToOrderStatus(string(o.Status))
	return err == nil && status == OrderStatusPaid
}

// AfterFind folds legacy status values read from the database.
func (o *Order) AfterFind(tx *gorm.DB) error {
	status, err := ToOrderStatus(string(o.Status))
	if err != nil {
		return fmt.Errorf("order %d: %w", o.ID, err)
	}
	o.Status = status
	return nil
}
