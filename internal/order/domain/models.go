package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses relevant to upstream reporting.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Order is one local checkout. Orders are created by the storefront and only
// read here; the uploader reports them upstream after payment.
type Order struct {
	ID            int64           `json:"id" gorm:"primaryKey"`
	Number        string          `json:"number" gorm:"type:text;not null;uniqueIndex:ux_orders_number"`
	CustomerEmail string          `json:"customer_email" gorm:"column:customer_email;type:text"`
	Status        string          `json:"status" gorm:"type:text;not null;default:'pending'"`
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(16,2);not null"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one line of an order, priced at checkout time.
type OrderItem struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	OrderID   int64           `json:"order_id" gorm:"column:order_id;not null;index"`
	ProductID int64           `json:"product_id" gorm:"column:product_id;not null"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"column:unit_price;type:decimal(16,2);not null"`
	CreatedAt time.Time       `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string { return "order_items" }
