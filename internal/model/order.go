package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the unit of work every channel writes into. Amounts are the frozen
// quote; Lines are a snapshot and never follow later catalog changes.
type Order struct {
	ID              int64         `gorm:"primaryKey;autoIncrement"`
	Origin          Origin        `gorm:"type:varchar(24);not null;index"`
	CustomerPhone   *string       `gorm:"type:varchar(32);index"`
	CustomerName    *string
	DeliveryAddress *string
	DeliveryZone    *string
	PaymentMethod   PaymentMethod `gorm:"type:varchar(10);not null"`
	Status          OrderStatus   `gorm:"type:varchar(12);not null;index"`
	Notes           *string

	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	ManualDiscount  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DeliveryFee     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	TableNumber   *int       `gorm:"index"`
	TabID         *uuid.UUID `gorm:"type:uuid;index"`
	TillSessionID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Lines []OrderLine `gorm:"foreignKey:OrderID"`
}

// OrderLine is a frozen copy of what was sold.
type OrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"`
	Name      string          `gorm:"not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	LineTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}
