package model

import (
	"time"

	"github.com/google/uuid"
)

// DiningTable is a physical table. While Occupied, TabID identifies the open
// tab ("comanda") that table orders accumulate on.
type DiningTable struct {
	Number        int        `gorm:"primaryKey;autoIncrement:false"`
	Occupied      bool       `gorm:"not null;default:false"`
	TabID         *uuid.UUID `gorm:"type:uuid"`
	OccupiedSince *time.Time
	UpdatedAt     time.Time
}

// KitchenTicket is the kitchen-facing face of a table order. It shares the
// order's lifecycle: both are written in the same transaction.
type KitchenTicket struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderID     int64       `gorm:"not null;uniqueIndex"`
	TableNumber int         `gorm:"not null;index"`
	TabID       uuid.UUID   `gorm:"type:uuid;not null;index"`
	Items       string      `gorm:"not null"` // "2x Batata Frita\n1x Coca-Cola lata"
	Status      OrderStatus `gorm:"type:varchar(12);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
