package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the catalog collaborator; pricing only reads it.
type Product struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string           `gorm:"uniqueIndex;not null"`
	Price      decimal.Decimal  `gorm:"type:decimal(10,2);not null"`
	PromoPrice *decimal.Decimal `gorm:"type:decimal(10,2)"`
	CategoryID *uuid.UUID       `gorm:"type:uuid;index"`
	Available  bool             `gorm:"not null;default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

// EffectivePrice is the promotional price when one is set.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.PromoPrice != nil {
		return *p.PromoPrice
	}
	return p.Price
}

// Category groups products on the menu.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"uniqueIndex;not null"`
	Active    bool      `gorm:"not null;default:true"`
	SortOrder int       `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Category) TableName() string { return "categories" }

// DeliveryZone is a neighbourhood ("bairro") the restaurant delivers to.
// Name is stored normalized (lower case, no accents).
type DeliveryZone struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name        string          `gorm:"uniqueIndex;not null"`
	DisplayName string          `gorm:"not null"`
	Fee         decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active      bool            `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
