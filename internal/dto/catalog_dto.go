package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// UpdatePriceRequest: a nil PromoPrice clears the promotion.
type UpdatePriceRequest struct {
	Price      decimal.Decimal  `json:"price"       validate:"required"`
	PromoPrice *decimal.Decimal `json:"promo_price"`
	Available  *bool            `json:"available"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Price      decimal.Decimal  `json:"price"`
	PromoPrice *decimal.Decimal `json:"promo_price,omitempty"`
	Category   *string          `json:"category,omitempty"`
	Available  bool             `json:"available"`
}

type CategoryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

type ZoneResponse struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Fee  decimal.Decimal `json:"fee"`
}

// CatalogResponse is what the public storefront loads on start.
type CatalogResponse struct {
	Categories   []CategoryResponse `json:"categories"`
	Products     []ProductResponse  `json:"products"`
	Zones        []ZoneResponse     `json:"zones"`
	MinimumOrder decimal.Decimal    `json:"minimum_order"`
}
