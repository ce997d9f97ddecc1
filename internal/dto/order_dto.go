package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CartItemRequest: Quantity is range-checked by the pricing engine so that a
// zero or negative quantity reports invalid_quantity.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type QuoteRequest struct {
	Items         []CartItemRequest `json:"items"          validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Discount      decimal.Decimal   `json:"discount"`
	Zone          *string           `json:"zone"           validate:"omitempty,max=80"`
	Origin        string            `json:"origin"`
}

// CheckoutRequest is a counter sale paid at the till.
type CheckoutRequest struct {
	Items         []CartItemRequest `json:"items"          validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Discount      decimal.Decimal   `json:"discount"`
	SessionID     *string           `json:"session_id"     validate:"omitempty,uuid"`
	CustomerName  *string           `json:"customer_name"  validate:"omitempty,max=80"`
	Notes         *string           `json:"notes"          validate:"omitempty,max=300"`
}

// StorefrontOrderRequest is submitted by the public web storefront.
type StorefrontOrderRequest struct {
	Items           []CartItemRequest `json:"items"            validate:"required,min=1,dive"`
	PaymentMethod   string            `json:"payment_method"   validate:"required"`
	Fulfillment     string            `json:"fulfillment"      validate:"required,oneof=delivery pickup"`
	CustomerName    string            `json:"customer_name"    validate:"required,max=80"`
	CustomerPhone   string            `json:"customer_phone"   validate:"required,min=8,max=32"`
	DeliveryAddress *string           `json:"delivery_address" validate:"omitempty,max=200"`
	Zone            *string           `json:"zone"             validate:"omitempty,max=80"`
	Notes           *string           `json:"notes"            validate:"omitempty,max=300"`
}

type TableOrderRequest struct {
	Items         []CartItemRequest `json:"items"          validate:"required,min=1,dive"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Notes         *string           `json:"notes"          validate:"omitempty,max=300"`
}

// AdvanceOrderRequest: TargetStatus defaults to the next state after
// ExpectedStatus.
type AdvanceOrderRequest struct {
	ExpectedStatus string  `json:"expected_status" validate:"required"`
	TargetStatus   *string `json:"target_status"`
}

// OrderFilter is bound from the query string of GET /v1/orders.
type OrderFilter struct {
	Status string `form:"status"` // empty = live orders (not delivered/cancelled); "all" = everything
	Origin string `form:"origin"`
	Date   string `form:"date"` // YYYY-MM-DD
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderLineResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type QuoteResponse struct {
	Items              []OrderLineResponse `json:"items"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	Discount           decimal.Decimal     `json:"discount"`
	PaymentDiscount    decimal.Decimal     `json:"payment_discount"`
	PaymentDiscountPct decimal.Decimal     `json:"payment_discount_pct"`
	DeliveryFee        decimal.Decimal     `json:"delivery_fee"`
	Total              decimal.Decimal     `json:"total"`
	PaymentMethod      string              `json:"payment_method"`
}

type OrderResponse struct {
	ID              int64               `json:"id"`
	Origin          string              `json:"origin"`
	Status          string              `json:"status"`
	CustomerName    *string             `json:"customer_name"`
	CustomerPhone   *string             `json:"customer_phone"`
	DeliveryAddress *string             `json:"delivery_address"`
	Zone            *string             `json:"zone"`
	PaymentMethod   string              `json:"payment_method"`
	Items           []OrderLineResponse `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	Discount        decimal.Decimal     `json:"discount"`
	PaymentDiscount decimal.Decimal     `json:"payment_discount"`
	DeliveryFee     decimal.Decimal     `json:"delivery_fee"`
	Total           decimal.Decimal     `json:"total"`
	TableNumber     *int                `json:"table_number"`
	TabID           *string             `json:"tab_id"`
	SessionID       *string             `json:"session_id"`
	Notes           *string             `json:"notes"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// TableTabResponse is the composite view of everything ordered on one tab.
type TableTabResponse struct {
	ID          string              `json:"id"` // mesa-<n>-<tab prefix>
	TableNumber int                 `json:"table_number"`
	TabID       string              `json:"tab_id"`
	Status      string              `json:"status"`
	OrderIDs    []int64             `json:"order_ids"`
	Items       []OrderLineResponse `json:"items"`
	Subtotal    decimal.Decimal     `json:"subtotal"`
	Discount    decimal.Decimal     `json:"discount"`
	Total       decimal.Decimal     `json:"total"`
	OpenedAt    string              `json:"opened_at"`
}

type TableResponse struct {
	Number        int     `json:"number"`
	Occupied      bool    `json:"occupied"`
	TabID         *string `json:"tab_id"`
	OccupiedSince *string `json:"occupied_since"`
}

type KitchenTicketResponse struct {
	ID          string `json:"id"`
	OrderID     int64  `json:"order_id"`
	TableNumber int    `json:"table_number"`
	Items       string `json:"items"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}
