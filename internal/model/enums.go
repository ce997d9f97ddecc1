package model

import "strings"

// PaymentMethod is the closed set of tenders accepted at every channel.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentPix    PaymentMethod = "pix" // instant-payment rail, eligible for the fixed discount
	PaymentDebit  PaymentMethod = "debit"
	PaymentCredit PaymentMethod = "credit"
)

// PaymentMethods lists every tender in report order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentPix, PaymentDebit, PaymentCredit}

var paymentAliases = map[string]PaymentMethod{
	"cash": PaymentCash, "dinheiro": PaymentCash, "especie": PaymentCash,
	"pix":   PaymentPix,
	"debit": PaymentDebit, "debito": PaymentDebit, "débito": PaymentDebit,
	"credit": PaymentCredit, "credito": PaymentCredit, "crédito": PaymentCredit,
}

// ParsePaymentMethod accepts the canonical value or a Portuguese alias.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m, ok := paymentAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// Origin is the channel an order was placed through.
type Origin string

const (
	OriginTillSale           Origin = "till_sale"
	OriginTable              Origin = "table"
	OriginStorefrontDelivery Origin = "storefront_delivery"
	OriginStorefrontPickup   Origin = "storefront_pickup"
	OriginConversational     Origin = "conversational"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginTillSale, OriginTable, OriginStorefrontDelivery, OriginStorefrontPickup, OriginConversational:
		return true
	}
	return false
}

// OrderStatus is the order state machine:
// pending → preparing → dispatched → delivered, with pending|preparing → cancelled.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPreparing  OrderStatus = "preparing"
	StatusDispatched OrderStatus = "dispatched"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

var nextStatus = map[OrderStatus]OrderStatus{
	StatusPending:    StatusPreparing,
	StatusPreparing:  StatusDispatched,
	StatusDispatched: StatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Next returns the single forward successor of s.
func (s OrderStatus) Next() (OrderStatus, bool) {
	n, ok := nextStatus[s]
	return n, ok
}

// Cancellable reports whether the cancellation escape hatch is open.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusPreparing
}

// CanTransitionTo reports whether s → t is a legal single step.
func (s OrderStatus) CanTransitionTo(t OrderStatus) bool {
	if t == StatusCancelled {
		return s.Cancellable()
	}
	n, ok := s.Next()
	return ok && n == t
}

// MovementKind classifies a cash movement.
type MovementKind string

const (
	MovementWithdrawal   MovementKind = "withdrawal"    // sangria
	MovementDeposit      MovementKind = "deposit"       // suprimento
	MovementSaleProceeds MovementKind = "sale_proceeds" // venda
)

// ParseManualMovementKind accepts the kinds an operator may record by hand.
func ParseManualMovementKind(s string) (MovementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "withdrawal", "sangria":
		return MovementWithdrawal, true
	case "deposit", "suprimento":
		return MovementDeposit, true
	}
	return "", false
}

// SessionStatus is the till session state. closed is terminal.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)
