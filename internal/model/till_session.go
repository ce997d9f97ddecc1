package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TillSession is one operator's open-to-close cash drawer period ("caixa").
// At most one row may have Status = open; the partial unique index
// uq_till_sessions_single_open enforces it at the store.
type TillSession struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperatorID   string          `gorm:"not null;index"`
	OperatorName string          `gorm:"not null"`
	OpeningFloat decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status       SessionStatus   `gorm:"type:varchar(10);not null;default:'open'"`
	OpenedAt     time.Time       `gorm:"not null"`
	ClosedAt     *time.Time
	// MovementCount is the last per-session sequence number handed out.
	MovementCount int `gorm:"not null;default:0"`

	// Frozen at close; nil while open.
	CashInHand   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SalesCash    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SalesPix     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SalesDebit   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SalesCredit  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SalesTotal   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Withdrawals  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Deposits     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeclaredCash *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Deviation    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	DeviationPct *decimal.Decimal `gorm:"type:decimal(7,2)"`
	// DeviationClass: "normal" | "warning" | "critical"
	DeviationClass *string `gorm:"type:varchar(10)"`
	Notes          *string

	Movements []CashMovement `gorm:"foreignKey:SessionID"`
}

// CashMovement is an immutable entry in the till ledger. Never updated or deleted.
type CashMovement struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_movement_session_seq"`
	Seq           int             `gorm:"not null;uniqueIndex:idx_movement_session_seq"`
	Kind          MovementKind    `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason        string          `gorm:"not null;default:''"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(10);not null"`
	// OrderID links sale proceeds to their order; unique so one sale is booked once.
	OrderID   *int64 `gorm:"uniqueIndex"`
	CreatedAt time.Time
}
