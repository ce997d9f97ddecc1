package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenTillRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float" validate:"min=0"`
}

// MovementRequest records a manual withdrawal ("sangria") or deposit
// ("suprimento"). Amount is checked by the ledger, not the validator, so a
// non-positive amount surfaces as invalid_amount.
type MovementRequest struct {
	Kind   string          `json:"kind"   validate:"required"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"max=200"`
}

// CloseTillRequest: DeclaredCash is the operator's blind count of the drawer.
// When omitted the session closes without a deviation figure.
type CloseTillRequest struct {
	DeclaredCash *decimal.Decimal `json:"declared_cash"`
	Notes        *string          `json:"notes" validate:"omitempty,max=500"`
}

type TillHistoryFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SalesByMethod struct {
	Cash   decimal.Decimal `json:"cash"`
	Pix    decimal.Decimal `json:"pix"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
	Total  decimal.Decimal `json:"total"`
}

type DeviationResponse struct {
	Declared decimal.Decimal `json:"declared"`
	Amount   decimal.Decimal `json:"amount"`
	Percent  decimal.Decimal `json:"percent"`
	Class    string          `json:"class"` // normal | warning | critical
}

type TillReportResponse struct {
	SessionID     string             `json:"session_id"`
	OperatorID    string             `json:"operator_id"`
	OperatorName  string             `json:"operator_name"`
	Status        string             `json:"status"`
	OpeningFloat  decimal.Decimal    `json:"opening_float"`
	Withdrawals   decimal.Decimal    `json:"withdrawals"`
	Deposits      decimal.Decimal    `json:"deposits"`
	Sales         SalesByMethod      `json:"sales"`
	CashInHand    decimal.Decimal    `json:"cash_in_hand"`
	Deviation     *DeviationResponse `json:"deviation"`
	Notes         *string            `json:"notes"`
	MovementCount int                `json:"movement_count"`
	OpenedAt      string             `json:"opened_at"`
	ClosedAt      *string            `json:"closed_at"`
}

type MovementResponse struct {
	ID            string          `json:"id"`
	Seq           int             `json:"seq"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
	PaymentMethod string          `json:"payment_method"`
	OrderID       *int64          `json:"order_id"`
	CreatedAt     string          `json:"created_at"`
}

type TillHistoryResponse struct {
	Data  []TillReportResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
