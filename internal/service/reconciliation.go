package service

import (
	"imperio/internal/model"

	"github.com/shopspring/decimal"
)

var (
	hundred       = decimal.NewFromInt(100)
	warnThreshold = decimal.NewFromInt(1)
	critThreshold = decimal.NewFromInt(5)
)

// Reconciliation is the arithmetic of a till session.
//
//	CashInHand = OpeningFloat + Sales[cash] − Withdrawals + Deposits
//
// Non-cash tenders never touch the drawer.
type Reconciliation struct {
	OpeningFloat decimal.Decimal
	Withdrawals  decimal.Decimal
	Deposits     decimal.Decimal
	Sales        map[model.PaymentMethod]decimal.Decimal
	SalesTotal   decimal.Decimal
	CashInHand   decimal.Decimal
}

// Reconcile folds a session's movements. Order of movements is irrelevant.
func Reconcile(openingFloat decimal.Decimal, movs []model.CashMovement) Reconciliation {
	r := Reconciliation{
		OpeningFloat: openingFloat,
		Sales:        make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods)),
	}
	for _, m := range model.PaymentMethods {
		r.Sales[m] = decimal.Zero
	}
	for _, mv := range movs {
		switch mv.Kind {
		case model.MovementWithdrawal:
			r.Withdrawals = r.Withdrawals.Add(mv.Amount)
		case model.MovementDeposit:
			r.Deposits = r.Deposits.Add(mv.Amount)
		case model.MovementSaleProceeds:
			r.Sales[mv.PaymentMethod] = r.Sales[mv.PaymentMethod].Add(mv.Amount)
			r.SalesTotal = r.SalesTotal.Add(mv.Amount)
		}
	}
	r.CashInHand = openingFloat.
		Add(r.Sales[model.PaymentCash]).
		Sub(r.Withdrawals).
		Add(r.Deposits).
		Round(2)
	return r
}

// Deviation compares the blind count against the expected drawer.
type Deviation struct {
	Declared decimal.Decimal
	Amount   decimal.Decimal // declared − expected; negative means cash missing
	Percent  decimal.Decimal
	Class    string
}

const (
	DeviationNormal   = "normal"
	DeviationWarning  = "warning"
	DeviationCritical = "critical"
)

// assessDeviation classifies |deviation| relative to the expected cash:
// ≤ 1% normal, ≤ 5% warning, above that critical. With nothing expected in
// the drawer any difference counts as 100%.
func assessDeviation(declared, expected decimal.Decimal) Deviation {
	amount := declared.Sub(expected).Round(2)
	var pct decimal.Decimal
	switch {
	case amount.IsZero():
		pct = decimal.Zero
	case expected.IsZero():
		pct = hundred
	default:
		pct = amount.Div(expected).Mul(hundred).Round(2)
	}

	class := DeviationCritical
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(warnThreshold):
		class = DeviationNormal
	case abs.LessThanOrEqual(critThreshold):
		class = DeviationWarning
	}
	return Deviation{Declared: declared.Round(2), Amount: amount, Percent: pct, Class: class}
}
