// Package pricing computes quotes for a cart. It performs no I/O and reads no
// clock: identical inputs always yield identical quotes.
package pricing

import (
	"imperio/internal/apierror"
	"imperio/internal/model"
	"imperio/internal/textnorm"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is a product resolved by the catalog plus the requested quantity.
type Line struct {
	Product  model.Product
	Quantity int
}

// ZoneLookup resolves a delivery zone to its fee. ok=false means the zone is
// not served.
type ZoneLookup interface {
	FeeFor(zone string) (fee decimal.Decimal, ok bool)
}

// ZoneTable is a ZoneLookup keyed by folded zone name.
type ZoneTable map[string]decimal.Decimal

// NewZoneTable builds a table from active zones.
func NewZoneTable(zones []model.DeliveryZone) ZoneTable {
	t := make(ZoneTable, len(zones))
	for _, z := range zones {
		if z.Active {
			t[textnorm.Fold(z.Name)] = z.Fee
		}
	}
	return t
}

func (t ZoneTable) FeeFor(zone string) (decimal.Decimal, bool) {
	fee, ok := t[textnorm.Fold(zone)]
	return fee, ok
}

// Input is everything a quote depends on.
type Input struct {
	Lines          []Line
	ManualDiscount decimal.Decimal
	PaymentMethod  model.PaymentMethod
	Zone           *string // nil for pickup, till and table
	Origin         model.Origin
}

// QuotedLine is the priced snapshot of one cart line.
type QuotedLine struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is the pricing breakdown. PaymentDiscount is always reported on its
// own; it is never folded into ManualDiscount.
type Quote struct {
	Lines              []QuotedLine
	Subtotal           decimal.Decimal
	ManualDiscount     decimal.Decimal
	PaymentDiscount    decimal.Decimal
	PaymentDiscountPct decimal.Decimal
	DeliveryFee        decimal.Decimal
	Total              decimal.Decimal
	PaymentMethod      model.PaymentMethod
	Zone               *string
}

// Engine holds the business constants.
type Engine struct {
	minimumOrder       decimal.Decimal
	instantDiscountPct decimal.Decimal
}

// NewEngine returns an engine with the given minimum order amount and the
// discount percentage granted to the instant-payment method.
func NewEngine(minimumOrder, instantDiscountPct decimal.Decimal) *Engine {
	return &Engine{minimumOrder: minimumOrder, instantDiscountPct: instantDiscountPct}
}

// DefaultEngine is R$ 15,00 minimum and 5% off for pix.
func DefaultEngine() *Engine {
	return NewEngine(decimal.NewFromInt(15), decimal.NewFromInt(5))
}

// MinimumOrder returns the configured minimum.
func (e *Engine) MinimumOrder() decimal.Decimal { return e.minimumOrder }

// Quote prices a cart. zones may be nil when in.Zone is nil.
//
//	total = subtotal − manualDiscount − paymentDiscount + deliveryFee
//
// rounded half-up to 2 places.
func (e *Engine) Quote(in Input, zones ZoneLookup) (Quote, error) {
	if len(in.Lines) == 0 {
		return Quote{}, apierror.ErrInvalidQuantity
	}

	q := Quote{
		Lines:         make([]QuotedLine, 0, len(in.Lines)),
		Subtotal:      decimal.Zero,
		PaymentMethod: in.PaymentMethod,
	}
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return Quote{}, apierror.ErrInvalidQuantity
		}
		if !l.Product.Available {
			return Quote{}, &apierror.ProductError{Name: l.Product.Name, Unavailable: true}
		}
		unit := round2(l.Product.EffectivePrice())
		lineTotal := unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
		q.Lines = append(q.Lines, QuotedLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: unit,
			LineTotal: lineTotal,
		})
		q.Subtotal = q.Subtotal.Add(lineTotal)
	}
	q.Subtotal = round2(q.Subtotal)

	manual := round2(in.ManualDiscount)
	if manual.IsNegative() {
		return Quote{}, &apierror.AmountError{Reason: "o desconto não pode ser negativo"}
	}
	if manual.GreaterThan(q.Subtotal) {
		return Quote{}, &apierror.AmountError{Reason: "desconto maior que o subtotal de " + apierror.BRL(q.Subtotal)}
	}
	q.ManualDiscount = manual

	q.DeliveryFee = decimal.Zero
	if in.Zone != nil {
		if zones == nil {
			return Quote{}, &apierror.ZoneError{Zone: *in.Zone}
		}
		fee, ok := zones.FeeFor(*in.Zone)
		if !ok {
			return Quote{}, &apierror.ZoneError{Zone: *in.Zone}
		}
		zone := *in.Zone
		q.Zone = &zone
		q.DeliveryFee = round2(fee)
	}

	// Till customers may buy a single low-value item.
	if in.Origin != model.OriginTillSale && q.Subtotal.LessThan(e.minimumOrder) {
		return Quote{}, &apierror.BelowMinimumOrderError{
			Minimum:   e.minimumOrder,
			Shortfall: round2(e.minimumOrder.Sub(q.Subtotal)),
		}
	}

	afterManual := q.Subtotal.Sub(q.ManualDiscount)
	q.PaymentDiscount = decimal.Zero
	q.PaymentDiscountPct = decimal.Zero
	if in.PaymentMethod == model.PaymentPix {
		q.PaymentDiscountPct = e.instantDiscountPct
		q.PaymentDiscount = round2(afterManual.Mul(e.instantDiscountPct).Div(hundred))
	}

	q.Total = round2(afterManual.Sub(q.PaymentDiscount).Add(q.DeliveryFee))
	return q, nil
}

// round2 rounds half-up. Amounts here are never negative.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
