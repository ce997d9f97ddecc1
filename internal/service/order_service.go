package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/infra"
	"imperio/internal/model"
	"imperio/internal/notify"
	"imperio/internal/pricing"
	"imperio/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is a product reference plus quantity, as every channel submits it.
type CartItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// Cart is what a quote depends on.
type Cart struct {
	Origin        model.Origin
	Items         []CartItem
	PaymentMethod model.PaymentMethod
	Discount      decimal.Decimal
	Zone          *string
}

// NewOrder is a cart plus who and where.
type NewOrder struct {
	Cart
	CustomerName    *string
	CustomerPhone   *string
	DeliveryAddress *string
	TableNumber     *int
	TillSessionID   *uuid.UUID // till sales; nil means the open session
	Notes           *string
}

type OrderService interface {
	Quote(ctx context.Context, cart Cart) (*pricing.Quote, error)
	Create(ctx context.Context, in NewOrder) (*dto.OrderResponse, error)
	Get(ctx context.Context, id int64) (*dto.OrderResponse, error)
	List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error)
	// Advance moves an order one step. target nil means the next forward
	// state after expected.
	Advance(ctx context.Context, id int64, expected model.OrderStatus, target *model.OrderStatus) (*dto.OrderResponse, error)
	Cancel(ctx context.Context, id int64) (*dto.OrderResponse, error)

	Tables(ctx context.Context) ([]dto.TableResponse, error)
	TableTab(ctx context.Context, number int) (*dto.TableTabResponse, error)
	CloseTable(ctx context.Context, number int) error
	KitchenTickets(ctx context.Context) ([]dto.KitchenTicketResponse, error)
}

type orderService struct {
	orders  repository.OrderRepository
	tables  repository.TableRepository
	catalog repository.CatalogRepository
	till    TillService
	engine  *pricing.Engine
	events  notify.Publisher
	metrics *infra.Metrics
	now     func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	tables repository.TableRepository,
	catalog repository.CatalogRepository,
	till TillService,
	engine *pricing.Engine,
	events notify.Publisher,
	metrics *infra.Metrics,
) OrderService {
	if engine == nil {
		engine = pricing.DefaultEngine()
	}
	if events == nil {
		events = notify.Noop{}
	}
	return &orderService{
		orders: orders, tables: tables, catalog: catalog, till: till,
		engine: engine, events: events, metrics: metrics, now: time.Now,
	}
}

// ── Quote ─────────────────────────────────────────────────────────────────────

func (s *orderService) Quote(ctx context.Context, cart Cart) (*pricing.Quote, error) {
	if cart.Origin == "" {
		cart.Origin = model.OriginStorefrontPickup
	}
	q, err := s.price(ctx, cart)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// price resolves products and zones from the catalog, then hands a fully
// resolved input to the pure engine.
func (s *orderService) price(ctx context.Context, cart Cart) (pricing.Quote, error) {
	cart.Zone = trimmedOrNil(cart.Zone)
	ids := make([]uuid.UUID, 0, len(cart.Items))
	seen := make(map[uuid.UUID]bool, len(cart.Items))
	for _, it := range cart.Items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	products, err := s.catalog.FindProductsByIDs(ctx, ids)
	if err != nil {
		return pricing.Quote{}, err
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]pricing.Line, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return pricing.Quote{}, s.rejected(&apierror.ProductError{Name: it.ProductID.String()})
		}
		lines = append(lines, pricing.Line{Product: p, Quantity: it.Quantity})
	}

	var zones pricing.ZoneLookup
	if cart.Zone != nil {
		active, err := s.catalog.ListZones(ctx, true)
		if err != nil {
			return pricing.Quote{}, err
		}
		zones = pricing.NewZoneTable(active)
	}

	q, err := s.engine.Quote(pricing.Input{
		Lines:          lines,
		ManualDiscount: cart.Discount,
		PaymentMethod:  cart.PaymentMethod,
		Zone:           cart.Zone,
		Origin:         cart.Origin,
	}, zones)
	if err != nil {
		return pricing.Quote{}, s.rejected(err)
	}
	return q, nil
}

func (s *orderService) rejected(err error) error {
	_, code, _, _ := apierror.Describe(err)
	s.metrics.PricingRejected(code)
	return err
}

// ── Create ────────────────────────────────────────────────────────────────────
// The quote is computed before any write; a rejected quote persists nothing.
// Then one transaction: order + line snapshot, sale proceeds for a till sale,
// table occupation and kitchen ticket for a table order.

func (s *orderService) Create(ctx context.Context, in NewOrder) (*dto.OrderResponse, error) {
	if err := normalizeNewOrder(&in); err != nil {
		return nil, err
	}

	quote, err := s.price(ctx, in.Cart)
	if err != nil {
		return nil, err
	}
	if in.Origin == model.OriginTillSale && !quote.Total.IsPositive() {
		return nil, &apierror.AmountError{Reason: "o total da venda precisa ser maior que zero"}
	}

	var (
		order    *model.Order
		movement *model.CashMovement
		occupied bool
	)
	err = runTx(ctx, s.orders.DB(), func(tx *gorm.DB) error {
		now := s.now().UTC()
		o := buildOrder(in, quote, now)
		movement, occupied = nil, false

		switch in.Origin {
		case model.OriginTillSale:
			sessionID := in.TillSessionID
			if sessionID == nil {
				id, err := s.till.CurrentSessionID(ctx, tx)
				if err != nil {
					return err
				}
				sessionID = &id
			}
			// Lock before the order insert so a closed session aborts
			// before anything is written.
			if err := s.till.EnsureOpen(ctx, tx, *sessionID); err != nil {
				return err
			}
			o.TillSessionID = sessionID

		case model.OriginTable:
			table, err := s.tables.LockTable(ctx, tx, *in.TableNumber)
			if err != nil {
				return err
			}
			if !table.Occupied || table.TabID == nil {
				tab := uuid.New()
				table.Occupied = true
				table.TabID = &tab
				table.OccupiedSince = &now
				if err := s.tables.SaveTable(ctx, tx, table); err != nil {
					return err
				}
				occupied = true
			}
			o.TabID = table.TabID
		}

		if err := s.orders.Create(ctx, tx, o); err != nil {
			return err
		}

		switch in.Origin {
		case model.OriginTillSale:
			mv, err := s.till.RecordSaleProceeds(ctx, tx, *o.TillSessionID, o.ID, o.Total, o.PaymentMethod)
			if err != nil {
				return err
			}
			movement = mv
		case model.OriginTable:
			if err := s.tables.CreateTicket(ctx, tx, &model.KitchenTicket{
				ID:          uuid.New(),
				OrderID:     o.ID,
				TableNumber: *o.TableNumber,
				TabID:       *o.TabID,
				Items:       ticketText(o.Lines),
				Status:      o.Status,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("order_id", order.ID).Str("origin", string(order.Origin)).
		Str("total", order.Total.StringFixed(2)).Str("payment", string(order.PaymentMethod)).
		Msg("order: created")
	s.metrics.OrderCreated(string(order.Origin))

	notify.Emit(ctx, s.events, notify.EntityOrder, orderKey(order.ID), notify.KindCreated)
	if movement != nil {
		notify.Emit(ctx, s.events, notify.EntityCashMovement, movement.ID.String(), notify.KindCreated)
	}
	if occupied {
		notify.Emit(ctx, s.events, notify.EntityTable, strconv.Itoa(*order.TableNumber), notify.KindUpdated)
	}

	resp := toOrderResponse(order)
	return &resp, nil
}

// normalizeNewOrder enforces per-origin shape: which fields a channel must
// send and which it may not.
func normalizeNewOrder(in *NewOrder) error {
	if !in.Origin.Valid() {
		return fmt.Errorf("%w: origem %q desconhecida", apierror.ErrInvalidInput, in.Origin)
	}
	in.CustomerName = trimmedOrNil(in.CustomerName)
	in.CustomerPhone = trimmedOrNil(in.CustomerPhone)
	in.DeliveryAddress = trimmedOrNil(in.DeliveryAddress)
	in.Zone = trimmedOrNil(in.Zone)
	in.Notes = trimmedOrNil(in.Notes)

	if in.Origin == model.OriginTable {
		if in.TableNumber == nil || *in.TableNumber <= 0 {
			return fmt.Errorf("%w: informe o número da mesa", apierror.ErrInvalidInput)
		}
	} else if in.TableNumber != nil {
		return fmt.Errorf("%w: número de mesa só vale para pedidos de mesa", apierror.ErrInvalidInput)
	}

	switch in.Origin {
	case model.OriginTillSale, model.OriginTable:
		in.Zone, in.DeliveryAddress = nil, nil
	case model.OriginStorefrontPickup:
		in.Zone, in.DeliveryAddress = nil, nil
		if in.CustomerPhone == nil {
			return fmt.Errorf("%w: informe o telefone", apierror.ErrInvalidInput)
		}
	case model.OriginStorefrontDelivery:
		if in.CustomerPhone == nil {
			return fmt.Errorf("%w: informe o telefone", apierror.ErrInvalidInput)
		}
		if in.Zone == nil || in.DeliveryAddress == nil {
			return fmt.Errorf("%w: informe endereço e bairro para entrega", apierror.ErrInvalidInput)
		}
	case model.OriginConversational:
		if in.CustomerPhone == nil {
			return fmt.Errorf("%w: informe o telefone", apierror.ErrInvalidInput)
		}
	}
	if in.Origin != model.OriginTillSale {
		in.TillSessionID = nil
	}
	return nil
}

func buildOrder(in NewOrder, q pricing.Quote, now time.Time) *model.Order {
	lines := make([]model.OrderLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, model.OrderLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return &model.Order{
		Origin:          in.Origin,
		CustomerPhone:   in.CustomerPhone,
		CustomerName:    in.CustomerName,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryZone:    q.Zone,
		PaymentMethod:   q.PaymentMethod,
		Status:          model.StatusPending,
		Notes:           in.Notes,
		Subtotal:        q.Subtotal,
		ManualDiscount:  q.ManualDiscount,
		PaymentDiscount: q.PaymentDiscount,
		DeliveryFee:     q.DeliveryFee,
		Total:           q.Total,
		TableNumber:     in.TableNumber,
		TillSessionID:   in.TillSessionID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Lines:           lines,
	}
}

func ticketText(lines []model.OrderLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Quantity, l.Name))
	}
	return strings.Join(parts, "\n")
}

// ── Transitions ───────────────────────────────────────────────────────────────

func (s *orderService) Advance(ctx context.Context, id int64, expected model.OrderStatus, target *model.OrderStatus) (*dto.OrderResponse, error) {
	if !expected.Valid() {
		return nil, fmt.Errorf("%w: status %q desconhecido", apierror.ErrInvalidInput, expected)
	}
	var to model.OrderStatus
	if target != nil {
		to = *target
	} else {
		next, ok := expected.Next()
		if !ok {
			return nil, fmt.Errorf("%s has no successor: %w", expected, apierror.ErrInvalidTransition)
		}
		to = next
	}
	if !expected.CanTransitionTo(to) {
		return nil, fmt.Errorf("%s → %s: %w", expected, to, apierror.ErrInvalidTransition)
	}
	return s.transition(ctx, id, expected, to)
}

// Cancel re-reads the current status so the caller needs no expected value.
// A concurrent change between read and write is retried against the new
// status, which then decides whether cancelling is still legal.
// A cancelled till sale keeps its sale_proceeds movement, so it still counts
// in the session's sales and cash in hand; give money back with a sangria.
func (s *orderService) Cancel(ctx context.Context, id int64) (*dto.OrderResponse, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		o, err := s.orders.FindByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
		if !o.Status.Cancellable() {
			return nil, fmt.Errorf("cancel from %s: %w", o.Status, apierror.ErrInvalidTransition)
		}
		resp, err := s.transition(ctx, id, o.Status, model.StatusCancelled)
		if !errors.Is(err, apierror.ErrStaleStatus) {
			return resp, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// transition is a compare-and-set on the status column; the kitchen ticket
// follows in the same transaction.
func (s *orderService) transition(ctx context.Context, id int64, from, to model.OrderStatus) (*dto.OrderResponse, error) {
	var order *model.Order
	err := runTx(ctx, s.orders.DB(), func(tx *gorm.DB) error {
		ok, err := s.orders.UpdateStatusIfCurrent(ctx, tx, id, from, to, s.now().UTC())
		if err != nil {
			return err
		}
		if !ok {
			cur, err := s.orders.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			return &apierror.StaleStatusError{Expected: string(from), Actual: string(cur.Status)}
		}
		if err := s.tables.SyncTicketStatus(ctx, tx, id, to); err != nil {
			return err
		}
		order, err = s.orders.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("order_id", id).Str("from", string(from)).Str("to", string(to)).Msg("order: status changed")
	s.metrics.OrderTransition(string(to))
	notify.Emit(ctx, s.events, notify.EntityOrder, orderKey(id), notify.KindUpdated)

	resp := toOrderResponse(order)
	return &resp, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *orderService) Get(ctx context.Context, id int64) (*dto.OrderResponse, error) {
	o, err := s.orders.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	resp := toOrderResponse(o)
	return &resp, nil
}

func (s *orderService) List(ctx context.Context, filter dto.OrderFilter) (*dto.OrderListResponse, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	data := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		data = append(data, toOrderResponse(&orders[i]))
	}
	return &dto.OrderListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// ── Tables ────────────────────────────────────────────────────────────────────

func (s *orderService) Tables(ctx context.Context) ([]dto.TableResponse, error) {
	tables, err := s.tables.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TableResponse, 0, len(tables))
	for _, t := range tables {
		r := dto.TableResponse{Number: t.Number, Occupied: t.Occupied, OccupiedSince: formatTimePtr(t.OccupiedSince)}
		if t.TabID != nil {
			tab := t.TabID.String()
			r.TabID = &tab
		}
		out = append(out, r)
	}
	return out, nil
}

// TableTab merges every order on the table's open tab into one view.
func (s *orderService) TableTab(ctx context.Context, number int) (*dto.TableTabResponse, error) {
	table, err := s.tables.FindTable(ctx, number)
	if err != nil {
		return nil, err
	}
	if !table.Occupied || table.TabID == nil {
		return nil, fmt.Errorf("mesa %d está livre: %w", number, apierror.ErrNotFound)
	}
	orders, err := s.orders.ListByTab(ctx, nil, *table.TabID)
	if err != nil {
		return nil, err
	}
	return buildTab(number, *table.TabID, table.OccupiedSince, orders), nil
}

// TabViewID is the synthesized composite id of a tab. It is never numeric so
// it cannot be confused with an order number.
func TabViewID(number int, tab uuid.UUID) string {
	return fmt.Sprintf("mesa-%d-%s", number, tab.String()[:8])
}

var statusRank = map[model.OrderStatus]int{
	model.StatusPending:    0,
	model.StatusPreparing:  1,
	model.StatusDispatched: 2,
	model.StatusDelivered:  3,
}

func buildTab(number int, tab uuid.UUID, since *time.Time, orders []model.Order) *dto.TableTabResponse {
	type key struct {
		product uuid.UUID
		price   string
	}
	merged := make(map[key]*dto.OrderLineResponse)
	var order []key

	resp := &dto.TableTabResponse{
		ID:          TabViewID(number, tab),
		TableNumber: number,
		TabID:       tab.String(),
		OrderIDs:    []int64{},
		Subtotal:    decimal.Zero,
		Discount:    decimal.Zero,
		Total:       decimal.Zero,
	}
	if since != nil {
		resp.OpenedAt = formatTime(*since)
	}

	aggregate := model.StatusCancelled
	for _, o := range orders {
		resp.OrderIDs = append(resp.OrderIDs, o.ID)
		if o.Status == model.StatusCancelled {
			continue
		}
		if aggregate == model.StatusCancelled || statusRank[o.Status] < statusRank[aggregate] {
			aggregate = o.Status
		}
		resp.Subtotal = resp.Subtotal.Add(o.Subtotal)
		resp.Discount = resp.Discount.Add(o.ManualDiscount).Add(o.PaymentDiscount)
		resp.Total = resp.Total.Add(o.Total)
		for _, l := range o.Lines {
			k := key{l.ProductID, l.UnitPrice.StringFixed(2)}
			if m, ok := merged[k]; ok {
				m.Quantity += l.Quantity
				m.LineTotal = m.LineTotal.Add(l.LineTotal)
				continue
			}
			merged[k] = &dto.OrderLineResponse{
				ProductID: l.ProductID.String(),
				Name:      l.Name,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				LineTotal: l.LineTotal,
			}
			order = append(order, k)
		}
	}
	resp.Status = string(aggregate)
	resp.Items = make([]dto.OrderLineResponse, 0, len(order))
	for _, k := range order {
		resp.Items = append(resp.Items, *merged[k])
	}
	return resp
}

// CloseTable releases the table once every order on its tab is delivered or
// cancelled. Closing a free table is a no-op.
func (s *orderService) CloseTable(ctx context.Context, number int) error {
	released := false
	err := runTx(ctx, s.orders.DB(), func(tx *gorm.DB) error {
		released = false
		table, err := s.tables.LockTable(ctx, tx, number)
		if err != nil {
			return err
		}
		if !table.Occupied || table.TabID == nil {
			return nil
		}
		orders, err := s.orders.ListByTab(ctx, tx, *table.TabID)
		if err != nil {
			return err
		}
		for _, o := range orders {
			if !o.Status.Terminal() {
				return fmt.Errorf("mesa %d: pedido #%d ainda está %s: %w", number, o.ID, o.Status, apierror.ErrInvalidTransition)
			}
		}
		table.Occupied = false
		table.TabID = nil
		table.OccupiedSince = nil
		released = true
		return s.tables.SaveTable(ctx, tx, table)
	})
	if err != nil {
		return err
	}
	if released {
		log.Info().Int("table", number).Msg("order: table released")
		notify.Emit(ctx, s.events, notify.EntityTable, strconv.Itoa(number), notify.KindClosed)
	}
	return nil
}

func (s *orderService) KitchenTickets(ctx context.Context) ([]dto.KitchenTicketResponse, error) {
	tickets, err := s.tables.ListTickets(ctx, []model.OrderStatus{model.StatusPending, model.StatusPreparing})
	if err != nil {
		return nil, err
	}
	out := make([]dto.KitchenTicketResponse, 0, len(tickets))
	for _, k := range tickets {
		out = append(out, dto.KitchenTicketResponse{
			ID:          k.ID.String(),
			OrderID:     k.OrderID,
			TableNumber: k.TableNumber,
			Items:       k.Items,
			Status:      string(k.Status),
			CreatedAt:   formatTime(k.CreatedAt),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func orderKey(id int64) string { return strconv.FormatInt(id, 10) }

func toOrderResponse(o *model.Order) dto.OrderResponse {
	items := make([]dto.OrderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, dto.OrderLineResponse{
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	r := dto.OrderResponse{
		ID:              o.ID,
		Origin:          string(o.Origin),
		Status:          string(o.Status),
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		Zone:            o.DeliveryZone,
		PaymentMethod:   string(o.PaymentMethod),
		Items:           items,
		Subtotal:        o.Subtotal,
		Discount:        o.ManualDiscount,
		PaymentDiscount: o.PaymentDiscount,
		DeliveryFee:     o.DeliveryFee,
		Total:           o.Total,
		TableNumber:     o.TableNumber,
		Notes:           o.Notes,
		CreatedAt:       formatTime(o.CreatedAt),
		UpdatedAt:       formatTime(o.UpdatedAt),
	}
	if o.TabID != nil {
		tab := o.TabID.String()
		r.TabID = &tab
	}
	if o.TillSessionID != nil {
		sid := o.TillSessionID.String()
		r.SessionID = &sid
	}
	return r
}

// ToQuoteResponse renders a quote for the storefront and till screens.
func ToQuoteResponse(q *pricing.Quote) dto.QuoteResponse {
	items := make([]dto.OrderLineResponse, 0, len(q.Lines))
	for _, l := range q.Lines {
		items = append(items, dto.OrderLineResponse{
			ProductID: l.ProductID.String(),
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
		})
	}
	return dto.QuoteResponse{
		Items:              items,
		Subtotal:           q.Subtotal,
		Discount:           q.ManualDiscount,
		PaymentDiscount:    q.PaymentDiscount,
		PaymentDiscountPct: q.PaymentDiscountPct,
		DeliveryFee:        q.DeliveryFee,
		Total:              q.Total,
		PaymentMethod:      string(q.PaymentMethod),
	}
}
