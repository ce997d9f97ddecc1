package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"imperio/internal/apierror"
	"imperio/internal/dto"
	"imperio/internal/model"
	"imperio/internal/notify"
	"imperio/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repositories. DB() returns nil so runTx calls fn(nil). Every read
// returns a copy, the way rows come back from the store.

// ── till ──────────────────────────────────────────────────────────────────────

type memTillRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]model.TillSession
	movements []model.CashMovement
}

func newMemTillRepo() *memTillRepo {
	return &memTillRepo{sessions: make(map[uuid.UUID]model.TillSession)}
}

func (r *memTillRepo) DB() *gorm.DB { return nil }

func (r *memTillRepo) CreateSession(_ context.Context, _ *gorm.DB, s *model.TillSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.sessions {
		if existing.Status == model.SessionOpen {
			return fmt.Errorf("%w: uq_till_sessions_single_open", repository.ErrDuplicate)
		}
	}
	r.sessions[s.ID] = *s
	return nil
}

func (r *memTillRepo) FindOpenSession(_ context.Context, _ *gorm.DB) (*model.TillSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Status == model.SessionOpen {
			cp := s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: open till session", apierror.ErrNotFound)
}

func (r *memTillRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*model.TillSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: till session %s", apierror.ErrNotFound, id)
	}
	return &s, nil
}

func (r *memTillRepo) LockSession(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.TillSession, error) {
	return r.FindSessionByID(ctx, id)
}

func (r *memTillRepo) UpdateSession(_ context.Context, _ *gorm.DB, s *model.TillSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.Movements = nil
	r.sessions[s.ID] = cp
	return nil
}

func (r *memTillRepo) ListSessions(_ context.Context, page, limit int) ([]model.TillSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]model.TillSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *memTillRepo) AppendMovement(_ context.Context, _ *gorm.DB, m *model.CashMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.movements {
		if existing.SessionID == m.SessionID && existing.Seq == m.Seq {
			return fmt.Errorf("%w: idx_movement_session_seq", repository.ErrDuplicate)
		}
		if m.OrderID != nil && existing.OrderID != nil && *existing.OrderID == *m.OrderID {
			return fmt.Errorf("%w: order_id", repository.ErrDuplicate)
		}
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *memTillRepo) ListMovements(_ context.Context, _ *gorm.DB, sessionID uuid.UUID) ([]model.CashMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CashMovement
	for _, m := range r.movements {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (r *memTillRepo) FindSaleProceeds(_ context.Context, _ *gorm.DB, orderID int64) (*model.CashMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.Kind == model.MovementSaleProceeds && m.OrderID != nil && *m.OrderID == orderID {
			cp := m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: sale proceeds for order %d", apierror.ErrNotFound, orderID)
}

// ── orders ────────────────────────────────────────────────────────────────────

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]model.Order
	nextID int64
}

func newMemOrderRepo() *memOrderRepo { return &memOrderRepo{orders: make(map[int64]model.Order)} }

func (r *memOrderRepo) DB() *gorm.DB { return nil }

func copyOrder(o model.Order) model.Order {
	o.Lines = append([]model.OrderLine(nil), o.Lines...)
	return o
}

func (r *memOrderRepo) Create(_ context.Context, _ *gorm.DB, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o.ID = r.nextID
	for i := range o.Lines {
		o.Lines[i].ID = uuid.New()
		o.Lines[i].OrderID = o.ID
	}
	r.orders[o.ID] = copyOrder(*o)
	return nil
}

func (r *memOrderRepo) FindByID(_ context.Context, _ *gorm.DB, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %d", apierror.ErrNotFound, id)
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (r *memOrderRepo) UpdateStatusIfCurrent(_ context.Context, _ *gorm.DB, id int64, expected, next model.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != expected {
		return false, nil
	}
	o.Status = next
	o.UpdatedAt = at
	r.orders[id] = o
	return true, nil
}

func (r *memOrderRepo) List(_ context.Context, f dto.OrderFilter) ([]model.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		switch f.Status {
		case "":
			if o.Status.Terminal() {
				continue
			}
		case "all":
		default:
			if string(o.Status) != f.Status {
				continue
			}
		}
		if f.Origin != "" && string(o.Origin) != f.Origin {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (r *memOrderRepo) ListByTab(_ context.Context, _ *gorm.DB, tabID uuid.UUID) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Order
	for _, o := range r.orders {
		if o.TabID != nil && *o.TabID == tabID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── tables ────────────────────────────────────────────────────────────────────

type memTableRepo struct {
	mu      sync.Mutex
	tables  map[int]model.DiningTable
	tickets map[int64]model.KitchenTicket
}

func newMemTableRepo(n int) *memTableRepo {
	r := &memTableRepo{tables: make(map[int]model.DiningTable), tickets: make(map[int64]model.KitchenTicket)}
	for i := 1; i <= n; i++ {
		r.tables[i] = model.DiningTable{Number: i}
	}
	return r
}

func (r *memTableRepo) List(_ context.Context) ([]model.DiningTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DiningTable, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *memTableRepo) FindTable(_ context.Context, number int) (*model.DiningTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[number]
	if !ok {
		return nil, fmt.Errorf("%w: table %d", apierror.ErrNotFound, number)
	}
	return &t, nil
}

func (r *memTableRepo) LockTable(ctx context.Context, _ *gorm.DB, number int) (*model.DiningTable, error) {
	return r.FindTable(ctx, number)
}

func (r *memTableRepo) SaveTable(_ context.Context, _ *gorm.DB, t *model.DiningTable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.Number] = *t
	return nil
}

func (r *memTableRepo) CreateTicket(_ context.Context, _ *gorm.DB, k *model.KitchenTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tickets[k.OrderID]; dup {
		return fmt.Errorf("%w: kitchen ticket order_id", repository.ErrDuplicate)
	}
	r.tickets[k.OrderID] = *k
	return nil
}

func (r *memTableRepo) SyncTicketStatus(_ context.Context, _ *gorm.DB, orderID int64, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.tickets[orderID]; ok {
		k.Status = status
		r.tickets[orderID] = k
	}
	return nil
}

func (r *memTableRepo) ListTickets(_ context.Context, statuses []model.OrderStatus) ([]model.KitchenTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.KitchenTicket
	for _, k := range r.tickets {
		if len(statuses) == 0 || containsStatus(statuses, k.Status) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

func containsStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ── catalog ───────────────────────────────────────────────────────────────────

type memCatalogRepo struct {
	mu         sync.Mutex
	products   []model.Product
	categories []model.Category
	zones      []model.DeliveryZone
}

func (r *memCatalogRepo) ListProducts(_ context.Context, onlyAvailable bool) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		if onlyAvailable && !p.Available {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memCatalogRepo) FindProductByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: product %s", apierror.ErrNotFound, id)
}

func (r *memCatalogRepo) FindProductsByIDs(_ context.Context, ids []uuid.UUID) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Product
	for _, p := range r.products {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (r *memCatalogRepo) UpdateProduct(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = *p
			return nil
		}
	}
	return fmt.Errorf("%w: product %s", apierror.ErrNotFound, p.ID)
}

func (r *memCatalogRepo) ListCategories(_ context.Context) ([]model.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Category(nil), r.categories...), nil
}

func (r *memCatalogRepo) ListZones(_ context.Context, onlyActive bool) ([]model.DeliveryZone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DeliveryZone
	for _, z := range r.zones {
		if onlyActive && !z.Active {
			continue
		}
		out = append(out, z)
	}
	return out, nil
}

// ── fixtures ──────────────────────────────────────────────────────────────────

var (
	idBatata = uuid.MustParse("0b5d8a0e-3c1f-4a8e-9d55-7f0a1b2c3d01")
	idCoca   = uuid.MustParse("0b5d8a0e-3c1f-4a8e-9d55-7f0a1b2c3d02")
	idPizza  = uuid.MustParse("0b5d8a0e-3c1f-4a8e-9d55-7f0a1b2c3d03")
	idPudim  = uuid.MustParse("0b5d8a0e-3c1f-4a8e-9d55-7f0a1b2c3d04")
	idSuco   = uuid.MustParse("0b5d8a0e-3c1f-4a8e-9d55-7f0a1b2c3d05")
)

func newCatalogFixture() *memCatalogRepo {
	promo := decimal.RequireFromString("6.00")
	return &memCatalogRepo{
		products: []model.Product{
			{ID: idBatata, Name: "Batata Frita", Price: dec("18.00"), Available: true},
			{ID: idCoca, Name: "Coca-Cola lata", Price: dec("6.50"), Available: true},
			{ID: idPizza, Name: "Pizza Calabresa", Price: dec("42.00"), Available: true},
			{ID: idPudim, Name: "Pudim de Leite", Price: dec("9.00"), PromoPrice: &promo, Available: true},
			{ID: idSuco, Name: "Suco de Laranja", Price: dec("8.00"), Available: false},
		},
		categories: []model.Category{{ID: uuid.New(), Name: "Porções", Active: true}},
		zones: []model.DeliveryZone{
			{ID: uuid.New(), Name: "centro", DisplayName: "Centro", Fee: dec("5.00"), Active: true},
			{ID: uuid.New(), Name: "jardim sao jose", DisplayName: "Jardim São José", Fee: dec("8.00"), Active: true},
			{ID: uuid.New(), Name: "distrito industrial", DisplayName: "Distrito Industrial", Fee: dec("12.00"), Active: false},
		},
	}
}

// recordingPublisher captures events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count(entity notify.Entity, kind string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Entity == entity && ev.Kind == kind {
			n++
		}
	}
	return n
}

type recordingQueue struct {
	mu       sync.Mutex
	sessions []uuid.UUID
}

func (q *recordingQueue) EnqueueTillReport(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sessions = append(q.sessions, id)
	return nil
}

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = len(all)
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
