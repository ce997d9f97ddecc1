package repository

import (
	"context"
	"time"

	"imperio/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableRepository covers dining tables and the kitchen tickets of table orders.
type TableRepository interface {
	List(ctx context.Context) ([]model.DiningTable, error)
	FindTable(ctx context.Context, number int) (*model.DiningTable, error)
	// LockTable reads the table with SELECT … FOR UPDATE.
	LockTable(ctx context.Context, tx *gorm.DB, number int) (*model.DiningTable, error)
	SaveTable(ctx context.Context, tx *gorm.DB, t *model.DiningTable) error

	CreateTicket(ctx context.Context, tx *gorm.DB, k *model.KitchenTicket) error
	// SyncTicketStatus mirrors an order status onto its ticket. No ticket, no-op.
	SyncTicketStatus(ctx context.Context, tx *gorm.DB, orderID int64, status model.OrderStatus) error
	ListTickets(ctx context.Context, statuses []model.OrderStatus) ([]model.KitchenTicket, error)
}

type tableRepo struct{ db *gorm.DB }

func NewTableRepository(db *gorm.DB) TableRepository { return &tableRepo{db: db} }

func (r *tableRepo) List(ctx context.Context) ([]model.DiningTable, error) {
	var tables []model.DiningTable
	err := r.db.WithContext(ctx).Order("number ASC").Find(&tables).Error
	return tables, err
}

func (r *tableRepo) FindTable(ctx context.Context, number int) (*model.DiningTable, error) {
	var t model.DiningTable
	err := r.db.WithContext(ctx).First(&t, "number = ?", number).Error
	return &t, translate(err)
}

func (r *tableRepo) LockTable(ctx context.Context, tx *gorm.DB, number int) (*model.DiningTable, error) {
	var t model.DiningTable
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&t, "number = ?", number).Error
	return &t, translate(err)
}

func (r *tableRepo) SaveTable(ctx context.Context, tx *gorm.DB, t *model.DiningTable) error {
	return conn(r.db, tx).WithContext(ctx).Save(t).Error
}

func (r *tableRepo) CreateTicket(ctx context.Context, tx *gorm.DB, k *model.KitchenTicket) error {
	return translate(conn(r.db, tx).WithContext(ctx).Create(k).Error)
}

func (r *tableRepo) SyncTicketStatus(ctx context.Context, tx *gorm.DB, orderID int64, status model.OrderStatus) error {
	return conn(r.db, tx).WithContext(ctx).
		Model(&model.KitchenTicket{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()}).Error
}

func (r *tableRepo) ListTickets(ctx context.Context, statuses []model.OrderStatus) ([]model.KitchenTicket, error) {
	var tickets []model.KitchenTicket
	q := r.db.WithContext(ctx).Order("created_at ASC")
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Find(&tickets).Error
	return tickets, err
}
