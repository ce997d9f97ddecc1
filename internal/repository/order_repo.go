package repository

import (
	"context"
	"time"

	"imperio/internal/dto"
	"imperio/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrderRepository interface {
	// Create inserts the order and its lines; the order number comes from
	// the table's identity column.
	Create(ctx context.Context, tx *gorm.DB, o *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Order, error)
	// UpdateStatusIfCurrent moves the order from expected to next only when the
	// stored status still equals expected, stamping updated_at with at.
	// ok=false means no row matched.
	UpdateStatusIfCurrent(ctx context.Context, tx *gorm.DB, id int64, expected, next model.OrderStatus, at time.Time) (ok bool, err error)
	List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error)
	ListByTab(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) ([]model.Order, error)
	DB() *gorm.DB
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

func (r *orderRepo) Create(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return translate(conn(r.db, tx).WithContext(ctx).Create(o).Error)
}

func (r *orderRepo) FindByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Order, error) {
	var o model.Order
	err := conn(r.db, tx).WithContext(ctx).Preload("Lines").First(&o, id).Error
	return &o, translate(err)
}

func (r *orderRepo) UpdateStatusIfCurrent(ctx context.Context, tx *gorm.DB, id int64, expected, next model.OrderStatus, at time.Time) (bool, error) {
	res := conn(r.db, tx).WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{"status": next, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) List(ctx context.Context, filter dto.OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Order{})

	switch filter.Status {
	case "":
		q = q.Where("status NOT IN ?", []model.OrderStatus{model.StatusDelivered, model.StatusCancelled})
	case "all":
		// no filter
	default:
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Origin != "" {
		q = q.Where("origin = ?", filter.Origin)
	}
	if filter.Date != "" {
		q = q.Where("DATE(created_at) = ?", filter.Date)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Lines").
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error

	return orders, total, err
}

func (r *orderRepo) ListByTab(ctx context.Context, tx *gorm.DB, tabID uuid.UUID) ([]model.Order, error) {
	var orders []model.Order
	err := conn(r.db, tx).WithContext(ctx).
		Preload("Lines").
		Where("tab_id = ?", tabID).
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}
