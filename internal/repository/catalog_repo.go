package repository

import (
	"context"

	"imperio/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository is the read model of products, categories and delivery
// zones. Order creation only ever reads it.
type CatalogRepository interface {
	ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListZones(ctx context.Context, onlyActive bool) ([]model.DeliveryZone, error)
}

type catalogRepo struct{ db *gorm.DB }

func NewCatalogRepository(db *gorm.DB) CatalogRepository { return &catalogRepo{db: db} }

func (r *catalogRepo) ListProducts(ctx context.Context, onlyAvailable bool) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).Preload("Category").Order("name ASC")
	if onlyAvailable {
		q = q.Where("available = true")
	}
	err := q.Find(&products).Error
	return products, err
}

func (r *catalogRepo) FindProductByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, translate(err)
}

func (r *catalogRepo) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *catalogRepo) UpdateProduct(ctx context.Context, p *model.Product) error {
	return translate(r.db.WithContext(ctx).Omit("Category").Save(p).Error)
}

func (r *catalogRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	err := r.db.WithContext(ctx).Where("active = true").Order("sort_order ASC, name ASC").Find(&cats).Error
	return cats, err
}

func (r *catalogRepo) ListZones(ctx context.Context, onlyActive bool) ([]model.DeliveryZone, error) {
	var zones []model.DeliveryZone
	q := r.db.WithContext(ctx).Order("display_name ASC")
	if onlyActive {
		q = q.Where("active = true")
	}
	err := q.Find(&zones).Error
	return zones, err
}
