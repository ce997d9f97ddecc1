package repository

import (
	"context"

	"imperio/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TillRepository persists till sessions and their append-only movement
// ledger. Methods taking tx run inside the caller's transaction; a nil tx
// uses the pool.
type TillRepository interface {
	// CreateSession returns ErrDuplicate when another session is already open.
	CreateSession(ctx context.Context, tx *gorm.DB, s *model.TillSession) error
	FindOpenSession(ctx context.Context, tx *gorm.DB) (*model.TillSession, error)
	FindSessionByID(ctx context.Context, id uuid.UUID) (*model.TillSession, error)
	// LockSession reads the session with SELECT … FOR UPDATE.
	LockSession(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TillSession, error)
	UpdateSession(ctx context.Context, tx *gorm.DB, s *model.TillSession) error
	ListSessions(ctx context.Context, page, limit int) ([]model.TillSession, int64, error)

	AppendMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error
	ListMovements(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashMovement, error)
	FindSaleProceeds(ctx context.Context, tx *gorm.DB, orderID int64) (*model.CashMovement, error)

	DB() *gorm.DB
}

type tillRepo struct{ db *gorm.DB }

func NewTillRepository(db *gorm.DB) TillRepository { return &tillRepo{db: db} }

func (r *tillRepo) DB() *gorm.DB { return r.db }

func (r *tillRepo) CreateSession(ctx context.Context, tx *gorm.DB, s *model.TillSession) error {
	return translate(conn(r.db, tx).WithContext(ctx).Create(s).Error)
}

func (r *tillRepo) FindOpenSession(ctx context.Context, tx *gorm.DB) (*model.TillSession, error) {
	var s model.TillSession
	err := conn(r.db, tx).WithContext(ctx).
		Where("status = ?", model.SessionOpen).
		First(&s).Error
	return &s, translate(err)
}

func (r *tillRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*model.TillSession, error) {
	var s model.TillSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, translate(err)
}

func (r *tillRepo) LockSession(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.TillSession, error) {
	var s model.TillSession
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&s, "id = ?", id).Error
	return &s, translate(err)
}

func (r *tillRepo) UpdateSession(ctx context.Context, tx *gorm.DB, s *model.TillSession) error {
	return translate(conn(r.db, tx).WithContext(ctx).Omit(clause.Associations).Save(s).Error)
}

func (r *tillRepo) ListSessions(ctx context.Context, page, limit int) ([]model.TillSession, int64, error) {
	var sessions []model.TillSession
	var total int64

	q := r.db.WithContext(ctx).Model(&model.TillSession{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("opened_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

func (r *tillRepo) AppendMovement(ctx context.Context, tx *gorm.DB, m *model.CashMovement) error {
	return translate(conn(r.db, tx).WithContext(ctx).Create(m).Error)
}

func (r *tillRepo) ListMovements(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) ([]model.CashMovement, error) {
	var movs []model.CashMovement
	err := conn(r.db, tx).WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq ASC").
		Find(&movs).Error
	return movs, err
}

func (r *tillRepo) FindSaleProceeds(ctx context.Context, tx *gorm.DB, orderID int64) (*model.CashMovement, error) {
	var m model.CashMovement
	err := conn(r.db, tx).WithContext(ctx).
		Where("order_id = ? AND kind = ?", orderID, model.MovementSaleProceeds).
		First(&m).Error
	return &m, translate(err)
}
