package persistence

import (
	"context"
	"errors"

	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	m := models.OrderModelFromDomain(o)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			return err
		}
		if len(m.Items) == 0 {
			return nil
		}
		return tx.Create(&m.Items).Error
	})
}

// FindByID loads an order with its items
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByPaymentReference loads the order a gateway reference belongs to
func (r *GormOrderRepository) FindByPaymentReference(ctx context.Context, reference string) (*order.Order, error) {
	if reference == "" {
		return nil, order.ErrOrderNotFound
	}
	return r.findOne(ctx, "payment_reference = ?", reference)
}

func (r *GormOrderRepository) findOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	var m models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where(query, arg).
		Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// Update writes the mutable fields guarded by the status the caller read.
// Zero affected rows means another request moved the order first.
func (r *GormOrderRepository) Update(ctx context.Context, o *order.Order, expected order.Status) error {
	m := models.OrderModelFromDomain(o)
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ? AND status = ?", o.ID, string(expected)).
		Updates(m.MutableColumns())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return order.ErrOrderNotFound
	}
	return order.ErrConcurrentModification
}

var _ order.Repository = (*GormOrderRepository)(nil)
