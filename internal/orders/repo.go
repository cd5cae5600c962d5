package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

// Repository persists the order ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListChildrenOf(ctx context.Context, parentID uuid.UUID) ([]models.Order, error)
	ListByCustomer(ctx context.Context, customerID string, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error)
	CancelPendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order and its line items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Where("id = ?", id).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
			WithDetails(map[string]any{"orderId": id.String()})
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListChildrenOf(ctx context.Context, parentID uuid.UUID) ([]models.Order, error) {
	var children []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Order("vendor_id ASC").
		Find(&children).Error
	return children, err
}

// ListByCustomer pages through a customer's parent orders, newest first.
func (r *repository) ListByCustomer(ctx context.Context, customerID string, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("customer_id = ? AND parent_id IS NULL", customerID)
	var rows []models.Order
	err := query.Scopes(pagination.Keyset(cursor, limit)).Find(&rows).Error
	return rows, err
}

// UpdateStatus moves the order and its children from one status to another and
// reports how many rows changed.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("(id = ? OR parent_id = ?) AND status = ?", id, id, from).
		Update("status", to)
	return res.RowsAffected, res.Error
}

// CancelPendingBefore cancels every order still waiting on payment that was
// placed before cutoff.
func (r *repository) CancelPendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND created_at < ?", enums.OrderStatusPendingPayment, cutoff).
		Updates(map[string]any{"status": enums.OrderStatusCancelled, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
