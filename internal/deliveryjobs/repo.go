package deliveryjobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

// eventVersionConstraint keeps one audit row per job version.
const eventVersionConstraint = "ux_delivery_job_events_version"

// Repository persists delivery jobs and their audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.DeliveryJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryJob, error)
	ListOpen(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.DeliveryJob, error)
	UpdateConditional(ctx context.Context, expectedStatus enums.DeliveryJobStatus, expectedVersion int, next models.DeliveryJob) error
	AppendEvent(ctx context.Context, event *models.DeliveryJobEvent) error
	ListEvents(ctx context.Context, jobID uuid.UUID) ([]models.DeliveryJobEvent, error)
	FindExpiredQuotes(ctx context.Context, now time.Time, limit int) ([]models.DeliveryJob, error)
	AttachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
	DetachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a delivery job repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, job *models.DeliveryJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = enums.DeliveryJobStatusPendingQuote
	}
	if job.Version == 0 {
		job.Version = 1
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryJob, error) {
	var job models.DeliveryJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "delivery job not found").
			WithDetails(map[string]any{"jobId": id.String()})
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListOpen returns pending_quote jobs newest first.
func (r *repository) ListOpen(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.DeliveryJob, error) {
	query := r.db.WithContext(ctx).Model(&models.DeliveryJob{}).
		Where("status = ?", enums.DeliveryJobStatusPendingQuote)
	var rows []models.DeliveryJob
	err := query.Scopes(pagination.Keyset(cursor, limit)).Find(&rows).Error
	return rows, err
}

// UpdateConditional writes next only if the stored row still has the expected status and version.
func (r *repository) UpdateConditional(ctx context.Context, expectedStatus enums.DeliveryJobStatus, expectedVersion int, next models.DeliveryJob) error {
	res := r.db.WithContext(ctx).Model(&models.DeliveryJob{}).
		Where("id = ? AND status = ? AND version = ?", next.ID, expectedStatus, expectedVersion).
		Updates(map[string]any{
			"status":        next.Status,
			"quoted_amount": next.QuotedAmount,
			"eta_minutes":   next.ETAMinutes,
			"notes":         next.Notes,
			"expires_at":    next.ExpiresAt,
			"rider_id":      next.RiderID,
			"platform_cut":  next.PlatformCut,
			"rider_payout":  next.RiderPayout,
			"cancel_reason": next.CancelReason,
			"accepted_at":   next.AcceptedAt,
			"delivered_at":  next.DeliveredAt,
			"closed_at":     next.ClosedAt,
			"version":       next.Version,
			"updated_at":    next.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected != 1 {
		return pkgerrors.New(pkgerrors.CodeStaleWrite, "delivery job was modified concurrently").
			WithDetails(map[string]any{
				"jobId":           next.ID.String(),
				"expectedStatus":  expectedStatus.String(),
				"expectedVersion": expectedVersion,
			})
	}
	return nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.DeliveryJobEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Create(event).Error
	if db.IsUniqueViolation(err, eventVersionConstraint) {
		return pkgerrors.New(pkgerrors.CodeStaleWrite, "delivery job was modified concurrently").
			WithDetails(map[string]any{"jobId": event.JobID, "version": event.Version})
	}
	return err
}

func (r *repository) ListEvents(ctx context.Context, jobID uuid.UUID) ([]models.DeliveryJobEvent, error) {
	var events []models.DeliveryJobEvent
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("version ASC").
		Find(&events).Error
	return events, err
}

// FindExpiredQuotes returns quoted jobs whose expiry is at or before now, oldest expiry first.
func (r *repository) FindExpiredQuotes(ctx context.Context, now time.Time, limit int) ([]models.DeliveryJob, error) {
	var rows []models.DeliveryJob
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.DeliveryJobStatusQuoted, now.UTC()).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// AttachOrder links a job to its submitted order. A job already bound to a different order is a conflict.
func (r *repository) AttachOrder(ctx context.Context, jobID, orderID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.DeliveryJob{}).
		Where("id = ? AND (order_id IS NULL OR order_id = ?)", jobID, orderID).
		Update("order_id", orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "delivery job already linked to another order").
			WithDetails(map[string]any{"jobId": jobID.String()})
	}
	return nil
}

// DetachOrder releases a job claimed for an order that was never stored.
func (r *repository) DetachOrder(ctx context.Context, jobID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.DeliveryJob{}).
		Where("id = ? AND order_id = ?", jobID, orderID).
		Update("order_id", nil).Error
}
