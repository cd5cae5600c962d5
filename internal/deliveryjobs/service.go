package deliveryjobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/internal/notifications"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/metrics"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service drives delivery jobs through the state machine with optimistic writes.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DeliveryJob, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DeliveryJob, error)
	Events(ctx context.Context, id uuid.UUID) ([]models.DeliveryJobEvent, error)
	ListOpen(ctx context.Context, params pagination.Params) (*ListResult, error)
	SubmitQuote(ctx context.Context, target Target, quote Quote) (*models.DeliveryJob, error)
	Accept(ctx context.Context, target Target) (*models.DeliveryJob, error)
	Withdraw(ctx context.Context, target Target, reason string) (*models.DeliveryJob, error)
	Cancel(ctx context.Context, target Target, reason string) (*models.DeliveryJob, error)
	Assign(ctx context.Context, target Target, riderID string) (*models.DeliveryJob, error)
	Depart(ctx context.Context, target Target) (*models.DeliveryJob, error)
	MarkDelivered(ctx context.Context, target Target) (*models.DeliveryJob, error)
	ExpireDue(ctx context.Context, limit int) (int, error)
	AttachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
	DetachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
}

// ServiceParams wires the delivery job service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Machine  *Machine
	Notifier notifications.Notifier
	Metrics  *metrics.DeliveryJobMetrics
	Logger   *logger.Logger
	PageSize int
	Now      func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	machine  *Machine
	notifier notifications.Notifier
	metrics  *metrics.DeliveryJobMetrics
	logg     *logger.Logger
	pageSize int
	now      func() time.Time
}

// CreateInput opens a job awaiting rider quotes.
type CreateInput struct {
	OrderID         *uuid.UUID
	Vendors         []models.JobVendor
	CustomerID      string
	CustomerContact string
	DropAddress     string
	DropZone        string
}

// Target names the job to move and who is moving it. A non-empty ExpectedStatus
// must match the stored status or the call fails with a stale write.
type Target struct {
	JobID          uuid.UUID
	Actor          Actor
	ExpectedStatus enums.DeliveryJobStatus
}

// ListResult is a page of open jobs plus the cursor for the next page.
type ListResult struct {
	Items  []models.DeliveryJob `json:"items"`
	Cursor string               `json:"cursor"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery job repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Machine == nil {
		return nil, fmt.Errorf("state machine required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		machine:  params.Machine,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		pageSize: params.PageSize,
		now:      params.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.DeliveryJob, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	job := &models.DeliveryJob{
		ID:              uuid.New(),
		OrderID:         input.OrderID,
		Status:          enums.DeliveryJobStatusPendingQuote,
		Vendors:         input.Vendors,
		CustomerID:      input.CustomerID,
		CustomerContact: strings.TrimSpace(input.CustomerContact),
		DropAddress:     strings.TrimSpace(input.DropAddress),
		DropZone:        input.DropZone,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery job")
	}

	ctx = s.logg.WithJobID(ctx, job.ID.String())
	s.logg.Info(ctx, "delivery_job.created")
	s.notify(ctx, *job, []Notification{{Kind: NotifyJobOpened, Recipient: enums.ActorRoleRider}})
	return job, nil
}

func validateCreate(input CreateInput) error {
	var missing []string
	if strings.TrimSpace(input.CustomerID) == "" {
		missing = append(missing, "customerId")
	}
	if len(input.Vendors) == 0 {
		missing = append(missing, "vendors")
	}
	if strings.TrimSpace(input.DropAddress) == "" {
		missing = append(missing, "dropAddress")
	}
	if strings.TrimSpace(input.DropZone) == "" {
		missing = append(missing, "dropZone")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "delivery job is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.DeliveryJob, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) Events(ctx context.Context, id uuid.UUID) ([]models.DeliveryJobEvent, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, id)
}

func (s *service) ListOpen(ctx context.Context, params pagination.Params) (*ListResult, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOpen(ctx, cursor, pagination.LimitWithBuffer(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list open delivery jobs")
	}
	page, next := pagination.Page(rows, limit, func(j models.DeliveryJob) pagination.Cursor {
		return pagination.Cursor{CreatedAt: j.CreatedAt, ID: j.ID}
	})
	return &ListResult{Items: page, Cursor: next}, nil
}

func (s *service) SubmitQuote(ctx context.Context, target Target, quote Quote) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventSubmitQuote, Actor: target.Actor, Quote: &quote})
}

func (s *service) Accept(ctx context.Context, target Target) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventAccept, Actor: target.Actor})
}

func (s *service) Withdraw(ctx context.Context, target Target, reason string) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventWithdraw, Actor: target.Actor, Reason: reason})
}

func (s *service) Cancel(ctx context.Context, target Target, reason string) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventCancel, Actor: target.Actor, Reason: reason})
}

func (s *service) Assign(ctx context.Context, target Target, riderID string) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventAssign, Actor: target.Actor, RiderID: riderID})
}

func (s *service) Depart(ctx context.Context, target Target) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventDepart, Actor: target.Actor})
}

func (s *service) MarkDelivered(ctx context.Context, target Target) (*models.DeliveryJob, error) {
	return s.transition(ctx, target, Event{Type: enums.DeliveryJobEventDeliver, Actor: target.Actor})
}

// ExpireDue moves lapsed quotes to expired. Jobs another writer already moved are skipped.
func (s *service) ExpireDue(ctx context.Context, limit int) (int, error) {
	jobs, err := s.repo.FindExpiredQuotes(ctx, s.now(), pagination.NormalizeLimit(limit))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired quotes")
	}
	expired := 0
	var errs error
	for _, job := range jobs {
		target := Target{JobID: job.ID, Actor: SystemActor, ExpectedStatus: enums.DeliveryJobStatusQuoted}
		_, err := s.transition(ctx, target, Event{Type: enums.DeliveryJobEventExpire, Actor: SystemActor})
		switch {
		case err == nil:
			expired++
		case pkgerrors.HasCode(err, pkgerrors.CodeStaleWrite):
		default:
			errs = multierr.Append(errs, fmt.Errorf("expire job %s: %w", job.ID, err))
		}
	}
	return expired, errs
}

func (s *service) AttachOrder(ctx context.Context, jobID, orderID uuid.UUID) error {
	if err := s.repo.AttachOrder(ctx, jobID, orderID); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach order to delivery job")
	}
	return nil
}

func (s *service) DetachOrder(ctx context.Context, jobID, orderID uuid.UUID) error {
	if err := s.repo.DetachOrder(ctx, jobID, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach order from delivery job")
	}
	return nil
}

func (s *service) transition(ctx context.Context, target Target, ev Event) (*models.DeliveryJob, error) {
	ctx = s.logg.WithJobID(ctx, target.JobID.String())
	ctx = s.logg.WithActor(ctx, ev.Actor.ID, ev.Actor.Role.String())
	now := s.now().UTC()

	var (
		prev, next models.DeliveryJob
		effects    Effects
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		job, err := repo.FindByID(ctx, target.JobID)
		if err != nil {
			return err
		}
		if target.ExpectedStatus != "" && job.Status != target.ExpectedStatus {
			return pkgerrors.New(pkgerrors.CodeStaleWrite, "delivery job status changed").
				WithDetails(map[string]any{
					"jobId":          job.ID.String(),
					"expectedStatus": target.ExpectedStatus.String(),
					"status":         job.Status.String(),
				})
		}
		n, eff, err := s.machine.Apply(*job, ev, now)
		if err != nil {
			return err
		}
		if err := repo.UpdateConditional(ctx, job.Status, job.Version, n); err != nil {
			return err
		}
		if err := repo.AppendEvent(ctx, auditEvent(*job, n, ev, eff, now)); err != nil {
			return err
		}
		prev, next, effects = *job, n, eff
		return nil
	})
	if err != nil {
		return nil, s.rejected(ctx, target, ev, err)
	}

	s.metrics.IncTransition(prev.Status.String(), next.Status.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":   ev.Type.String(),
		"from":    prev.Status.String(),
		"to":      next.Status.String(),
		"version": next.Version,
	}), "delivery_job.transition")
	s.notify(ctx, next, effects.Notify)
	return &next, nil
}

func (s *service) rejected(ctx context.Context, target Target, ev Event, err error) error {
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delivery job transition failed")
	}
	s.metrics.IncRejected(string(typed.Code()))
	if typed.Code() == pkgerrors.CodeQuoteExpired && ev.Type != enums.DeliveryJobEventExpire {
		expireTarget := Target{JobID: target.JobID, Actor: SystemActor, ExpectedStatus: enums.DeliveryJobStatusQuoted}
		if _, expErr := s.transition(ctx, expireTarget, Event{Type: enums.DeliveryJobEventExpire, Actor: SystemActor}); expErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", expErr.Error()), "delivery_job.expire_on_read_failed")
		}
	}
	return typed
}

func (s *service) notify(ctx context.Context, job models.DeliveryJob, notes []Notification) {
	for _, n := range notes {
		msg := notifications.Message{
			Kind:        n.Kind,
			JobID:       job.ID,
			Recipient:   n.Recipient,
			RecipientID: n.RecipientID,
			Status:      job.Status,
			OccurredAt:  job.UpdatedAt,
			Data:        notificationData(job),
		}
		if msg.OccurredAt.IsZero() {
			msg.OccurredAt = s.now().UTC()
		}
		if err := s.notifier.Notify(ctx, msg); err != nil {
			s.metrics.IncNotificationFailure(n.Kind)
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"kind":  n.Kind,
				"error": err.Error(),
			}), "delivery_job.notification_failed")
		}
	}
}

func notificationData(job models.DeliveryJob) map[string]any {
	data := map[string]any{"dropZone": job.DropZone}
	if job.QuotedAmount != nil {
		data["quotedAmount"] = job.QuotedAmount.String()
	}
	if job.ETAMinutes != nil {
		data["etaMinutes"] = *job.ETAMinutes
	}
	if job.ExpiresAt != nil {
		data["expiresAt"] = job.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return data
}

func auditEvent(prev, next models.DeliveryJob, ev Event, eff Effects, now time.Time) *models.DeliveryJobEvent {
	payload := map[string]any{}
	if ev.Quote != nil && next.QuotedAmount != nil {
		payload["amount"] = next.QuotedAmount.String()
		payload["etaMinutes"] = *next.ETAMinutes
	}
	if ev.Reason != "" {
		payload["reason"] = ev.Reason
	}
	if ev.Type == enums.DeliveryJobEventAssign && next.RiderID != nil {
		payload["riderId"] = *next.RiderID
	}
	if eff.Payout != nil {
		payload["platformCut"] = eff.Payout.PlatformCut.String()
		payload["riderPayout"] = eff.Payout.RiderPayout.String()
	}
	if len(payload) == 0 {
		payload = nil
	}
	return &models.DeliveryJobEvent{
		ID:         uuid.New(),
		JobID:      prev.ID,
		Event:      ev.Type,
		FromStatus: prev.Status,
		ToStatus:   next.Status,
		ActorID:    ev.Actor.ID,
		ActorRole:  ev.Actor.Role,
		Payload:    payload,
		Version:    next.Version,
		OccurredAt: now,
	}
}
