package deliveryjobs

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

func setupJobsDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec(`
CREATE TABLE delivery_jobs (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  status TEXT NOT NULL,
  vendors TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  customer_contact TEXT NOT NULL,
  drop_address TEXT NOT NULL,
  drop_zone TEXT NOT NULL,
  quoted_amount NUMERIC,
  eta_minutes INTEGER,
  notes TEXT,
  expires_at DATETIME,
  rider_id TEXT,
  platform_cut NUMERIC,
  rider_payout NUMERIC,
  cancel_reason TEXT,
  accepted_at DATETIME,
  delivered_at DATETIME,
  closed_at DATETIME,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE delivery_job_events (
  id TEXT PRIMARY KEY,
  job_id TEXT NOT NULL,
  event TEXT NOT NULL,
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  payload TEXT,
  version INTEGER NOT NULL,
  occurred_at DATETIME NOT NULL
);`).Error)
	return db
}

func seedJob(t *testing.T, repo Repository, mutate func(*models.DeliveryJob)) *models.DeliveryJob {
	t.Helper()
	job := &models.DeliveryJob{
		Vendors:         []models.JobVendor{{VendorID: "v-1", VendorName: "Mama Put", PickupLocation: "Back gate", PickupZone: "Back gate", ItemCount: 2}},
		CustomerID:      "cust-1",
		CustomerContact: "0803",
		DropAddress:     "Hostel C",
		DropZone:        "Eziobodo",
		CreatedAt:       t0,
		UpdatedAt:       t0,
	}
	if mutate != nil {
		mutate(job)
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func TestRepositoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupJobsDB(t))
	job := seedJob(t, repo, nil)

	assert.NotEqual(t, uuid.Nil, job.ID)
	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusPendingQuote, found.Status)
	assert.Equal(t, 1, found.Version)
	require.Len(t, found.Vendors, 1)
	assert.Equal(t, "Mama Put", found.Vendors[0].VendorName)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryUpdateConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupJobsDB(t))
	job := seedJob(t, repo, nil)

	amount := decimal.NewFromInt(900)
	next := *job
	next.Status = enums.DeliveryJobStatusQuoted
	next.QuotedAmount = &amount
	next.Version = 2
	next.UpdatedAt = t0.Add(time.Minute)

	require.NoError(t, repo.UpdateConditional(ctx, enums.DeliveryJobStatusPendingQuote, 1, next))

	err := repo.UpdateConditional(ctx, enums.DeliveryJobStatusPendingQuote, 1, next)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStaleWrite), "second write with old version must be stale, got %v", err)

	stored, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusQuoted, stored.Status)
	assert.Equal(t, 2, stored.Version)
	require.NotNil(t, stored.QuotedAmount)
	assert.True(t, stored.QuotedAmount.Equal(amount))
}

func TestRepositoryListOpenPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupJobsDB(t))
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job := seedJob(t, repo, func(j *models.DeliveryJob) { j.CreatedAt = t0.Add(time.Duration(i) * time.Minute) })
		ids = append(ids, job.ID)
	}
	seedJob(t, repo, func(j *models.DeliveryJob) { j.Status = enums.DeliveryJobStatusCancelled })

	first, err := repo.ListOpen(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, ids[2], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	rest, err := repo.ListOpen(ctx, &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
}

func TestRepositoryFindExpiredQuotes(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupJobsDB(t))
	lapsed := t0.Add(-time.Minute)
	fresh := t0.Add(time.Hour)
	old := seedJob(t, repo, func(j *models.DeliveryJob) {
		j.Status = enums.DeliveryJobStatusQuoted
		j.ExpiresAt = &lapsed
	})
	seedJob(t, repo, func(j *models.DeliveryJob) {
		j.Status = enums.DeliveryJobStatusQuoted
		j.ExpiresAt = &fresh
	})

	rows, err := repo.FindExpiredQuotes(ctx, t0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)
}

func TestRepositoryEventsAndAttachOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupJobsDB(t))
	job := seedJob(t, repo, nil)

	for v, ev := range []enums.DeliveryJobEventType{enums.DeliveryJobEventSubmitQuote, enums.DeliveryJobEventAccept} {
		require.NoError(t, repo.AppendEvent(ctx, &models.DeliveryJobEvent{
			JobID:      job.ID,
			Event:      ev,
			FromStatus: enums.DeliveryJobStatusPendingQuote,
			ToStatus:   enums.DeliveryJobStatusQuoted,
			ActorID:    "rider-1",
			ActorRole:  enums.ActorRoleRider,
			Payload:    map[string]any{"amount": "900"},
			Version:    v + 2,
			OccurredAt: t0,
		}))
	}
	events, err := repo.ListEvents(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, enums.DeliveryJobEventSubmitQuote, events[0].Event)
	assert.Equal(t, "900", events[0].Payload["amount"])

	orderID := uuid.New()
	require.NoError(t, repo.AttachOrder(ctx, job.ID, orderID))
	require.NoError(t, repo.AttachOrder(ctx, job.ID, orderID))
	other := uuid.New()
	err = repo.AttachOrder(ctx, job.ID, other)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	require.NoError(t, repo.DetachOrder(ctx, job.ID, other))
	stored, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, orderID, *stored.OrderID)

	require.NoError(t, repo.DetachOrder(ctx, job.ID, orderID))
	require.NoError(t, repo.AttachOrder(ctx, job.ID, other))
}

func TestRepositoryUpdateConditionalSQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	repo := NewRepository(db)

	next := models.DeliveryJob{ID: uuid.New(), Status: enums.DeliveryJobStatusAccepted, Version: 3, UpdatedAt: t0}
	pattern := regexp.QuoteMeta(`UPDATE "delivery_jobs" SET`) + `.*"version"=.*WHERE.*id = .* AND status = .* AND version = `

	mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateConditional(context.Background(), enums.DeliveryJobStatusQuoted, 2, next))

	mock.ExpectExec(pattern).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateConditional(context.Background(), enums.DeliveryJobStatusQuoted, 2, next)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStaleWrite), "got %v", err)

	require.NoError(t, mock.ExpectationsWereMet())
}
