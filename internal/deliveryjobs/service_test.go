package deliveryjobs

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chopmart/chopmart-backend/internal/notifications"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/metrics"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

type recordingNotifier struct {
	sent []notifications.Message
	err  error
}

func (r *recordingNotifier) Notify(ctx context.Context, msg notifications.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingNotifier) kinds() []string {
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Kind)
	}
	return out
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type harness struct {
	svc      Service
	repo     Repository
	notifier *recordingNotifier
	clock    *clock
	reg      *prometheus.Registry
	logs     *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := setupJobsDB(t)
	repo := NewRepository(conn)
	reg := prometheus.NewRegistry()
	logs := &bytes.Buffer{}
	h := &harness{
		repo:     repo,
		notifier: &recordingNotifier{},
		clock:    &clock{now: t0},
		reg:      reg,
		logs:     logs,
	}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Tx:       db.Wrap(conn),
		Machine:  newMachine(t),
		Notifier: h.notifier,
		Metrics:  metrics.NewDeliveryJobMetrics(reg),
		Logger:   logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: logs}),
		PageSize: 2,
		Now:      h.clock.Now,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func createInput() CreateInput {
	return CreateInput{
		Vendors:         []models.JobVendor{{VendorID: "v-1", VendorName: "Mama Put", PickupZone: "Back gate", ItemCount: 1}},
		CustomerID:      customerA.ID,
		CustomerContact: "0803",
		DropAddress:     "Hostel C",
		DropZone:        "Eziobodo",
	}
}

func (h *harness) quoted(t *testing.T) *models.DeliveryJob {
	t.Helper()
	ctx := context.Background()
	job, err := h.svc.Create(ctx, createInput())
	require.NoError(t, err)
	job, err = h.svc.SubmitQuote(ctx, Target{JobID: job.ID, Actor: riderA}, Quote{Amount: decimal.NewFromInt(1000), ETAMinutes: 20})
	require.NoError(t, err)
	return job
}

func TestServiceCreateNotifiesRiders(t *testing.T) {
	h := newHarness(t)
	job, err := h.svc.Create(context.Background(), createInput())
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusPendingQuote, job.Status)
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, NotifyJobOpened, h.notifier.sent[0].Kind)
	assert.Equal(t, enums.ActorRoleRider, h.notifier.sent[0].Recipient)
	assert.Empty(t, h.notifier.sent[0].RecipientID)
}

func TestServiceCreateValidates(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Create(context.Background(), CreateInput{CustomerID: "c"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, h.notifier.sent)
}

func TestServiceHappyPathWritesAuditTrail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.quoted(t)

	steps := []func(Target) (*models.DeliveryJob, error){
		func(tg Target) (*models.DeliveryJob, error) { tg.Actor = customerA; return h.svc.Accept(ctx, tg) },
		func(tg Target) (*models.DeliveryJob, error) { return h.svc.Assign(ctx, tg, "") },
		func(tg Target) (*models.DeliveryJob, error) { return h.svc.Depart(ctx, tg) },
		func(tg Target) (*models.DeliveryJob, error) { return h.svc.MarkDelivered(ctx, tg) },
	}
	for _, step := range steps {
		var err error
		job, err = step(Target{JobID: job.ID, Actor: riderA, ExpectedStatus: job.Status})
		require.NoError(t, err)
	}
	assert.Equal(t, enums.DeliveryJobStatusDelivered, job.Status)

	stored, err := h.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.Version)
	require.NotNil(t, stored.RiderPayout)
	assert.True(t, stored.RiderPayout.Equal(decimal.NewFromInt(950)))

	events, err := h.svc.Events(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, enums.DeliveryJobEventDeliver, events[4].Event)
	assert.Equal(t, "50", events[4].Payload["platformCut"])

	assert.Equal(t, float64(1), transitionCount(t, h.reg, "in_transit", "delivered"))
	assert.Contains(t, h.logs.String(), "delivery_job.transition")
	assert.Equal(t, []string{NotifyJobOpened, NotifyQuoteSubmitted, NotifyQuoteAccepted}, h.notifier.kinds())
}

func transitionCount(t *testing.T, reg *prometheus.Registry, from, to string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "chopmart_delivery_job_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["from"] == from && labels["to"] == to {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestServiceAcceptAfterExpiryExpiresJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	job := h.quoted(t)

	h.clock.now = t0.Add(16 * time.Minute)
	_, err := h.svc.Accept(ctx, Target{JobID: job.ID, Actor: customerA})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeQuoteExpired), "got %v", err)

	stored, err := h.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusExpired, stored.Status)

	events, err := h.svc.Events(ctx, job.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, enums.DeliveryJobEventExpire, last.Event)
	assert.Equal(t, enums.ActorRoleSystem, last.ActorRole)
	assert.Contains(t, h.notifier.kinds(), NotifyQuoteExpired)
}

func TestServiceExpectedStatusMismatchIsStale(t *testing.T) {
	h := newHarness(t)
	job := h.quoted(t)
	_, err := h.svc.Cancel(context.Background(), Target{JobID: job.ID, Actor: customerA, ExpectedStatus: enums.DeliveryJobStatusPendingQuote}, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStaleWrite), "got %v", err)

	stored, err := h.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusQuoted, stored.Status)
}

func TestServiceRejectsInvalidTransitionWithoutWriting(t *testing.T) {
	h := newHarness(t)
	job := h.quoted(t)
	_, err := h.svc.Depart(context.Background(), Target{JobID: job.ID, Actor: riderA})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition))

	events, err := h.svc.Events(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestServiceNotificationFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t)
	job := h.quoted(t)
	h.notifier.err = errors.New("pubsub down")

	next, err := h.svc.Withdraw(context.Background(), Target{JobID: job.ID, Actor: riderA}, "bike broke")
	require.NoError(t, err)
	assert.Equal(t, enums.DeliveryJobStatusCancelled, next.Status)
	assert.Contains(t, h.logs.String(), "delivery_job.notification_failed")

	stored, err := h.svc.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "bike broke", *stored.CancelReason)
}

func TestServiceExpireDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.quoted(t)
	second := h.quoted(t)
	h.clock.now = t0.Add(5 * time.Minute)
	third := h.quoted(t)

	h.clock.now = t0.Add(17 * time.Minute)
	n, err := h.svc.ExpireDue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for id, want := range map[uuid.UUID]enums.DeliveryJobStatus{
		first.ID:  enums.DeliveryJobStatusExpired,
		second.ID: enums.DeliveryJobStatusExpired,
		third.ID:  enums.DeliveryJobStatusQuoted,
	} {
		stored, err := h.repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, stored.Status, id.String())
	}

	n, err = h.svc.ExpireDue(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServiceListOpenUsesCursor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		h.clock.now = t0.Add(time.Duration(i) * time.Minute)
		_, err := h.svc.Create(ctx, createInput())
		require.NoError(t, err)
	}

	page, err := h.svc.ListOpen(ctx, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)

	rest, err := h.svc.ListOpen(ctx, pagination.Params{Cursor: page.Cursor})
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)

	_, err = h.svc.ListOpen(ctx, pagination.Params{Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}
