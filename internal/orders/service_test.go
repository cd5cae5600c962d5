package orders

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/internal/checkout"
	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

type stubVerifier struct {
	paid   bool
	amount int64
	err    error
	refs   []string
	// during runs while the gateway call is in progress.
	during func()
}

func (s *stubVerifier) Verify(ctx context.Context, reference string) (bool, int64, error) {
	s.refs = append(s.refs, reference)
	if s.during != nil {
		s.during()
	}
	return s.paid, s.amount, s.err
}

func newTestService(t *testing.T, verifier PaymentVerifier) (Service, Repository, *bytes.Buffer) {
	t.Helper()
	conn := setupOrdersDB(t)
	repo := NewRepository(conn)
	logs := &bytes.Buffer{}
	svc, err := NewService(repo, db.Wrap(conn), verifier, logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: logs}))
	require.NoError(t, err)
	return svc, repo, logs
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func twoVendorSubmission(method enums.PaymentMethod) checkout.OrderSubmission {
	groupA := cart.VendorGroup{
		VendorID: "A", VendorName: "Mama Put", VendorRole: enums.VendorRoleChef, Zone: zones.Zone("Back gate"),
		Items: []cart.CartLineItem{
			{ID: "a1", Name: "Jollof", UnitPrice: dec("2500"), Quantity: 2, VendorID: "A", VendorName: "Mama Put", VendorRole: enums.VendorRoleChef, VendorBaseLocation: "back-gate"},
		},
	}
	groupB := cart.VendorGroup{
		VendorID: "B", VendorName: "Campus Pharm", VendorRole: enums.VendorRolePharmacy, Zone: zones.Zone("Front gate"),
		Items: []cart.CartLineItem{
			{ID: "b1", Name: "Vitamin C", UnitPrice: dec("23.3331"), Quantity: 3, VendorID: "B", VendorName: "Campus Pharm", VendorRole: enums.VendorRolePharmacy, VendorBaseLocation: "front gate"},
		},
	}
	return checkout.OrderSubmission{
		Customer: checkout.Customer{ID: "cust-1", Name: "Ada", Email: "ada@example.com", Phone: "0803"},
		Groups: []checkout.GroupSubmission{
			{Group: groupA, Subtotal: dec("5000"), AdminFee: dec("250"), DeliveryFee: dec("500"), Total: dec("5750")},
			{Group: groupB, Subtotal: dec("69.9993"), AdminFee: dec("3.499965"), DeliveryFee: dec("700"), Total: dec("773.499265")},
		},
		Totals: checkout.Totals{
			ItemCount:   5,
			Subtotal:    dec("5069.9993"),
			AdminFee:    dec("253.499965"),
			DeliveryFee: dec("1200"),
			GrandTotal:  dec("6523.499265"),
		},
		DropZone:       zones.Zone("Eziobodo"),
		DropAddress:    "Hostel C",
		DeliveryMethod: enums.DeliveryMethodZoneRate,
		PaymentMethod:  method,
		Currency:       "NGN",
	}
}

func TestServiceSubmitWritesParentAndChildren(t *testing.T) {
	svc, _, logs := newTestService(t, nil)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	require.Len(t, receipt.ChildOrderIDs, 2)

	detail, err := svc.Detail(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, detail.Order.Status)
	require.NotNil(t, detail.Order.PaymentReference)
	assert.Equal(t, receipt.OrderID.String(), *detail.Order.PaymentReference)
	assert.True(t, detail.Order.Total.Equal(dec("6523.499265")))
	assert.Empty(t, detail.Order.Items)

	require.Len(t, detail.Children, 2)
	byVendor := map[string]int{}
	for i, child := range detail.Children {
		byVendor[*child.VendorID] = i
		assert.Equal(t, receipt.OrderID, *child.ParentID)
		assert.Equal(t, "Hostel C", child.DropAddress)
	}
	pharm := detail.Children[byVendor["B"]]
	require.Len(t, pharm.Items, 1)
	assert.True(t, pharm.Items[0].LineTotal.Equal(dec("69.9993")))
	assert.Equal(t, "Front gate", *pharm.PickupZone)
	assert.True(t, pharm.DeliveryFee.Equal(dec("700")))
	assert.Contains(t, logs.String(), "order.created")
}

func TestServiceSubmitPayOnDeliveryIsPlaced(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodPayOnDelivery))
	require.NoError(t, err)
	order, err := repo.Get(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, order.Status)
	assert.Nil(t, order.PaymentReference)
}

func TestServiceSubmitRejectsEmptyGroups(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	sub := twoVendorSubmission(enums.PaymentMethodCard)
	sub.Groups = nil
	_, err := svc.Submit(context.Background(), sub)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvalidSelection))
}

func TestServiceConfirmPayment(t *testing.T) {
	verifier := &stubVerifier{paid: true, amount: 652350}
	svc, repo, _ := newTestService(t, verifier)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)

	order, err := svc.ConfirmPayment(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)
	assert.Equal(t, []string{receipt.OrderID.String()}, verifier.refs)

	children, err := repo.ListChildrenOf(ctx, receipt.OrderID)
	require.NoError(t, err)
	for _, child := range children {
		assert.Equal(t, enums.OrderStatusPaid, child.Status)
	}

	again, err := svc.ConfirmPayment(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, again.Status)
	assert.Len(t, verifier.refs, 1)
}

func TestServiceConfirmPaymentShortfall(t *testing.T) {
	verifier := &stubVerifier{paid: true, amount: 100}
	svc, _, _ := newTestService(t, verifier)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, receipt.OrderID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestServiceConfirmPaymentGatewayFailure(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("timeout")}
	svc, _, _ := newTestService(t, verifier)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, receipt.OrderID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestServiceConfirmPaymentNotPending(t *testing.T) {
	svc, _, _ := newTestService(t, &stubVerifier{paid: true, amount: 1 << 40})
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodPayOnDelivery))
	require.NoError(t, err)
	_, err = svc.ConfirmPayment(ctx, receipt.OrderID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestServiceListForCustomer(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()
	s := svc.(*service)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodPayOnDelivery))
		require.NoError(t, err)
	}

	page, err := svc.ListForCustomer(ctx, "cust-1", pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.Cursor)
	for _, o := range page.Items {
		assert.Nil(t, o.ParentID)
	}

	rest, err := svc.ListForCustomer(ctx, "cust-1", pagination.Params{Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)

	_, err = svc.ListForCustomer(ctx, "", pagination.Params{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil)
	require.Error(t, err)
	_, err = NewService(NewRepository(setupOrdersDB(t)), nil, nil, nil)
	require.Error(t, err)
}

func TestServiceCancelUnpaid(t *testing.T) {
	svc, repo, _ := newTestService(t, nil)
	ctx := context.Background()
	s := svc.(*service)
	placed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return placed }

	stale, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	offline, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodPayOnDelivery))
	require.NoError(t, err)

	s.now = func() time.Time { return placed.Add(3 * time.Hour) }
	n, err := svc.CancelUnpaid(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	order, err := repo.Get(ctx, stale.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, order.Status)
	order, err = repo.Get(ctx, offline.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, order.Status)

	_, err = svc.CancelUnpaid(ctx, 0)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestServiceSubmitReplaysKnownOrderID(t *testing.T) {
	svc, repo, logs := newTestService(t, nil)
	ctx := context.Background()
	sub := twoVendorSubmission(enums.PaymentMethodCard)
	sub.OrderID = uuid.New()

	first, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, sub.OrderID, first.OrderID)
	assert.Equal(t, enums.OrderStatusPendingPayment, first.Status)
	assert.False(t, first.Replayed)

	again, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.OrderID, again.OrderID)
	assert.ElementsMatch(t, first.ChildOrderIDs, again.ChildOrderIDs)
	assert.Contains(t, logs.String(), "order.submit_replayed")

	rows, err := repo.ListByCustomer(ctx, "cust-1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	changed := sub
	changed.Totals.GrandTotal = dec("1")
	_, err = svc.Submit(ctx, changed)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeIdempotency))
}

func TestServiceConfirmPaymentAfterTimeoutCancel(t *testing.T) {
	verifier := &stubVerifier{paid: true, amount: 652350}
	svc, repo, logs := newTestService(t, verifier)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	verifier.during = func() {
		_, err := repo.UpdateStatus(ctx, receipt.OrderID, enums.OrderStatusPendingPayment, enums.OrderStatusCancelled)
		require.NoError(t, err)
	}

	order, err := svc.ConfirmPayment(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, order.Status)

	stored, err := repo.Get(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	children, err := repo.ListChildrenOf(ctx, receipt.OrderID)
	require.NoError(t, err)
	for _, child := range children {
		assert.Equal(t, enums.OrderStatusPaid, child.Status)
	}
	assert.Contains(t, logs.String(), "order.paid_after_cancel")
}

func TestServiceConfirmPaymentOrderMovedElsewhere(t *testing.T) {
	verifier := &stubVerifier{paid: true, amount: 652350}
	svc, repo, _ := newTestService(t, verifier)
	ctx := context.Background()

	receipt, err := svc.Submit(ctx, twoVendorSubmission(enums.PaymentMethodCard))
	require.NoError(t, err)
	verifier.during = func() {
		_, err := repo.UpdateStatus(ctx, receipt.OrderID, enums.OrderStatusPendingPayment, enums.OrderStatusPlaced)
		require.NoError(t, err)
	}

	_, err = svc.ConfirmPayment(ctx, receipt.OrderID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	stored, err := repo.Get(ctx, receipt.OrderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPlaced, stored.Status)
}

