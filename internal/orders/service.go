// Package orders keeps the checkout ledger: one parent order per submission and
// one child order per vendor group.
package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/internal/checkout"
	"github.com/chopmart/chopmart-backend/pkg/db"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentVerifier reports whether the gateway settled a reference for the given amount.
type PaymentVerifier interface {
	Verify(ctx context.Context, reference string) (paid bool, amountMinor int64, err error)
}

type Service interface {
	Submit(ctx context.Context, sub checkout.OrderSubmission) (checkout.OrderReceipt, error)
	Detail(ctx context.Context, id uuid.UUID) (*Detail, error)
	ListForCustomer(ctx context.Context, customerID string, params pagination.Params) (*ListResult, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CancelUnpaid(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Detail is a parent order with its per-vendor children.
type Detail struct {
	Order    models.Order   `json:"order"`
	Children []models.Order `json:"children"`
}

type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

type service struct {
	repo     Repository
	tx       txRunner
	verifier PaymentVerifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx txRunner, verifier PaymentVerifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, verifier: verifier, logg: logg, now: time.Now}, nil
}

// Submit stores the order tree. A submission carrying the id of an order that
// already exists returns that order's receipt instead of writing a second one.
func (s *service) Submit(ctx context.Context, sub checkout.OrderSubmission) (checkout.OrderReceipt, error) {
	if len(sub.Groups) == 0 {
		return checkout.OrderReceipt{}, pkgerrors.New(pkgerrors.CodeInvalidSelection, "no vendor groups to order")
	}
	if sub.OrderID != uuid.Nil {
		receipt, found, err := s.existing(ctx, sub)
		if err != nil || found {
			return receipt, err
		}
	}
	now := s.now().UTC()
	status := enums.OrderStatusPlaced
	if sub.PaymentMethod.RequiresGateway() {
		status = enums.OrderStatusPendingPayment
	}

	parent := baseOrder(sub, status, now)
	if sub.OrderID != uuid.Nil {
		parent.ID = sub.OrderID
	}
	parent.Subtotal = sub.Totals.Subtotal
	parent.AdminFee = sub.Totals.AdminFee
	parent.DeliveryFee = sub.Totals.DeliveryFee
	parent.Total = sub.Totals.GrandTotal
	ref := parent.ID.String()
	if sub.PaymentMethod.RequiresGateway() {
		parent.PaymentReference = &ref
	}

	children := make([]models.Order, 0, len(sub.Groups))
	for _, g := range sub.Groups {
		child := baseOrder(sub, status, now)
		child.ParentID = &parent.ID
		vendorID, vendorName, role := g.Group.VendorID, g.Group.VendorName, g.Group.VendorRole
		pickup := g.Group.Zone.String()
		child.VendorID = &vendorID
		child.VendorName = &vendorName
		child.VendorRole = &role
		child.PickupZone = &pickup
		child.Subtotal = g.Subtotal
		child.AdminFee = g.AdminFee
		child.DeliveryFee = g.DeliveryFee
		child.Total = g.Total
		child.Items = lineItems(child.ID, g, now)
		children = append(children, child)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, &parent); err != nil {
			return err
		}
		for i := range children {
			if err := repo.Create(ctx, &children[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if sub.OrderID != uuid.Nil && db.IsUniqueViolation(err, "") {
			receipt, found, lookupErr := s.existing(ctx, sub)
			if lookupErr != nil || found {
				return receipt, lookupErr
			}
		}
		return checkout.OrderReceipt{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
	}

	receipt := checkout.OrderReceipt{OrderID: parent.ID, Status: status}
	for _, c := range children {
		receipt.ChildOrderIDs = append(receipt.ChildOrderIDs, c.ID)
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithOrderID(ctx, parent.ID.String()), map[string]any{
		"children": len(children),
		"status":   status.String(),
	}), "order.created")
	return receipt, nil
}

// existing looks up a previously stored submission. The same id arriving with a
// different customer or amount means the key behind it was reused.
func (s *service) existing(ctx context.Context, sub checkout.OrderSubmission) (checkout.OrderReceipt, bool, error) {
	order, err := s.repo.Get(ctx, sub.OrderID)
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return checkout.OrderReceipt{}, false, nil
	case err != nil:
		return checkout.OrderReceipt{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.ParentID != nil || order.CustomerID != sub.Customer.ID || !order.Total.Equal(sub.Totals.GrandTotal) {
		return checkout.OrderReceipt{}, false, pkgerrors.New(pkgerrors.CodeIdempotency, "order already submitted with different contents").
			WithDetails(map[string]any{"orderId": order.ID.String()})
	}
	children, err := s.repo.ListChildrenOf(ctx, order.ID)
	if err != nil {
		return checkout.OrderReceipt{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list child orders")
	}
	receipt := checkout.OrderReceipt{OrderID: order.ID, Status: order.Status, Replayed: true}
	for _, c := range children {
		receipt.ChildOrderIDs = append(receipt.ChildOrderIDs, c.ID)
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order.submit_replayed")
	return receipt, true, nil
}

func baseOrder(sub checkout.OrderSubmission, status enums.OrderStatus, now time.Time) models.Order {
	return models.Order{
		ID:             uuid.New(),
		Status:         status,
		CustomerID:     sub.Customer.ID,
		CustomerName:   sub.Customer.Name,
		CustomerEmail:  sub.Customer.Email,
		CustomerPhone:  sub.Customer.Phone,
		DropZone:       sub.DropZone.String(),
		DropAddress:    sub.DropAddress,
		DeliveryMethod: sub.DeliveryMethod,
		DeliveryJobID:  sub.DeliveryJobID,
		PaymentMethod:  sub.PaymentMethod,
		Currency:       sub.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func lineItems(orderID uuid.UUID, g checkout.GroupSubmission, now time.Time) []models.OrderLineItem {
	items := make([]models.OrderLineItem, 0, len(g.Group.Items))
	for _, it := range g.Group.Items {
		items = append(items, models.OrderLineItem{
			ID:                 uuid.New(),
			OrderID:            orderID,
			ProductID:          it.ID,
			Name:               it.Name,
			UnitPrice:          it.UnitPrice,
			Quantity:           it.Quantity,
			LineTotal:          it.LineTotal(),
			VendorID:           it.VendorID,
			VendorName:         it.VendorName,
			VendorRole:         it.VendorRole,
			VendorBaseLocation: it.VendorBaseLocation,
			CreatedAt:          now,
		})
	}
	return items
}

func (s *service) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.repo.ListChildrenOf(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list child orders")
	}
	return &Detail{Order: *order, Children: children}, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID string, params pagination.Params) (*ListResult, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByCustomer(ctx, customerID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.Page(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Items: page, Cursor: next}, nil
}

// ConfirmPayment asks the gateway whether a pending order was paid in full and
// marks the order tree paid when it was.
func (s *service) ConfirmPayment(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment verification not configured")
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusPaid {
		return order, nil
	}
	if order.Status != enums.OrderStatusPendingPayment || order.PaymentReference == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	paid, amount, err := s.verifier.Verify(ctx, *order.PaymentReference)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify payment")
	}
	expected := checkout.Totals{GrandTotal: order.Total}.AmountMinor()
	if !paid || amount < expected {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment not settled").
			WithDetails(map[string]any{"expectedMinor": expected, "paidMinor": amount})
	}
	changed, err := s.repo.UpdateStatus(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if changed == 0 {
		return s.settleMovedOrder(ctx, order.ID)
	}
	order.Status = enums.OrderStatusPaid
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order.paid")
	return order, nil
}

// settleMovedOrder handles a verified payment for an order whose status changed
// while the gateway was being asked. A concurrent confirmation already did the
// work; a timeout cancellation is undone because the money arrived.
func (s *service) settleMovedOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	ctx = s.logg.WithOrderID(ctx, id.String())
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	switch current.Status {
	case enums.OrderStatusPaid:
		return current, nil
	case enums.OrderStatusCancelled:
		changed, err := s.repo.UpdateStatus(ctx, id, enums.OrderStatusCancelled, enums.OrderStatusPaid)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reinstate paid order")
		}
		if changed > 0 {
			current.Status = enums.OrderStatusPaid
			s.logg.Warn(ctx, "order.paid_after_cancel")
			return current, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed while payment was verified").
		WithDetails(map[string]any{"status": current.Status.String()})
}

// CancelUnpaid cancels orders that have waited on the gateway longer than olderThan.
func (s *service) CancelUnpaid(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "pending payment ttl must be positive")
	}
	n, err := s.repo.CancelPendingBefore(ctx, s.now().UTC().Add(-olderThan))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel unpaid orders")
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "cancelled", n), "order.unpaid_cancelled")
	}
	return n, nil
}
