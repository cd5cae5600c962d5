package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/pagination"
)

func setupOrdersDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.Exec(`
CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  parent_id TEXT,
  status TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  customer_name TEXT NOT NULL,
  customer_email TEXT NOT NULL,
  customer_phone TEXT NOT NULL,
  vendor_id TEXT,
  vendor_name TEXT,
  vendor_role TEXT,
  pickup_zone TEXT,
  drop_zone TEXT NOT NULL,
  drop_address TEXT NOT NULL,
  delivery_method TEXT NOT NULL,
  delivery_job_id TEXT,
  payment_method TEXT NOT NULL,
  payment_reference TEXT,
  subtotal TEXT NOT NULL,
  admin_fee TEXT NOT NULL,
  delivery_fee TEXT NOT NULL,
  total TEXT NOT NULL,
  currency TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`).Error)
	require.NoError(t, db.Exec(`
CREATE TABLE order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  line_total TEXT NOT NULL,
  vendor_id TEXT NOT NULL,
  vendor_name TEXT NOT NULL,
  vendor_role TEXT NOT NULL,
  vendor_base_location TEXT NOT NULL,
  created_at DATETIME
);`).Error)
	return db
}

func newOrder(customerID string, createdAt time.Time) *models.Order {
	return &models.Order{
		ID:             uuid.New(),
		Status:         enums.OrderStatusPlaced,
		CustomerID:     customerID,
		CustomerName:   "Ada",
		DropZone:       "Eziobodo",
		DropAddress:    "Hostel C",
		DeliveryMethod: enums.DeliveryMethodPickup,
		PaymentMethod:  enums.PaymentMethodPayOnDelivery,
		Subtotal:       decimal.NewFromInt(1000),
		AdminFee:       decimal.NewFromInt(50),
		DeliveryFee:    decimal.Zero,
		Total:          decimal.NewFromInt(1050),
		Currency:       "NGN",
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestRepositoryCreateAndGetWithItems(t *testing.T) {
	conn := setupOrdersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	order := newOrder("cust-1", time.Now().UTC())
	order.Items = []models.OrderLineItem{
		{ID: uuid.New(), ProductID: "a1", Name: "Jollof", UnitPrice: decimal.RequireFromString("23.3331"), Quantity: 3, LineTotal: decimal.RequireFromString("69.9993"), VendorID: "A", VendorName: "Mama Put", VendorRole: enums.VendorRoleChef, VendorBaseLocation: "Back gate"},
	}
	require.NoError(t, repo.Create(ctx, order))

	got, err := repo.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, order.ID, got.Items[0].OrderID)
	assert.True(t, got.Items[0].LineTotal.Equal(decimal.RequireFromString("69.9993")))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(1050)))
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := NewRepository(setupOrdersDB(t))
	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryListChildrenAndUpdateStatus(t *testing.T) {
	conn := setupOrdersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	parent := newOrder("cust-1", now)
	parent.Status = enums.OrderStatusPendingPayment
	require.NoError(t, repo.Create(ctx, parent))
	for _, vendor := range []string{"B", "A"} {
		child := newOrder("cust-1", now)
		child.Status = enums.OrderStatusPendingPayment
		v := vendor
		child.ParentID = &parent.ID
		child.VendorID = &v
		require.NoError(t, repo.Create(ctx, child))
	}

	children, err := repo.ListChildrenOf(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "A", *children[0].VendorID)

	n, err := repo.UpdateStatus(ctx, parent.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = repo.UpdateStatus(ctx, parent.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRepositoryListByCustomerPaginates(t *testing.T) {
	conn := setupOrdersDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newOrder("cust-1", base.Add(time.Duration(i)*time.Minute))))
	}
	require.NoError(t, repo.Create(ctx, newOrder("cust-2", base)))

	first, err := repo.ListByCustomer(ctx, "cust-1", nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, first[0].CreatedAt.After(first[1].CreatedAt))

	cursor := &pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	rest, err := repo.ListByCustomer(ctx, "cust-1", cursor, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, base, rest[0].CreatedAt.UTC())
}
