package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
)

type deliveryJobResponse struct {
	ID              uuid.UUID               `json:"id"`
	OrderID         *uuid.UUID              `json:"orderId,omitempty"`
	Status          enums.DeliveryJobStatus `json:"status"`
	Vendors         []models.JobVendor      `json:"vendors"`
	CustomerID      string                  `json:"customerId"`
	CustomerContact string                  `json:"customerContact"`
	DropAddress     string                  `json:"dropAddress"`
	DropZone        string                  `json:"dropZone"`
	QuotedAmount    *decimal.Decimal        `json:"quotedAmount,omitempty"`
	ETAMinutes      *int                    `json:"etaMinutes,omitempty"`
	Notes           *string                 `json:"notes,omitempty"`
	ExpiresAt       *time.Time              `json:"expiresAt,omitempty"`
	RiderID         *string                 `json:"riderId,omitempty"`
	PlatformCut     *decimal.Decimal        `json:"platformCut,omitempty"`
	RiderPayout     *decimal.Decimal        `json:"riderPayout,omitempty"`
	CancelReason    *string                 `json:"cancelReason,omitempty"`
	AcceptedAt      *time.Time              `json:"acceptedAt,omitempty"`
	DeliveredAt     *time.Time              `json:"deliveredAt,omitempty"`
	ClosedAt        *time.Time              `json:"closedAt,omitempty"`
	Version         int                     `json:"version"`
	CreatedAt       time.Time               `json:"createdAt"`
	UpdatedAt       time.Time               `json:"updatedAt"`
}

func newDeliveryJobResponse(job *models.DeliveryJob) *deliveryJobResponse {
	if job == nil {
		return nil
	}
	return &deliveryJobResponse{
		ID:              job.ID,
		OrderID:         job.OrderID,
		Status:          job.Status,
		Vendors:         job.Vendors,
		CustomerID:      job.CustomerID,
		CustomerContact: job.CustomerContact,
		DropAddress:     job.DropAddress,
		DropZone:        job.DropZone,
		QuotedAmount:    job.QuotedAmount,
		ETAMinutes:      job.ETAMinutes,
		Notes:           job.Notes,
		ExpiresAt:       job.ExpiresAt,
		RiderID:         job.RiderID,
		PlatformCut:     job.PlatformCut,
		RiderPayout:     job.RiderPayout,
		CancelReason:    job.CancelReason,
		AcceptedAt:      job.AcceptedAt,
		DeliveredAt:     job.DeliveredAt,
		ClosedAt:        job.ClosedAt,
		Version:         job.Version,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

type deliveryJobEventResponse struct {
	Event      enums.DeliveryJobEventType `json:"event"`
	FromStatus enums.DeliveryJobStatus    `json:"fromStatus"`
	ToStatus   enums.DeliveryJobStatus    `json:"toStatus"`
	ActorID    string                     `json:"actorId"`
	ActorRole  enums.ActorRole            `json:"actorRole"`
	Payload    map[string]any             `json:"payload,omitempty"`
	Version    int                        `json:"version"`
	OccurredAt time.Time                  `json:"occurredAt"`
}

func newDeliveryJobEventResponses(events []models.DeliveryJobEvent) []deliveryJobEventResponse {
	out := make([]deliveryJobEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, deliveryJobEventResponse{
			Event:      e.Event,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorID:    e.ActorID,
			ActorRole:  e.ActorRole,
			Payload:    e.Payload,
			Version:    e.Version,
			OccurredAt: e.OccurredAt,
		})
	}
	return out
}

type lineItemResponse struct {
	ProductID  string          `json:"productId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
	VendorID   string          `json:"vendorId"`
	VendorName string          `json:"vendorName"`
}

type orderResponse struct {
	ID             uuid.UUID            `json:"id"`
	ParentID       *uuid.UUID           `json:"parentId,omitempty"`
	Status         enums.OrderStatus    `json:"status"`
	CustomerID     string               `json:"customerId"`
	VendorID       *string              `json:"vendorId,omitempty"`
	VendorName     *string              `json:"vendorName,omitempty"`
	PickupZone     *string              `json:"pickupZone,omitempty"`
	DropZone       string               `json:"dropZone"`
	DropAddress    string               `json:"dropAddress"`
	DeliveryMethod enums.DeliveryMethod `json:"deliveryMethod"`
	DeliveryJobID  *uuid.UUID           `json:"deliveryJobId,omitempty"`
	PaymentMethod  enums.PaymentMethod  `json:"paymentMethod"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	AdminFee       decimal.Decimal      `json:"adminFee"`
	DeliveryFee    decimal.Decimal      `json:"deliveryFee"`
	Total          decimal.Decimal      `json:"total"`
	Currency       string               `json:"currency"`
	Items          []lineItemResponse   `json:"items,omitempty"`
	Children       []orderResponse      `json:"children,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func newOrderResponse(o models.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		ParentID:       o.ParentID,
		Status:         o.Status,
		CustomerID:     o.CustomerID,
		VendorID:       o.VendorID,
		VendorName:     o.VendorName,
		PickupZone:     o.PickupZone,
		DropZone:       o.DropZone,
		DropAddress:    o.DropAddress,
		DeliveryMethod: o.DeliveryMethod,
		DeliveryJobID:  o.DeliveryJobID,
		PaymentMethod:  o.PaymentMethod,
		Subtotal:       o.Subtotal,
		AdminFee:       o.AdminFee,
		DeliveryFee:    o.DeliveryFee,
		Total:          o.Total,
		Currency:       o.Currency,
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, lineItemResponse{
			ProductID:  it.ProductID,
			Name:       it.Name,
			UnitPrice:  it.UnitPrice,
			Quantity:   it.Quantity,
			LineTotal:  it.LineTotal,
			VendorID:   it.VendorID,
			VendorName: it.VendorName,
		})
	}
	return resp
}
