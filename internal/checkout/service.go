package checkout

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/cart"
	"github.com/chopmart/chopmart-backend/internal/deliveryjobs"
	"github.com/chopmart/chopmart-backend/internal/pricing"
	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

// OrderSink persists a submitted checkout.
type OrderSink interface {
	Submit(ctx context.Context, sub OrderSubmission) (OrderReceipt, error)
}

// PaymentInitializer opens a gateway payment for an order.
type PaymentInitializer interface {
	Initialize(ctx context.Context, req PaymentRequest) (PaymentSession, error)
}

// DeliveryJobs is the slice of the delivery job service checkout depends on.
type DeliveryJobs interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DeliveryJob, error)
	Create(ctx context.Context, input deliveryjobs.CreateInput) (*models.DeliveryJob, error)
	AttachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
	DetachOrder(ctx context.Context, jobID, orderID uuid.UUID) error
}

// Service previews and submits checkouts.
type Service interface {
	Preview(ctx context.Context, req Request) (*Preview, error)
	Submit(ctx context.Context, req Request) (*SubmitResult, error)
	RequestRiderQuote(ctx context.Context, req Request) (*models.DeliveryJob, error)
}

type Customer struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

// Request is a checkout as the client sends it. A nil SelectedIDs selects every item.
type Request struct {
	Customer            Customer             `json:"customer"`
	Items               []cart.RawCartItem   `json:"items"`
	SelectedIDs         []string             `json:"selectedIds"`
	DropZone            string               `json:"dropZone"`
	DropAddress         string               `json:"dropAddress"`
	DeliveryMethod      enums.DeliveryMethod `json:"deliveryMethod"`
	DeliveryFeeAccepted bool                 `json:"deliveryFeeAccepted"`
	DeliveryJobID       *uuid.UUID           `json:"deliveryJobId,omitempty"`
	PaymentMethod       enums.PaymentMethod  `json:"paymentMethod"`

	// IdempotencyKey comes from the request header. Retries under the same key
	// resolve to the same order.
	IdempotencyKey string `json:"-"`
}

// Preview is what the storefront renders. Totals is nil while a delivery fee awaits acceptance.
type Preview struct {
	Groups              []cart.VendorGroup   `json:"groups"`
	Selected            []string             `json:"selected"`
	Coercions           []cart.Coercion      `json:"coercions,omitempty"`
	DropZone            zones.Zone           `json:"dropZone"`
	DeliveryMethod      enums.DeliveryMethod `json:"deliveryMethod"`
	Breakdown           *pricing.Breakdown   `json:"breakdown,omitempty"`
	ProposedDeliveryFee *decimal.Decimal     `json:"proposedDeliveryFee,omitempty"`
	AwaitingAcceptance  bool                 `json:"awaitingAcceptance"`
	Subtotal            decimal.Decimal      `json:"subtotal"`
	AdminFee            decimal.Decimal      `json:"adminFee"`
	Totals              *Totals              `json:"totals,omitempty"`
}

// GroupSubmission is one vendor's share of a submitted checkout.
type GroupSubmission struct {
	Group       cart.VendorGroup
	Subtotal    decimal.Decimal
	AdminFee    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// OrderSubmission is the payload handed to the order sink. Groups hold selected items only.
// OrderID is the id the parent order must take.
type OrderSubmission struct {
	OrderID        uuid.UUID
	Customer       Customer
	Groups         []GroupSubmission
	Totals         Totals
	DropZone       zones.Zone
	DropAddress    string
	DeliveryMethod enums.DeliveryMethod
	DeliveryJobID  *uuid.UUID
	PaymentMethod  enums.PaymentMethod
	Currency       string
}

// Items flattens the selected items across groups.
func (s OrderSubmission) Items() []cart.CartLineItem {
	var out []cart.CartLineItem
	for _, g := range s.Groups {
		out = append(out, g.Group.Items...)
	}
	return out
}

// OrderReceipt describes the stored order. Replayed is set when the order
// already existed from an earlier attempt.
type OrderReceipt struct {
	OrderID       uuid.UUID         `json:"orderId"`
	ChildOrderIDs []uuid.UUID       `json:"childOrderIds"`
	Status        enums.OrderStatus `json:"status"`
	Replayed      bool              `json:"replayed,omitempty"`
}

// PaymentRequest carries the amount in minor units (kobo).
type PaymentRequest struct {
	AmountMinor int64
	Reference   string
	PayerEmail  string
	Currency    string
	Metadata    map[string]any
}

type PaymentSession struct {
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	Reference        string `json:"reference"`
}

type SubmitResult struct {
	OrderID       uuid.UUID         `json:"orderId"`
	ChildOrderIDs []uuid.UUID       `json:"childOrderIds"`
	Status        enums.OrderStatus `json:"status"`
	Replayed      bool              `json:"replayed,omitempty"`
	Totals        Totals            `json:"totals"`
	AmountMinor   int64             `json:"amountMinor"`
	Payment       *PaymentSession   `json:"payment,omitempty"`
	Coercions     []cart.Coercion   `json:"coercions,omitempty"`
}

// orderNamespace seeds order ids derived from idempotency keys.
var orderNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("chopmart.checkout.order"))

type ServiceParams struct {
	Fees       pricing.Source
	Normalizer *zones.Normalizer
	Policy     AdminFeePolicy
	Selection  cart.SelectionPolicy
	Orders     OrderSink
	Payments   PaymentInitializer
	Jobs       DeliveryJobs
	Logger     *logger.Logger
	Currency   string
}

type service struct {
	fees      pricing.Source
	norm      *zones.Normalizer
	policy    AdminFeePolicy
	selection cart.SelectionPolicy
	orders    OrderSink
	payments  PaymentInitializer
	jobs      DeliveryJobs
	logg      *logger.Logger
	currency  string
}

func NewService(params ServiceParams) (Service, error) {
	if params.Fees == nil {
		return nil, fmt.Errorf("fee source required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order sink required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment initializer required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("delivery jobs required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Normalizer == nil {
		params.Normalizer = zones.Default()
	}
	if params.Currency == "" {
		params.Currency = "NGN"
	}
	return &service{
		fees:      params.Fees,
		norm:      params.Normalizer,
		policy:    params.Policy,
		selection: params.Selection,
		orders:    params.Orders,
		payments:  params.Payments,
		jobs:      params.Jobs,
		logg:      params.Logger,
		currency:  params.Currency,
	}, nil
}

// quote is the working state shared by preview and submit. orderID is nil
// during preview.
type quote struct {
	orderID   uuid.UUID
	items     []cart.CartLineItem
	coercions []cart.Coercion
	groups    []cart.VendorGroup
	sel       cart.SelectionSet
	dropZone  zones.Zone
	itemOnly  Totals
	delivery  DeliveryCharge
	breakdown *pricing.Breakdown
	proposed  *decimal.Decimal
	// jobClaim is set when a rider job still has to be bound to orderID.
	jobClaim *uuid.UUID
}

func (s *service) prepare(ctx context.Context, req Request, orderID uuid.UUID) (*quote, error) {
	items, coercions := cart.Normalize(req.Items)
	s.logCoercions(ctx, coercions)

	var sel cart.SelectionSet
	if req.SelectedIDs == nil {
		sel = cart.SelectAll(items)
	} else {
		sel = cart.SelectIDs(req.SelectedIDs...)
	}
	groups := cart.Partition(items, s.norm)
	sel = cart.EffectiveSelection(groups, sel, s.selection)

	itemOnly, err := s.policy.ItemTotals(groups, sel)
	if err != nil {
		return nil, err
	}

	q := &quote{
		orderID:   orderID,
		items:     items,
		coercions: coercions,
		groups:    groups,
		sel:       sel,
		itemOnly:  itemOnly,
	}
	if err := s.resolveDelivery(ctx, req, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (s *service) resolveDelivery(ctx context.Context, req Request, q *quote) error {
	method := req.DeliveryMethod
	if method == "" {
		method = enums.DeliveryMethodPickup
	}
	q.delivery = DeliveryCharge{Method: method}

	switch method {
	case enums.DeliveryMethodPickup:
		q.delivery.Accepted = true
		q.dropZone, _ = s.norm.Parse(req.DropZone)
	case enums.DeliveryMethodZoneRate:
		zone, err := s.dropZone(req.DropZone)
		if err != nil {
			return err
		}
		q.dropZone = zone
		table, err := s.fees.Current(ctx)
		if err != nil {
			return withSelection(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery fee table"), q.sel)
		}
		breakdown := pricing.Aggregate(q.groups, q.sel, q.dropZone, table, s.norm)
		if unpriced := breakdown.Unpriced(); len(unpriced) > 0 {
			s.logg.Warn(s.logg.WithField(ctx, "unpriced_legs", len(unpriced)), "checkout.fee_table_gap")
		}
		q.breakdown = &breakdown
		q.proposed = &breakdown.Total
		q.delivery.Fee = breakdown.Total
		q.delivery.Accepted = req.DeliveryFeeAccepted
	case enums.DeliveryMethodRiderQuote:
		zone, err := s.dropZone(req.DropZone)
		if err != nil {
			return err
		}
		q.dropZone = zone
		return s.resolveRiderQuote(ctx, req, q)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery method").
			WithDetails(map[string]any{"deliveryMethod": method.String()})
	}
	return nil
}

// dropZone resolves a delivery destination. Unlike vendor locations it must
// name a known zone exactly.
func (s *service) dropZone(raw string) (zones.Zone, error) {
	zone, ok := s.norm.Parse(raw)
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown drop zone").
			WithDetails(map[string]any{"dropZone": raw, "zones": s.norm.Zones()})
	}
	return zone, nil
}

// resolveRiderQuote trusts the stored job rather than the client flag. A job
// pays for one order: it is usable while accepted and unbound, or when it is
// already bound to the order being submitted.
func (s *service) resolveRiderQuote(ctx context.Context, req Request, q *quote) error {
	if req.DeliveryJobID == nil {
		return nil
	}
	job, err := s.jobs.Get(ctx, *req.DeliveryJobID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return withSelection(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery job"), q.sel)
	}
	if job.CustomerID != req.Customer.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "delivery job belongs to another customer")
	}
	boundHere := job.OrderID != nil && q.orderID != uuid.Nil && *job.OrderID == q.orderID
	if job.OrderID != nil && !boundHere {
		return pkgerrors.New(pkgerrors.CodeConflict, "delivery job already used by another order").
			WithDetails(map[string]any{"deliveryJobId": job.ID.String()})
	}
	if missing, extra := vendorMismatch(job.Vendors, q.groups, q.sel); len(missing)+len(extra) > 0 {
		return withSelection(pkgerrors.New(pkgerrors.CodeConflict, "delivery job covers different vendors than the selection").
			WithDetails(map[string]any{"notOnJob": missing, "notSelected": extra}), q.sel)
	}
	if job.QuotedAmount != nil {
		fee := *job.QuotedAmount
		q.proposed = &fee
		q.delivery.Fee = fee
	}
	switch {
	case job.Status == enums.DeliveryJobStatusAccepted:
		q.delivery.Accepted = true
	case boundHere:
		switch job.Status {
		case enums.DeliveryJobStatusAssigned, enums.DeliveryJobStatusInTransit, enums.DeliveryJobStatusDelivered:
			q.delivery.Accepted = true
		}
	}
	if job.OrderID == nil {
		id := job.ID
		q.jobClaim = &id
	}
	return nil
}

// vendorMismatch compares the vendors on a job with the selected groups.
func vendorMismatch(onJob []models.JobVendor, groups []cart.VendorGroup, sel cart.SelectionSet) (missing, extra []string) {
	jobVendors := make(map[string]bool, len(onJob))
	for _, v := range onJob {
		jobVendors[v.VendorID] = true
	}
	selected := map[string]bool{}
	for _, g := range groups {
		if !sel.HasSelection(g) {
			continue
		}
		selected[g.VendorID] = true
		if !jobVendors[g.VendorID] {
			missing = append(missing, g.VendorID)
		}
	}
	for _, v := range onJob {
		if !selected[v.VendorID] {
			extra = append(extra, v.VendorID)
		}
	}
	return missing, extra
}

func (s *service) Preview(ctx context.Context, req Request) (*Preview, error) {
	q, err := s.prepare(ctx, req, uuid.Nil)
	if err != nil {
		return nil, err
	}
	out := &Preview{
		Groups:              q.groups,
		Selected:            selectedIDs(q.items, q.sel),
		Coercions:           q.coercions,
		DropZone:            q.dropZone,
		DeliveryMethod:      q.delivery.Method,
		Breakdown:           q.breakdown,
		ProposedDeliveryFee: q.proposed,
		Subtotal:            q.itemOnly.Subtotal,
		AdminFee:            q.itemOnly.AdminFee,
	}
	totals, err := s.policy.Compose(q.groups, q.sel, q.delivery)
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeUnacceptedQuote):
		out.AwaitingAcceptance = true
	case err != nil:
		return nil, err
	default:
		out.Totals = &totals
	}
	return out, nil
}

func (s *service) Submit(ctx context.Context, req Request) (*SubmitResult, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"paymentMethod": req.PaymentMethod.String()})
	}
	if err := validateCustomer(req.Customer, req.PaymentMethod); err != nil {
		return nil, err
	}
	orderID := s.orderIDFor(req)
	q, err := s.prepare(ctx, req, orderID)
	if err != nil {
		return nil, err
	}
	if err := q.itemOnly.ValidateForSubmission(); err != nil {
		return nil, withSelection(pkgerrors.As(err), q.sel)
	}
	if q.delivery.Method == enums.DeliveryMethodRiderQuote && req.DeliveryJobID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnacceptedQuote, "rider quote has not been requested")
	}
	totals, err := s.policy.Compose(q.groups, q.sel, q.delivery)
	if err != nil {
		return nil, err
	}
	if q.delivery.Method != enums.DeliveryMethodPickup && strings.TrimSpace(req.DropAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "drop address required for delivery")
	}

	sub := OrderSubmission{
		OrderID:        orderID,
		Customer:       req.Customer,
		Groups:         s.splitGroups(q, totals),
		Totals:         totals,
		DropZone:       q.dropZone,
		DropAddress:    strings.TrimSpace(req.DropAddress),
		DeliveryMethod: q.delivery.Method,
		DeliveryJobID:  req.DeliveryJobID,
		PaymentMethod:  req.PaymentMethod,
		Currency:       s.currency,
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	// The rider job is bound before anything is stored or charged so a second
	// order cannot spend the same quote.
	if q.jobClaim != nil {
		if err := s.jobs.AttachOrder(ctx, *q.jobClaim, orderID); err != nil {
			return nil, s.dependencyFailure(ctx, err, "claim delivery job", q.sel)
		}
	}
	receipt, err := s.orders.Submit(ctx, sub)
	if err != nil {
		if q.jobClaim != nil {
			if releaseErr := s.jobs.DetachOrder(ctx, *q.jobClaim, orderID); releaseErr != nil {
				s.logg.Error(ctx, "checkout.release_delivery_job_failed", releaseErr)
			}
		}
		return nil, s.dependencyFailure(ctx, err, "submit order", q.sel)
	}

	result := &SubmitResult{
		OrderID:       receipt.OrderID,
		ChildOrderIDs: receipt.ChildOrderIDs,
		Status:        receipt.Status,
		Replayed:      receipt.Replayed,
		Totals:        totals.Rounded(),
		AmountMinor:   totals.AmountMinor(),
		Coercions:     q.coercions,
	}

	// A replayed order that is no longer awaiting payment needs no new session.
	if req.PaymentMethod.RequiresGateway() && (!receipt.Replayed || receipt.Status == enums.OrderStatusPendingPayment) {
		session, err := s.payments.Initialize(ctx, PaymentRequest{
			AmountMinor: result.AmountMinor,
			Reference:   receipt.OrderID.String(),
			PayerEmail:  req.Customer.Email,
			Currency:    s.currency,
			Metadata: map[string]any{
				"customerId":    req.Customer.ID,
				"childOrderIds": receipt.ChildOrderIDs,
			},
		})
		if err != nil {
			return nil, s.dependencyFailure(ctx, err, "initialize payment", q.sel)
		}
		result.Payment = &session
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"items":        totals.ItemCount,
		"amount_minor": result.AmountMinor,
		"method":       q.delivery.Method.String(),
		"replayed":     receipt.Replayed,
	}), "checkout.submitted")
	return result, nil
}

// orderIDFor derives the order id from the caller's idempotency key so a retry
// after a failed payment call lands on the order the first attempt stored.
func (s *service) orderIDFor(req Request) uuid.UUID {
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return uuid.New()
	}
	return uuid.NewSHA1(orderNamespace, []byte(req.Customer.ID+"|"+key))
}

func (s *service) RequestRiderQuote(ctx context.Context, req Request) (*models.DeliveryJob, error) {
	if strings.TrimSpace(req.Customer.ID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	items, coercions := cart.Normalize(req.Items)
	s.logCoercions(ctx, coercions)

	var sel cart.SelectionSet
	if req.SelectedIDs == nil {
		sel = cart.SelectAll(items)
	} else {
		sel = cart.SelectIDs(req.SelectedIDs...)
	}
	groups := cart.Partition(items, s.norm)
	sel = cart.EffectiveSelection(groups, sel, s.selection)
	if sel.Count() == 0 {
		return nil, withSelection(pkgerrors.New(pkgerrors.CodeInvalidSelection, "no items selected"), sel)
	}

	var vendors []models.JobVendor
	for _, g := range groups {
		if !sel.HasSelection(g) {
			continue
		}
		vendors = append(vendors, models.JobVendor{
			VendorID:       g.VendorID,
			VendorName:     g.VendorName,
			PickupLocation: g.RawLocation,
			PickupZone:     g.Zone.String(),
			ItemCount:      len(sel.SelectedItems(g.Items)),
		})
	}
	dropZone, err := s.dropZone(req.DropZone)
	if err != nil {
		return nil, withSelection(pkgerrors.As(err), sel)
	}
	contact := req.Customer.Phone
	if contact == "" {
		contact = req.Customer.Email
	}
	return s.jobs.Create(ctx, deliveryjobs.CreateInput{
		Vendors:         vendors,
		CustomerID:      req.Customer.ID,
		CustomerContact: contact,
		DropAddress:     req.DropAddress,
		DropZone:        dropZone.String(),
	})
}

// splitGroups assigns each selected group its share of the totals. Zone-rate legs
// are charged per group; a rider quote covers the whole trip and stays on the parent.
func (s *service) splitGroups(q *quote, totals Totals) []GroupSubmission {
	legs := map[string]decimal.Decimal{}
	if q.breakdown != nil {
		for _, leg := range q.breakdown.Legs {
			legs[leg.VendorID] = leg.Fee
		}
	}
	var out []GroupSubmission
	for _, g := range q.groups {
		selected := q.sel.SelectedItems(g.Items)
		if len(selected) == 0 {
			continue
		}
		group := g
		group.Items = selected
		_, subtotal := selectedSubtotal(selected, q.sel)
		rate := totals.AdminFeePercent
		if s.policy.Mode == AdminFeePerVendor {
			rate = s.policy.RateFor(g.VendorRole)
		}
		adminFee := percentOf(subtotal, rate)
		deliveryFee := decimal.Zero
		if fee, ok := legs[g.VendorID]; ok {
			deliveryFee = fee
		}
		out = append(out, GroupSubmission{
			Group:       group,
			Subtotal:    subtotal,
			AdminFee:    adminFee,
			DeliveryFee: deliveryFee,
			Total:       subtotal.Add(adminFee).Add(deliveryFee),
		})
	}
	return out
}

func (s *service) dependencyFailure(ctx context.Context, err error, op string, sel cart.SelectionSet) error {
	s.logg.Error(ctx, "checkout."+strings.ReplaceAll(op, " ", "_")+"_failed", err)
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal {
		return withSelection(typed, sel)
	}
	return withSelection(pkgerrors.Wrap(pkgerrors.CodeDependency, err, op), sel)
}

func (s *service) logCoercions(ctx context.Context, coercions []cart.Coercion) {
	for _, c := range coercions {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"item_id": c.ItemID,
			"field":   c.Field,
			"raw":     c.Raw,
			"applied": c.Applied,
		}), "cart.coerced_value")
	}
}

func validateCustomer(c Customer, method enums.PaymentMethod) error {
	var missing []string
	if strings.TrimSpace(c.ID) == "" {
		missing = append(missing, "customer.id")
	}
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "customer.name")
	}
	if method.RequiresGateway() && strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "customer.email")
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func selectedIDs(items []cart.CartLineItem, sel cart.SelectionSet) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if sel.IsSelected(item.ID) {
			out = append(out, item.ID)
		}
	}
	return out
}

// withSelection echoes the effective selection so the client can keep its state.
func withSelection(err *pkgerrors.Error, sel cart.SelectionSet) error {
	if err == nil {
		return nil
	}
	ids := make([]string, 0, len(sel))
	for id, ok := range sel {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	details := map[string]any{"selectedIds": ids}
	if existing, ok := err.Details().(map[string]any); ok {
		for k, v := range existing {
			details[k] = v
		}
	}
	return err.WithDetails(details)
}
