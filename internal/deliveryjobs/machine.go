// Package deliveryjobs governs how a rider quotes for, wins and fulfils a
// delivery. Machine is the pure transition function; Service persists its
// results with conditional writes and fans out notifications after commit.
package deliveryjobs

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

// Notification kinds.
const (
	NotifyJobOpened      = "delivery_job.opened"
	NotifyQuoteSubmitted = "delivery_job.quote_submitted"
	NotifyQuoteAccepted  = "delivery_job.quote_accepted"
	NotifyQuoteExpired   = "delivery_job.quote_expired"
	NotifyQuoteWithdrawn = "delivery_job.quote_withdrawn"
	NotifyJobCancelled   = "delivery_job.cancelled"
)

// Actor is whoever drives a transition.
type Actor struct {
	ID   string
	Role enums.ActorRole
}

// SystemActor is used for automatic transitions such as expiry.
var SystemActor = Actor{ID: "system", Role: enums.ActorRoleSystem}

func (a Actor) privileged() bool {
	return a.Role == enums.ActorRoleAdmin || a.Role == enums.ActorRoleDispatch || a.Role == enums.ActorRoleSystem
}

// Quote is a rider's price and ETA. A zero ExpiresAt means now plus the quote TTL.
type Quote struct {
	Amount     decimal.Decimal
	ETAMinutes int
	Notes      string
	ExpiresAt  time.Time
}

// Event is a transition request.
type Event struct {
	Type    enums.DeliveryJobEventType
	Actor   Actor
	Quote   *Quote
	RiderID string
	Reason  string
}

// Notification is a best-effort message to the other side of a transition.
// An empty RecipientID addresses every actor with the role.
type Notification struct {
	Kind        string
	Recipient   enums.ActorRole
	RecipientID string
}

// Payout is the delivered-job split between platform and rider.
type Payout struct {
	PlatformCut decimal.Decimal
	RiderPayout decimal.Decimal
}

// Effects are the side effects a transition asks the caller to perform.
type Effects struct {
	Notify []Notification
	Payout *Payout
}

type edge struct {
	from  enums.DeliveryJobStatus
	event enums.DeliveryJobEventType
}

type rule struct {
	to    enums.DeliveryJobStatus
	roles []enums.ActorRole
}

var transitions = map[edge]rule{
	{enums.DeliveryJobStatusPendingQuote, enums.DeliveryJobEventSubmitQuote}: {to: enums.DeliveryJobStatusQuoted, roles: []enums.ActorRole{enums.ActorRoleRider}},
	{enums.DeliveryJobStatusPendingQuote, enums.DeliveryJobEventCancel}:      {to: enums.DeliveryJobStatusCancelled, roles: []enums.ActorRole{enums.ActorRoleRider, enums.ActorRoleCustomer}},
	{enums.DeliveryJobStatusQuoted, enums.DeliveryJobEventAccept}:            {to: enums.DeliveryJobStatusAccepted, roles: []enums.ActorRole{enums.ActorRoleCustomer}},
	{enums.DeliveryJobStatusQuoted, enums.DeliveryJobEventExpire}:            {to: enums.DeliveryJobStatusExpired},
	{enums.DeliveryJobStatusQuoted, enums.DeliveryJobEventWithdraw}:          {to: enums.DeliveryJobStatusCancelled, roles: []enums.ActorRole{enums.ActorRoleRider}},
	{enums.DeliveryJobStatusQuoted, enums.DeliveryJobEventCancel}:            {to: enums.DeliveryJobStatusCancelled, roles: []enums.ActorRole{enums.ActorRoleCustomer}},
	{enums.DeliveryJobStatusAccepted, enums.DeliveryJobEventAssign}:          {to: enums.DeliveryJobStatusAssigned, roles: []enums.ActorRole{enums.ActorRoleRider}},
	{enums.DeliveryJobStatusAccepted, enums.DeliveryJobEventCancel}:          {to: enums.DeliveryJobStatusCancelled, roles: []enums.ActorRole{enums.ActorRoleRider, enums.ActorRoleCustomer}},
	{enums.DeliveryJobStatusAssigned, enums.DeliveryJobEventDepart}:          {to: enums.DeliveryJobStatusInTransit, roles: []enums.ActorRole{enums.ActorRoleRider}},
	{enums.DeliveryJobStatusInTransit, enums.DeliveryJobEventDeliver}:        {to: enums.DeliveryJobStatusDelivered, roles: []enums.ActorRole{enums.ActorRoleRider}},
}

// Allowed reports whether the table has an edge for event out of from, ignoring actor and payload.
func Allowed(from enums.DeliveryJobStatus, event enums.DeliveryJobEventType) bool {
	_, ok := transitions[edge{from: from, event: event}]
	return ok
}

// Machine applies transitions. It holds configuration only and is safe for concurrent use.
type Machine struct {
	quoteTTL   time.Duration
	cutPercent decimal.Decimal
}

// NewMachine takes the default quote lifetime and the platform cut percentage (0-100).
func NewMachine(quoteTTL time.Duration, cutPercent decimal.Decimal) (*Machine, error) {
	if quoteTTL <= 0 {
		return nil, fmt.Errorf("quote ttl must be positive")
	}
	if cutPercent.IsNegative() || cutPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("platform cut percent must be between 0 and 100")
	}
	return &Machine{quoteTTL: quoteTTL, cutPercent: cutPercent}, nil
}

// Apply returns the next job state. On error the input job is returned unchanged.
// Privileged actors (admin, dispatch, system) may drive any edge in the table;
// expiry is reserved for them.
func (m *Machine) Apply(job models.DeliveryJob, ev Event, now time.Time) (models.DeliveryJob, Effects, error) {
	if job.Status.IsTerminal() {
		return job, Effects{}, invalidTransition(job, ev, "job is closed")
	}
	r, ok := transitions[edge{from: job.Status, event: ev.Type}]
	if !ok {
		return job, Effects{}, invalidTransition(job, ev, "event not allowed from current status")
	}
	if err := authorize(job, ev, r); err != nil {
		return job, Effects{}, err
	}

	now = now.UTC()
	// a lapsed quote can only resolve to expired
	if job.Status == enums.DeliveryJobStatusQuoted && ev.Type != enums.DeliveryJobEventExpire && quoteLapsed(job, now) {
		return job, Effects{}, pkgerrors.New(pkgerrors.CodeQuoteExpired, "quote has expired").
			WithDetails(transitionDetails(job, ev))
	}

	next := job
	var effects Effects

	switch ev.Type {
	case enums.DeliveryJobEventSubmitQuote:
		q, err := m.validateQuote(job, ev, now)
		if err != nil {
			return job, Effects{}, err
		}
		amount := q.Amount
		eta := q.ETAMinutes
		expires := q.ExpiresAt
		quotingRider := ev.Actor.ID
		next.QuotedAmount = &amount
		next.ETAMinutes = &eta
		next.ExpiresAt = &expires
		next.Notes = optional(q.Notes)
		next.RiderID = &quotingRider
		effects.Notify = customer(job, NotifyQuoteSubmitted)

	case enums.DeliveryJobEventAccept:
		next.AcceptedAt = &now
		effects.Notify = rider(job, NotifyQuoteAccepted)

	case enums.DeliveryJobEventExpire:
		if !quoteLapsed(job, now) {
			return job, Effects{}, invalidTransition(job, ev, "quote has not expired yet")
		}
		next.ClosedAt = &now
		effects.Notify = rider(job, NotifyQuoteExpired)

	case enums.DeliveryJobEventWithdraw:
		next.ClosedAt = &now
		next.CancelReason = optional(ev.Reason)
		effects.Notify = customer(job, NotifyQuoteWithdrawn)

	case enums.DeliveryJobEventCancel:
		next.ClosedAt = &now
		next.CancelReason = optional(ev.Reason)
		effects.Notify = counterparts(job, ev.Actor)

	case enums.DeliveryJobEventAssign:
		riderID := ev.RiderID
		if ev.Actor.Role == enums.ActorRoleRider {
			riderID = ev.Actor.ID
		}
		if riderID == "" && job.RiderID != nil {
			riderID = *job.RiderID
		}
		if riderID == "" {
			return job, Effects{}, invalidTransition(job, ev, "rider id required")
		}
		next.RiderID = &riderID

	case enums.DeliveryJobEventDepart:

	case enums.DeliveryJobEventDeliver:
		if job.QuotedAmount == nil {
			return job, Effects{}, invalidTransition(job, ev, "job has no quoted amount")
		}
		payout := m.Split(*job.QuotedAmount)
		next.PlatformCut = &payout.PlatformCut
		next.RiderPayout = &payout.RiderPayout
		next.DeliveredAt = &now
		next.ClosedAt = &now
		effects.Payout = &payout
	}

	next.Status = r.to
	next.Version = job.Version + 1
	next.UpdatedAt = now
	return next, effects, nil
}

// Split rounds the platform cut to whole currency units; the rider gets the rest.
func (m *Machine) Split(amount decimal.Decimal) Payout {
	cut := amount.Mul(m.cutPercent).Div(decimal.NewFromInt(100)).Round(0)
	return Payout{PlatformCut: cut, RiderPayout: amount.Sub(cut)}
}

// QuoteTTL is the default quote lifetime.
func (m *Machine) QuoteTTL() time.Duration { return m.quoteTTL }

func (m *Machine) validateQuote(job models.DeliveryJob, ev Event, now time.Time) (Quote, error) {
	if ev.Quote == nil {
		return Quote{}, invalidTransition(job, ev, "quote required")
	}
	q := *ev.Quote
	if !q.Amount.IsPositive() {
		return Quote{}, invalidTransition(job, ev, "quote amount must be positive")
	}
	if q.ETAMinutes <= 0 {
		return Quote{}, invalidTransition(job, ev, "eta must be positive")
	}
	if q.ExpiresAt.IsZero() {
		q.ExpiresAt = now.Add(m.quoteTTL)
	} else if !q.ExpiresAt.After(now) {
		return Quote{}, invalidTransition(job, ev, "quote expiry must be in the future")
	}
	q.ExpiresAt = q.ExpiresAt.UTC()
	return q, nil
}

func authorize(job models.DeliveryJob, ev Event, r rule) error {
	if ev.Actor.privileged() {
		return nil
	}
	allowed := false
	for _, role := range r.roles {
		if role == ev.Actor.Role {
			allowed = true
			break
		}
	}
	if !allowed {
		return forbidden(job, ev, "role may not perform this transition")
	}
	switch ev.Actor.Role {
	case enums.ActorRoleCustomer:
		if job.CustomerID != "" && job.CustomerID != ev.Actor.ID {
			return forbidden(job, ev, "job belongs to another customer")
		}
	case enums.ActorRoleRider:
		// once a rider has quoted, only that rider may act for the rider side
		if job.RiderID != nil && *job.RiderID != ev.Actor.ID {
			return forbidden(job, ev, "job is held by another rider")
		}
	}
	return nil
}

// quoteLapsed treats a quoted job without an expiry as lapsed.
func quoteLapsed(job models.DeliveryJob, now time.Time) bool {
	return job.ExpiresAt == nil || !now.Before(*job.ExpiresAt)
}

func customer(job models.DeliveryJob, kind string) []Notification {
	return []Notification{{Kind: kind, Recipient: enums.ActorRoleCustomer, RecipientID: job.CustomerID}}
}

func rider(job models.DeliveryJob, kind string) []Notification {
	if job.RiderID == nil {
		return nil
	}
	return []Notification{{Kind: kind, Recipient: enums.ActorRoleRider, RecipientID: *job.RiderID}}
}

func counterparts(job models.DeliveryJob, actor Actor) []Notification {
	switch actor.Role {
	case enums.ActorRoleCustomer:
		return rider(job, NotifyJobCancelled)
	case enums.ActorRoleRider:
		return customer(job, NotifyJobCancelled)
	}
	return append(customer(job, NotifyJobCancelled), rider(job, NotifyJobCancelled)...)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func transitionDetails(job models.DeliveryJob, ev Event) map[string]any {
	return map[string]any{
		"jobId":  job.ID.String(),
		"status": job.Status.String(),
		"event":  ev.Type.String(),
	}
}

func invalidTransition(job models.DeliveryJob, ev Event, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg).WithDetails(transitionDetails(job, ev))
}

func forbidden(job models.DeliveryJob, ev Event, msg string) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, msg).WithDetails(transitionDetails(job, ev))
}
