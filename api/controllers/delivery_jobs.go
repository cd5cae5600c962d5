package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chopmart/chopmart-backend/api/middleware"
	"github.com/chopmart/chopmart-backend/api/responses"
	"github.com/chopmart/chopmart-backend/api/validators"
	"github.com/chopmart/chopmart-backend/internal/deliveryjobs"
	"github.com/chopmart/chopmart-backend/internal/pricing"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

type openJobsResponse struct {
	Items  []*deliveryJobResponse `json:"items"`
	Cursor string                 `json:"cursor,omitempty"`
}

// DeliveryJobsOpen lists jobs still waiting for a rider quote.
func DeliveryJobsOpen(svc deliveryjobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListOpen(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := openJobsResponse{Items: make([]*deliveryJobResponse, 0, len(page.Items)), Cursor: page.Cursor}
		for i := range page.Items {
			resp.Items = append(resp.Items, newDeliveryJobResponse(&page.Items[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func DeliveryJobGet(svc deliveryjobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := canSeeJob(r, job); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeliveryJobResponse(job))
	}
}

func DeliveryJobEvents(svc deliveryjobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "jobId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := canSeeJob(r, job); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.Events(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeliveryJobEventResponses(events))
	}
}

// canSeeJob keeps customers to their own jobs. Riders browse the open board
// and dispatch sees everything.
func canSeeJob(r *http.Request, job *models.DeliveryJob) error {
	ctx := r.Context()
	if middleware.RoleFromContext(ctx) == enums.ActorRoleCustomer && job.CustomerID != middleware.ActorIDFromContext(ctx) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "delivery job not found")
	}
	return nil
}

type transitionRequest struct {
	ExpectedStatus string     `json:"expectedStatus"`
	Reason         string     `json:"reason"`
	RiderID        string     `json:"riderId"`
	Amount         string     `json:"amount"`
	ETAMinutes     int        `json:"etaMinutes" validate:"gte=0"`
	Notes          string     `json:"notes"`
	ExpiresAt      *time.Time `json:"expiresAt"`
}

// DeliveryJobTransition drives one state machine edge named by the {action}
// path segment: quote, accept, withdraw, cancel, assign, depart or deliver.
func DeliveryJobTransition(svc deliveryjobs.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuidParam(r, "jobId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req transitionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		target := deliveryjobs.Target{
			JobID: id,
			Actor: deliveryjobs.Actor{ID: middleware.ActorIDFromContext(ctx), Role: middleware.RoleFromContext(ctx)},
		}
		if req.ExpectedStatus != "" {
			status, err := enums.ParseDeliveryJobStatus(req.ExpectedStatus)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid expectedStatus"))
				return
			}
			target.ExpectedStatus = status
		}
		reason := validators.SanitizeString(req.Reason, 280)

		var job *models.DeliveryJob
		switch action := chi.URLParam(r, "action"); action {
		case "quote":
			amount, ok := pricing.ParseFee(req.Amount)
			if !ok {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a non-negative number").
					WithDetails(map[string]any{"amount": req.Amount}))
				return
			}
			quote := deliveryjobs.Quote{Amount: amount, ETAMinutes: req.ETAMinutes, Notes: validators.SanitizeString(req.Notes, 500)}
			if req.ExpiresAt != nil {
				quote.ExpiresAt = *req.ExpiresAt
			}
			job, err = svc.SubmitQuote(ctx, target, quote)
		case "accept":
			job, err = svc.Accept(ctx, target)
		case "withdraw":
			job, err = svc.Withdraw(ctx, target, reason)
		case "cancel":
			job, err = svc.Cancel(ctx, target, reason)
		case "assign":
			riderID := strings.TrimSpace(req.RiderID)
			if riderID == "" {
				riderID = target.Actor.ID
			}
			job, err = svc.Assign(ctx, target, riderID)
		case "depart":
			job, err = svc.Depart(ctx, target)
		case "deliver":
			job, err = svc.MarkDelivered(ctx, target)
		default:
			err = pkgerrors.New(pkgerrors.CodeNotFound, "unknown delivery job action").
				WithDetails(map[string]any{"action": action})
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDeliveryJobResponse(job))
	}
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid id").
			WithDetails(map[string]any{"field": name, "value": raw})
	}
	return id, nil
}
