package controllers

import (
	"net/http"

	"github.com/chopmart/chopmart-backend/api/middleware"
	"github.com/chopmart/chopmart-backend/api/responses"
	"github.com/chopmart/chopmart-backend/api/validators"
	"github.com/chopmart/chopmart-backend/internal/checkout"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

func CheckoutPreview(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.Preview(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func CheckoutSubmit(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req.IdempotencyKey = r.Header.Get(middleware.IdempotencyHeader)
		result, err := svc.Submit(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func CheckoutRiderQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCheckout(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		job, err := svc.RequestRiderQuote(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDeliveryJobResponse(job))
	}
}

// decodeCheckout reads the body. A customer caller may only check out as itself.
func decodeCheckout(r *http.Request) (checkout.Request, error) {
	var req checkout.Request
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		return checkout.Request{}, err
	}
	req.DropAddress = validators.SanitizeString(req.DropAddress, 280)
	req.Customer.Name = validators.SanitizeString(req.Customer.Name, 120)

	ctx := r.Context()
	if middleware.RoleFromContext(ctx) == enums.ActorRoleCustomer && req.Customer.ID != middleware.ActorIDFromContext(ctx) {
		return checkout.Request{}, pkgerrors.New(pkgerrors.CodeForbidden, "customers may only check out for themselves")
	}
	return req, nil
}
