package controllers

import (
	"net/http"
	"strings"

	"github.com/chopmart/chopmart-backend/api/middleware"
	"github.com/chopmart/chopmart-backend/api/responses"
	"github.com/chopmart/chopmart-backend/api/validators"
	"github.com/chopmart/chopmart-backend/internal/orders"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

type orderListResponse struct {
	Items  []orderResponse `json:"items"`
	Cursor string          `json:"cursor,omitempty"`
}

// OrdersList pages a customer's parent orders, newest first. Customers always
// see their own; staff pass ?customerId=.
func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		customerID := strings.TrimSpace(r.URL.Query().Get("customerId"))
		if middleware.RoleFromContext(ctx) == enums.ActorRoleCustomer {
			customerID = middleware.ActorIDFromContext(ctx)
		}
		if customerID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "customerId is required"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.ListForCustomer(ctx, customerID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		resp := orderListResponse{Items: make([]orderResponse, 0, len(result.Items)), Cursor: result.Cursor}
		for _, o := range result.Items {
			resp.Items = append(resp.Items, newOrderResponse(o))
		}
		responses.WriteSuccess(w, resp)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		detail, err := svc.Detail(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if middleware.RoleFromContext(ctx) == enums.ActorRoleCustomer && detail.Order.CustomerID != middleware.ActorIDFromContext(ctx) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		resp := newOrderResponse(detail.Order)
		for _, child := range detail.Children {
			resp.Children = append(resp.Children, newOrderResponse(child))
		}
		responses.WriteSuccess(w, resp)
	}
}

// OrderConfirmPayment checks the gateway and moves the order tree to paid.
func OrderConfirmPayment(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuidParam(r, "orderId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if middleware.RoleFromContext(ctx) == enums.ActorRoleCustomer {
			detail, err := svc.Detail(ctx, id)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if detail.Order.CustomerID != middleware.ActorIDFromContext(ctx) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
		}
		order, err := svc.ConfirmPayment(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}
