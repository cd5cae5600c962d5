package controllers

import (
	"context"
	"net/http"

	"github.com/chopmart/chopmart-backend/api/middleware"
	"github.com/chopmart/chopmart-backend/api/responses"
	"github.com/chopmart/chopmart-backend/api/validators"
	"github.com/chopmart/chopmart-backend/internal/pricing"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

// FeeWriter persists admin fee changes.
type FeeWriter interface {
	Upsert(ctx context.Context, inputs []pricing.FeeInput, updatedBy string) ([]models.DeliveryFee, error)
}

type feeTableResponse struct {
	Fees []pricing.Entry `json:"fees"`
}

func DeliveryFeesList(src pricing.Source, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := src.Current(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, feeTableResponse{Fees: table.Entries()})
	}
}

// DeliveryFeesRefresh drops any cached copy and reloads from the database.
func DeliveryFeesRefresh(src pricing.Source, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := src.Refresh(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, feeTableResponse{Fees: table.Entries()})
	}
}

type feeUpsertItem struct {
	Origin      string `json:"origin" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Fee         string `json:"fee" validate:"required"`
}

type feeUpsertRequest struct {
	Fees []feeUpsertItem `json:"fees" validate:"required,min=1,dive"`
}

// DeliveryFeesUpsert writes admin price list changes and refreshes the shared table.
func DeliveryFeesUpsert(writer FeeWriter, src pricing.Source, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var req feeUpsertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := validators.ValidateStruct(req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		inputs := make([]pricing.FeeInput, 0, len(req.Fees))
		for _, f := range req.Fees {
			inputs = append(inputs, pricing.FeeInput{Origin: f.Origin, Destination: f.Destination, Fee: f.Fee})
		}
		if _, err := writer.Upsert(ctx, inputs, middleware.ActorIDFromContext(ctx)); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		table, err := src.Refresh(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fees saved but refresh failed"))
			return
		}
		ctx = logg.WithField(ctx, "fee_count", len(inputs))
		logg.Info(ctx, "delivery_fees.updated")
		responses.WriteSuccess(w, feeTableResponse{Fees: table.Entries()})
	}
}
