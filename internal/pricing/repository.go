package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chopmart/chopmart-backend/internal/zones"
	"github.com/chopmart/chopmart-backend/pkg/db/models"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

// Repository persists the delivery_fees price list. It also serves as an uncached Source.
type Repository struct {
	db   *gorm.DB
	norm *zones.Normalizer
}

// NewRepository binds the price list to a DB handle.
func NewRepository(db *gorm.DB, norm *zones.Normalizer) *Repository {
	if norm == nil {
		norm = zones.Default()
	}
	return &Repository{db: db, norm: norm}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, norm: r.norm}
}

// List returns every stored row ordered by pair.
func (r *Repository) List(ctx context.Context) ([]models.DeliveryFee, error) {
	var rows []models.DeliveryFee
	err := r.db.WithContext(ctx).
		Order("origin_zone ASC").
		Order("destination_zone ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Current loads the table from the database.
func (r *Repository) Current(ctx context.Context) (FeeTable, error) {
	rows, err := r.List(ctx)
	if err != nil {
		return FeeTable{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery fees")
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		origin, ok := r.norm.Parse(row.OriginZone)
		if !ok {
			return FeeTable{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown origin zone %q in delivery_fees", row.OriginZone))
		}
		dest, ok := r.norm.Parse(row.DestinationZone)
		if !ok {
			return FeeTable{}, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown destination zone %q in delivery_fees", row.DestinationZone))
		}
		entries = append(entries, Entry{Origin: origin, Destination: dest, Fee: row.Fee})
	}
	table, err := NewFeeTable(entries)
	if err != nil {
		return FeeTable{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build fee table")
	}
	return table, nil
}

// Refresh is Current; the database is always authoritative.
func (r *Repository) Refresh(ctx context.Context) (FeeTable, error) {
	return r.Current(ctx)
}

// FeeInput is one admin price list change. Zone names are matched case-insensitively.
type FeeInput struct {
	Origin      string
	Destination string
	Fee         string
}

// Upsert validates and writes price list changes, replacing existing pairs.
func (r *Repository) Upsert(ctx context.Context, inputs []FeeInput, updatedBy string) ([]models.DeliveryFee, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one fee is required")
	}
	rows := make([]models.DeliveryFee, 0, len(inputs))
	entries := make([]Entry, 0, len(inputs))
	var actor *string
	if s := strings.TrimSpace(updatedBy); s != "" {
		actor = &s
	}
	for i, in := range inputs {
		origin, ok := r.norm.Parse(in.Origin)
		if !ok {
			return nil, invalidFee(i, "origin", fmt.Sprintf("unknown zone %q", in.Origin))
		}
		dest, ok := r.norm.Parse(in.Destination)
		if !ok {
			return nil, invalidFee(i, "destination", fmt.Sprintf("unknown zone %q", in.Destination))
		}
		fee, ok := ParseFee(in.Fee)
		if !ok {
			return nil, invalidFee(i, "fee", "must be a non-negative amount")
		}
		entries = append(entries, Entry{Origin: origin, Destination: dest, Fee: fee})
		rows = append(rows, models.DeliveryFee{
			ID:              uuid.New(),
			OriginZone:      origin.String(),
			DestinationZone: dest.String(),
			Fee:             fee,
			UpdatedBy:       actor,
		})
	}
	if _, err := NewFeeTable(entries); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fee list")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "origin_zone"}, {Name: "destination_zone"}},
		DoUpdates: clause.AssignmentColumns([]string{"fee", "updated_by", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert delivery fees")
	}
	return rows, nil
}

// ParseFee reads an admin-entered fee. Unlike cart prices, fees are validated, not coerced.
func ParseFee(raw string) (decimal.Decimal, bool) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || value.IsNegative() {
		return decimal.Zero, false
	}
	return value, true
}

func invalidFee(index int, field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid fee list").
		WithDetails(map[string]any{"index": index, "field": field, "error": msg})
}
