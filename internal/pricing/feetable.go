// Package pricing prices delivery legs from the admin-maintained zone fee table.
package pricing

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chopmart/chopmart-backend/internal/zones"
)

// Entry is one (origin, destination) price.
type Entry struct {
	Origin      zones.Zone      `json:"origin"`
	Destination zones.Zone      `json:"destination"`
	Fee         decimal.Decimal `json:"fee"`
}

type pair struct {
	origin, destination zones.Zone
}

// FeeTable is an immutable zone pair price list. The zero value is an empty table.
type FeeTable struct {
	fees map[pair]decimal.Decimal
}

// NewFeeTable rejects negative fees and repeated pairs.
func NewFeeTable(entries []Entry) (FeeTable, error) {
	fees := make(map[pair]decimal.Decimal, len(entries))
	for _, e := range entries {
		if e.Origin == "" || e.Destination == "" {
			return FeeTable{}, fmt.Errorf("fee entry requires origin and destination")
		}
		if e.Fee.IsNegative() {
			return FeeTable{}, fmt.Errorf("fee for %s -> %s must not be negative", e.Origin, e.Destination)
		}
		key := pair{origin: e.Origin, destination: e.Destination}
		if _, dup := fees[key]; dup {
			return FeeTable{}, fmt.Errorf("duplicate fee for %s -> %s", e.Origin, e.Destination)
		}
		fees[key] = e.Fee
	}
	return FeeTable{fees: fees}, nil
}

// Lookup returns the fee for a pair and whether the table has it.
func (t FeeTable) Lookup(origin, destination zones.Zone) (decimal.Decimal, bool) {
	fee, ok := t.fees[pair{origin: origin, destination: destination}]
	return fee, ok
}

// Len is the number of priced pairs.
func (t FeeTable) Len() int { return len(t.fees) }

// Entries lists the table sorted by origin then destination.
func (t FeeTable) Entries() []Entry {
	out := make([]Entry, 0, len(t.fees))
	for k, fee := range t.fees {
		out = append(out, Entry{Origin: k.origin, Destination: k.destination, Fee: fee})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Origin != out[j].Origin {
			return out[i].Origin < out[j].Origin
		}
		return out[i].Destination < out[j].Destination
	})
	return out
}

func (t FeeTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries())
}

func (t *FeeTable) UnmarshalJSON(data []byte) error {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	table, err := NewFeeTable(entries)
	if err != nil {
		return err
	}
	*t = table
	return nil
}
