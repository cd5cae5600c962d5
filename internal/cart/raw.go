package cart

import (
	"bytes"
	"encoding/json"
	"strings"
)

// RawKind records which JSON shape a RawValue arrived as.
type RawKind int

const (
	RawMissing RawKind = iota
	RawNull
	RawNumber
	RawString
	RawOther
)

// RawValue holds a scalar that may arrive as a JSON number, a JSON string or null.
type RawValue struct {
	kind RawKind
	text string
}

// Number builds a RawValue from a numeric literal such as "1250.5".
func Number(literal string) RawValue {
	return RawValue{kind: RawNumber, text: literal}
}

// String builds a RawValue from free text such as "₦1,250.00".
func String(s string) RawValue {
	return RawValue{kind: RawString, text: s}
}

// Kind reports the JSON shape.
func (v RawValue) Kind() RawKind { return v.kind }

// Text returns the string content or number literal; empty for null, missing and other shapes.
func (v RawValue) Text() string {
	if v.kind == RawNumber || v.kind == RawString {
		return v.text
	}
	return ""
}

// IsZero lets encoding/json omit a missing value.
func (v RawValue) IsZero() bool { return v.kind == RawMissing }

func (v *RawValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		*v = RawValue{}
	case bytes.Equal(trimmed, []byte("null")):
		*v = RawValue{kind: RawNull}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = RawValue{kind: RawString, text: s}
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			// booleans, objects and arrays are kept and coerced later
			*v = RawValue{kind: RawOther, text: string(trimmed)}
			return nil
		}
		*v = RawValue{kind: RawNumber, text: n.String()}
	}
	return nil
}

func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case RawNumber:
		return []byte(v.text), nil
	case RawString:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

func (v RawValue) describe() string {
	switch v.kind {
	case RawMissing:
		return "<missing>"
	case RawNull:
		return "null"
	case RawOther:
		return strings.TrimSpace(v.text)
	}
	return v.text
}

// RawCartItem is the untrusted shape a cart line arrives in from clients.
type RawCartItem struct {
	ID                 RawValue `json:"id"`
	Name               string   `json:"name"`
	Price              RawValue `json:"price"`
	Quantity           RawValue `json:"quantity"`
	VendorID           string   `json:"vendorId"`
	VendorName         string   `json:"vendorName"`
	VendorRole         string   `json:"vendorRole"`
	VendorBaseLocation string   `json:"vendorBaseLocation"`
}
