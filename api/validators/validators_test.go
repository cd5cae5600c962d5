package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
)

type quotePayload struct {
	Amount     string `json:"amount" validate:"required"`
	ETAMinutes int    `json:"etaMinutes" validate:"gt=0"`
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1500","etaMinutes":20}`))
	var p quotePayload
	if err := DecodeJSONBody(r, &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Amount != "1500" || p.ETAMinutes != 20 {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestDecodeJSONBodyRejects(t *testing.T) {
	cases := map[string]string{
		"empty":   ``,
		"unknown": `{"amount":"1","etaMinutes":5,"tip":1}`,
		"invalid": `{"amount":"1","etaMinutes":0}`,
		"syntax":  `{"amount":`,
	}
	for name, body := range cases {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var p quotePayload
		err := DecodeJSONBody(r, &p)
		if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	err := ValidateStruct(&quotePayload{})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", typed.Details())
	}
	if details["amount"] != "is required" {
		t.Fatalf("expected amount detail, got %v", details)
	}
	if details["etaMinutes"] != "must be greater than 0" {
		t.Fatalf("expected etaMinutes detail, got %v", details)
	}
}

func TestParsePagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&cursor=abc", nil)
	p, err := ParsePagination(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Limit != 10 || p.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", p)
	}
	r = httptest.NewRequest(http.MethodGet, "/?limit=1000", nil)
	if _, err := ParsePagination(r); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if p, err := ParsePagination(r); err != nil || p.Limit != 0 {
		t.Fatalf("expected default, got %+v %v", p, err)
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  rider no-show  ", 0); got != "rider no-show" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("₦₦₦", 4); got != "₦" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}
