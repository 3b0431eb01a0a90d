// Package http provides the JSON API server and its handlers.
//
// This file implements the helpers that decode and sanitize request data.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"moneyboard/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeInput strips markup and control characters and trims whitespace.
// The strict policy escapes entities, which a JSON API must not store.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// decodeJSON reads one JSON object into dst. Unknown fields, trailing data
// and oversized bodies are rejected as invalid input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &core.ValidationError{Field: "body", Reason: fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit)}
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &core.ValidationError{Field: "body", Reason: "request body is empty"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return &core.ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s", typeErr.Type)}
		}
		return &core.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	if dec.More() {
		return &core.ValidationError{Field: "body", Reason: "unexpected data after JSON object"}
	}
	return nil
}

// amountParam accepts "12.34", "12,34" or a bare JSON number.
type amountParam string

func (a *amountParam) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountParam(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = amountParam(n.String())
	return nil
}

func (a amountParam) Decimal() (decimal.Decimal, error) {
	return core.ParseAmount(string(a))
}

func (a *amountParam) DecimalPtr() (*decimal.Decimal, error) {
	if a == nil {
		return nil, nil
	}
	d, err := a.Decimal()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate accepts YYYY-MM-DD, read in loc, or a full RFC 3339 instant.
func parseDate(field, s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &core.ValidationError{Field: field, Reason: field + " is required"}
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, &core.ValidationError{Field: field, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
}

func parseDatePtr(field string, s *string, loc *time.Location) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(field, *s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseMonthParam reads ?month=YYYY-MM, using fallback when absent.
func ParseMonthParam(query url.Values, fallback core.YearMonth) (core.YearMonth, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return fallback, nil
	}
	return core.ParseYearMonth(v)
}

// ParsePolarityParam reads ?type=expense|income, defaulting to expense.
func ParsePolarityParam(query url.Values) (core.Polarity, error) {
	return core.ParsePolarity(query.Get("type"))
}

// pathParam returns the unescaped URL parameter. Virtual refs arrive with
// their '#' percent-encoded.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// refParam parses the {ref} path parameter into a transaction reference.
func refParam(r *http.Request) (core.TxRef, error) {
	return core.ParseTxRef(pathParam(r, "ref"))
}
