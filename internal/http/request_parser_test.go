package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"moneyboard/internal/core"

	"github.com/go-chi/chi/v5"
)

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Coffee  ", "Coffee"},
		{"<script>alert(1)</script>Rent", "Rent"},
		{"<b>Bold</b> move", "Bold move"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"a\x00b\x07c", "abc"},
		{"line\nbreak", "line\nbreak"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if sanitizePtr(nil) != nil {
		t.Error("sanitizePtr(nil) should stay nil")
	}
}

func decodeRequest(t *testing.T, body string, dst any) error {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return decodeJSON(httptest.NewRecorder(), r, dst)
}

func TestDecodeJSON(t *testing.T) {
	t.Run("valid body", func(t *testing.T) {
		var req createTransactionRequest
		err := decodeRequest(t, `{"date":"2025-03-01","description":"Rent","amount":"-1200,50","isRecurring":true}`, &req)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		d, err := req.Amount.Decimal()
		if err != nil || d.String() != "-1200.5" {
			t.Errorf("amount = %v, %v", d, err)
		}
		if !req.IsRecurring {
			t.Error("isRecurring not decoded")
		}
	})

	t.Run("numeric amount", func(t *testing.T) {
		var req createTaskRequest
		if err := decodeRequest(t, `{"title":"Gas","amount":42.005}`, &req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		d, err := req.Amount.Decimal()
		if err != nil || d.StringFixed(2) != "42.01" {
			t.Errorf("amount = %v, %v", d, err)
		}
	})

	rejects := map[string]string{
		"empty body":     ``,
		"malformed":      `{"title":`,
		"unknown field":  `{"title":"x","owner":"someone-else"}`,
		"trailing data":  `{"title":"x"}{"title":"y"}`,
		"wrong type":     `{"title":12}`,
		"bad amount":     `{"title":"x","amount":true}`,
		"oversized body": `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`,
	}
	for name, body := range rejects {
		t.Run(name, func(t *testing.T) {
			var req createTaskRequest
			err := decodeRequest(t, body, &req)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("decodeJSON(%s) = %v, want validation error", name, err)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skip("tzdata not available")
	}

	got, err := parseDate("date", "2025-03-01", rome)
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if !got.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, rome)) {
		t.Errorf("parseDate = %v", got)
	}

	got, err = parseDate("date", "2025-02-28T23:30:00Z", rome)
	if err != nil {
		t.Fatalf("parseDate rfc3339: %v", err)
	}
	if got.Day() != 1 || got.Location() != rome {
		t.Errorf("instant should land on Mar 1 in Rome, got %v", got)
	}

	for _, bad := range []string{"", "01/03/2025", "2025-13-01"} {
		if _, err := parseDate("date", bad, rome); !errors.Is(err, core.ErrValidation) {
			t.Errorf("parseDate(%q) = %v, want validation error", bad, err)
		}
	}

	if p, err := parseDatePtr("date", nil, rome); p != nil || err != nil {
		t.Errorf("parseDatePtr(nil) = %v, %v", p, err)
	}
}

func TestParseMonthParam(t *testing.T) {
	fallback := core.NewYearMonth(2025, time.March)

	got, err := ParseMonthParam(url.Values{}, fallback)
	if err != nil || got != fallback {
		t.Errorf("empty query = %v, %v", got, err)
	}
	got, err = ParseMonthParam(url.Values{"month": {"2024-12"}}, fallback)
	if err != nil || got != core.NewYearMonth(2024, time.December) {
		t.Errorf("month=2024-12 = %v, %v", got, err)
	}
	if _, err := ParseMonthParam(url.Values{"month": {"2024-1"}}, fallback); !errors.Is(err, core.ErrValidation) {
		t.Errorf("short month accepted: %v", err)
	}
}

func TestParsePolarityParam(t *testing.T) {
	tests := []struct {
		value   string
		want    core.Polarity
		wantErr bool
	}{
		{"", core.Expense, false},
		{"expense", core.Expense, false},
		{"income", core.Income, false},
		{"savings", core.Expense, true},
	}
	for _, tt := range tests {
		got, err := ParsePolarityParam(url.Values{"type": {tt.value}})
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Errorf("ParsePolarityParam(%q) = %v, %v", tt.value, got, err)
		}
	}
}

func TestRefParamUnescapes(t *testing.T) {
	r := chi.NewRouter()
	var got core.TxRef
	var gotErr error
	r.Delete("/transactions/{ref}", func(w http.ResponseWriter, req *http.Request) {
		got, gotErr = refParam(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/transactions/abc%232025-03", nil))
	if gotErr != nil {
		t.Fatalf("refParam: %v", gotErr)
	}
	if got.ID != "abc" || got.Month != core.NewYearMonth(2025, time.March) {
		t.Errorf("refParam = %+v", got)
	}
}
