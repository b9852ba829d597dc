package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cashflow/internal/core"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		want      core.Filters
		wantFocus core.FocusMode
		wantErr   bool
	}{
		{
			name:  "empty leaves defaults to the service",
			query: url.Values{},
			want:  core.Filters{},
		},
		{
			name:      "all values",
			query:     url.Values{"year": {"2024"}, "showProjected": {"true"}, "origin": {" Business "}, "focus": {"COMPANY"}},
			want:      core.Filters{Year: 2024, ShowProjected: true, Origin: core.OriginBusiness},
			wantFocus: core.FocusCompany,
		},
		{
			name:    "non numeric year",
			query:   url.Values{"year": {"twenty"}},
			wantErr: true,
		},
		{
			name:    "bad bool",
			query:   url.Values{"showProjected": {"perhaps"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, focus, err := ParseFilters(tt.query)
			if tt.wantErr {
				if !errors.Is(err, errBadQuery) {
					t.Fatalf("expected errBadQuery, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f != tt.want || focus != tt.wantFocus {
				t.Fatalf("got %+v/%q, want %+v/%q", f, focus, tt.want, tt.wantFocus)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		limit   int64
		want    error
		wantErr bool
	}{
		{name: "valid", body: `{"name":"x"}`, limit: 100},
		{name: "empty", body: "  ", limit: 100, want: errEmptyBody},
		{name: "too large", body: `{"name":"xxxxxxxxxxxxxxxx"}`, limit: 8, want: errTooLarge},
		{name: "unknown field", body: `{"nom":"x"}`, limit: 100, wantErr: true},
		{name: "trailing data", body: `{"name":"x"}{"name":"y"}`, limit: 100, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := DecodeJSON(r, tt.limit, &p)
			switch {
			case tt.want != nil:
				if !errors.Is(err, tt.want) {
					t.Fatalf("error = %v, want %v", err, tt.want)
				}
			case tt.wantErr:
				if err == nil {
					t.Fatalf("expected error")
				}
			default:
				if err != nil || p.Name != "x" {
					t.Fatalf("DecodeJSON = %v, %+v", err, p)
				}
			}
		})
	}
}

func TestReadImportUpload(t *testing.T) {
	t.Run("raw body with filename", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/?filename=budget.csv", strings.NewReader("a;b\n"))
		data, name, err := ReadImportUpload(httptest.NewRecorder(), r, 100)
		if err != nil || string(data) != "a;b\n" || name != "budget.csv" {
			t.Fatalf("got %q %q %v", data, name, err)
		}
	})

	t.Run("xlsx content type names the upload", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("PK"))
		r.Header.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		_, name, err := ReadImportUpload(httptest.NewRecorder(), r, 100)
		if err != nil || name != "upload.xlsx" {
			t.Fatalf("got %q %v", name, err)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		if _, _, err := ReadImportUpload(httptest.NewRecorder(), r, 100); !errors.Is(err, errEmptyBody) {
			t.Fatalf("error = %v", err)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, _ := mw.CreateFormFile("file", "plan.csv")
		_, _ = fw.Write([]byte("x;1\n"))
		_ = mw.Close()

		r := httptest.NewRequest(http.MethodPost, "/", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		data, name, err := ReadImportUpload(httptest.NewRecorder(), r, 100)
		if err != nil || string(data) != "x;1\n" || name != "plan.csv" {
			t.Fatalf("got %q %q %v", data, name, err)
		}
	})

	t.Run("multipart without file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		_ = mw.WriteField("other", "v")
		_ = mw.Close()

		r := httptest.NewRequest(http.MethodPost, "/", &buf)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		if _, _, err := ReadImportUpload(httptest.NewRecorder(), r, 100); err == nil {
			t.Fatalf("expected error for missing file")
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"  normal  ", "normal"},
		{"with\x00null", "withnull"},
		{"keep\ttab", "keep\ttab"},
		{"bell\x07", "bell"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(tt.input); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
