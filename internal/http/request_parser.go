// This file implements parsing of query filters, JSON bodies and import
// uploads shared by the handlers.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

// maxJSONBody bounds JSON request bodies other than import commits.
const maxJSONBody = 1 << 20

// multipartOverhead allows for boundaries and part headers around the file.
const multipartOverhead = 64 << 10

var (
	errBadQuery  = errors.New("invalid query parameter")
	errEmptyBody = errors.New("empty request body")
	errTooLarge  = errors.New("request body too large")
)

// ParseFilters reads year, showProjected, origin and focus from query. Empty
// values are left zero so the dashboard service fills its defaults.
func ParseFilters(query url.Values) (core.Filters, core.FocusMode, error) {
	var f core.Filters
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return f, "", fmt.Errorf("%w: year %q", errBadQuery, v)
		}
		f.Year = y
	}
	if v := strings.TrimSpace(query.Get("showProjected")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, "", fmt.Errorf("%w: showProjected %q", errBadQuery, v)
		}
		f.ShowProjected = b
	}
	f.Origin = core.OriginFilter(strings.ToLower(strings.TrimSpace(query.Get("origin"))))
	focus := core.FocusMode(strings.ToLower(strings.TrimSpace(query.Get("focus"))))
	return f, focus, nil
}

// DecodeJSON decodes a single JSON value from the request body into v,
// rejecting unknown fields and trailing data.
func DecodeJSON(r *http.Request, limit int64, v interface{}) error {
	body, err := readLimited(r.Body, limit)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if dec.More() {
		return errors.New("decode json: trailing data")
	}
	return nil
}

// ReadImportUpload returns the uploaded spreadsheet bytes and a filename used
// to pick the reader. Multipart uploads use the "file" field; any other body
// is taken as the raw file with the name from the "filename" query parameter.
func ReadImportUpload(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		if err := r.ParseMultipartForm(limit); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, "", errTooLarge
			}
			return nil, "", fmt.Errorf("parse multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		data, err := readLimited(file, limit)
		if err != nil {
			return nil, "", err
		}
		if len(data) == 0 {
			return nil, "", errEmptyBody
		}
		return data, header.Filename, nil
	}

	data, err := readLimited(r.Body, limit)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errEmptyBody
	}
	name := sanitizeInput(r.URL.Query().Get("filename"))
	if name == "" && strings.Contains(mediaType, "spreadsheetml") {
		name = "upload.xlsx"
	}
	return data, name, nil
}

// readLimited reads at most limit bytes and fails if more are available.
func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
