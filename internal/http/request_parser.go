package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// maxRadiusDays bounds the window and horizon query parameters.
const maxRadiusDays = 366

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed query parameters and bodies.
var errBadRequest = errors.New("bad request")

func badParam(name, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", errBadRequest, name, fmt.Sprintf(format, args...))
}

// decodeJSON reads one JSON object from the body into v. Unknown fields
// are rejected so typos do not silently drop data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errBadRequest)
	}
	return nil
}

// parseToday reads ?today=YYYY-MM-DD, defaulting to the current date in
// the configured location.
func (s *Server) parseToday(q url.Values) (core.Date, error) {
	v := strings.TrimSpace(q.Get("today"))
	if v == "" {
		return core.Today(s.cfg.Location), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badParam("today", "want YYYY-MM-DD, got %q", v)
	}
	return d, nil
}

func parseIntParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badParam(name, "not a number: %q", v)
	}
	return n, nil
}

// parseDays reads a day count in [0, maxRadiusDays].
func parseDays(q url.Values, name string, def int) (int, error) {
	n, err := parseIntParam(q, name, def)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > maxRadiusDays {
		return 0, badParam(name, "must be between 0 and %d", maxRadiusDays)
	}
	return n, nil
}

// parseYearMonth reads ?year=&month=, defaulting to the current month.
func (s *Server) parseYearMonth(q url.Values) (year, month int, err error) {
	today := core.Today(s.cfg.Location)
	if year, err = parseIntParam(q, "year", today.Year()); err != nil {
		return 0, 0, err
	}
	if month, err = parseIntParam(q, "month", today.Month()); err != nil {
		return 0, 0, err
	}
	if year < 1 || year > 9999 {
		return 0, 0, badParam("year", "out of range: %d", year)
	}
	if month < 1 || month > 12 {
		return 0, 0, badParam("month", "must be between 1 and 12")
	}
	return year, month, nil
}

// parseTransactionFilter reads the list filters. A month needs a year.
func parseTransactionFilter(q url.Values) (storage.TransactionFilter, error) {
	f := storage.TransactionFilter{
		Type:   core.TransactionType(strings.TrimSpace(q.Get("type"))),
		CardID: strings.TrimSpace(q.Get("card_id")),
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, badParam("type", "must be expense or income")
	}

	var err error
	if f.Year, err = parseIntParam(q, "year", 0); err != nil {
		return f, err
	}
	if f.Month, err = parseIntParam(q, "month", 0); err != nil {
		return f, err
	}
	if f.Month != 0 {
		if f.Year == 0 {
			return f, badParam("month", "requires year")
		}
		if f.Month < 1 || f.Month > 12 {
			return f, badParam("month", "must be between 1 and 12")
		}
	}
	if f.Limit, err = parseIntParam(q, "limit", 0); err != nil {
		return f, err
	}
	if f.Limit < 0 {
		return f, badParam("limit", "must not be negative")
	}
	if v := strings.TrimSpace(q.Get("recurring")); v != "" {
		if f.Recurring, err = strconv.ParseBool(v); err != nil {
			return f, badParam("recurring", "not a boolean: %q", v)
		}
	}
	return f, nil
}
