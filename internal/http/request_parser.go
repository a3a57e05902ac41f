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

	"github.com/go-chi/chi/v5"

	"tesouraria/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the body into v. Unknown fields are
// tolerated; malformed bodies are validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &core.ValidationError{Reason: "request body is empty"}
		}
		return &core.ValidationError{Reason: "malformed JSON body", Err: err}
	}
	return nil
}

// parseID reads a positive id from the {id} route parameter, falling back
// to the ?id= query parameter.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		raw = r.URL.Query().Get("id")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, &core.ValidationError{Field: "id", Reason: "expected a positive integer"}
	}
	return id, nil
}

// parsePeriod reads year and month from the query; both are required.
func parsePeriod(query url.Values) (core.Period, error) {
	year, err := strconv.Atoi(strings.TrimSpace(query.Get("year")))
	if err != nil {
		return core.Period{}, &core.ValidationError{Field: "year", Reason: "expected a number"}
	}
	month, err := strconv.Atoi(strings.TrimSpace(query.Get("month")))
	if err != nil {
		return core.Period{}, &core.ValidationError{Field: "month", Reason: "expected a number"}
	}
	return core.NewPeriod(year, month)
}

// parseMoneyParam reads an optional amount; empty means zero.
func parseMoneyParam(query url.Values, key string) (core.Money, error) {
	raw := strings.TrimSpace(query.Get(key))
	if raw == "" {
		return core.Zero, nil
	}
	m, err := core.ParseMoney(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: key, Reason: fmt.Sprintf("invalid amount %q", raw), Err: err}
	}
	return m, nil
}

func parseLimit(query url.Values) (int, error) {
	raw := strings.TrimSpace(query.Get("limit"))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &core.ValidationError{Field: "limit", Reason: "expected a non-negative integer"}
	}
	return n, nil
}
