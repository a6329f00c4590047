// Package http provides the JSON API server and its handlers.
//
// This file turns request bodies and query strings into budget inputs. JSON
// and form-encoded bodies are both accepted so that plain HTML forms can post
// spending events directly.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendguard/internal/budget"
	"spendguard/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 64 << 10

var (
	errBodyTooLarge = errors.New("request body too large")
	errNotList      = errors.New("must be a list")
)

// MonthParams holds year/month query values. Zero means "current".
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing
// values stay zero; values that are not integers are rejected.
func ParseMonthParams(query url.Values) (MonthParams, error) {
	var params MonthParams
	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.Invalid("year", core.ErrInvalidMonth)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.Invalid("month", core.ErrInvalidMonth)
		}
		params.Month = m
	}
	return params, nil
}

// RequestBodyParser reads a body once and exposes its fields regardless of
// whether it was JSON or form-encoded.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse decodes the body. Malformed input is reported as a validation error
// on the "body" field.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		p.err = core.Invalid("body", p.err)
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.jsonData = nil
			p.err = core.Invalid("body", fmt.Errorf("malformed JSON: %w", err))
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = core.Invalid("body", p.err)
	}
	return p.err
}

// Value returns the raw decoded value for key.
func (p *RequestBodyParser) Value(key string) (any, bool) {
	if p.jsonData != nil {
		v, ok := p.jsonData[key]
		return v, ok
	}
	if p.formData != nil && p.formData.Has(key) {
		return p.formData.Get(key), true
	}
	return nil, false
}

// Get returns a sanitized string value. Non-text values yield "".
func (p *RequestBodyParser) Get(key string) string {
	v, _ := p.Value(key)
	return sanitizeInput(stringValue(v))
}

// Bool reads a flag. Forms send "on", "true", "1" or "yes".
func (p *RequestBodyParser) Bool(key string) bool {
	v, ok := p.Value(key)
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "on", "true", "1", "yes":
			return true
		}
	}
	return false
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts text and numbers to string; anything else is "".
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// ParseAdmission builds an admission request from the body. An amount that
// cannot be read is left at zero so the request validation reports it in
// field order.
func ParseAdmission(p *RequestBodyParser) (budget.AdmissionRequest, error) {
	if err := p.Parse(); err != nil {
		return budget.AdmissionRequest{}, err
	}
	if v, ok := p.Value("category"); ok {
		if _, isText := v.(string); !isText {
			return budget.AdmissionRequest{}, core.Invalid("category", core.ErrNotText)
		}
	}

	req := budget.AdmissionRequest{
		Category: p.Get("category"),
		Payee:    p.Get("payee"),
		Redirect: p.Get("redirect"),
		Bypass:   p.Bool("bypass"),
	}
	if raw, ok := p.Value("amount"); ok {
		if cents, err := core.ParseDecimalToCents(stringValue(raw)); err == nil {
			req.Amount = core.Money{Cents: cents}
		}
	}
	return req, nil
}

// ParseLimits reads {"limits": [{"category", "cap"}]}. A form body carries
// a single category/cap pair. Caps must be JSON numbers; numeric strings are
// accepted only from forms.
func ParseLimits(p *RequestBodyParser) ([]budget.LimitInput, error) {
	if err := p.Parse(); err != nil {
		return nil, err
	}

	if !p.IsJSON() {
		cents, err := core.ParseCapToCents(p.Get("cap"))
		if err != nil {
			return nil, core.Invalid("limits[0].cap", core.ErrInvalidCap)
		}
		return []budget.LimitInput{{Category: p.Get("category"), Cap: core.Money{Cents: cents}}}, nil
	}

	raw, ok := p.Value("limits")
	if !ok {
		return nil, core.Invalid("limits", errNotList)
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, core.Invalid("limits", errNotList)
	}

	out := make([]budget.LimitInput, 0, len(entries))
	for i, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			return nil, core.Invalid(fmt.Sprintf("limits[%d]", i), errors.New("must be an object"))
		}
		category, ok := entry["category"].(string)
		if !ok {
			return nil, core.Invalid(fmt.Sprintf("limits[%d].category", i), core.ErrNotText)
		}
		num, ok := entry["cap"].(json.Number)
		if !ok {
			return nil, core.Invalid(fmt.Sprintf("limits[%d].cap", i), core.ErrInvalidCap)
		}
		cents, err := core.ParseCapToCents(num.String())
		if err != nil {
			return nil, core.Invalid(fmt.Sprintf("limits[%d].cap", i), core.ErrInvalidCap)
		}
		out = append(out, budget.LimitInput{Category: sanitizeInput(category), Cap: core.Money{Cents: cents}})
	}
	return out, nil
}
