package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
)

var ErrInvalidRequest = errors.New("invalid request")

// QueryParams is the transport neutral form of a query: every field is
// the raw string the caller sent.
type QueryParams struct {
	Item      string
	Metric    string
	Selector  string
	Start     string
	End       string
	Service   string
	Riemann   string
	SkipEqual bool
}

type RequestValidator struct {
	validSelectors map[string]bool
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validSelectors: map[string]bool{
			"since":   true,
			"until":   true,
			"between": true,
		},
	}
}

// Validate checks p and turns it into an engine request
func (v *RequestValidator) Validate(p QueryParams) (persistence.Request, error) {
	req := persistence.Request{Metric: p.Metric, ServiceID: p.Service, SkipEqual: p.SkipEqual}

	if p.Item == "" {
		return req, fmt.Errorf("%w: missing item", ErrInvalidRequest)
	}
	if !persistence.IsMetric(p.Metric) {
		return req, fmt.Errorf("%w: invalid metric: %s", ErrInvalidRequest, p.Metric)
	}

	rule, err := persistence.ParseRiemannType(p.Riemann)
	if err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Riemann = rule

	if persistence.NeedsSelector(p.Metric) {
		sel, err := v.Selector(p)
		if err != nil {
			return req, err
		}
		req.Selector = &sel
		return req, nil
	}

	switch p.Metric {
	case "historic_state", "persisted_state":
		at, err := parseTime("start", p.Start)
		if err != nil {
			return req, err
		}
		req.At = at
	}
	return req, nil
}

// Selector parses the selector fields of p.
func (v *RequestValidator) Selector(p QueryParams) (persistence.Selector, error) {
	if !v.validSelectors[p.Selector] {
		return persistence.Selector{}, fmt.Errorf("%w: invalid selector: %s", ErrInvalidRequest, p.Selector)
	}
	switch p.Selector {
	case "since":
		start, err := parseTime("start", p.Start)
		if err != nil {
			return persistence.Selector{}, err
		}
		return persistence.Since(start), nil
	case "until":
		end, err := parseTime("end", p.End)
		if err != nil {
			return persistence.Selector{}, err
		}
		return persistence.Until(end), nil
	}
	start, err := parseTime("start", p.Start)
	if err != nil {
		return persistence.Selector{}, err
	}
	end, err := parseTime("end", p.End)
	if err != nil {
		return persistence.Selector{}, err
	}
	return persistence.Between(start, end), nil
}

func parseTime(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing timestamp %s", ErrInvalidRequest, field)
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s is not RFC3339: %q", ErrInvalidRequest, field, value)
	}
	return t, nil
}
