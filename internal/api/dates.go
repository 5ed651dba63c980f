package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
)

// FlexDate is a request date written as YYYY-MM-DD or RFC3339.
type FlexDate struct {
	time.Time
}

// ParseDate parses a request date. Empty input yields nil.
func ParseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := domain.ParseTimestamp(s)
	if err != nil {
		return nil, errors.InvalidInputf("invalid %s %q (use YYYY-MM-DD or RFC3339)", field, s).
			WithDetails(map[string]string{field: "must be YYYY-MM-DD or RFC3339"})
	}
	return &t, nil
}

// UnmarshalJSON accepts a date string or null.
func (d *FlexDate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := ParseDate("date", s)
	if err != nil {
		return err
	}
	if t != nil {
		d.Time = *t
	}
	return nil
}

// MarshalJSON writes midnight UTC as a bare date and anything else as RFC3339.
func (d FlexDate) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.Equal(d.Truncate(24 * time.Hour)) {
		return json.Marshal(d.UTC().Format(time.DateOnly))
	}
	return json.Marshal(d.Format(time.RFC3339))
}

// Schema documents FlexDate as a string for huma.
func (FlexDate) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeString,
		Description: "Date as YYYY-MM-DD or RFC3339",
		Examples:    []any{"2024-03-01"},
	}
}

// timePtr returns nil for a nil or zero FlexDate.
func (d *FlexDate) timePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
