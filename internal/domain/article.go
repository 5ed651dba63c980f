package domain

import (
	"strings"
	"time"

	"github.com/cewkb/kbsearch/internal/errors"
)

// Article is a knowledge-base entry. The search engine only ever reads articles;
// the backend owns their lifecycle.
type Article struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"` // HTML
	Category    string   `json:"category,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Segment     string   `json:"segment,omitempty"`
	DateCreated string   `json:"date_created"` // raw wire value, see Created
	Solution    string   `json:"solution,omitempty"`
	ImageURL1   string   `json:"image_url_1,omitempty"`
	ImageURL2   string   `json:"image_url_2,omitempty"`
	Tags        []string `json:"tags"` // tag IDs
	UserID      string   `json:"user_id,omitempty"`
}

// Layouts accepted for DateCreated, tried in order. The zone-less forms are
// what .NET backends emit and are read as UTC.
var createdLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// Created parses DateCreated. Unparseable values return an error wrapping
// errors.ErrMalformedTimestamp.
func (a Article) Created() (time.Time, error) {
	return ParseTimestamp(a.DateCreated)
}

// CreatedOrZero returns the parsed creation time, or the zero time when
// DateCreated cannot be parsed.
func (a Article) CreatedOrZero() time.Time {
	t, err := a.Created()
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasTag reports whether the article references tagID.
func (a Article) HasTag(tagID string) bool {
	for _, t := range a.Tags {
		if t == tagID {
			return true
		}
	}
	return false
}

// ParseTimestamp parses a wire timestamp in any accepted layout.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.ErrMalformedTimestamp.WithDetails("empty timestamp")
	}
	for _, layout := range createdLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.MalformedTimestampf("malformed timestamp %q", s)
}
