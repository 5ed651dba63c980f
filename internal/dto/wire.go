// Package dto maps the backend's wire records into domain types and builds
// the client-facing article representations.
//
// The backend speaks PascalCase (Id, Title, DateCreated); some endpoints use
// camelCase. encoding/json matches keys case-insensitively, so one struct per
// record covers both. IDs may arrive as JSON strings or numbers.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cewkb/kbsearch/internal/domain"
	"github.com/cewkb/kbsearch/internal/errors"
	"github.com/cewkb/kbsearch/internal/validation"
)

// FlexID is an identifier that may be encoded as a string or a number.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("id must be a string or number: %w", err)
		}
		*f = FlexID(n.String())
	}
	return nil
}

// TagRef is an article's reference to a tag: a bare ID or a tag object.
type TagRef struct {
	ID   FlexID
	Name string
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *TagRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var t Tag
		if err := json.Unmarshal(b, &t); err != nil {
			return err
		}
		r.ID, r.Name = t.ID, t.Name
		return nil
	}
	return r.ID.UnmarshalJSON(b)
}

// MarshalJSON writes a TagRef as its bare ID.
func (r TagRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r.ID))
}

// Article is the backend's knowledge article record.
type Article struct {
	ID          FlexID   `json:"Id" validate:"notblank"`
	Title       string   `json:"Title" validate:"notblank"`
	Description string   `json:"Description"`
	Category    string   `json:"Category"`
	Platform    string   `json:"Platform"`
	Segment     string   `json:"Segment"`
	DateCreated string   `json:"DateCreated"`
	Solution    string   `json:"Solution"`
	ImageURL1   string   `json:"ImageUrl1"`
	ImageURL2   string   `json:"ImageUrl2"`
	UserID      FlexID   `json:"UserId"`
	Tags        []TagRef `json:"Tags"`
}

// Tag is the backend's tag record.
type Tag struct {
	ID   FlexID `json:"Id" validate:"notblank"`
	Name string `json:"Name" validate:"notblank"`
}

// MappingError reports a wire record that cannot become a domain value.
type MappingError struct {
	Kind   string // "article" or "tag"
	Index  int    // position in the payload
	ID     string // may be empty when the ID itself is missing
	Fields map[string]string
}

func (e *MappingError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		fields = append(fields, k+" "+v)
	}
	slices.Sort(fields)
	id := e.ID
	if id == "" {
		id = "#" + strconv.Itoa(e.Index)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Kind, id, strings.Join(fields, ", "))
}

// Unwrap lets errors.Is match errors.ErrValidation.
func (e *MappingError) Unwrap() error {
	return errors.ErrValidation
}

// Mapper converts wire records, validating them at the boundary.
type Mapper struct {
	v *validation.Validator
}

// NewMapper creates a Mapper.
func NewMapper(v *validation.Validator) *Mapper {
	if v == nil {
		v = validation.New()
	}
	return &Mapper{v: v}
}

// ToArticle maps a wire article. index is its position in the payload, used
// in error reports. A missing Id or Title, or a segment that does not belong
// to the article's platform, is a *MappingError. Nothing is defaulted.
func (m *Mapper) ToArticle(index int, in Article) (domain.Article, error) {
	if err := m.v.Validate(in); err != nil {
		return domain.Article{}, mappingError("article", index, string(in.ID), err)
	}
	if err := m.v.ValidateSegment(in.Platform, in.Segment); err != nil {
		return domain.Article{}, mappingError("article", index, string(in.ID), err)
	}

	tags := make([]string, 0, len(in.Tags))
	for _, ref := range in.Tags {
		if ref.ID != "" {
			tags = append(tags, string(ref.ID))
		}
	}

	return domain.Article{
		ID:          string(in.ID),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Platform:    in.Platform,
		Segment:     in.Segment,
		DateCreated: strings.TrimSpace(in.DateCreated),
		Solution:    in.Solution,
		ImageURL1:   in.ImageURL1,
		ImageURL2:   in.ImageURL2,
		Tags:        tags,
		UserID:      string(in.UserID),
	}, nil
}

// ToTag maps a wire tag.
func (m *Mapper) ToTag(index int, in Tag) (domain.Tag, error) {
	if err := m.v.Validate(in); err != nil {
		return domain.Tag{}, mappingError("tag", index, string(in.ID), err)
	}
	return domain.Tag{ID: string(in.ID), Name: strings.TrimSpace(in.Name)}, nil
}

func mappingError(kind string, index int, id string, err error) error {
	fields := map[string]string{}
	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		if d, ok := domainErr.Details.(map[string]string); ok {
			fields = d
		}
	}
	if len(fields) == 0 {
		fields["record"] = err.Error()
	}
	return &MappingError{Kind: kind, Index: index, ID: id, Fields: fields}
}
