// Package response defines the wire-level result types returned by the
// OpenAlex API: opaque entity records, group-by rows, and page metadata.
package response

import (
	"encoding/json"
	"fmt"
)

// Record is a single OpenAlex entity as an opaque JSON object.
// Every record carries an "id" field which is used as the dedup key.
// The engine never mutates a record after returning it.
type Record map[string]any

// ID returns the record's "id" field, or "" if absent.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Group is one row of a group-by (aggregate) result.
type Group struct {
	Key            string `json:"key"`
	KeyDisplayName string `json:"key_display_name"`
	Count          int    `json:"count"`
}

// Meta is the pagination metadata attached to every collection response.
// Count is the total remote result count for the whole query, reported on
// the first page and stable across pages.
type Meta struct {
	Count      int    `json:"count"`
	NextCursor string `json:"next_cursor"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
}

// Page is one page of a collection response. Entity queries populate
// Results; group-by queries populate Groups instead.
type Page struct {
	Results []Record `json:"results"`
	Groups  []Group  `json:"group_by"`
	Meta    Meta     `json:"meta"`
}

// Len returns the number of items on the page, counting whichever of
// Results or Groups is populated.
func (p *Page) Len() int {
	if len(p.Groups) > 0 {
		return len(p.Groups)
	}
	return len(p.Results)
}

// IsGrouped reports whether this page carries aggregate rows. Entity list
// responses include an empty "group_by" array next to "results", so a
// populated Groups slice alone is not enough evidence.
func (p *Page) IsGrouped() bool {
	return len(p.Groups) > 0 && len(p.Results) == 0
}

// ResultSet is the engine's output for one fully-consumed query: an ordered
// sequence of records (entity queries) or aggregate rows (group-by queries)
// plus the total remote count for the query.
type ResultSet struct {
	Records []Record
	Groups  []Group
	Count   int
}

// IsGrouped reports whether the set carries aggregate rows.
func (rs *ResultSet) IsGrouped() bool {
	return rs.Groups != nil
}

// ParsePage decodes an OpenAlex response body. Collection responses carry
// "meta" plus "results" or "group_by"; a single-entity body (e.g. from
// /works/W123) has neither and becomes a one-record page.
func ParsePage(body []byte) (*Page, error) {
	var probe struct {
		Meta    *Meta           `json:"meta"`
		Results []Record        `json:"results"`
		Groups  []Group         `json:"group_by"`
		Raw     json.RawMessage `json:"-"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}

	if probe.Meta == nil && probe.Results == nil && probe.Groups == nil {
		var rec Record
		if err := json.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("decode entity body: %w", err)
		}
		return &Page{Results: []Record{rec}, Meta: Meta{Count: 1}}, nil
	}

	page := &Page{Results: probe.Results, Groups: probe.Groups}
	if probe.Meta != nil {
		page.Meta = *probe.Meta
	}
	return page, nil
}
