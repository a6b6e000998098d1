// Package query models an OpenAlex query as an immutable specification.
//
// A Spec is never mutated in place: every With* method deep-clones the
// filter tree and returns a new value, so batch sub-queries can strip and
// re-attach filters without aliasing the original query's parameters.
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Filters is a nested tree of filter fields. Leaves are strings (a single
// value or a pre-joined OR expression) or []string (multiple conditions on
// the same field, rendered as separate comma-joined terms).
type Filters map[string]any

// Spec describes one logical OpenAlex query against a collection endpoint.
// The zero value is not usable; construct with New.
type Spec struct {
	entity  string // endpoint name, e.g. "works", "authors"
	filters Filters
	search  string
	sort    string
	sel     []string
	groupBy string
	sample  int
	seed    int
}

// New creates a query spec for an entity endpoint ("works", "authors",
// "institutions", ...).
func New(entity string) Spec {
	return Spec{entity: entity}
}

// Entity returns the endpoint name the spec targets.
func (s Spec) Entity() string { return s.entity }

// GroupBy returns the group-by field, or "" for entity queries.
func (s Spec) GroupBy() string { return s.groupBy }

// IsGrouped reports whether this is an aggregate (group-by) query.
func (s Spec) IsGrouped() bool { return s.groupBy != "" }

// WithFilter returns a copy of the spec with a filter set at the dotted
// path. For path "authorships.author" and field "id" the resulting filter
// tree is {"authorships": {"author": {"id": value}}}. An empty path sets a
// flat field.
func (s Spec) WithFilter(path, field string, value any) Spec {
	c := s.clone()
	if c.filters == nil {
		c.filters = Filters{}
	}
	node := c.filters
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			child, ok := node[part].(Filters)
			if !ok {
				child = Filters{}
				node[part] = child
			}
			node = child
		}
	}
	node[field] = value
	return c
}

// WithORFilter returns a copy with an OR filter: the values are joined with
// separator (usually "|") and set at path/field as one expression.
func (s Spec) WithORFilter(path, field string, values []string, separator string) Spec {
	return s.WithFilter(path, field, strings.Join(values, separator))
}

// WithoutFilter returns a copy of the spec with the filter at the dotted
// path removed. Empty intermediate nodes left behind by the removal are
// pruned. Removing a filter that is not set is a no-op.
func (s Spec) WithoutFilter(path, field string) Spec {
	c := s.clone()
	if c.filters == nil {
		return c
	}
	if path == "" {
		delete(c.filters, field)
		return c
	}

	parts := strings.Split(path, ".")
	nodes := make([]Filters, 0, len(parts)+1)
	nodes = append(nodes, c.filters)
	node := c.filters
	for _, part := range parts {
		child, ok := node[part].(Filters)
		if !ok {
			return c
		}
		nodes = append(nodes, child)
		node = child
	}
	delete(node, field)

	// Prune now-empty subtrees bottom-up.
	for i := len(nodes) - 1; i > 0; i-- {
		if len(nodes[i]) == 0 {
			delete(nodes[i-1], parts[i-1])
		}
	}
	return c
}

// WithSearch returns a copy with a full-text search term.
func (s Spec) WithSearch(term string) Spec {
	c := s.clone()
	c.search = term
	return c
}

// WithSort returns a copy with a sort expression (e.g. "cited_by_count:desc").
func (s Spec) WithSort(sort string) Spec {
	c := s.clone()
	c.sort = sort
	return c
}

// WithSelect returns a copy that asks the API for only the given fields.
func (s Spec) WithSelect(fields ...string) Spec {
	c := s.clone()
	c.sel = append([]string(nil), fields...)
	return c
}

// WithGroupBy returns a copy that turns the query into an aggregate query
// over the given field.
func (s Spec) WithGroupBy(field string) Spec {
	c := s.clone()
	c.groupBy = field
	return c
}

// WithSample returns a copy requesting a random sample of n results with
// the given seed.
func (s Spec) WithSample(n, seed int) Spec {
	c := s.clone()
	c.sample = n
	c.seed = seed
	return c
}

// PageArgs carries the per-request pagination parameters attached when the
// spec is rendered to a URL. Exactly one of Cursor or Page is set for a
// paginated request; both zero renders no pagination parameters.
type PageArgs struct {
	Cursor  string
	Page    int
	PerPage int
}

// URL renders the spec against a base URL (e.g. "https://api.openalex.org")
// with the given pagination arguments. Rendering is pure: the spec is not
// modified and equal specs render equal URLs.
//
// The filter expression is assembled with per-value escaping and must not
// be escaped a second time, so the query string is built by hand in a fixed
// parameter order.
func (s Spec) URL(base string, page PageArgs) string {
	var params []string
	add := func(key, value string) {
		params = append(params, key+"="+value)
	}

	if expr := renderFilters(s.filters, ""); expr != "" {
		add("filter", expr)
	}
	if s.search != "" {
		add("search", url.QueryEscape(s.search))
	}
	if s.sort != "" {
		add("sort", url.QueryEscape(s.sort))
	}
	if len(s.sel) > 0 {
		add("select", strings.Join(s.sel, ","))
	}
	if s.groupBy != "" {
		add("group-by", url.QueryEscape(s.groupBy))
	}
	if s.sample > 0 {
		add("sample", fmt.Sprintf("%d", s.sample))
		add("seed", fmt.Sprintf("%d", s.seed))
	}
	if page.Cursor != "" {
		add("cursor", url.QueryEscape(page.Cursor))
	}
	if page.Page > 0 {
		add("page", fmt.Sprintf("%d", page.Page))
	}
	if page.PerPage > 0 {
		add("per-page", fmt.Sprintf("%d", page.PerPage))
	}

	u := strings.TrimRight(base, "/") + "/" + s.entity
	if len(params) > 0 {
		u += "?" + strings.Join(params, "&")
	}
	return u
}

// renderFilters flattens the nested filter tree into the OpenAlex filter
// expression: dotted field paths, "field:value" terms joined by commas.
// Keys are sorted for deterministic output.
func renderFilters(f Filters, prefix string) string {
	if len(f) == 0 {
		return ""
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		switch v := f[k].(type) {
		case Filters:
			if sub := renderFilters(v, full); sub != "" {
				terms = append(terms, sub)
			}
		case []string:
			// Separate conditions on the same field, e.g.
			// publication_year:>2018,publication_year:<2021.
			for _, item := range v {
				terms = append(terms, full+":"+quoteValue(item))
			}
		default:
			terms = append(terms, full+":"+quoteValue(fmt.Sprintf("%v", v)))
		}
	}
	return strings.Join(terms, ",")
}

// quoteValue prepares a single filter value. The OR separator "|" and
// comparison prefixes pass through unescaped; everything else is escaped so
// commas or colons inside values cannot break the expression.
func quoteValue(v string) string {
	if strings.Contains(v, "|") {
		parts := strings.Split(v, "|")
		for i, p := range parts {
			parts[i] = escapeTerm(p)
		}
		return strings.Join(parts, "|")
	}
	return escapeTerm(v)
}

func escapeTerm(v string) string {
	for _, op := range []string{"!", ">", "<"} {
		if strings.HasPrefix(v, op) {
			return op + url.QueryEscape(v[len(op):])
		}
	}
	return url.QueryEscape(v)
}

// clone deep-copies the spec, including the filter tree.
func (s Spec) clone() Spec {
	c := s
	c.filters = cloneFilters(s.filters)
	c.sel = append([]string(nil), s.sel...)
	return c
}

func cloneFilters(f Filters) Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		switch vv := v.(type) {
		case Filters:
			out[k] = cloneFilters(vv)
		case []string:
			out[k] = append([]string(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}
