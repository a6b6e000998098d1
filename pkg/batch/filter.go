package batch

import (
	"fmt"
	"sort"

	"github.com/scholarly-go/openalex-client/pkg/query"
)

// DefaultSeparator joins batched ID values into one OR expression.
const DefaultSeparator = "|"

// FilterSpec describes where a batched ID list lives inside a query's
// filter tree: the dotted path to the nested filter, the field holding the
// IDs, and the separator used to join a chunk into one OR expression.
type FilterSpec struct {
	Path      string
	IDField   string
	Separator string
}

func (f FilterSpec) separator() string {
	if f.Separator == "" {
		return DefaultSeparator
	}
	return f.Separator
}

// Strip returns the query with this filter removed.
func (f FilterSpec) Strip(s query.Spec) query.Spec {
	return s.WithoutFilter(f.Path, f.IDField)
}

// Attach returns the query with the given IDs joined into one OR filter at
// this filter's location.
func (f FilterSpec) Attach(s query.Spec, ids []string) query.Spec {
	return s.WithORFilter(f.Path, f.IDField, ids, f.separator())
}

// Registry maps named batch filters to their location in the filter tree.
type Registry struct {
	specs map[string]FilterSpec
}

// NewRegistry returns a registry preloaded with the standard OpenAlex batch
// filters.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]FilterSpec)}

	// Works
	r.Register("works_funder", "grants", "funder")
	r.Register("works_award", "grants", "award_id")
	r.Register("works_author", "authorships.author", "id")
	r.Register("works_institution", "authorships.institutions", "id")
	r.Register("works_source", "primary_location.source", "id")
	r.Register("works_topic", "primary_topic", "id")
	r.Register("works_topics", "topics", "id")
	r.Register("works_subfield", "primary_topic.subfield", "id")
	r.Register("works_cited_by", "", "cited_by")
	r.Register("works_cites", "", "cites")
	r.Register("works_referenced_works", "", "referenced_works")

	// Authors
	r.Register("authors_institution", "last_known_institutions", "id")
	r.Register("authors_works", "", "works")

	// Topics
	r.Register("topics_domain", "domain", "id")
	r.Register("topics_field", "field", "id")
	r.Register("topics_subfield", "subfield", "id")

	// Other entities
	r.Register("institutions_works", "", "works")
	r.Register("sources_works", "", "works")

	return r
}

// Register adds or replaces a named filter.
func (r *Registry) Register(name, path, idField string) {
	r.specs[name] = FilterSpec{Path: path, IDField: idField}
}

// Get returns the filter registered under name.
func (r *Registry) Get(name string) (FilterSpec, error) {
	spec, ok := r.specs[name]
	if !ok {
		return FilterSpec{}, fmt.Errorf("unknown batch filter %q", name)
	}
	return spec, nil
}

// Exists reports whether a filter is registered under name.
func (r *Registry) Exists(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Names returns all registered filter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
