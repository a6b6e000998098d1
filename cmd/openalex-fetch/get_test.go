package main

import (
	"strings"
	"testing"

	"github.com/scholarly-go/openalex-client/pkg/query"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		raw     string
		path    string
		field   string
		value   string
		wantErr bool
	}{
		{raw: "publication_year:2023", path: "", field: "publication_year", value: "2023"},
		{raw: "authorships.author.id:A123", path: "authorships.author", field: "id", value: "A123"},
		{raw: "cited_by_count:>100", path: "", field: "cited_by_count", value: ">100"},
		{raw: "novalue:", wantErr: true},
		{raw: "nocolon", wantErr: true},
		{raw: ":nov", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			path, field, value, err := parseFilter(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if path != tt.path || field != tt.field || value != tt.value {
				t.Errorf("got (%q, %q, %q), want (%q, %q, %q)",
					path, field, value, tt.path, tt.field, tt.value)
			}
		})
	}
}

func TestBuildSpec(t *testing.T) {
	flagFilters = []string{"publication_year:2023"}
	flagSearch = "machine learning"
	flagGroupBy = "type"
	t.Cleanup(func() {
		flagFilters = nil
		flagSearch = ""
		flagGroupBy = ""
	})

	spec, err := buildSpec("works")
	if err != nil {
		t.Fatalf("buildSpec failed: %v", err)
	}
	if spec.Entity() != "works" {
		t.Errorf("Entity = %q", spec.Entity())
	}
	if !spec.IsGrouped() {
		t.Error("group-by flag not applied")
	}

	url := spec.URL("https://api.openalex.org", query.PageArgs{})
	for _, want := range []string{"publication_year:2023", "search=machine+learning", "group-by=type"} {
		if !strings.Contains(url, want) {
			t.Errorf("URL %q missing %q", url, want)
		}
	}
}
