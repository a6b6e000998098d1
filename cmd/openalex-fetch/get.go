package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/scholarly-go/openalex-client/pkg/pagination"
	"github.com/scholarly-go/openalex-client/pkg/query"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

var (
	flagFilters []string
	flagSearch  string
	flagSort    string
	flagSelect  []string
	flagGroupBy string
)

var getCmd = &cobra.Command{
	Use:   "get <entity>",
	Short: "Run a query against an entity endpoint (works, authors, ...)",
	Example: `  openalex-fetch get works --filter publication_year:2023 --max-results 100
  openalex-fetch get works --filter authorships.author.id:A5023888391 --group-by type
  openalex-fetch get authors --search "maria curie" --sort cited_by_count:desc`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	f := getCmd.Flags()
	f.StringArrayVar(&flagFilters, "filter", nil, "filter as field:value (dotted paths allowed), repeatable")
	f.StringVar(&flagSearch, "search", "", "full-text search term")
	f.StringVar(&flagSort, "sort", "", "sort expression, e.g. cited_by_count:desc")
	f.StringSliceVar(&flagSelect, "select", nil, "fields to return")
	f.StringVar(&flagGroupBy, "group-by", "", "aggregate by field instead of listing entities")
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	spec, err := buildSpec(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	pageCfg := pagination.Config{
		PerPage:       cfg.DefaultPerPage,
		MaxResults:    flagMaxResults,
		MaxConcurrent: cfg.MaxConcurrentRequests,
	}

	var rs *response.ResultSet
	if flagPageMode {
		rs, err = pagination.FetchAllPages(ctx, c, cfg.BaseURL, spec, pageCfg)
	} else {
		var p *pagination.Paginator
		p, err = pagination.New(c, cfg.BaseURL, spec, pageCfg)
		if err != nil {
			return err
		}
		rs, err = p.All(ctx)
	}
	if err != nil {
		return err
	}

	return printResultSet(rs)
}

// buildSpec assembles the query from command-line flags.
func buildSpec(entity string) (query.Spec, error) {
	spec := query.New(entity)

	for _, raw := range flagFilters {
		path, field, value, err := parseFilter(raw)
		if err != nil {
			return spec, err
		}
		spec = spec.WithFilter(path, field, value)
	}
	if flagSearch != "" {
		spec = spec.WithSearch(flagSearch)
	}
	if flagSort != "" {
		spec = spec.WithSort(flagSort)
	}
	if len(flagSelect) > 0 {
		spec = spec.WithSelect(flagSelect...)
	}
	if flagGroupBy != "" {
		spec = spec.WithGroupBy(flagGroupBy)
	}
	return spec, nil
}

// parseFilter splits "authorships.author.id:A123" into path
// "authorships.author", field "id", value "A123".
func parseFilter(raw string) (path, field, value string, err error) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok || key == "" || value == "" {
		return "", "", "", fmt.Errorf("filter %q must be field:value", raw)
	}
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i], key[i+1:], value, nil
	}
	return "", key, value, nil
}

// printResultSet writes records as JSON lines and aggregate rows as a table.
func printResultSet(rs *response.ResultSet) error {
	if rs.IsGrouped() {
		table := pterm.TableData{{"Key", "Name", "Count"}}
		for _, g := range rs.Groups {
			table = append(table, []string{g.Key, g.KeyDisplayName, strconv.Itoa(g.Count)})
		}
		if err := pterm.DefaultTable.WithHasHeader().WithData(table).Render(); err != nil {
			return err
		}
		pterm.Info.Printfln("%d groups (total count %d)", len(rs.Groups), rs.Count)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	for _, rec := range rs.Records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	pterm.Info.Printfln("%d of %d records", len(rs.Records), rs.Count)
	return nil
}
