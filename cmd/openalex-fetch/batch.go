package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/scholarly-go/openalex-client/pkg/batch"
	"github.com/scholarly-go/openalex-client/pkg/pagination"
	"github.com/scholarly-go/openalex-client/pkg/query"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

var (
	flagFilterName string
	flagIDsFile    string
	flagSerial     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <entity> [id ...]",
	Short: "Query with an oversized ID list, split into chunked sub-queries",
	Long: `Splits an ID list into chunks (default 100), runs one sub-query per
chunk, and merges the results: entity results are deduplicated by id,
group-by counts are summed per key.

IDs are taken from the arguments, or one per line from --ids-file
(use "-" for stdin).`,
	Example: `  openalex-fetch batch works A1 A2 A3 --filter-name works_author
  openalex-fetch batch works --filter-name works_funder --ids-file funders.txt --group-by type`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&flagFilterName, "filter-name", "", "named batch filter, e.g. works_author (required)")
	f.StringVar(&flagIDsFile, "ids-file", "", "file with one ID per line, - for stdin")
	f.BoolVar(&flagSerial, "serial", false, "run chunks one after another")
	f.StringArrayVar(&flagFilters, "filter", nil, "additional filter as field:value, repeatable")
	f.StringVar(&flagGroupBy, "group-by", "", "aggregate by field instead of listing entities")
	_ = batchCmd.MarkFlagRequired("filter-name")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	entity := args[0]
	ids, err := collectIDs(args[1:])
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no IDs given")
	}

	spec, err := buildSpec(entity)
	if err != nil {
		return err
	}

	registry := batch.NewRegistry()
	if !registry.Exists(flagFilterName) {
		return fmt.Errorf("unknown batch filter %q, known filters: %s",
			flagFilterName, strings.Join(registry.Names(), ", "))
	}

	ctx := cmd.Context()
	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	splitter := batch.NewSplitter(registry, cfg.BatchChunkSize, cfg.MaxConcurrentRequests)
	chunks := (len(ids) + cfg.BatchChunkSize - 1) / cfg.BatchChunkSize

	progress, _ := pterm.DefaultProgressbar.
		WithTotal(chunks).
		WithTitle("Fetching chunks").
		WithWriter(os.Stderr).
		Start()
	var progressMu sync.Mutex

	run := func(ctx context.Context, chunkSpec query.Spec) (*response.ResultSet, error) {
		p, err := pagination.New(c, cfg.BaseURL, chunkSpec, pagination.Config{
			PerPage:    cfg.DefaultPerPage,
			MaxResults: flagMaxResults,
		})
		if err != nil {
			return nil, err
		}
		rs, err := p.All(ctx)
		if err != nil {
			return nil, err
		}

		progressMu.Lock()
		progress.Increment()
		progressMu.Unlock()
		return rs, nil
	}

	var rs *response.ResultSet
	if flagSerial {
		rs, err = splitter.RunSerial(ctx, spec, flagFilterName, ids, run)
	} else {
		rs, err = splitter.Run(ctx, spec, flagFilterName, ids, run)
	}
	_, _ = progress.Stop()
	if err != nil {
		return err
	}

	return printResultSet(rs)
}

// collectIDs merges positional IDs with the --ids-file contents.
func collectIDs(args []string) ([]string, error) {
	ids := append([]string(nil), args...)
	if flagIDsFile == "" {
		return ids, nil
	}

	var r *os.File
	if flagIDsFile == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(flagIDsFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			ids = append(ids, line)
		}
	}
	return ids, scanner.Err()
}
