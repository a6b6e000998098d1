package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/scholarly-go/openalex-client/pkg/batch"
	"github.com/scholarly-go/openalex-client/pkg/query"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

// FetchAllPages consumes a page-mode query with concurrent page fetches:
// page 1 is fetched first to learn the total count, the remaining page URLs
// are derived from it and executed through the batch executor, and results
// are concatenated in page order. Group-by queries return after page 1
// since the API has no further aggregate pages.
//
// The result is trimmed to cfg.MaxResults; Count carries the remote total.
func FetchAllPages(ctx context.Context, fetcher Fetcher, baseURL string, spec query.Spec, cfg Config) (*response.ResultSet, error) {
	if cfg.PerPage == 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.PerPage < 1 || cfg.PerPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be in 1..%d (got %d)", MaxPerPage, cfg.PerPage)
	}

	logger := log.With().Str("component", "paginator").
		Str("endpoint", spec.Entity()).Logger()
	start := time.Now()

	first, err := fetcher.Fetch(ctx, spec.URL(baseURL, query.PageArgs{Page: 1, PerPage: cfg.PerPage}))
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	pagesTotal.WithLabelValues(spec.Entity()).Inc()

	total := first.Meta.Count
	logger.Info().Int("count", total).Msg("Query total count")

	if spec.IsGrouped() {
		groups := first.Groups
		if cfg.MaxResults > 0 && len(groups) > cfg.MaxResults {
			groups = groups[:cfg.MaxResults]
		}
		return &response.ResultSet{Groups: groups, Count: total}, nil
	}

	target := total
	if cfg.MaxResults > 0 && cfg.MaxResults < target {
		target = cfg.MaxResults
	}
	totalPages := (target + cfg.PerPage - 1) / cfg.PerPage

	if totalPages <= 1 {
		records := first.Results
		if cfg.MaxResults > 0 && len(records) > cfg.MaxResults {
			records = records[:cfg.MaxResults]
		}
		return &response.ResultSet{Records: records, Count: total}, nil
	}

	urls := make([]string, 0, totalPages-1)
	for page := 2; page <= totalPages; page++ {
		urls = append(urls, spec.URL(baseURL, query.PageArgs{Page: page, PerPage: cfg.PerPage}))
	}

	exec := batch.NewExecutor(fetcher, cfg.MaxConcurrent)
	exec.SetProgress(func(completed, total int) {
		if completed%50 == 0 {
			logger.Info().
				Int("fetched", completed+1).
				Int("total", total+1).
				Msg("Fetch progress")
		}
	})

	pages, err := exec.Execute(ctx, urls)
	if err != nil {
		return nil, err
	}

	records := make([]response.Record, 0, target)
	records = append(records, first.Results...)
	for _, page := range pages {
		pagesTotal.WithLabelValues(spec.Entity()).Inc()
		records = append(records, page.Results...)
	}
	if cfg.MaxResults > 0 && len(records) > cfg.MaxResults {
		records = records[:cfg.MaxResults]
	}

	logger.Info().
		Int("pages", totalPages).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return &response.ResultSet{Records: records, Count: total}, nil
}
