package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scholarly-go/openalex-client/pkg/query"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

var pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "openalex_pages_total",
	Help: "Total pages fetched by the paginator by endpoint",
}, []string{"endpoint"})

// ErrExhausted signals the end of iteration.
var ErrExhausted = errors.New("pagination exhausted")

// Mode selects how pages are addressed.
type Mode int

const (
	// ModeCursor walks the collection with opaque cursors, starting at "*".
	// No server-side depth limit.
	ModeCursor Mode = iota

	// ModePage uses numeric pages starting at 1. The API caps page-number
	// access at 10,000 results.
	ModePage
)

const (
	// DefaultPerPage matches the API's default page size.
	DefaultPerPage = 25

	// MaxPerPage is the API's hard page size limit.
	MaxPerPage = 200
)

// Fetcher is the retrying fetch primitive the paginator drives.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*response.Page, error)
}

// Config controls one paginator instance.
type Config struct {
	Mode    Mode
	PerPage int // 1..200; 0 means DefaultPerPage

	// MaxResults caps the total items yielded across all pages; 0 means
	// unlimited. Pages are never truncated individually: once the running
	// total reaches the cap, the following Next returns ErrExhausted and
	// All trims its collected output.
	MaxResults int

	// MaxConcurrent bounds in-flight requests in FetchAllPages.
	MaxConcurrent int
}

// Paginator walks one query's pages. It starts Active at cursor "*" or page
// 1 and transitions to exhausted when the server signals the end, the page
// comes back empty, or the MaxResults cap is crossed.
type Paginator struct {
	fetcher Fetcher
	baseURL string
	spec    query.Spec
	config  Config

	cursor  string
	page    int
	fetched int
	done    bool
	started bool

	logger zerolog.Logger
}

// New creates a paginator for a query. PerPage outside 1..200 is a
// configuration error.
func New(fetcher Fetcher, baseURL string, spec query.Spec, cfg Config) (*Paginator, error) {
	if cfg.PerPage == 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.PerPage < 1 || cfg.PerPage > MaxPerPage {
		return nil, fmt.Errorf("per_page must be in 1..%d (got %d)", MaxPerPage, cfg.PerPage)
	}
	if cfg.MaxResults < 0 {
		return nil, fmt.Errorf("max_results must be >= 0 (got %d)", cfg.MaxResults)
	}

	p := &Paginator{
		fetcher: fetcher,
		baseURL: baseURL,
		spec:    spec,
		config:  cfg,
		logger: log.With().Str("component", "paginator").
			Str("endpoint", spec.Entity()).Logger(),
	}
	switch cfg.Mode {
	case ModeCursor:
		p.cursor = "*"
	case ModePage:
		p.page = 1
	default:
		return nil, fmt.Errorf("unknown pagination mode %d", cfg.Mode)
	}
	return p, nil
}

// Fetched returns the total items yielded so far.
func (p *Paginator) Fetched() int { return p.fetched }

// Done reports whether iteration has ended.
func (p *Paginator) Done() bool { return p.done }

// Next fetches and returns the next page, or ErrExhausted at the end of
// iteration. Pages are returned whole; the MaxResults cap stops iteration
// after the page that crosses it rather than truncating that page.
func (p *Paginator) Next(ctx context.Context) (*response.Page, error) {
	if p.done {
		return nil, ErrExhausted
	}

	// Aggregate results exist only on page 1 (at most 200 groups); asking
	// for page 2 of a group-by query ends iteration without a request.
	if p.spec.IsGrouped() && p.config.Mode == ModePage && p.page > 1 {
		p.done = true
		return nil, ErrExhausted
	}

	page, err := p.fetcher.Fetch(ctx, p.spec.URL(p.baseURL, p.pageArgs()))
	if err != nil {
		p.done = true
		return nil, err
	}
	pagesTotal.WithLabelValues(p.spec.Entity()).Inc()

	if !p.started {
		p.started = true
		p.logger.Info().Int("count", page.Meta.Count).Msg("Query total count")
	}

	p.advance(page)
	return page, nil
}

// pageArgs renders the current position.
func (p *Paginator) pageArgs() query.PageArgs {
	args := query.PageArgs{PerPage: p.config.PerPage}
	switch p.config.Mode {
	case ModeCursor:
		args.Cursor = p.cursor
	case ModePage:
		args.Page = p.page
	}
	return args
}

// advance moves the cursor/page state past a fetched page and applies the
// MaxResults cap.
func (p *Paginator) advance(page *response.Page) {
	switch p.config.Mode {
	case ModeCursor:
		p.cursor = page.Meta.NextCursor
		if p.cursor == "" {
			p.done = true
		}
	case ModePage:
		switch {
		case page.Len() == 0:
			p.done = true
		case page.Meta.Page > 0:
			p.page = page.Meta.Page + 1
		default:
			// Response without meta.page: advance locally instead of
			// resetting to page 1.
			p.page++
		}
	}

	p.fetched += page.Len()
	if p.config.MaxResults > 0 && p.fetched >= p.config.MaxResults {
		p.done = true
	}
}

// All walks every remaining page and returns the collected results, trimmed
// to MaxResults. Count carries the remote total for the query, which may
// exceed the number of records returned.
func (p *Paginator) All(ctx context.Context) (*response.ResultSet, error) {
	rs := &response.ResultSet{}
	for {
		page, err := p.Next(ctx)
		if err == ErrExhausted {
			break
		}
		if err != nil {
			return nil, err
		}
		if rs.Count == 0 {
			rs.Count = page.Meta.Count
		}
		// Keyed off the query, not the body: entity responses carry an
		// empty group_by array that must not shadow the records.
		if p.spec.IsGrouped() {
			rs.Groups = append(rs.Groups, page.Groups...)
		} else {
			rs.Records = append(rs.Records, page.Results...)
		}
	}

	if max := p.config.MaxResults; max > 0 {
		if len(rs.Records) > max {
			rs.Records = rs.Records[:max]
		}
		if len(rs.Groups) > max {
			rs.Groups = rs.Groups[:max]
		}
	}
	return rs, nil
}
