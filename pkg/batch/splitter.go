package batch

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/scholarly-go/openalex-client/pkg/query"
	"github.com/scholarly-go/openalex-client/pkg/response"
)

var splitterChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "openalex_batch_chunks_total",
	Help: "Total sub-query chunks executed by the batch splitter by mode",
}, []string{"mode"}) // "serial", "concurrent"

// RunChunk executes one chunk sub-query to completion and returns its full
// result set. The splitter stays agnostic of pagination mode: whether a
// chunk consumes one page, a capped number of results, or every page is the
// caller's policy, carried inside this function.
type RunChunk func(ctx context.Context, spec query.Spec) (*response.ResultSet, error)

// Splitter turns a query with an oversized ID-list filter into chunk-sized
// sub-queries, executes them, and merges their results. Entity results are
// deduplicated by id (first seen wins); aggregate results are merged by
// summing per-key counts.
type Splitter struct {
	registry      *Registry
	chunkSize     int
	maxConcurrent int
	logger        zerolog.Logger
}

// NewSplitter creates a splitter. Non-positive chunkSize or maxConcurrent
// fall back to their defaults.
func NewSplitter(registry *Registry, chunkSize, maxConcurrent int) *Splitter {
	if registry == nil {
		registry = NewRegistry()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Splitter{
		registry:      registry,
		chunkSize:     chunkSize,
		maxConcurrent: maxConcurrent,
		logger:        log.With().Str("component", "batch-splitter").Logger(),
	}
}

// SubQueries builds one sub-query per chunk of ids: the named filter is
// stripped from the base query and re-attached as an OR expression over the
// chunk's values. Chunks preserve the original id order.
func (s *Splitter) SubQueries(base query.Spec, filterName string, ids []string) ([]query.Spec, error) {
	filter, err := s.registry.Get(filterName)
	if err != nil {
		return nil, err
	}

	stripped := filter.Strip(base)
	chunks := Chunk(ids, s.chunkSize)

	specs := make([]query.Spec, len(chunks))
	for i, chunk := range chunks {
		specs[i] = filter.Attach(stripped, chunk)
	}
	return specs, nil
}

// Run executes the sub-queries concurrently, bounded by the splitter's
// max-concurrency, and merges their results. If any chunk fails the whole
// call fails and no merged result is returned; chunk failures do not cancel
// sibling chunks.
func (s *Splitter) Run(ctx context.Context, base query.Spec, filterName string, ids []string, run RunChunk) (*response.ResultSet, error) {
	specs, err := s.SubQueries(base, filterName, ids)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("filter", filterName).Int("ids", len(ids)).
		Int("chunks", len(specs)).Msg("Running batched query")

	results := make([]*response.ResultSet, len(specs))
	errs := make([]error, len(specs))

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for i, spec := range specs {
		g.Go(func() error {
			splitterChunksTotal.WithLabelValues("concurrent").Inc()
			rs, err := run(ctx, spec)
			if err != nil {
				errs[i] = fmt.Errorf("chunk %d: %w", i, err)
				return nil
			}
			results[i] = rs
			return nil
		})
	}
	_ = g.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return mergeResults(base, results), nil
}

// RunSerial executes the sub-queries one after another in chunk order. The
// merged output is identical to Run's for the same inputs.
func (s *Splitter) RunSerial(ctx context.Context, base query.Spec, filterName string, ids []string, run RunChunk) (*response.ResultSet, error) {
	specs, err := s.SubQueries(base, filterName, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*response.ResultSet, len(specs))
	for i, spec := range specs {
		splitterChunksTotal.WithLabelValues("serial").Inc()
		rs, err := run(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		results[i] = rs
	}

	return mergeResults(base, results), nil
}

// mergeResults combines per-chunk result sets in chunk order.
func mergeResults(base query.Spec, results []*response.ResultSet) *response.ResultSet {
	if base.IsGrouped() {
		chunks := make([][]response.Group, len(results))
		for i, rs := range results {
			chunks[i] = rs.Groups
		}
		merged := MergeGroups(chunks)
		return &response.ResultSet{Groups: merged, Count: len(merged)}
	}

	chunks := make([][]response.Record, len(results))
	for i, rs := range results {
		chunks[i] = rs.Records
	}
	merged := MergeEntities(chunks)
	return &response.ResultSet{Records: merged, Count: len(merged)}
}
