package batch

import (
	"sort"

	"github.com/scholarly-go/openalex-client/pkg/response"
)

// DefaultChunkSize is the number of ID values per sub-query.
const DefaultChunkSize = 100

// Chunk partitions values into contiguous chunks of at most size elements,
// preserving order. A non-positive size falls back to DefaultChunkSize.
func Chunk(values []string, size int) [][]string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(values) == 0 {
		return nil
	}

	chunks := make([][]string, 0, (len(values)+size-1)/size)
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}

// MergeEntities concatenates chunk results in chunk order, dropping any
// record whose id was already seen in an earlier record. Records without an
// id are kept unconditionally. The result is order-stable (chunk order, then
// first-seen order) and merging the same inputs twice yields the same
// output.
func MergeEntities(chunks [][]response.Record) []response.Record {
	seen := make(map[string]bool)
	var merged []response.Record

	for _, records := range chunks {
		for _, rec := range records {
			id := rec.ID()
			if id != "" {
				if seen[id] {
					continue
				}
				seen[id] = true
			}
			merged = append(merged, rec)
		}
	}
	return merged
}

// MergeGroups accumulates per-key counts across chunk group lists: counts
// for a key seen in multiple chunks are summed and the display name of the
// first occurrence is kept. The merged list is sorted by count descending;
// ties keep first-seen key order.
func MergeGroups(chunks [][]response.Group) []response.Group {
	index := make(map[string]int)
	var merged []response.Group

	for _, groups := range chunks {
		for _, g := range groups {
			if i, ok := index[g.Key]; ok {
				merged[i].Count += g.Count
				continue
			}
			index[g.Key] = len(merged)
			merged = append(merged, g)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Count > merged[j].Count
	})
	return merged
}
