// Package pagination walks OpenAlex collection endpoints page by page.
//
// OpenAlex offers two pagination modes: cursor (deep, starts at "*", the
// next cursor arrives in meta.next_cursor) and page numbers (capped at
// 10,000 results server-side). Group-by queries return their aggregate rows
// on page 1 only, capped at 200 groups.
//
// Example usage:
//
//	p, err := pagination.New(client, client.BaseURL(), spec, pagination.Config{
//		PerPage:    200,
//		MaxResults: 1000,
//	})
//	for {
//		page, err := p.Next(ctx)
//		if err == pagination.ErrExhausted {
//			break
//		}
//		...
//	}
//
// For page-number mode, FetchAllPages fetches page 1 to learn the total
// count, then fetches the remaining pages concurrently through the batch
// executor while preserving page order.
package pagination
