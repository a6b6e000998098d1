// openalex-fetch is a command-line frontend for the OpenAlex client engine:
// it runs entity and group-by queries, walks their pages, and batches
// oversized ID-list filters.
package main

func main() {
	Execute()
}
