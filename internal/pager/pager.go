// Package pager partitions an ordering into fixed-size pages.
package pager

// DefaultPerPage is the reference page size for listings.
const DefaultPerPage = 60

// Page is one slice of an ordering. Numbers are 1-based.
type Page[T any] struct {
	Number int
	Total  int
	Items  []T
}

// Prev is the previous page number, or 0 on the first page.
func (p Page[T]) Prev() int {
	if p.Number <= 1 {
		return 0
	}
	return p.Number - 1
}

// Next is the next page number, or 0 on the last page.
func (p Page[T]) Next() int {
	if p.Number >= p.Total {
		return 0
	}
	return p.Number + 1
}

// First reports whether p is page 1.
func (p Page[T]) First() bool {
	return p.Number == 1
}

// Count returns how many pages n items need. An empty ordering still gets
// one (empty) page so its listing exists.
func Count(n, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if n <= 0 {
		return 1
	}
	return (n + perPage - 1) / perPage
}

// Paginate splits items into pages of perPage. Concatenating the Items of
// every page reproduces items exactly.
func Paginate[T any](items []T, perPage int) []Page[T] {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := Count(len(items), perPage)
	pages := make([]Page[T], 0, total)
	for n := 1; n <= total; n++ {
		start := (n - 1) * perPage
		end := min(start+perPage, len(items))
		if start > end {
			start = end
		}
		pages = append(pages, Page[T]{Number: n, Total: total, Items: items[start:end:end]})
	}
	return pages
}
