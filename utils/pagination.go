package utils

import "strconv"

// PageSize is the fixed number of records per listing page.
const PageSize = 10

// Page describes one resolved listing page.
type Page struct {
	Number     int   `json:"page"`
	Size       int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ResolvePage turns a raw 1-based page parameter into a valid page for the
// given record total. Out-of-range values clamp to the nearest valid page
// instead of failing: garbage or values below 1 resolve to the first page,
// values past the end resolve to the last page. An empty result set still has
// one (empty) page.
func ResolvePage(raw string, total int64) Page {
	pages := int((total + PageSize - 1) / PageSize)
	if pages < 1 {
		pages = 1
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}

	return Page{Number: n, Size: PageSize, Total: total, TotalPages: pages}
}

// Offset is the record offset of the page start.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}
