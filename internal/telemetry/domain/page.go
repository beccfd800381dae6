package telemetry

import (
	"strconv"
	"strings"
)

const (
	// PageSizeAll disables slicing.
	PageSizeAll = -1
	// DefaultPageSize is the table size used when none is requested.
	DefaultPageSize = 5
)

// PageSizeOptions are the sizes offered to viewers.
var PageSizeOptions = []int{5, 10, 25, PageSizeAll}

// Page selects one slice of a sequence.
type Page struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// NewPage returns the first page of the default size.
func NewPage() Page {
	return Page{Index: 0, Size: DefaultPageSize}
}

// WithSize changes the page size and always resets the index.
func (p Page) WithSize(size int) Page {
	return Page{Index: 0, Size: size}
}

// WithIndex moves to another page of the same size.
func (p Page) WithIndex(index int) Page {
	return Page{Index: index, Size: p.Size}
}

// All reports whether slicing is disabled.
func (p Page) All() bool {
	return p.Size == PageSizeAll
}

// Validate rejects a negative index and sizes other than positive or PageSizeAll.
func (p Page) Validate() error {
	if p.Index < 0 {
		return ErrInvalidPage
	}
	if p.Size <= 0 && p.Size != PageSizeAll {
		return ErrInvalidPage
	}
	return nil
}

// ParsePage reads index and size from request values. "all" and "-1" both
// select PageSizeAll.
func ParsePage(index, size string) (Page, error) {
	page := NewPage()
	if strings.TrimSpace(size) != "" {
		value := strings.ToLower(strings.TrimSpace(size))
		if value == "all" {
			page.Size = PageSizeAll
		} else {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				return Page{}, ErrInvalidPage
			}
			page.Size = parsed
		}
	}
	if strings.TrimSpace(index) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(index))
		if err != nil {
			return Page{}, ErrInvalidPage
		}
		page.Index = parsed
	}
	if err := page.Validate(); err != nil {
		return Page{}, err
	}
	return page, nil
}

// PageResult is one slice of a sequence plus layout hints.
type PageResult[T any] struct {
	Items []T `json:"items"`
	Page  Page `json:"page"`
	Total int  `json:"total"`
	Pages int  `json:"pages"`
	// EmptyRows pads a short trailing page to a fixed row count.
	EmptyRows int  `json:"empty_rows"`
	HasPrev   bool `json:"has_prev"`
	HasNext   bool `json:"has_next"`
}

// Paginate returns the requested page of items. An index past the last page
// is clamped to the last page, so the slice is never out of bounds.
func Paginate[T any](items []T, page Page) PageResult[T] {
	total := len(items)
	if page.Validate() != nil {
		page = NewPage()
	}
	if page.All() {
		out := make([]T, total)
		copy(out, items)
		return PageResult[T]{Items: out, Page: page, Total: total, Pages: 1}
	}

	pages := (total + page.Size - 1) / page.Size
	if pages < 1 {
		pages = 1
	}
	if page.Index > pages-1 {
		page.Index = pages - 1
	}

	start := page.Index * page.Size
	end := start + page.Size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]T, end-start)
	copy(out, items[start:end])

	emptyRows := 0
	if page.Index > 0 {
		emptyRows = (page.Index+1)*page.Size - total
		if emptyRows < 0 {
			emptyRows = 0
		}
	}
	return PageResult[T]{
		Items:     out,
		Page:      page,
		Total:     total,
		Pages:     pages,
		EmptyRows: emptyRows,
		HasPrev:   page.Index > 0,
		HasNext:   page.Index < pages-1,
	}
}
