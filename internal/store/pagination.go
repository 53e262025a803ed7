package store

import "gorm.io/gorm"

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PaginationParams selects one page of an admin listing. Page is 1-indexed.
// Search is matched by each listing in its own way.
type PaginationParams struct {
	Page     int
	PageSize int
	Search   string
}

// PaginationResult is returned alongside a page of rows
type PaginationResult struct {
	Total       int64
	TotalPages  int
	CurrentPage int
	PageSize    int
	HasPrev     bool
	HasNext     bool
}

// NewPaginationParams clamps caller input: page below 1 becomes 1, page size
// outside 1..100 falls back to 10 or is capped at 100.
func NewPaginationParams(page, pageSize int, search string) PaginationParams {
	switch {
	case pageSize < 1:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return PaginationParams{Page: max(page, 1), PageSize: pageSize, Search: search}
}

func (p PaginationParams) offset() int {
	return (max(p.Page, 1) - 1) * p.PageSize
}

// scope limits a query to the requested page
func (p PaginationParams) scope(db *gorm.DB) *gorm.DB {
	return db.Offset(p.offset()).Limit(p.PageSize)
}

// CalculatePagination describes where a page sits within total rows. An
// out-of-range page is pulled back to the last page.
func CalculatePagination(total int64, currentPage, pageSize int) PaginationResult {
	var totalPages int
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	currentPage = max(currentPage, 1)
	if totalPages > 0 {
		currentPage = min(currentPage, totalPages)
	}
	return PaginationResult{
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: currentPage,
		PageSize:    pageSize,
		HasPrev:     currentPage > 1,
		HasNext:     currentPage < totalPages,
	}
}
