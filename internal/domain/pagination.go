package domain

// Pagination is a 1-based page request. A PageSize of zero means everything.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) Limit() int {
	return p.PageSize
}

func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// Bounds returns the slice bounds of the requested page over total items.
func (p Pagination) Bounds(total int) (start, end int) {
	if p.PageSize <= 0 {
		return 0, total
	}

	start = min(p.Offset(), total)
	end = min(start+p.Limit(), total)

	return start, end
}
