package repository

// Paging bounds the page and limit accepted by a list query.
type Paging struct {
	DefaultLimit int
	MaxLimit     int
}

var (
	HistoryPaging = Paging{DefaultLimit: 50, MaxLimit: 200}
	BatchPaging   = Paging{DefaultLimit: 100, MaxLimit: 500}
)

// Normalize returns the page and limit a query actually runs with. Pages
// start at 1, a missing limit takes the default and an oversized one is
// capped at MaxLimit.
func (p Paging) Normalize(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = p.DefaultLimit
	case limit > p.MaxLimit:
		limit = p.MaxLimit
	}
	return page, limit
}
