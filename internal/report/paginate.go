package report

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 10

// TotalPages is ceil(count/size) with a floor of one page.
func TotalPages(count, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	if count <= 0 {
		return 1
	}
	return (count + size - 1) / size
}

// ClampPage keeps page within [1, totalPages].
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}

// Paginate returns the window [(page-1)*size, page*size) of records after
// clamping page, along with the clamped page and the page count.
func Paginate(records []Record, page, size int) ([]Record, int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := TotalPages(len(records), size)
	page = ClampPage(page, total)

	start := (page - 1) * size
	if start >= len(records) {
		return []Record{}, page, total
	}
	end := start + size
	if end > len(records) {
		end = len(records)
	}
	return records[start:end], page, total
}
