package report

import "strings"

// Criteria holds the user-controlled predicates of a view.
type Criteria struct {
	Search  string            `json:"search"`
	Filters map[string]string `json:"filters"`
}

// Filter returns the records satisfying the search term and every status
// dimension of def, in their original order.
func Filter(records []Record, def *Definition, c Criteria) []Record {
	term := strings.ToLower(c.Search)
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matchesSearch(rec, def.SearchFields, term) && matchesStatus(rec, def, c.Filters) {
			out = append(out, rec)
		}
	}
	return out
}

func matchesSearch(rec Record, fields []string, term string) bool {
	if term == "" {
		return true
	}
	for _, field := range fields {
		value, ok := rec.Text(field)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(value), term) {
			return true
		}
	}
	return false
}

func matchesStatus(rec Record, def *Definition, filters map[string]string) bool {
	for _, dim := range def.StatusDimensions {
		want, ok := filters[dim.Key]
		if !ok || want == "" || want == AllValue {
			continue
		}
		if !rec.Equals(dim.Field, want) {
			return false
		}
	}
	return true
}
